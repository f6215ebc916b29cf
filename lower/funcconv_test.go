package lower

import (
	"testing"

	"github.com/gogpu/triton/analysis"
	"github.com/gogpu/triton/ir"
)

func TestConvertSignatures_DeviceFunctionGainsBasePointer(t *testing.T) {
	mod := newTestModule()
	i32 := mod.Types.Scalar(ir.ScalarInt, 32)
	fn := mod.AddFunction("helper", false)
	fn.AddParam(i32)
	fn.Attrs.ArgAttrs[0].ByVal = true

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	cx.convertSignatures()

	if len(fn.Params) != 2 {
		t.Fatalf("Expected 2 params after amendment, got %d", len(fn.Params))
	}
	pt, ok := mod.Types.Pointer(fn.ValueType(fn.Params[1]))
	if !ok || pt.Space != ir.SpaceShared {
		t.Error("Expected trailing shared-space pointer param")
	}
	if !fn.Attrs.Noinline {
		t.Error("Expected device function marked noinline")
	}
	if fn.Attrs.ArgAttrs[0].ByVal {
		t.Error("Expected caller-only byval attribute stripped")
	}
	if fn.Attrs.MaxThreadsPerBlock != 128 {
		t.Errorf("Expected max threads 128, got %d", fn.Attrs.MaxThreadsPerBlock)
	}
}

func TestConvertSignatures_KernelKeepsSignature(t *testing.T) {
	mod := newTestModule()
	fn := mod.AddFunction("k", true)
	fn.AddParam(mod.Types.Scalar(ir.ScalarInt, 32))

	cx := newContext(mod, Options{Target: TargetGENX})
	cx.convertSignatures()

	if len(fn.Params) != 1 {
		t.Errorf("Expected kernel params untouched, got %d", len(fn.Params))
	}
	if fn.Attrs.MaxWorkGroupSize != [3]int{128, 1, 1} {
		t.Errorf("Expected work group size [128 1 1], got %v", fn.Attrs.MaxWorkGroupSize)
	}
	if fn.Attrs.ReqdSubGroupSize != 32 {
		t.Errorf("Expected sub group size 32, got %d", fn.Attrs.ReqdSubGroupSize)
	}
}

func TestConvertSignatures_WarpGroupMultiplier(t *testing.T) {
	mod := ir.NewModule(ir.ModuleAttrs{
		NumWarps: 4, ThreadsPerWarp: 32, NumCTAs: 1,
		WSSupported: true, WarpGroupsPerCTA: 2,
	})
	fn := mod.AddFunction("k", true)

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 90})
	cx.convertSignatures()

	if fn.Attrs.MaxThreadsPerBlock != 256 {
		t.Errorf("Expected max threads 256 with two warp groups, got %d", fn.Attrs.MaxThreadsPerBlock)
	}
}

func TestLowerReturn_PacksMultipleResults(t *testing.T) {
	mod := newTestModule()
	i32 := mod.Types.Scalar(ir.ScalarInt, 32)
	f32 := mod.Types.Scalar(ir.ScalarFloat, 32)
	fn := mod.AddFunction("pair", false)
	fn.ResultTypes = []ir.TypeHandle{i32, f32}

	b := ir.NewBuilder(fn)
	x := b.ConstInt(i32, 1)
	y := b.ConstFloat(f32, 2)
	b.Emit0(ir.OpReturn, x, y)

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	if err := cx.convertCallsAndReturns(); err != nil {
		t.Fatalf("convertCallsAndReturns failed: %v", err)
	}

	if got := countKind(fn, ir.OpReturn); got != 0 {
		t.Fatalf("Expected mid-level return rewritten, %d remain", got)
	}
	var ret *ir.Op
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			if op := fn.Op(id); op.Kind == ir.LLReturn {
				ret = op
			}
		}
	}
	if ret == nil {
		t.Fatal("Expected a low-level return")
	}
	if len(ret.Args) != 1 {
		t.Fatalf("Expected a single packed return operand, got %d", len(ret.Args))
	}
	st, ok := mod.Types.Struct(fn.ValueType(ret.Args[0]))
	if !ok {
		t.Fatal("Expected the return operand to be an aggregate")
	}
	if len(st.Fields) != 2 || st.Fields[0] != i32 || st.Fields[1] != f32 {
		t.Errorf("Expected struct<i32, f32>, got fields %v", st.Fields)
	}
}

func TestLowerCall_PromotesSharedBase(t *testing.T) {
	mod := newTestModule()
	i32 := mod.Types.Scalar(ir.ScalarInt, 32)

	helper := mod.AddFunction("helper", false)
	helper.AddParam(i32)
	helper.ResultTypes = []ir.TypeHandle{i32}
	hb := ir.NewBuilder(helper)
	hb.Emit0(ir.OpReturn, helper.Params[0])

	kernel := mod.AddFunction("k", true)
	kb := ir.NewBuilder(kernel)
	arg := kb.ConstInt(i32, 5)
	call, res := kb.Emit1(ir.OpCall, i32, arg)
	kernel.Op(call).Sym = "helper"
	kb.Binary(ir.LLAdd, res, res)
	kb.Emit0(ir.OpReturn)

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	cx.alloc = analysis.RunAllocation(mod)
	cx.convertSignatures()
	if err := cx.convertCallsAndReturns(); err != nil {
		t.Fatalf("convertCallsAndReturns failed: %v", err)
	}

	var ll *ir.Op
	for _, blk := range kernel.Blocks {
		for _, id := range blk.Ops {
			if op := kernel.Op(id); op.Kind == ir.LLCall {
				ll = op
			}
		}
	}
	if ll == nil {
		t.Fatal("Expected a low-level call")
	}
	if ll.Sym != "helper" {
		t.Errorf("Expected callee symbol preserved, got %q", ll.Sym)
	}
	// Original argument plus the promoted shared-memory base.
	if len(ll.Args) != 2 {
		t.Fatalf("Expected 2 call operands, got %d", len(ll.Args))
	}
	if len(ll.Args) != len(helper.Params) {
		t.Errorf("Expected call arity to match amended callee, got %d vs %d",
			len(ll.Args), len(helper.Params))
	}
	pt, ok := mod.Types.Pointer(kernel.ValueType(ll.Args[1]))
	if !ok || pt.Space != ir.SpaceShared {
		t.Error("Expected promoted operand to be a shared-space pointer")
	}
	// The call result still feeds the original consumer.
	if got := countKind(kernel, ir.OpCall); got != 0 {
		t.Errorf("Expected mid-level call erased, got %d", got)
	}
}

func TestLowerCall_UnpacksMultipleResults(t *testing.T) {
	mod := newTestModule()
	i32 := mod.Types.Scalar(ir.ScalarInt, 32)
	f32 := mod.Types.Scalar(ir.ScalarFloat, 32)

	helper := mod.AddFunction("pair", false)
	helper.ResultTypes = []ir.TypeHandle{i32, f32}
	hb := ir.NewBuilder(helper)
	hb.Emit0(ir.OpReturn, hb.ConstInt(i32, 1), hb.ConstFloat(f32, 2))

	kernel := mod.AddFunction("k", true)
	kb := ir.NewBuilder(kernel)
	call := kb.Emit(ir.OpCall, []ir.TypeHandle{i32, f32})
	kernel.Op(call).Sym = "pair"
	r0, r1 := kernel.Op(call).Results[0], kernel.Op(call).Results[1]
	kb.Binary(ir.LLAdd, r0, r0)
	kb.Binary(ir.LLAdd, r1, r1)
	kb.Emit0(ir.OpReturn)

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	cx.alloc = analysis.RunAllocation(mod)
	cx.convertSignatures()
	if err := cx.convertCallsAndReturns(); err != nil {
		t.Fatalf("convertCallsAndReturns failed: %v", err)
	}
	if got := countKind(kernel, ir.OpCall); got != 0 {
		t.Fatalf("Expected mid-level call erased, got %d", got)
	}

	// The callee returns one packed aggregate; the call site unpacks it
	// with one extraction per result, in declaration order.
	var ll *ir.Op
	var extracts []*ir.Op
	for _, blk := range kernel.Blocks {
		for _, id := range blk.Ops {
			switch op := kernel.Op(id); op.Kind {
			case ir.LLCall:
				ll = op
			case ir.LLExtractValue:
				extracts = append(extracts, op)
			}
		}
	}
	if ll == nil {
		t.Fatal("Expected a low-level call")
	}
	st, ok := mod.Types.Struct(kernel.ValueType(ll.Results[0]))
	if !ok {
		t.Fatal("Expected the call to return a packed aggregate")
	}
	if len(st.Fields) != 2 || st.Fields[0] != i32 || st.Fields[1] != f32 {
		t.Errorf("Expected struct<i32, f32>, got fields %v", st.Fields)
	}
	if len(extracts) != 2 {
		t.Fatalf("Expected 2 extractions, got %d", len(extracts))
	}
	for i, ext := range extracts {
		if ext.IntVal != int64(i) {
			t.Errorf("extraction %d: Expected field index %d, got %d", i, i, ext.IntVal)
		}
		if ext.Args[0] != ll.Results[0] {
			t.Errorf("extraction %d: Expected the call result as source", i)
		}
	}
	// The original consumers now read the extracted scalars.
	if got := kernel.NumUses(extracts[0].Results[0]); got != 2 {
		t.Errorf("Expected the first extraction consumed twice, got %d uses", got)
	}
	if got := kernel.NumUses(extracts[1].Results[0]); got != 2 {
		t.Errorf("Expected the second extraction consumed twice, got %d uses", got)
	}
}

func TestLowerReturn_KernelOperandRejected(t *testing.T) {
	mod := newTestModule()
	fn := mod.AddFunction("bad", true)
	b := ir.NewBuilder(fn)
	b.Emit0(ir.OpReturn, b.I32(1))

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	err := cx.convertCallsAndReturns()
	if err == nil {
		t.Fatal("Expected a convention error")
	}
	ce, ok := err.(*ConventionError)
	if !ok {
		t.Fatalf("Expected *ConventionError, got %T", err)
	}
	if ce.Function != "bad" {
		t.Errorf("Expected error to name the kernel, got %q", ce.Function)
	}
}
