package lower

import (
	"errors"
	"testing"

	"github.com/gogpu/triton/ir"
)

func TestLegalize_SplatStampsReplacementTags(t *testing.T) {
	mod := newTestModule()
	f32 := mod.Types.Scalar(ir.ScalarFloat, 32)
	f32Tile := tile1D(mod, 128, f32)

	fn := mod.AddFunction("k", true)
	x := fn.AddParam(f32)
	b := ir.NewBuilder(fn)
	sp, _ := b.Emit1(ir.OpSplat, f32Tile, x)
	fn.Op(sp).WS = ir.WSTags{AsyncAgent: 7, HasAsyncAgent: true}

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	if err := cx.legalize(); err != nil {
		t.Fatalf("legalize failed: %v", err)
	}
	if got := countKind(fn, ir.OpSplat); got != 0 {
		t.Fatalf("Expected splat rewritten, %d remain", got)
	}
	checked := 0
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			op := fn.Op(id)
			if op.Kind != ir.LLInsertValue && op.Kind != ir.LLUndef {
				continue
			}
			checked++
			if !op.WS.HasAsyncAgent || op.WS.AsyncAgent != 7 {
				t.Errorf("%s: Expected async agent tag 7, got %+v", op.Kind, op.WS)
			}
		}
	}
	if checked == 0 {
		t.Error("Expected fragment-packing ops to inspect")
	}
}

func TestLegalize_IntermediateTilesCollapse(t *testing.T) {
	mod := newTestModule()
	i32 := mod.Types.Scalar(ir.ScalarInt, 32)
	src := tile1D(mod, 128, i32)
	dst := mod.Types.GetOrCreate("", ir.TileType{
		Shape: []int64{128, 1},
		Elem:  i32,
		Layout: ir.BlockedLayout{
			SizePerThread:  []int64{1, 1},
			ThreadsPerWarp: []int64{32, 1},
			WarpsPerCTA:    []int64{4, 1},
			Order:          []int{0, 1},
		},
	})

	fn := mod.AddFunction("k", true)
	x := fn.AddParam(i32)
	b := ir.NewBuilder(fn)
	_, sv := b.Emit1(ir.OpSplat, src, x)
	ed, _ := b.Emit1(ir.OpExpandDims, dst, sv)
	fn.Op(ed).Axis = 1

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	if err := cx.legalize(); err != nil {
		t.Fatalf("legalize failed: %v", err)
	}
	if got := countDialect(fn, ir.DialectTile); got != 0 {
		t.Errorf("Expected no tile ops after legalization, got %d", got)
	}

	// Nothing here has side effects, so the whole chain is dead and the
	// pack/unpack bridges collapse with it.
	cx.eliminateDeadOps()
	if got := len(fn.EntryBlock().Ops); got != 0 {
		t.Errorf("Expected an empty body after the sweep, got %d ops", got)
	}
}

func TestLegalize_DotWithBlockedOperandsFails(t *testing.T) {
	mod := newTestModule()
	f32 := mod.Types.Scalar(ir.ScalarFloat, 32)
	blocked := mod.Types.GetOrCreate("", ir.TileType{
		Shape: []int64{32, 32},
		Elem:  f32,
		Layout: ir.BlockedLayout{
			SizePerThread:  []int64{1, 1},
			ThreadsPerWarp: []int64{4, 8},
			WarpsPerCTA:    []int64{2, 2},
			Order:          []int{1, 0},
		},
	})

	fn := mod.AddFunction("k", true)
	b := ir.NewBuilder(fn)
	a := b.Undef(blocked)
	c := b.Undef(blocked)
	acc := b.Undef(blocked)
	b.Emit1(ir.OpDot, blocked, a, c, acc)

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	err := cx.legalize()
	if err == nil {
		t.Fatal("Expected a legalization error")
	}
	var le *LegalizeError
	if !errors.As(err, &le) {
		t.Fatalf("Expected *LegalizeError, got %T: %v", err, err)
	}
	if le.Kind != ir.OpDot {
		t.Errorf("Expected the error to name the dot op, got %s", le.Kind)
	}
	if le.Reason == "" {
		t.Error("Expected a reason on the error")
	}
}

func TestFoldClusterIDs_SingleCluster(t *testing.T) {
	mod := newTestModule()
	fn := mod.AddFunction("k", true)

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 90})
	cx.materializeIdentities()
	cid := cx.identity(fn).clusterID

	b := cx.builder(fn)
	b.SetInsertAtEnd(fn.EntryBlock())
	b.Binary(ir.LLAdd, cid, cid)

	cx.foldClusterIDs()
	if got := fn.NumUses(cid); got != 0 {
		t.Fatalf("Expected cluster id unused after folding, got %d uses", got)
	}
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			op := fn.Op(id)
			if op.Kind != ir.LLAdd {
				continue
			}
			for _, a := range op.Args {
				def, ok := fn.Def(a)
				if !ok || fn.Op(def).Kind != ir.LLConstInt || fn.Op(def).IntVal != 0 {
					t.Error("Expected the consumer rewired to the literal zero")
				}
			}
		}
	}

	// The producer is dead code now.
	cx.eliminateDeadOps()
	if got := countKind(fn, ir.NVVMClusterCTAID); got != 0 {
		t.Errorf("Expected cluster-id op swept, got %d", got)
	}
}

func TestFoldClusterIDs_MultiClusterKeepsProducer(t *testing.T) {
	mod := ir.NewModule(ir.ModuleAttrs{NumWarps: 4, ThreadsPerWarp: 32, NumCTAs: 2})
	fn := mod.AddFunction("k", true)

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 90})
	cx.materializeIdentities()
	cid := cx.identity(fn).clusterID

	b := cx.builder(fn)
	b.SetInsertAtEnd(fn.EntryBlock())
	b.Binary(ir.LLAdd, cid, cid)

	cx.foldClusterIDs()
	if got := fn.NumUses(cid); got != 2 {
		t.Errorf("Expected cluster id still consumed, got %d uses", got)
	}
}

func TestEliminateDeadOps_KeepsSideEffects(t *testing.T) {
	mod := newTestModule()
	i32 := mod.Types.Scalar(ir.ScalarInt, 32)
	i32p := mod.Types.Ptr(i32, ir.SpaceGlobal)

	fn := mod.AddFunction("k", true)
	p := fn.AddParam(i32p)
	v := fn.AddParam(i32)
	b := ir.NewBuilder(fn)
	b.Store(p, v, ir.InvalidValue)
	dead := b.I32(1)
	b.Binary(ir.LLAdd, dead, dead)

	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	cx.eliminateDeadOps()

	if got := countKind(fn, ir.LLStore); got != 1 {
		t.Errorf("Expected the store kept, got %d", got)
	}
	if got := countKind(fn, ir.LLAdd); got != 0 {
		t.Errorf("Expected the unused sum swept, got %d", got)
	}
	if got := countKind(fn, ir.LLConstInt); got != 0 {
		t.Errorf("Expected the orphaned constant swept, got %d", got)
	}
}
