package lower

import (
	"testing"

	"github.com/gogpu/triton/ir"
)

// buildAsyncStage builds a kernel staging one tile into shared memory
// with an async copy followed by the group markers. The pointer tile is
// contiguous, so the copy width qualifies for the native path where one
// exists.
func buildAsyncStage(elem func(reg *ir.TypeRegistry) ir.TypeHandle) (*ir.Module, *ir.Function) {
	mod := newTestModule()
	reg := mod.Types

	e := elem(reg)
	i32 := reg.Scalar(ir.ScalarInt, 32)
	ep := reg.Ptr(e, ir.SpaceGlobal)

	i32Tile := tile1D(mod, 128, i32)
	ptrTile := tile1D(mod, 128, ep)
	dstTile := mod.Types.GetOrCreate("", ir.TileType{
		Shape:  []int64{2, 128},
		Elem:   e,
		Layout: ir.SharedLayout{Vec: 8, PerPhase: 1, MaxPhase: 1, Order: []int{1, 0}},
	})

	fn := mod.AddFunction("stage", true)
	base := fn.AddParam(ep)

	b := ir.NewBuilder(fn)
	_, iota := b.Emit1(ir.OpMakeRange, i32Tile)
	_, baseTile := b.Emit1(ir.OpSplat, ptrTile, base)
	_, ptrs := b.Emit1(ir.OpAddPtr, ptrTile, baseTile, iota)
	_, dst := b.Emit1(ir.OpAllocTensor, dstTile)
	idx := b.I32(0)

	ins, _ := b.Emit1(ir.OpInsertSliceAsync, dstTile, ptrs, dst, idx)
	fn.Op(ins).Axis = 0
	fn.Op(ins).WS = ir.WSTags{AsyncAgent: 3, HasAsyncAgent: true}

	b.Emit0(ir.OpAsyncCommitGroup)
	wait := b.Emit0(ir.OpAsyncWait)
	fn.Op(wait).IntVal = 2
	b.Emit0(ir.OpReturn)
	return mod, fn
}

func f32Elem(reg *ir.TypeRegistry) ir.TypeHandle { return reg.Scalar(ir.ScalarFloat, 32) }
func f16Elem(reg *ir.TypeRegistry) ir.TypeHandle { return reg.Scalar(ir.ScalarFloat, 16) }

func TestDecompose_NoNativePathRewritesToLoadAndInsert(t *testing.T) {
	mod, fn := buildAsyncStage(f32Elem)
	cx := newContext(mod, Options{Target: TargetROCDL})
	cx.decomposeAsyncCopies()

	if got := countKind(fn, ir.OpInsertSliceAsync); got != 0 {
		t.Fatalf("Expected async insertion decomposed, %d remain", got)
	}
	if got := countKind(fn, ir.OpLoad); got != 1 {
		t.Errorf("Expected 1 synchronous load, got %d", got)
	}
	if got := countKind(fn, ir.OpInsertSlice); got != 1 {
		t.Errorf("Expected 1 slice insertion, got %d", got)
	}
	// No group support: both markers vanish.
	if got := countKind(fn, ir.OpAsyncCommitGroup); got != 0 {
		t.Errorf("Expected commit marker erased, got %d", got)
	}
	if got := countKind(fn, ir.OpAsyncWait); got != 0 {
		t.Errorf("Expected wait marker erased, got %d", got)
	}
}

func TestDecompose_CopiesWSTags(t *testing.T) {
	mod, fn := buildAsyncStage(f32Elem)
	cx := newContext(mod, Options{Target: TargetROCDL})
	cx.decomposeAsyncCopies()

	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			op := fn.Op(id)
			if op.Kind != ir.OpLoad && op.Kind != ir.OpInsertSlice {
				continue
			}
			if !op.WS.HasAsyncAgent || op.WS.AsyncAgent != 3 {
				t.Errorf("%s: Expected async agent tag 3 preserved, got %+v", op.Kind, op.WS)
			}
		}
	}
}

func TestDecompose_EligibleWidthKeptOnNativePath(t *testing.T) {
	mod, fn := buildAsyncStage(f32Elem)
	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	cx.decomposeAsyncCopies()

	if got := countKind(fn, ir.OpInsertSliceAsync); got != 1 {
		t.Errorf("Expected eligible copy kept, got %d async insertions", got)
	}
	// Nothing decomposed anywhere: the wait keeps its narrow count.
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			if op := fn.Op(id); op.Kind == ir.OpAsyncWait && op.IntVal != 2 {
				t.Errorf("Expected wait count 2 preserved, got %d", op.IntVal)
			}
		}
	}
}

func TestDecompose_MixedModuleWidensWaits(t *testing.T) {
	// A 16-bit element with a non-contiguous pointer tile yields a
	// 2-byte copy, which even sm_80 cannot issue natively.
	mod, fn := buildAsyncStage(f16Elem)
	// Break contiguity: replace the addptr offsets with a splat.
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			op := fn.Op(id)
			if op.Kind == ir.OpAddPtr {
				op.Args[1] = op.Args[0]
			}
		}
	}
	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	cx.decomposeAsyncCopies()

	if got := countKind(fn, ir.OpInsertSliceAsync); got != 0 {
		t.Fatalf("Expected ineligible copy decomposed, %d remain", got)
	}
	// Group support exists, so the markers stay, but the wait becomes
	// wait-for-all: the decomposed copy no longer belongs to a group.
	if got := countKind(fn, ir.OpAsyncCommitGroup); got != 1 {
		t.Errorf("Expected commit marker kept, got %d", got)
	}
	found := false
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			if op := fn.Op(id); op.Kind == ir.OpAsyncWait {
				found = true
				if op.IntVal != 0 {
					t.Errorf("Expected wait-for-all, got pending count %d", op.IntVal)
				}
			}
		}
	}
	if !found {
		t.Error("Expected a wait marker to remain")
	}
}
