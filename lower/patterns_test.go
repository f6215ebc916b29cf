package lower

import (
	"testing"

	"github.com/gogpu/triton/ir"
)

// buildTensorPtrCopy stages a 2D block copy through tensor-pointer
// descriptors: load a tile through the descriptor, advance it one block
// along the second dimension, store the tile back.
func buildTensorPtrCopy() (*ir.Module, *ir.Function, ir.OpID) {
	mod := newTestModule()
	reg := mod.Types
	f32 := reg.Scalar(ir.ScalarFloat, 32)
	f32p := reg.Ptr(f32, ir.SpaceGlobal)
	tile := reg.GetOrCreate("", ir.TileType{
		Shape: []int64{16, 16},
		Elem:  f32,
		Layout: ir.BlockedLayout{
			SizePerThread:  []int64{1, 1},
			ThreadsPerWarp: []int64{4, 8},
			WarpsPerCTA:    []int64{2, 2},
			Order:          []int{1, 0},
		},
	})
	desc := reg.Ptr(tile, ir.SpaceGlobal)

	fn := mod.AddFunction("block_copy", true)
	base := fn.AddParam(f32p)

	b := ir.NewBuilder(fn)
	mk, d := b.Emit1(ir.OpMakeTensorPtr, desc, base,
		b.I32(64), b.I32(64), // shape
		b.I32(64), b.I32(1), // strides
		b.I32(0), b.I32(0)) // offsets
	fn.Op(mk).IntVal = 2
	_, v := b.Emit1(ir.OpLoad, tile, d)
	_, d2 := b.Emit1(ir.OpAdvance, desc, d, b.I32(0), b.I32(16))
	b.Emit0(ir.OpStore, d2, v)
	b.Emit0(ir.OpReturn)
	return mod, fn, mk
}

func TestScanTensorPointers_MapsLoadsStoresAdvances(t *testing.T) {
	mod, fn, mk := buildTensorPtrCopy()
	cx := newContext(mod, Options{Target: TargetNVVM, Capability: 80})
	cx.scanTensorPointers()

	if got := len(cx.tensorPtr); got != 3 {
		t.Fatalf("Expected 3 descriptor consumers mapped, got %d", got)
	}
	for ref, got := range cx.tensorPtr {
		if ref.fn != fn {
			t.Error("Expected every entry to reference the kernel")
		}
		if got != mk {
			t.Errorf("op %d: Expected descriptor producer %d, got %d", ref.id, mk, got)
		}
	}
}

func TestLower_TensorPtrCopyNVVM(t *testing.T) {
	mod, fn, _ := buildTensorPtrCopy()
	table := &SharedTable{}
	err := Lower(mod, Options{Target: TargetNVVM, Capability: 80, SharedTable: table})
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	assertFullyLowered(t, mod, TargetNVVM)

	// 16x16 over 128 threads with the 8x16 span: two fragments per
	// thread, one scalar access each.
	if got := countKind(fn, ir.LLLoad); got != 2 {
		t.Errorf("Expected 2 scalar loads, got %d", got)
	}
	if got := countKind(fn, ir.LLStore); got != 2 {
		t.Errorf("Expected 2 scalar stores, got %d", got)
	}
	// The descriptor contract keeps accesses in bounds: no mask, no
	// fill-value selection.
	if got := countKind(fn, ir.LLSelect); got != 0 {
		t.Errorf("Expected no selects on the descriptor path, got %d", got)
	}
	if table.TotalSize != 0 {
		t.Errorf("Expected no shared memory used, got %d bytes", table.TotalSize)
	}
}

func TestLower_ReduceRowsNVVM(t *testing.T) {
	mod := newTestModule()
	reg := mod.Types
	i32 := reg.Scalar(ir.ScalarInt, 32)
	src := reg.GetOrCreate("", ir.TileType{
		Shape: []int64{32, 32},
		Elem:  i32,
		Layout: ir.BlockedLayout{
			SizePerThread:  []int64{1, 1},
			ThreadsPerWarp: []int64{4, 8},
			WarpsPerCTA:    []int64{2, 2},
			Order:          []int{1, 0},
		},
	})
	res := tile1D(mod, 32, i32)

	fn := mod.AddFunction("row_sum", true)
	v := fn.AddParam(i32)
	b := ir.NewBuilder(fn)
	_, tileV := b.Emit1(ir.OpSplat, src, v)
	red, _ := b.Emit1(ir.OpReduce, res, tileV)
	fn.Op(red).Axis = 1
	fn.Op(red).IntVal = ir.ReduceAdd
	b.Emit0(ir.OpReturn)

	table := &SharedTable{}
	if err := Lower(mod, Options{Target: TargetNVVM, Capability: 80, SharedTable: table}); err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	assertFullyLowered(t, mod, TargetNVVM)

	// Four surviving row groups per thread: four elected seed stores
	// and four atomic combines, fenced by the two phase barriers.
	if got := countKind(fn, ir.LLStore); got != 4 {
		t.Errorf("Expected 4 seed stores, got %d", got)
	}
	if got := countKind(fn, ir.LLAtomicRMW); got != 4 {
		t.Errorf("Expected 4 atomic combines, got %d", got)
	}
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			if op := fn.Op(id); op.Kind == ir.LLAtomicRMW && op.IntVal != ir.AtomicAdd {
				t.Errorf("Expected atomic add, got kind %d", op.IntVal)
			}
		}
	}
	if got := countKind(fn, ir.NVVMBarrier0); got != 2 {
		t.Errorf("Expected 2 barriers, got %d", got)
	}
	// Scratch holds the reduced shape: 32 x i32.
	if table.TotalSize != 128 {
		t.Errorf("Expected 128 bytes of scratch, got %d", table.TotalSize)
	}
}

func TestLower_ScanPrefixNVVM(t *testing.T) {
	mod := newTestModule()
	i32 := mod.Types.Scalar(ir.ScalarInt, 32)
	src := tile1D(mod, 128, i32)

	fn := mod.AddFunction("prefix_sum", true)
	v := fn.AddParam(i32)
	b := ir.NewBuilder(fn)
	_, tileV := b.Emit1(ir.OpSplat, src, v)
	sc, _ := b.Emit1(ir.OpScan, src, tileV)
	fn.Op(sc).Axis = 0
	b.Emit0(ir.OpReturn)

	table := &SharedTable{}
	if err := Lower(mod, Options{Target: TargetNVVM, Capability: 80, SharedTable: table}); err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	assertFullyLowered(t, mod, TargetNVVM)

	// Seven offset-doubling rounds over a 128-element axis: the staging
	// store plus one store per round, two loads per round, and a
	// barrier after staging plus two per round.
	if got := countKind(fn, ir.LLStore); got != 8 {
		t.Errorf("Expected 8 stores, got %d", got)
	}
	if got := countKind(fn, ir.LLLoad); got != 14 {
		t.Errorf("Expected 14 loads, got %d", got)
	}
	if got := countKind(fn, ir.NVVMBarrier0); got != 15 {
		t.Errorf("Expected 15 barriers, got %d", got)
	}
	// Scratch holds the whole tile: 128 x i32.
	if table.TotalSize != 512 {
		t.Errorf("Expected 512 bytes of scratch, got %d", table.TotalSize)
	}
}

func TestLower_HistogramNVVM(t *testing.T) {
	mod := newTestModule()
	i32 := mod.Types.Scalar(ir.ScalarInt, 32)
	samples := tile1D(mod, 128, i32)
	bins := tile1D(mod, 8, i32)

	fn := mod.AddFunction("hist", true)
	v := fn.AddParam(i32)
	b := ir.NewBuilder(fn)
	_, sv := b.Emit1(ir.OpSplat, samples, v)
	b.Emit1(ir.OpHistogram, bins, sv)
	b.Emit0(ir.OpReturn)

	table := &SharedTable{}
	if err := Lower(mod, Options{Target: TargetNVVM, Capability: 80, SharedTable: table}); err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	assertFullyLowered(t, mod, TargetNVVM)

	// One elected zeroing store per bin, one atomic bump per sample
	// fragment, barriers around the counting phase.
	if got := countKind(fn, ir.LLStore); got != 8 {
		t.Errorf("Expected 8 zeroing stores, got %d", got)
	}
	if got := countKind(fn, ir.LLAtomicRMW); got != 1 {
		t.Errorf("Expected 1 atomic bump, got %d", got)
	}
	if got := countKind(fn, ir.NVVMBarrier0); got != 2 {
		t.Errorf("Expected 2 barriers, got %d", got)
	}
	if table.TotalSize != 32 {
		t.Errorf("Expected 32 bytes of scratch, got %d", table.TotalSize)
	}
}

func TestLower_DotStagedOperandsNVVM(t *testing.T) {
	mod := newTestModule()
	reg := mod.Types
	f32 := reg.Scalar(ir.ScalarFloat, 32)
	f32p := reg.Ptr(f32, ir.SpaceGlobal)
	blkLayout := ir.BlockedLayout{
		SizePerThread:  []int64{1, 1},
		ThreadsPerWarp: []int64{4, 8},
		WarpsPerCTA:    []int64{2, 2},
		Order:          []int{1, 0},
	}
	blk := reg.GetOrCreate("", ir.TileType{Shape: []int64{4, 4}, Elem: f32, Layout: blkLayout})
	ptrTile := reg.GetOrCreate("", ir.TileType{Shape: []int64{4, 4}, Elem: f32p, Layout: blkLayout})
	sh := sharedTile2D(mod, []int64{4, 4}, f32)

	fn := mod.AddFunction("matmul", true)
	x := fn.AddParam(f32)
	out := fn.AddParam(f32p)

	b := ir.NewBuilder(fn)
	_, aBlk := b.Emit1(ir.OpSplat, blk, x)
	_, bBlk := b.Emit1(ir.OpSplat, blk, x)
	_, aSh := b.Emit1(ir.OpConvertLayout, sh, aBlk)
	_, bSh := b.Emit1(ir.OpConvertLayout, sh, bBlk)
	_, acc := b.Emit1(ir.OpSplat, blk, b.ConstFloat(f32, 0))
	_, prod := b.Emit1(ir.OpDot, blk, aSh, bSh, acc)
	_, outPtrs := b.Emit1(ir.OpSplat, ptrTile, out)
	b.Emit0(ir.OpStore, outPtrs, prod)
	b.Emit0(ir.OpReturn)

	table := &SharedTable{}
	if err := Lower(mod, Options{Target: TargetNVVM, Capability: 80, SharedTable: table}); err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	assertFullyLowered(t, mod, TargetNVVM)

	// One accumulator fragment per thread, K = 4: two operand loads per
	// contraction step.
	if got := countKind(fn, ir.LLLoad); got != 8 {
		t.Errorf("Expected 8 operand loads, got %d", got)
	}
	// One staging store per conversion plus the result store.
	if got := countKind(fn, ir.LLStore); got != 3 {
		t.Errorf("Expected 3 stores, got %d", got)
	}
	// Two staging barriers plus the hazard barrier before the product.
	if got := countKind(fn, ir.NVVMBarrier0); got != 3 {
		t.Errorf("Expected 3 barriers, got %d", got)
	}
	// Both operand buffers live across the product.
	if table.TotalSize != 128 {
		t.Errorf("Expected 128 bytes of shared memory, got %d", table.TotalSize)
	}
}
