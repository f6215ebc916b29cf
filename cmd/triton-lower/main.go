package main

import (
	"fmt"
	"os"

	"github.com/gogpu/triton/ir"
	"github.com/gogpu/triton/lower"
)

// buildVectorAdd constructs the classic elementwise-add kernel: each
// program instance loads one 128-element tile from two input vectors,
// adds them and stores the result, with a mask guarding the tail.
func buildVectorAdd() *ir.Module {
	mod := ir.NewModule(ir.ModuleAttrs{
		NumWarps:       4,
		ThreadsPerWarp: 32,
		NumCTAs:        1,
	})
	reg := mod.Types

	f32 := reg.Scalar(ir.ScalarFloat, 32)
	i32 := reg.Scalar(ir.ScalarInt, 32)
	pred := reg.Scalar(ir.ScalarPred, 1)
	f32p := reg.Ptr(f32, ir.SpaceGlobal)

	layout := ir.BlockedLayout{
		SizePerThread:  []int64{1},
		ThreadsPerWarp: []int64{32},
		WarpsPerCTA:    []int64{4},
		Order:          []int{0},
	}
	i32Tile := reg.GetOrCreate("", ir.TileType{Shape: []int64{128}, Elem: i32, Layout: layout})
	f32Tile := reg.GetOrCreate("", ir.TileType{Shape: []int64{128}, Elem: f32, Layout: layout})
	ptrTile := reg.GetOrCreate("", ir.TileType{Shape: []int64{128}, Elem: f32p, Layout: layout})
	predTile := reg.GetOrCreate("", ir.TileType{Shape: []int64{128}, Elem: pred, Layout: layout})

	fn := mod.AddFunction("vector_add", true)
	a := fn.AddParam(f32p)
	bArg := fn.AddParam(f32p)
	out := fn.AddParam(f32p)
	n := fn.AddParam(i32)

	b := ir.NewBuilder(fn)
	pidOp, pid := b.Emit1(ir.OpGetProgramID, i32)
	fn.Op(pidOp).Axis = 0
	start := b.Binary(ir.OpMul, pid, b.ConstInt(i32, 128))

	_, iota := b.Emit1(ir.OpMakeRange, i32Tile)
	_, startTile := b.Emit1(ir.OpSplat, i32Tile, start)
	_, offs := b.Emit1(ir.OpAdd, i32Tile, iota, startTile)

	_, nTile := b.Emit1(ir.OpSplat, i32Tile, n)
	maskOp, mask := b.Emit1(ir.OpCmp, predTile, offs, nTile)
	fn.Op(maskOp).IntVal = ir.CmpLT

	loadVec := func(base ir.ValueID) ir.ValueID {
		_, baseTile := b.Emit1(ir.OpSplat, ptrTile, base)
		_, ptrs := b.Emit1(ir.OpAddPtr, ptrTile, baseTile, offs)
		_, v := b.Emit1(ir.OpLoad, f32Tile, ptrs, mask)
		return v
	}
	x := loadVec(a)
	y := loadVec(bArg)
	_, sum := b.Emit1(ir.OpAdd, f32Tile, x, y)

	_, outBase := b.Emit1(ir.OpSplat, ptrTile, out)
	_, outPtrs := b.Emit1(ir.OpAddPtr, ptrTile, outBase, offs)
	b.Emit0(ir.OpStore, outPtrs, sum, mask)
	b.Emit0(ir.OpReturn)
	return mod
}

func main() {
	mod := buildVectorAdd()

	fmt.Println("=== tile dialect ===")
	fmt.Print(ir.String(mod))

	table := &lower.SharedTable{}
	err := lower.Lower(mod, lower.Options{
		Target:      lower.TargetNVVM,
		Capability:  80,
		SharedTable: table,
	})
	if err != nil {
		fmt.Println("Lowering error:", err)
		os.Exit(1)
	}

	fmt.Println("=== lowered ===")
	fmt.Print(ir.String(mod))
	fmt.Printf("shared memory: %d bytes in %d buffers\n", table.TotalSize, len(table.Entries))
}
