package lower

import (
	"github.com/gogpu/triton/ir"
)

// blockedLayoutOf returns the blocked layout of a tile type, if any.
func blockedLayoutOf(tt ir.TileType) (ir.BlockedLayout, bool) {
	bl, ok := tt.Layout.(ir.BlockedLayout)
	return bl, ok
}

// threadCoords decomposes the executing thread's lane and warp ids into
// per-dimension coordinates under a blocked layout. The layout order
// lists the fastest-varying dimension first, so decomposition peels
// dimensions in that order.
func (cx *context) threadCoords(b *ir.Builder, fn *ir.Function, bl ir.BlockedLayout) (lane, warp []ir.ValueID) {
	idc := cx.identity(fn)
	rank := len(bl.ThreadsPerWarp)
	lane = make([]ir.ValueID, rank)
	warp = make([]ir.ValueID, rank)

	rem := idc.laneID
	for _, d := range bl.Order {
		n := bl.ThreadsPerWarp[d]
		q := b.Binary(ir.LLDiv, rem, b.I32(n))
		lane[d] = b.Binary(ir.LLSub, rem, b.Binary(ir.LLMul, q, b.I32(n)))
		rem = q
	}
	rem = idc.warpID
	for _, d := range bl.Order {
		n := bl.WarpsPerCTA[d]
		q := b.Binary(ir.LLDiv, rem, b.I32(n))
		warp[d] = b.Binary(ir.LLSub, rem, b.Binary(ir.LLMul, q, b.I32(n)))
		rem = q
	}
	return lane, warp
}

// fragmentCoords returns, for every register fragment of a blocked
// tile, the per-dimension element indices the executing thread holds,
// in the same fragment order convertType packs fields. The per-thread
// base offsets are materialized once and shared by all fragments.
func (cx *context) fragmentCoords(b *ir.Builder, fn *ir.Function, tt ir.TileType) [][]ir.ValueID {
	bl, ok := blockedLayoutOf(tt)
	if !ok {
		return nil
	}
	rank := len(tt.Shape)
	lane, warp := cx.threadCoords(b, fn, bl)

	span := make([]int64, rank)
	reps := make([]int64, rank)
	base := make([]ir.ValueID, rank)
	for d := 0; d < rank; d++ {
		spt := bl.SizePerThread[d]
		span[d] = spt * bl.ThreadsPerWarp[d] * bl.WarpsPerCTA[d]
		reps[d] = (tt.Shape[d] + span[d] - 1) / span[d]
		base[d] = b.Binary(ir.LLAdd,
			b.Binary(ir.LLMul, lane[d], b.I32(spt)),
			b.Binary(ir.LLMul, warp[d], b.I32(bl.ThreadsPerWarp[d]*spt)))
	}

	n := tt.ElemsPerThread()
	out := make([][]ir.ValueID, 0, n)
	idx := make([]int64, rank) // register multi-index, dim 0 slowest
	for k := int64(0); k < n; k++ {
		coords := make([]ir.ValueID, rank)
		for d := 0; d < rank; d++ {
			spt := bl.SizePerThread[d]
			rep, sub := idx[d]/spt, idx[d]%spt
			coords[d] = b.Binary(ir.LLAdd, base[d], b.I32(rep*span[d]+sub))
		}
		out = append(out, coords)
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < reps[d]*bl.SizePerThread[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

// linearIndex folds per-dimension element indices into a row-major
// linear index over shape.
func linearIndex(b *ir.Builder, coords []ir.ValueID, shape []int64) ir.ValueID {
	v := coords[0]
	for d := 1; d < len(coords); d++ {
		v = b.Binary(ir.LLAdd, b.Binary(ir.LLMul, v, b.I32(shape[d])), coords[d])
	}
	return v
}

// fragmentIndices returns the row-major linear element index of every
// register fragment of a blocked tile for the executing thread.
func (cx *context) fragmentIndices(b *ir.Builder, fn *ir.Function, tt ir.TileType) []ir.ValueID {
	coords := cx.fragmentCoords(b, fn, tt)
	out := make([]ir.ValueID, len(coords))
	for i, c := range coords {
		out[i] = linearIndex(b, c, tt.Shape)
	}
	return out
}

// regExtents returns the per-dimension register extents of a blocked
// tile: how many elements each thread holds along each dimension.
func regExtents(tt ir.TileType) []int64 {
	bl, ok := blockedLayoutOf(tt)
	if !ok {
		return nil
	}
	out := make([]int64, len(tt.Shape))
	for d, s := range tt.Shape {
		spt := bl.SizePerThread[d]
		span := spt * bl.ThreadsPerWarp[d] * bl.WarpsPerCTA[d]
		out[d] = (s + span - 1) / span * spt
	}
	return out
}

// emitCombine emits the scalar combiner of a reduction kind.
func emitCombine(b *ir.Builder, kind int64, x, y ir.ValueID) ir.ValueID {
	switch kind {
	case ir.ReduceMax:
		return b.Select(b.Cmp(ir.CmpGT, x, y), x, y)
	case ir.ReduceMin:
		return b.Select(b.Cmp(ir.CmpLT, x, y), x, y)
	default:
		return b.Binary(ir.LLAdd, x, y)
	}
}
