package lower

import (
	"github.com/gogpu/triton/analysis"
	"github.com/gogpu/triton/ir"
)

// decomposeAsyncCopies rewrites async slice insertions the selected
// backend cannot execute natively into a synchronous load followed by
// an explicit slice insertion. After decomposition the group markers
// are legalized conservatively: commit markers vanish on backends that
// never support groups, and if anything anywhere in the module was
// decomposed, every remaining wait becomes a wait-for-all — the
// decomposition does not track which group a now-synchronous copy
// belonged to, so the narrow wait would be unsound.
func (cx *context) decomposeAsyncCopies() {
	axis := analysis.RunAxisInfo(cx.mod)
	decomposed := false

	for _, fn := range cx.mod.Funcs {
		var ids []ir.OpID
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				if fn.Op(id).Kind == ir.OpInsertSliceAsync {
					ids = append(ids, id)
				}
			}
		}
		for _, id := range ids {
			if cx.decomposeOne(fn, id, axis) {
				decomposed = true
			}
		}
	}

	groups := supportsAsyncGroups(cx.target, cx.capability)
	for _, fn := range cx.mod.Funcs {
		var ids []ir.OpID
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				switch fn.Op(id).Kind {
				case ir.OpAsyncCommitGroup, ir.OpAsyncWait:
					ids = append(ids, id)
				}
			}
		}
		for _, id := range ids {
			op := fn.Op(id)
			switch op.Kind {
			case ir.OpAsyncCommitGroup:
				if !groups {
					fn.Erase(id)
				}
			case ir.OpAsyncWait:
				if !groups {
					fn.Erase(id)
				} else if decomposed && op.IntVal != 0 {
					ws := op.WS
					b := cx.builder(fn)
					b.SetInsertBefore(id)
					b.TakeCreated()
					nid := b.Emit0(ir.OpAsyncWait)
					nop := fn.Op(nid)
					nop.IntVal = 0 // wait for all outstanding async ops
					nop.WS = ws
					fn.Erase(id)
				}
			}
		}
	}
}

// decomposeOne decomposes one async insertion if its effective copy
// width is not one the backend's native path accepts. Reports whether
// it rewrote the op.
func (cx *context) decomposeOne(fn *ir.Function, id ir.OpID, axis *analysis.ModuleAxisInfo) bool {
	op := fn.Op(id)
	byteWidth := cx.copyByteWidth(fn, op, axis)
	if containsInt(eligibleCopyBytes(cx.target, cx.capability), byteWidth) {
		return false
	}

	ws := op.WS
	src, dst := op.Args[0], op.Args[1]
	index := op.Args[2]
	srcTT, _ := cx.tileOf(fn, src)
	dstTT, _ := cx.tileOf(fn, dst)

	b := cx.builder(fn)
	b.SetInsertBefore(id)
	b.TakeCreated()

	// Synchronous load of the source tile, honoring mask and fill
	// value, into registers with the source's blocked layout but the
	// destination's element type.
	tmpTy := cx.reg().GetOrCreate("", ir.TileType{
		Shape:  srcTT.Shape,
		Elem:   dstTT.Elem,
		Layout: srcTT.Layout,
	})
	loadArgs := []ir.ValueID{src}
	loadArgs = append(loadArgs, op.Args[3:]...) // mask, fill value
	lid, loaded := b.Emit1(ir.OpLoad, tmpTy, loadArgs...)
	fn.Op(lid).WS = ws

	// Explicit slice insertion at the given index along the given
	// axis; all other axes copy the full destination extent.
	iid, inserted := b.Emit1(ir.OpInsertSlice, fn.ValueType(dst), loaded, dst, index)
	iop := fn.Op(iid)
	iop.Axis = op.Axis
	iop.WS = ws

	fn.ReplaceAllUses(op.Results[0], inserted)
	fn.Erase(id)
	return true
}

// copyByteWidth computes the effective per-copy byte width of an async
// insertion: min(source contiguity, destination vector width, mask
// alignment when a tile mask is present), capped at 128 bits.
func (cx *context) copyByteWidth(fn *ir.Function, op *ir.Op, axis *analysis.ModuleAxisInfo) int64 {
	src, dst := op.Args[0], op.Args[1]
	dstTT, _ := cx.tileOf(fn, dst)

	inVec := axis.PtrContiguity(fn, src)
	if len(op.Args) >= 4 {
		mask := op.Args[3]
		if _, isTile := cx.tileOf(fn, mask); isTile {
			if a := axis.MaskAlignment(fn, mask); a < inVec {
				inVec = a
			}
		}
	}
	minVec := inVec
	if sl, ok := dstTT.Layout.(ir.SharedLayout); ok && sl.Vec > 1 && sl.Vec < minVec {
		minVec = sl.Vec
	}

	elemBits := cx.reg().ScalarBits(dstTT.Elem)
	bitWidth := elemBits * minVec
	if bitWidth > 128 {
		bitWidth = 128
	}
	return bitWidth / 8
}

func containsInt(xs []int64, x int64) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
