package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateScanRules(rs ruleSet) {
	rs.add(ir.OpScan, 1, lowerScan)
}

// lowerScan computes an inclusive prefix sum along one axis with the
// offset-doubling scheme over a scratch copy of the whole tile. Each
// round every element adds the element one power-of-two behind it on
// the scan axis; elements too close to the edge keep their value via a
// select, so the rounds stay branch-free. Rounds are unrolled at
// compile time: the axis extent is a static shape dimension.
func lowerScan(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	srcTT, ok := cx.tileOf(fn, op.Args[0])
	if !ok || srcTT.IsShared() {
		return errNoMatch
	}
	axis := op.Axis
	resTy := fn.ValueType(op.Results[0])

	b := cx.builder(fn)
	scratch, ok := cx.smemBufferPtr(b, fn, id, srcTT.Elem)
	if !ok {
		return &LegalizeError{
			Function: fn.Name, Op: id, Kind: op.Kind,
			Reason: "no scratch buffer assigned",
		}
	}
	elems, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	coords := cx.fragmentCoords(b, fn, srcTT)

	// Stage the tile into scratch at row-major element indices.
	idxs := make([]ir.ValueID, len(coords))
	ptrs := make([]ir.ValueID, len(coords))
	for i, c := range coords {
		idxs[i] = linearIndex(b, c, srcTT.Shape)
		ptrs[i] = b.GEP(scratch, srcTT.Elem, idxs[i])
		b.Store(ptrs[i], elems[i], ir.InvalidValue)
	}
	b.Emit0(ir.OpBarrier)

	// axisStride is the linear distance between neighbors on the scan
	// axis.
	axisStride := int64(1)
	for d := axis + 1; d < len(srcTT.Shape); d++ {
		axisStride *= srcTT.Shape[d]
	}

	for dist := int64(1); dist < srcTT.Shape[axis]; dist *= 2 {
		step := b.I32(dist)
		off := b.I32(dist * axisStride)
		// Read phase for every fragment, then one barrier, then the
		// write phase: a round must observe only the previous round.
		next := make([]ir.ValueID, len(coords))
		for i := range coords {
			active := b.Cmp(ir.CmpGE, coords[i][axis], step)
			// Clamp the behind-index to the element itself when the
			// round reaches past the axis edge.
			behind := b.Select(active, b.Binary(ir.LLSub, idxs[i], off), idxs[i])
			cur := b.Load(ptrs[i], srcTT.Elem, 1)
			prev := b.Load(b.GEP(scratch, srcTT.Elem, behind), srcTT.Elem, 1)
			sum := b.Binary(ir.LLAdd, cur, prev)
			next[i] = b.Select(active, sum, cur)
		}
		b.Emit0(ir.OpBarrier)
		for i := range coords {
			b.Store(ptrs[i], next[i], ir.InvalidValue)
		}
		b.Emit0(ir.OpBarrier)
	}

	out := make([]ir.ValueID, len(ptrs))
	for i, p := range ptrs {
		out[i] = b.Load(p, srcTT.Elem, 1)
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}
