package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateViewRules(rs ruleSet) {
	rs.add(ir.OpMakeRange, 1, lowerMakeRange)
	rs.add(ir.OpSplat, 1, lowerSplat)
	rs.add(ir.OpBroadcast, 1, lowerBroadcast)
	rs.add(ir.OpExpandDims, 1, lowerExpandDims)
	rs.add(ir.OpReshape, 1, lowerReshape)
}

// lowerMakeRange materializes each thread's slice of the iota range
// from the thread's per-dimension coordinates.
func lowerMakeRange(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	tt, ok := cx.reg().Tile(resTy)
	if !ok {
		return errNoMatch
	}
	b := cx.builder(fn)
	coords := cx.fragmentCoords(b, fn, tt)
	out := make([]ir.ValueID, len(coords))
	for i, c := range coords {
		out[i] = c[0]
		if op.IntVal != 0 {
			out[i] = b.Binary(ir.LLAdd, out[i], b.I32(op.IntVal))
		}
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

// lowerSplat replicates one scalar into every register fragment.
func lowerSplat(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	tt, ok := cx.reg().Tile(resTy)
	if !ok || tt.IsShared() {
		return errNoMatch
	}
	b := cx.builder(fn)
	out := make([]ir.ValueID, tt.ElemsPerThread())
	for i := range out {
		out[i] = op.Args[0]
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

// lowerBroadcast maps each destination register fragment back to the
// source fragment it replicates. The per-thread register extent of a
// broadcast dimension is 1 on the source side, so the mapping is a
// per-dimension modulo on the register multi-index.
func lowerBroadcast(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	dstTT, ok := cx.reg().Tile(resTy)
	if !ok {
		return errNoMatch
	}
	b := cx.builder(fn)
	src, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	srcTT, _ := cx.tileOf(fn, op.Args[0])
	srcExt := regExtents(srcTT)
	dstExt := regExtents(dstTT)
	rank := len(dstExt)

	n := dstTT.ElemsPerThread()
	out := make([]ir.ValueID, 0, n)
	idx := make([]int64, rank)
	for k := int64(0); k < n; k++ {
		lin := int64(0)
		for d := 0; d < rank; d++ {
			lin = lin*srcExt[d] + idx[d]%srcExt[d]
		}
		out = append(out, src[lin])
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < dstExt[d] {
				break
			}
			idx[d] = 0
		}
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

// lowerExpandDims repacks fragments unchanged: inserting a size-1
// dimension does not alter the per-thread fragment enumeration.
func lowerExpandDims(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	if _, ok := cx.reg().Tile(resTy); !ok {
		return errNoMatch
	}
	b := cx.builder(fn)
	elems, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, elems, resTy))
	return nil
}

// lowerReshape handles the register-preserving case, where source and
// destination distribute the same number of elements to each thread.
func lowerReshape(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	dstTT, ok := cx.reg().Tile(resTy)
	if !ok {
		return errNoMatch
	}
	srcTT, ok := cx.tileOf(fn, op.Args[0])
	if !ok || srcTT.ElemsPerThread() != dstTT.ElemsPerThread() {
		return &LegalizeError{
			Function: fn.Name, Op: id, Kind: op.Kind,
			Reason: "reshape changes the per-thread element count",
		}
	}
	b := cx.builder(fn)
	elems, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, elems, resTy))
	return nil
}
