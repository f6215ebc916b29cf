package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateDotRules(rs ruleSet) {
	rs.add(ir.OpDot, 1, lowerDot)
}

// lowerDot emits the fused multiply-add expansion of a tile product:
// for each accumulator fragment this thread owns, an unrolled walk over
// the contraction dimension reading both operands from their shared
// buffers. Operands arrive in shared memory by construction; the
// software pipeliner stages them there before the product.
func lowerDot(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	a, bVal, acc := op.Args[0], op.Args[1], op.Args[2]
	aTT, ok := cx.tileOf(fn, a)
	if !ok || !aTT.IsShared() {
		return &LegalizeError{
			Function: fn.Name, Op: id, Kind: op.Kind,
			Reason: "dot operands must be staged in shared memory",
		}
	}
	bTT, ok := cx.tileOf(fn, bVal)
	if !ok || !bTT.IsShared() {
		return &LegalizeError{
			Function: fn.Name, Op: id, Kind: op.Kind,
			Reason: "dot operands must be staged in shared memory",
		}
	}
	resTy := fn.ValueType(op.Results[0])
	accTT, ok := cx.reg().Tile(resTy)
	if !ok {
		return errNoMatch
	}

	b := cx.builder(fn)
	aPtr, ok := cx.sharedElemPtr(b, fn, a)
	if !ok {
		return errNoMatch
	}
	bPtr, ok := cx.sharedElemPtr(b, fn, bVal)
	if !ok {
		return errNoMatch
	}
	accs, ok := cx.unpackTile(b, fn, acc)
	if !ok {
		return errNoMatch
	}

	k := aTT.Shape[len(aTT.Shape)-1]
	n := bTT.Shape[len(bTT.Shape)-1]
	coords := cx.fragmentCoords(b, fn, accTT)
	out := make([]ir.ValueID, len(accs))
	for i, c := range coords {
		m, nIdx := c[0], c[1]
		aRow := b.Binary(ir.LLMul, m, b.I32(k))
		v := accs[i]
		for kk := int64(0); kk < k; kk++ {
			av := b.Load(b.GEP(aPtr, aTT.Elem, b.Binary(ir.LLAdd, aRow, b.I32(kk))), aTT.Elem, 1)
			bOff := b.Binary(ir.LLAdd, b.I32(kk*n), nIdx)
			bv := b.Load(b.GEP(bPtr, bTT.Elem, bOff), bTT.Elem, 1)
			v = b.Binary(ir.LLAdd, v, b.Binary(ir.LLMul, av, bv))
		}
		out[i] = v
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}
