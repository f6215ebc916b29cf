package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateHistogramRules(rs ruleSet) {
	rs.add(ir.OpHistogram, 1, lowerHistogram)
}

// lowerHistogram counts integer samples into shared bins: the bin
// array is zeroed with thread-elected predicated stores, every thread
// then bumps one bin per sample atomically, and after a barrier the
// result tile gathers the counts.
func lowerHistogram(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	resTT, ok := cx.reg().Tile(resTy)
	if !ok {
		return errNoMatch
	}
	bins := ir.NumElements(resTT.Shape)
	threads := int64(cx.mod.Attrs.EffectiveWarps() * cx.mod.Attrs.ThreadsPerWarp)

	b := cx.builder(fn)
	scratch, ok := cx.smemBufferPtr(b, fn, id, resTT.Elem)
	if !ok {
		return &LegalizeError{
			Function: fn.Name, Op: id, Kind: op.Kind,
			Reason: "no scratch buffer assigned",
		}
	}
	samples, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}

	// Zeroing: bin j is cleared by the thread whose id is j modulo the
	// thread count, so no bin is written twice.
	tid := cx.identity(fn).threadID
	zero := b.ConstInt(resTT.Elem, 0)
	one := b.ConstInt(resTT.Elem, 1)
	for j := int64(0); j < bins; j++ {
		owner := b.Cmp(ir.CmpEQ, tid, b.I32(j%threads))
		b.Store(b.GEP(scratch, resTT.Elem, b.I32(j)), zero, owner)
	}
	b.Emit0(ir.OpBarrier)

	for _, s := range samples {
		rmw := b.Emit0(ir.LLAtomicRMW, b.GEP(scratch, resTT.Elem, s), one)
		fn.Op(rmw).IntVal = ir.AtomicAdd
	}
	b.Emit0(ir.OpBarrier)

	out := make([]ir.ValueID, 0, resTT.ElemsPerThread())
	for _, idx := range cx.fragmentIndices(b, fn, resTT) {
		out = append(out, b.Load(b.GEP(scratch, resTT.Elem, idx), resTT.Elem, 1))
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}
