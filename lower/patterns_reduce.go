package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateReduceRules(rs ruleSet) {
	rs.add(ir.OpReduce, 1, lowerReduce)
}

// lowerReduce reduces a blocked tile along one axis in three phases.
// Each thread first folds its own fragments that target the same
// output element. The thread at axis coordinate zero then seeds the
// scratch slot of each output element with its partial, and after a
// barrier every other thread folds its partial in with an atomic
// read-modify-write. A final barrier publishes the scratch contents
// and each thread gathers its output fragments.
func lowerReduce(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	srcTT, ok := cx.tileOf(fn, op.Args[0])
	if !ok || srcTT.IsShared() {
		return errNoMatch
	}
	bl, ok := blockedLayoutOf(srcTT)
	if !ok {
		return errNoMatch
	}
	axis := op.Axis
	kind := op.IntVal
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

	// Intra-thread fold, grouped by the register indices that survive
	// the reduction.
	rank := len(srcTT.Shape)
	ext := regExtents(srcTT)
	groups := int64(1)
	for d, e := range ext {
		if d != axis {
			groups *= e
		}
	}
	partial := make([]ir.ValueID, groups)
	seen := make([]bool, groups)
	rep := make([]int, groups)
	idx := make([]int64, rank)
	for k := range elems {
		key := int64(0)
		for d := 0; d < rank; d++ {
			if d == axis {
				continue
			}
			key = key*ext[d] + idx[d]
		}
		if !seen[key] {
			partial[key] = elems[k]
			rep[key] = k
			seen[key] = true
		} else {
			partial[key] = emitCombine(b, kind, partial[key], elems[k])
		}
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < ext[d] {
				break
			}
			idx[d] = 0
		}
	}

	// Writer election: the thread at axis coordinate zero seeds each
	// scratch slot, everyone else combines atomically after the seed is
	// visible.
	lane, warp := cx.threadCoords(b, fn, bl)
	predTy := cx.reg().Scalar(ir.ScalarPred, 1)
	zero := b.I32(0)
	isSeed := b.Binary(ir.LLAnd, b.Cmp(ir.CmpEQ, lane[axis], zero), b.Cmp(ir.CmpEQ, warp[axis], zero))
	isRest := b.Binary(ir.LLXor, isSeed, b.ConstInt(predTy, 1))

	ptrs := make([]ir.ValueID, groups)
	for g := int64(0); g < groups; g++ {
		outIdx := reducedIndex(b, coords[rep[g]], srcTT.Shape, axis)
		ptrs[g] = b.GEP(scratch, srcTT.Elem, outIdx)
		b.Store(ptrs[g], partial[g], isSeed)
	}
	b.Emit0(ir.OpBarrier)
	for g := int64(0); g < groups; g++ {
		rmw := b.Emit0(ir.LLAtomicRMW, ptrs[g], partial[g], isRest)
		fn.Op(rmw).IntVal = atomicKind(kind)
	}
	b.Emit0(ir.OpBarrier)

	// Gather: a tile result reads its own fragments back; a scalar
	// result (full reduction of a vector) reads slot zero.
	if resTT, isTile := cx.reg().Tile(resTy); isTile {
		dstIdx := cx.fragmentIndices(b, fn, resTT)
		out := make([]ir.ValueID, len(dstIdx))
		for i, di := range dstIdx {
			out[i] = b.Load(b.GEP(scratch, resTT.Elem, di), resTT.Elem, 1)
		}
		cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
		return nil
	}
	cx.replaceOp(fn, id, b.Load(scratch, srcTT.Elem, 1))
	return nil
}

// reducedIndex linearizes per-dimension element indices over the shape
// with the reduced axis dropped.
func reducedIndex(b *ir.Builder, coords []ir.ValueID, shape []int64, axis int) ir.ValueID {
	var v ir.ValueID
	first := true
	for d := range shape {
		if d == axis {
			continue
		}
		if first {
			v = coords[d]
			first = false
			continue
		}
		v = b.Binary(ir.LLAdd, b.Binary(ir.LLMul, v, b.I32(shape[d])), coords[d])
	}
	if first {
		return b.I32(0)
	}
	return v
}

// atomicKind maps a reduction combiner to its read-modify-write kind.
func atomicKind(reduce int64) int64 {
	switch reduce {
	case ir.ReduceMax:
		return ir.AtomicMax
	case ir.ReduceMin:
		return ir.AtomicMin
	default:
		return ir.AtomicAdd
	}
}
