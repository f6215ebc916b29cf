package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateMemoryRules(rs ruleSet) {
	rs.add(ir.OpAddPtr, 1, lowerAddPtr)
	rs.add(ir.OpMakeTensorPtr, 1, lowerMakeTensorPtr)
	rs.add(ir.OpAdvance, 1, lowerAdvance)
	rs.add(ir.OpLoad, 2, lowerTensorPtrLoad)
	rs.add(ir.OpLoad, 1, lowerTileLoad)
	rs.add(ir.OpLoad, 0, lowerScalarLoad)
	rs.add(ir.OpStore, 2, lowerTensorPtrStore)
	rs.add(ir.OpStore, 1, lowerTileStore)
	rs.add(ir.OpStore, 0, lowerScalarStore)
}

// lowerAddPtr applies per-fragment pointer arithmetic in units of the
// pointee element.
func lowerAddPtr(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	tt, ok := cx.reg().Tile(resTy)
	if !ok {
		return errNoMatch
	}
	pt, ok := cx.reg().Pointer(tt.Elem)
	if !ok {
		return errNoMatch
	}
	b := cx.builder(fn)
	ptrs, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	offs, _ := cx.unpackTile(b, fn, op.Args[1])
	out := make([]ir.ValueID, len(ptrs))
	for i := range ptrs {
		out[i] = b.GEP(ptrs[i], pt.Pointee, offs[i])
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

// descriptorElem returns the element type behind a tensor-pointer
// descriptor type.
func (cx *context) descriptorElem(t ir.TypeHandle) (ir.TypeHandle, bool) {
	pt, ok := cx.reg().Pointer(t)
	if !ok || pt.Pointee == ir.InvalidType {
		return ir.InvalidType, false
	}
	tt, ok := cx.reg().Tile(pt.Pointee)
	if !ok {
		return ir.InvalidType, false
	}
	return tt.Elem, true
}

// lowerMakeTensorPtr collapses the descriptor to its base pointer
// advanced by the initial offsets; the shape and stride operands stay
// reachable through the descriptor scan for the loads and stores that
// consume it.
func lowerMakeTensorPtr(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	elem, ok := cx.descriptorElem(resTy)
	if !ok {
		return errNoMatch
	}
	rank := int(op.IntVal)
	strides := op.Args[1+rank : 1+2*rank]
	offsets := op.Args[1+2*rank : 1+3*rank]

	b := cx.builder(fn)
	off := b.Binary(ir.LLMul, offsets[0], strides[0])
	for d := 1; d < rank; d++ {
		off = b.Binary(ir.LLAdd, off, b.Binary(ir.LLMul, offsets[d], strides[d]))
	}
	ptr := b.GEP(b.Bridge(op.Args[0], cx.reg().Ptr(elem, ir.SpaceGlobal)), elem, off)
	cx.replaceOp(fn, id, b.Bridge(ptr, resTy))
	return nil
}

// lowerAdvance adds the per-dimension deltas, scaled by the strides of
// the originating descriptor, to the collapsed base pointer.
func lowerAdvance(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	elem, ok := cx.descriptorElem(resTy)
	if !ok {
		return errNoMatch
	}
	mk, ok := cx.tensorPtr[opRef{fn, id}]
	if !ok {
		return errNoMatch
	}
	mkOp := fn.Op(mk)
	rank := int(mkOp.IntVal)
	strides := mkOp.Args[1+rank : 1+2*rank]
	deltas := op.Args[1:]

	b := cx.builder(fn)
	off := b.Binary(ir.LLMul, deltas[0], strides[0])
	for d := 1; d < rank; d++ {
		off = b.Binary(ir.LLAdd, off, b.Binary(ir.LLMul, deltas[d], strides[d]))
	}
	ptr := b.GEP(b.Bridge(op.Args[0], cx.reg().Ptr(elem, ir.SpaceGlobal)), elem, off)
	cx.replaceOp(fn, id, b.Bridge(ptr, resTy))
	return nil
}

// strideOffsets emits, for every register fragment of tt, the memory
// offset in elements computed from the descriptor's runtime strides.
func (cx *context) strideOffsets(b *ir.Builder, fn *ir.Function, tt ir.TileType, strides []ir.ValueID) []ir.ValueID {
	coords := cx.fragmentCoords(b, fn, tt)
	out := make([]ir.ValueID, len(coords))
	for i, c := range coords {
		off := b.Binary(ir.LLMul, c[0], strides[0])
		for d := 1; d < len(c); d++ {
			off = b.Binary(ir.LLAdd, off, b.Binary(ir.LLMul, c[d], strides[d]))
		}
		out[i] = off
	}
	return out
}

// lowerTensorPtrLoad loads a blocked tile through a collapsed
// descriptor. The descriptor contract keeps every advanced offset in
// bounds, so the loads carry no predicate.
func lowerTensorPtrLoad(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	mk, ok := cx.tensorPtr[opRef{fn, id}]
	if !ok {
		return errNoMatch
	}
	resTy := fn.ValueType(op.Results[0])
	tt, ok := cx.reg().Tile(resTy)
	if !ok {
		return errNoMatch
	}
	mkOp := fn.Op(mk)
	rank := int(mkOp.IntVal)
	strides := mkOp.Args[1+rank : 1+2*rank]

	b := cx.builder(fn)
	base := b.Bridge(op.Args[0], cx.reg().Ptr(tt.Elem, ir.SpaceGlobal))
	offs := cx.strideOffsets(b, fn, tt, strides)
	out := make([]ir.ValueID, len(offs))
	for i, off := range offs {
		out[i] = b.Load(b.GEP(base, tt.Elem, off), tt.Elem, 1)
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

func lowerTensorPtrStore(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	mk, ok := cx.tensorPtr[opRef{fn, id}]
	if !ok {
		return errNoMatch
	}
	tt, ok := cx.tileOf(fn, op.Args[1])
	if !ok {
		return errNoMatch
	}
	mkOp := fn.Op(mk)
	rank := int(mkOp.IntVal)
	strides := mkOp.Args[1+rank : 1+2*rank]

	b := cx.builder(fn)
	vals, ok := cx.unpackTile(b, fn, op.Args[1])
	if !ok {
		return errNoMatch
	}
	base := b.Bridge(op.Args[0], cx.reg().Ptr(tt.Elem, ir.SpaceGlobal))
	offs := cx.strideOffsets(b, fn, tt, strides)
	for i, off := range offs {
		b.Store(b.GEP(base, tt.Elem, off), vals[i], ir.InvalidValue)
	}
	fn.Erase(id)
	return nil
}

// loadVec computes the access-width hint stamped on the scalar loads a
// tile load lowers to: the pointer contiguity, capped by the mask
// alignment when a tile mask constrains it.
func (cx *context) loadVec(fn *ir.Function, ptr, mask ir.ValueID) int64 {
	if cx.axis == nil {
		return 1
	}
	vec := cx.axis.PtrContiguity(fn, ptr)
	if mask != ir.InvalidValue {
		if _, isTile := cx.tileOf(fn, mask); isTile {
			if a := cx.axis.MaskAlignment(fn, mask); a < vec {
				vec = a
			}
		}
	}
	if vec < 1 {
		vec = 1
	}
	return vec
}

// lowerTileLoad lowers a load through a blocked pointer tile to one
// scalar load per fragment. A masked-off fragment still issues its
// load and selects the fill value afterwards; predication of the
// access itself is the code emitter's concern.
func lowerTileLoad(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	tt, ok := cx.reg().Tile(resTy)
	if !ok || !cx.reg().IsPointerTile(fn.ValueType(op.Args[0])) {
		return errNoMatch
	}
	mask := ir.InvalidValue
	if len(op.Args) >= 2 {
		mask = op.Args[1]
	}
	other := ir.InvalidValue
	if len(op.Args) >= 3 {
		other = op.Args[2]
	}
	vec := cx.loadVec(fn, op.Args[0], mask)

	b := cx.builder(fn)
	ptrs, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	var masks, others []ir.ValueID
	if mask != ir.InvalidValue {
		masks, _ = cx.unpackTile(b, fn, mask)
	}
	if other != ir.InvalidValue {
		others, _ = cx.unpackTile(b, fn, other)
	}

	out := make([]ir.ValueID, len(ptrs))
	for i := range ptrs {
		out[i] = b.Load(ptrs[i], tt.Elem, vec)
		if mask != ir.InvalidValue {
			m := mask
			if masks != nil {
				m = masks[i]
			}
			fill := b.Undef(tt.Elem)
			if other != ir.InvalidValue {
				fill = other
				if others != nil {
					fill = others[i]
				}
			}
			out[i] = b.Select(m, out[i], fill)
		}
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

func lowerTileStore(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	if !cx.reg().IsPointerTile(fn.ValueType(op.Args[0])) {
		return errNoMatch
	}
	mask := ir.InvalidValue
	if len(op.Args) >= 3 {
		mask = op.Args[2]
	}
	vec := cx.loadVec(fn, op.Args[0], mask)

	b := cx.builder(fn)
	ptrs, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	vals, _ := cx.unpackTile(b, fn, op.Args[1])
	var masks []ir.ValueID
	if mask != ir.InvalidValue {
		masks, _ = cx.unpackTile(b, fn, mask)
	}
	for i := range ptrs {
		m := mask
		if masks != nil {
			m = masks[i]
		}
		sid := b.Store(ptrs[i], vals[i], m)
		fn.Op(sid).IntVal = vec
	}
	fn.Erase(id)
	return nil
}

func lowerScalarLoad(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	if _, isTile := cx.reg().Tile(resTy); isTile {
		return errNoMatch
	}
	b := cx.builder(fn)
	out := b.Load(op.Args[0], resTy, 1)
	if len(op.Args) >= 2 {
		fill := b.Undef(resTy)
		if len(op.Args) >= 3 {
			fill = op.Args[2]
		}
		out = b.Select(op.Args[1], out, fill)
	}
	cx.replaceOp(fn, id, out)
	return nil
}

func lowerScalarStore(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	if _, isTile := cx.tileOf(fn, op.Args[1]); isTile {
		return errNoMatch
	}
	b := cx.builder(fn)
	mask := ir.InvalidValue
	if len(op.Args) >= 3 {
		mask = op.Args[2]
	}
	b.Store(op.Args[0], op.Args[1], mask)
	fn.Erase(id)
	return nil
}
