package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateConvertLayoutRules(rs ruleSet) {
	rs.add(ir.OpConvertLayout, 2, lowerBlockedToShared)
	rs.add(ir.OpConvertLayout, 2, lowerSharedToBlocked)
	rs.add(ir.OpConvertLayout, 1, lowerBlockedToBlocked)
	rs.add(ir.OpAllocTensor, 1, lowerAllocTensor)
	rs.add(ir.OpInsertSlice, 1, lowerInsertSlice)
	rs.add(ir.OpInsertSliceAsync, 1, lowerInsertSliceAsync)
	rs.add(ir.OpAsyncCommitGroup, 1, lowerAsyncCommit)
	rs.add(ir.OpAsyncWait, 1, lowerAsyncWait)
}

// lowerBlockedToBlocked redistributes a tile between two register
// layouts through a scratch buffer: every thread stores its fragments
// at their element indices, all threads synchronize, then every thread
// gathers the fragments the new layout assigns to it. The barrier is
// emitted in the mid-level dialect and legalized like any other op.
func lowerBlockedToBlocked(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	dstTT, ok := cx.reg().Tile(resTy)
	if !ok || dstTT.IsShared() {
		return errNoMatch
	}
	srcTT, ok := cx.tileOf(fn, op.Args[0])
	if !ok || srcTT.IsShared() {
		return errNoMatch
	}
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
	for i, idx := range cx.fragmentIndices(b, fn, srcTT) {
		b.Store(b.GEP(scratch, srcTT.Elem, idx), elems[i], ir.InvalidValue)
	}
	b.Emit0(ir.OpBarrier)

	dstIdx := cx.fragmentIndices(b, fn, dstTT)
	out := make([]ir.ValueID, len(dstIdx))
	for i, idx := range dstIdx {
		out[i] = b.Load(b.GEP(scratch, dstTT.Elem, idx), dstTT.Elem, 1)
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

// lowerBlockedToShared writes the register fragments into the result's
// own shared buffer at their row-major element indices, then yields the
// buffer pointer as the shared tile's lowered value.
func lowerBlockedToShared(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	dstTT, ok := cx.reg().Tile(resTy)
	if !ok || !dstTT.IsShared() {
		return errNoMatch
	}
	srcTT, ok := cx.tileOf(fn, op.Args[0])
	if !ok || srcTT.IsShared() {
		return errNoMatch
	}
	b := cx.builder(fn)
	buf, ok := cx.smemBufferPtr(b, fn, id, dstTT.Elem)
	if !ok {
		return &LegalizeError{
			Function: fn.Name, Op: id, Kind: op.Kind,
			Reason: "no shared buffer assigned",
		}
	}
	elems, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	for i, idx := range cx.fragmentIndices(b, fn, srcTT) {
		b.Store(b.GEP(buf, dstTT.Elem, idx), elems[i], ir.InvalidValue)
	}
	b.Emit0(ir.OpBarrier)
	cx.replaceOp(fn, id, b.Bridge(buf, resTy))
	return nil
}

// lowerSharedToBlocked gathers each thread's fragments straight from
// the source buffer; the preceding barrier, when one is needed, was
// already placed by the memory-barrier analysis.
func lowerSharedToBlocked(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	dstTT, ok := cx.reg().Tile(resTy)
	if !ok || dstTT.IsShared() {
		return errNoMatch
	}
	srcTT, ok := cx.tileOf(fn, op.Args[0])
	if !ok || !srcTT.IsShared() {
		return errNoMatch
	}
	b := cx.builder(fn)
	src, ok := cx.sharedElemPtr(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	dstIdx := cx.fragmentIndices(b, fn, dstTT)
	out := make([]ir.ValueID, len(dstIdx))
	for i, idx := range dstIdx {
		out[i] = b.Load(b.GEP(src, dstTT.Elem, idx), dstTT.Elem, 1)
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

// lowerAllocTensor binds the shared tile to the buffer the allocation
// analysis assigned to it; no data movement happens here.
func lowerAllocTensor(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	resTy := fn.ValueType(op.Results[0])
	tt, ok := cx.reg().Tile(resTy)
	if !ok || !tt.IsShared() {
		return errNoMatch
	}
	b := cx.builder(fn)
	buf, ok := cx.smemBufferPtr(b, fn, id, tt.Elem)
	if !ok {
		return &LegalizeError{
			Function: fn.Name, Op: id, Kind: op.Kind,
			Reason: "no shared buffer assigned",
		}
	}
	cx.replaceOp(fn, id, b.Bridge(buf, resTy))
	return nil
}

// sliceStride returns the element count of one slice of a shared tile
// along the insertion axis.
func sliceStride(tt ir.TileType, axis int) int64 {
	n := ir.NumElements(tt.Shape)
	if tt.Shape[axis] != 0 {
		n /= tt.Shape[axis]
	}
	return n
}

// lowerInsertSlice copies a register tile into one slice of a shared
// destination. The destination value flows through unchanged: the
// insertion mutates the buffer in place.
func lowerInsertSlice(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	src, dst, index := op.Args[0], op.Args[1], op.Args[2]
	srcTT, ok := cx.tileOf(fn, src)
	if !ok || srcTT.IsShared() {
		return errNoMatch
	}
	dstTT, ok := cx.tileOf(fn, dst)
	if !ok || !dstTT.IsShared() {
		return errNoMatch
	}
	b := cx.builder(fn)
	base, ok := cx.sharedElemPtr(b, fn, dst)
	if !ok {
		return errNoMatch
	}
	sliceOff := b.Binary(ir.LLMul, index, b.I32(sliceStride(dstTT, op.Axis)))
	elems, ok := cx.unpackTile(b, fn, src)
	if !ok {
		return errNoMatch
	}
	for i, idx := range cx.fragmentIndices(b, fn, srcTT) {
		addr := b.GEP(base, dstTT.Elem, b.Binary(ir.LLAdd, sliceOff, idx))
		b.Store(addr, elems[i], ir.InvalidValue)
	}
	cx.replaceOp(fn, id, dst)
	return nil
}

// lowerInsertSliceAsync lowers the copies the decomposition pass kept:
// on this configuration the per-copy byte width is one the native
// bulk-copy path accepts, so each group of fragments becomes one
// hardware copy from its global source pointer into the slice.
func lowerInsertSliceAsync(cx *context, fn *ir.Function, id ir.OpID) error {
	if cx.target != TargetNVVM {
		return errNoMatch
	}
	op := fn.Op(id)
	src, dst, index := op.Args[0], op.Args[1], op.Args[2]
	srcTT, ok := cx.tileOf(fn, src)
	if !ok {
		return errNoMatch
	}
	dstTT, ok := cx.tileOf(fn, dst)
	if !ok || !dstTT.IsShared() {
		return errNoMatch
	}
	bytes := cx.copyByteWidth(fn, op, cx.axis)
	elemBytes := cx.reg().ScalarBits(dstTT.Elem) / 8
	if elemBytes == 0 {
		return errNoMatch
	}
	vec := bytes / elemBytes
	if vec < 1 {
		vec = 1
	}

	b := cx.builder(fn)
	base, ok := cx.sharedElemPtr(b, fn, dst)
	if !ok {
		return errNoMatch
	}
	sliceOff := b.Binary(ir.LLMul, index, b.I32(sliceStride(dstTT, op.Axis)))
	ptrs, ok := cx.unpackTile(b, fn, src)
	if !ok {
		return errNoMatch
	}
	var masks []ir.ValueID
	mask := ir.InvalidValue
	if len(op.Args) >= 4 {
		mask = op.Args[3]
		masks, _ = cx.unpackTile(b, fn, mask)
	}
	idxs := cx.fragmentIndices(b, fn, srcTT)
	for i := 0; i < len(ptrs); i += int(vec) {
		dstPtr := b.GEP(base, dstTT.Elem, b.Binary(ir.LLAdd, sliceOff, idxs[i]))
		args := []ir.ValueID{dstPtr, ptrs[i]}
		if mask != ir.InvalidValue {
			m := mask
			if masks != nil {
				m = masks[i]
			}
			args = append(args, m)
		}
		cp := b.Emit0(ir.NVVMCpAsync, args...)
		fn.Op(cp).IntVal = bytes
	}
	cx.replaceOp(fn, id, dst)
	return nil
}

func lowerAsyncCommit(cx *context, fn *ir.Function, id ir.OpID) error {
	if cx.target != TargetNVVM {
		return errNoMatch
	}
	b := cx.builder(fn)
	b.Emit0(ir.NVVMCpAsyncCommit)
	fn.Erase(id)
	return nil
}

func lowerAsyncWait(cx *context, fn *ir.Function, id ir.OpID) error {
	if cx.target != TargetNVVM {
		return errNoMatch
	}
	op := fn.Op(id)
	b := cx.builder(fn)
	w := b.Emit0(ir.NVVMCpAsyncWait)
	fn.Op(w).IntVal = op.IntVal
	fn.Erase(id)
	return nil
}
