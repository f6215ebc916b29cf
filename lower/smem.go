package lower

import (
	"github.com/gogpu/triton/ir"
)

// globalSmemName is the module-level shared-memory arena symbol.
const globalSmemName = "global_smem"

// SharedTable records the final offset and size of every shared-memory
// allocation, for a downstream code-emission or debugging stage.
type SharedTable struct {
	TotalSize int64
	Entries   []SharedEntry
}

// SharedEntry is one allocation in the arena.
type SharedEntry struct {
	Function string
	Op       ir.OpID
	Offset   int64
	Size     int64
}

// initSharedMemory declares the dynamic shared-memory arena: an
// external array of length 0 so each kernel launch can size it, with
// 16-byte alignment, the largest the lowered code ever asks for. The
// Intel backend addresses its SLM through a native op instead and
// declares nothing.
func (cx *context) initSharedMemory() {
	switch cx.target {
	case TargetNVVM, TargetROCDL:
		cx.mod.AddGlobal(ir.Global{
			Name:  globalSmemName,
			Elem:  cx.reg().Scalar(ir.ScalarInt, 8),
			Count: 0,
			Align: 16,
			Space: ir.SpaceShared,
		})
	case TargetGENX:
	}
}

// fillSharedTable publishes the allocation results to the optional
// output table; an internally scoped instance is used when the caller
// passed none.
func (cx *context) fillSharedTable() {
	if cx.table == nil {
		cx.table = &SharedTable{}
	}
	cx.table.TotalSize = cx.alloc.SharedSize
	for _, fn := range cx.mod.Funcs {
		fa := cx.alloc.Func(fn)
		if fa == nil {
			continue
		}
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				if buf, ok := fa.Buffer(id); ok {
					cx.table.Entries = append(cx.table.Entries, SharedEntry{
						Function: fn.Name,
						Op:       id,
						Offset:   buf.Offset,
						Size:     buf.Size,
					})
				}
			}
		}
	}
}

// smemBase materializes the function's shared-memory base pointer: the
// arena global for kernels, the promoted trailing parameter for device
// functions.
func (cx *context) smemBase(b *ir.Builder, fn *ir.Function) ir.ValueID {
	if !fn.Kernel {
		return fn.Params[len(fn.Params)-1]
	}
	ptrTy := cx.i8Ptr(ir.SpaceShared)
	if cx.target == TargetGENX {
		_, base := b.Emit1(ir.GENXSlmBase, ptrTy)
		return base
	}
	return b.AddrOf(globalSmemName, ptrTy)
}

// smemBufferPtr returns a pointer of element type elem to the buffer
// the allocation analysis assigned to op id.
func (cx *context) smemBufferPtr(b *ir.Builder, fn *ir.Function, id ir.OpID, elem ir.TypeHandle) (ir.ValueID, bool) {
	fa := cx.alloc.Func(fn)
	if fa == nil {
		return ir.InvalidValue, false
	}
	buf, ok := fa.Buffer(id)
	if !ok {
		return ir.InvalidValue, false
	}
	base := cx.smemBase(b, fn)
	if buf.Offset > 0 {
		i8 := cx.reg().Scalar(ir.ScalarInt, 8)
		base = b.GEP(base, i8, b.I32(buf.Offset))
	}
	elemPtr := cx.reg().Ptr(elem, ir.SpaceShared)
	_, cast := b.Emit1(ir.LLBitcast, elemPtr, base)
	return cast, true
}
