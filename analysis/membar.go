package analysis

import (
	"github.com/gogpu/triton/ir"
)

// access is one shared-memory access seen since the last barrier.
type access struct {
	buf   Buffer
	write bool
}

// RunMembar inserts synchronization barriers wherever two shared-memory
// accesses may conflict without one in between: a read must not observe
// a write still in flight, and a write must not clobber a pending read.
// It runs against the module the allocation analysis was computed on
// and returns the number of barriers inserted.
func RunMembar(mod *ir.Module, alloc *ModuleAllocation) int {
	inserted := 0
	for _, fn := range mod.Funcs {
		fa := alloc.Func(fn)
		if fa == nil || fa.NumBuffers() == 0 {
			continue
		}
		inserted += membarFunc(mod, fn, fa)
	}
	return inserted
}

func membarFunc(mod *ir.Module, fn *ir.Function, fa *FuncAllocation) int {
	b := ir.NewBuilder(fn)
	inserted := 0
	for _, blk := range fn.Blocks {
		var pending []access
		// Snapshot the block: barrier insertion grows the op list.
		ids := make([]ir.OpID, len(blk.Ops))
		copy(ids, blk.Ops)
		for _, id := range ids {
			op := fn.Op(id)
			if op.Dead() {
				continue
			}
			if isBarrier(op.Kind) {
				pending = pending[:0]
				continue
			}
			accs := sharedAccesses(mod, fn, fa, id, op)
			if len(accs) == 0 {
				continue
			}
			if conflicts(pending, accs) {
				b.SetInsertBefore(id)
				b.Emit0(ir.OpBarrier)
				inserted++
				pending = pending[:0]
			}
			pending = append(pending, accs...)
		}
	}
	return inserted
}

func isBarrier(k ir.OpKind) bool {
	switch k {
	case ir.OpBarrier, ir.NVVMBarrier0, ir.GENXBarrier, ir.ROCDLBarrier:
		return true
	}
	return false
}

// conflicts reports whether any new access overlaps a pending one in a
// read-after-write, write-after-write or write-after-read hazard.
func conflicts(pending, next []access) bool {
	for _, n := range next {
		for _, p := range pending {
			if !overlap(p.buf, n.buf) {
				continue
			}
			if p.write || n.write {
				return true
			}
		}
	}
	return false
}

func overlap(a, b Buffer) bool {
	return a.Offset < b.Offset+b.Size && b.Offset < a.Offset+a.Size
}

// sharedAccesses lists the shared-memory buffers an op touches.
func sharedAccesses(mod *ir.Module, fn *ir.Function, fa *FuncAllocation, id ir.OpID, op *ir.Op) []access {
	var out []access

	// The op's own buffer: scratch is both written and read; a
	// result-backing buffer is written.
	if buf, ok := fa.Buffer(id); ok {
		out = append(out, access{buf: buf, write: true})
		if !resultBacked(mod, fn, op) {
			out = append(out, access{buf: buf, write: false})
		}
	}

	// Writes into a shared operand (slice insertion targets).
	switch op.Kind {
	case ir.OpInsertSlice, ir.OpInsertSliceAsync:
		if buf, ok := operandBuffer(fn, fa, op.Args[1]); ok {
			out = append(out, access{buf: buf, write: true})
		}
	}

	// Reads of shared operands.
	for _, a := range op.Args {
		if tt, ok := mod.Types.Tile(fn.ValueType(a)); ok && tt.IsShared() {
			if op.Kind == ir.OpInsertSlice || op.Kind == ir.OpInsertSliceAsync {
				if a == op.Args[1] {
					continue // destination, handled as a write above
				}
			}
			if buf, ok := operandBuffer(fn, fa, a); ok {
				out = append(out, access{buf: buf, write: false})
			}
		}
	}
	return out
}

// operandBuffer resolves a shared tile value to the buffer of its
// producing op.
func operandBuffer(fn *ir.Function, fa *FuncAllocation, v ir.ValueID) (Buffer, bool) {
	def, ok := fn.Def(v)
	if !ok {
		return Buffer{}, false
	}
	if buf, ok := fa.Buffer(def); ok {
		return buf, true
	}
	// Slice insertions forward their destination buffer.
	op := fn.Op(def)
	if op.Kind == ir.OpInsertSlice || op.Kind == ir.OpInsertSliceAsync {
		return operandBuffer(fn, fa, op.Args[1])
	}
	return Buffer{}, false
}
