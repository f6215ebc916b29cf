package analysis

import (
	"sort"

	"github.com/gogpu/triton/ir"
)

// bufferAlign is the alignment of every shared-memory buffer.
const bufferAlign = 128

// Buffer is one allocated slot in the flat shared-memory arena.
type Buffer struct {
	Offset int64
	Size   int64
}

// FuncAllocation holds the static shared-memory layout of one
// function. Offsets are relative to the function's shared-memory base.
type FuncAllocation struct {
	buffers map[ir.OpID]Buffer
	Size    int64
}

// Buffer returns the buffer allocated for an operation, if any.
func (fa *FuncAllocation) Buffer(id ir.OpID) (Buffer, bool) {
	b, ok := fa.buffers[id]
	return b, ok
}

// NumBuffers returns how many operations received a buffer.
func (fa *FuncAllocation) NumBuffers() int { return len(fa.buffers) }

// ModuleAllocation holds the shared-memory layout of a whole module.
type ModuleAllocation struct {
	funcs map[*ir.Function]*FuncAllocation

	// SharedSize is the arena size a kernel launch must reserve,
	// including scratch passed down through calls.
	SharedSize int64
}

// Func returns the layout of fn.
func (ma *ModuleAllocation) Func(fn *ir.Function) *FuncAllocation {
	return ma.funcs[fn]
}

// interval is a buffer request live over [start, end] in linearized op
// order.
type interval struct {
	id    ir.OpID
	size  int64
	start int
	end   int
}

// RunAllocation computes a static layout for every shared-memory
// buffer in the module. Kernels receive allocation offset 0; non-entry
// functions keep offset -1 and address their buffers relative to the
// base pointer their callers pass in.
func RunAllocation(mod *ir.Module) *ModuleAllocation {
	ma := &ModuleAllocation{funcs: make(map[*ir.Function]*FuncAllocation)}
	for _, fn := range mod.Funcs {
		ma.funcs[fn] = allocateFunc(mod, fn)
		if fn.Kernel {
			fn.Attrs.AllocOffset = 0
		}
	}
	ma.SharedSize = 0
	for _, fn := range mod.Funcs {
		if !fn.Kernel {
			continue
		}
		if s := ma.closureSize(mod, fn, make(map[*ir.Function]bool)); s > ma.SharedSize {
			ma.SharedSize = s
		}
	}
	return ma
}

// closureSize is a function's own arena size plus the largest demand
// of any function it calls; callee scratch lives above the caller's
// high-water mark.
func (ma *ModuleAllocation) closureSize(mod *ir.Module, fn *ir.Function, visiting map[*ir.Function]bool) int64 {
	if visiting[fn] {
		return 0
	}
	visiting[fn] = true
	defer delete(visiting, fn)

	own := ma.funcs[fn].Size
	var calleeMax int64
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			op := fn.Op(id)
			if op.Dead() || op.Kind != ir.OpCall {
				continue
			}
			callee := mod.Function(op.Sym)
			if callee == nil {
				continue
			}
			if s := ma.closureSize(mod, callee, visiting); s > calleeMax {
				calleeMax = s
			}
		}
	}
	return own + calleeMax
}

func allocateFunc(mod *ir.Module, fn *ir.Function) *FuncAllocation {
	fa := &FuncAllocation{buffers: make(map[ir.OpID]Buffer)}

	// Linearize ops and collect buffer requests with live intervals.
	pos := make(map[ir.OpID]int)
	var order []ir.OpID
	for _, blk := range fn.Blocks {
		for _, id := range blk.Ops {
			if fn.Op(id).Dead() {
				continue
			}
			pos[id] = len(order)
			order = append(order, id)
		}
	}

	var ivs []interval
	for _, id := range order {
		op := fn.Op(id)
		size := scratchSize(mod, fn, op)
		if size == 0 {
			continue
		}
		iv := interval{id: id, size: size, start: pos[id], end: pos[id]}
		if resultBacked(mod, fn, op) {
			// The buffer holds the op's shared result; it stays live
			// until the last use of that result.
			res := op.Results[0]
			for _, uid := range order {
				for _, a := range fn.Op(uid).Args {
					if a == res && pos[uid] > iv.end {
						iv.end = pos[uid]
					}
				}
			}
		}
		ivs = append(ivs, iv)
	}

	// First-fit packing: place each interval at the lowest aligned
	// offset that does not overlap a live, already-placed buffer.
	sort.SliceStable(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
	type placed struct {
		interval
		offset int64
	}
	var done []placed
	for _, iv := range ivs {
		var offset int64
		for changed := true; changed; {
			changed = false
			for _, p := range done {
				if iv.start > p.end || iv.end < p.start {
					continue // lifetimes disjoint, memory reusable
				}
				if offset < p.offset+p.size && offset+iv.size > p.offset {
					offset = alignTo(p.offset+p.size, bufferAlign)
					changed = true
				}
			}
		}
		done = append(done, placed{interval: iv, offset: offset})
		fa.buffers[iv.id] = Buffer{Offset: offset, Size: iv.size}
		if end := offset + iv.size; end > fa.Size {
			fa.Size = end
		}
	}
	fa.Size = alignTo(fa.Size, bufferAlign)
	return fa
}

// resultBacked reports whether the op's buffer backs its shared-tile
// result, as opposed to scratch live only during the op itself.
func resultBacked(mod *ir.Module, fn *ir.Function, op *ir.Op) bool {
	if len(op.Results) == 0 {
		return false
	}
	tt, ok := mod.Types.Tile(fn.ValueType(op.Results[0]))
	return ok && tt.IsShared()
}

// scratchSize returns the shared-memory demand of one operation in
// bytes, zero for ops that use none.
func scratchSize(mod *ir.Module, fn *ir.Function, op *ir.Op) int64 {
	reg := mod.Types
	switch op.Kind {
	case ir.OpAllocTensor:
		return tileBytes(reg, fn, op.Results[0])

	case ir.OpConvertLayout:
		// A shared result owns its tile; a register-to-register
		// conversion round-trips through scratch of the tile's size.
		if resultBacked(mod, fn, op) {
			return tileBytes(reg, fn, op.Results[0])
		}
		srcShared := false
		if tt, ok := reg.Tile(fn.ValueType(op.Args[0])); ok {
			srcShared = tt.IsShared()
		}
		if srcShared {
			return 0
		}
		return tileBytes(reg, fn, op.Results[0])

	case ir.OpReduce:
		// One scratch element per element of the reduced shape.
		tt, ok := reg.Tile(fn.ValueType(op.Args[0]))
		if !ok {
			return 0
		}
		n := ir.NumElements(tt.Shape)
		if s := tt.Shape[op.Axis]; s != 0 {
			n /= s
		}
		return alignTo(n*elemBytes(reg, tt.Elem), bufferAlign)

	case ir.OpScan:
		// The prefix rounds run over the whole tile in scratch.
		tt, ok := reg.Tile(fn.ValueType(op.Args[0]))
		if !ok {
			return 0
		}
		return alignTo(ir.NumElements(tt.Shape)*elemBytes(reg, tt.Elem), bufferAlign)

	case ir.OpHistogram:
		tt, ok := reg.Tile(fn.ValueType(op.Results[0]))
		if !ok {
			return 0
		}
		return alignTo(ir.NumElements(tt.Shape)*4, bufferAlign)
	}
	return 0
}

func tileBytes(reg *ir.TypeRegistry, fn *ir.Function, v ir.ValueID) int64 {
	tt, ok := reg.Tile(fn.ValueType(v))
	if !ok {
		return 0
	}
	return alignTo(ir.NumElements(tt.Shape)*elemBytes(reg, tt.Elem), bufferAlign)
}

func elemBytes(reg *ir.TypeRegistry, elem ir.TypeHandle) int64 {
	if bits := reg.ScalarBits(elem); bits > 0 {
		return (bits + 7) / 8
	}
	// Pointer elements.
	return 8
}

func alignTo(x, a int64) int64 {
	return (x + a - 1) / a * a
}
