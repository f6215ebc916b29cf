package analysis

import (
	"github.com/gogpu/triton/ir"
)

// AxisInfo summarizes what is statically known about a value along its
// innermost dimension.
type AxisInfo struct {
	// Contiguity is the length of the longest run of consecutive
	// elements.
	Contiguity int64
	// Divisibility is the largest power of two dividing every element
	// (for pointers, the base alignment in elements).
	Divisibility int64
	// Constancy is the length of the longest run of equal elements.
	Constancy int64
}

// unknown is the lattice bottom: nothing is known.
var unknown = AxisInfo{Contiguity: 1, Divisibility: 1, Constancy: 1}

// paramDivisibility is the launch contract: kernel arguments are
// 16-aligned.
const paramDivisibility = 16

// maxDivisibility caps the divisibility of literal zero and friends.
const maxDivisibility = 1 << 30

// ModuleAxisInfo holds per-function, per-value axis info.
type ModuleAxisInfo struct {
	funcs map[*ir.Function]map[ir.ValueID]AxisInfo
}

// RunAxisInfo computes axis info for every value in the module with a
// single forward walk per function. Operations appear in def-before-use
// order within a block, which the builder guarantees.
func RunAxisInfo(mod *ir.Module) *ModuleAxisInfo {
	m := &ModuleAxisInfo{funcs: make(map[*ir.Function]map[ir.ValueID]AxisInfo)}
	for _, fn := range mod.Funcs {
		info := make(map[ir.ValueID]AxisInfo)
		for _, p := range fn.Params {
			info[p] = AxisInfo{Contiguity: 1, Divisibility: paramDivisibility, Constancy: 1}
		}
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				op := fn.Op(id)
				if op.Dead() {
					continue
				}
				m.transfer(mod, fn, op, info)
			}
		}
		m.funcs[fn] = info
	}
	return m
}

// Info returns the axis info for v, or the unknown lattice element.
func (m *ModuleAxisInfo) Info(fn *ir.Function, v ir.ValueID) AxisInfo {
	if info, ok := m.funcs[fn]; ok {
		if ai, ok := info[v]; ok {
			return ai
		}
	}
	return unknown
}

// PtrContiguity returns how many consecutive elements a pointer tile
// addresses.
func (m *ModuleAxisInfo) PtrContiguity(fn *ir.Function, v ir.ValueID) int64 {
	return m.Info(fn, v).Contiguity
}

// MaskAlignment returns the constancy run length of a predicate tile,
// the vectorization bound a mask imposes.
func (m *ModuleAxisInfo) MaskAlignment(fn *ir.Function, v ir.ValueID) int64 {
	return m.Info(fn, v).Constancy
}

func (m *ModuleAxisInfo) transfer(mod *ir.Module, fn *ir.Function, op *ir.Op, info map[ir.ValueID]AxisInfo) {
	get := func(v ir.ValueID) AxisInfo {
		if ai, ok := info[v]; ok {
			return ai
		}
		return unknown
	}
	set := func(ai AxisInfo) {
		if len(op.Results) > 0 {
			info[op.Results[0]] = ai
		}
	}

	switch op.Kind {
	case ir.OpMakeRange:
		n := resultElems(mod, fn, op)
		set(AxisInfo{
			Contiguity:   n,
			Divisibility: pow2Divisor(op.IntVal),
			Constancy:    1,
		})

	case ir.OpSplat:
		n := resultElems(mod, fn, op)
		src := get(op.Args[0])
		set(AxisInfo{Contiguity: 1, Divisibility: src.Divisibility, Constancy: n})

	case ir.OpBroadcast, ir.OpExpandDims, ir.OpReshape, ir.OpConvertLayout:
		set(get(op.Args[0]))

	case ir.OpAddPtr:
		ptr, off := get(op.Args[0]), get(op.Args[1])
		set(AxisInfo{
			Contiguity:   min64(ptr.Constancy, off.Contiguity),
			Divisibility: gcd64(ptr.Divisibility, off.Divisibility),
			Constancy:    min64(ptr.Constancy, off.Constancy),
		})

	case ir.OpAdd, ir.OpSub:
		a, b := get(op.Args[0]), get(op.Args[1])
		set(AxisInfo{
			Contiguity:   max64(min64(a.Contiguity, b.Constancy), min64(b.Contiguity, a.Constancy)),
			Divisibility: gcd64(a.Divisibility, b.Divisibility),
			Constancy:    min64(a.Constancy, b.Constancy),
		})

	case ir.OpMul:
		a, b := get(op.Args[0]), get(op.Args[1])
		d := a.Divisibility * b.Divisibility
		if d > maxDivisibility {
			d = maxDivisibility
		}
		set(AxisInfo{Contiguity: 1, Divisibility: d, Constancy: min64(a.Constancy, b.Constancy)})

	case ir.OpCmp, ir.OpAnd, ir.OpOr, ir.OpXor:
		a, b := get(op.Args[0]), get(op.Args[1])
		set(AxisInfo{Contiguity: 1, Divisibility: 1, Constancy: min64(a.Constancy, b.Constancy)})

	case ir.LLConstInt:
		set(AxisInfo{Contiguity: 1, Divisibility: pow2Divisor(op.IntVal), Constancy: 1})

	default:
		set(unknown)
	}
}

func resultElems(mod *ir.Module, fn *ir.Function, op *ir.Op) int64 {
	if len(op.Results) == 0 {
		return 1
	}
	if tt, ok := mod.Types.Tile(fn.ValueType(op.Results[0])); ok {
		return ir.NumElements(tt.Shape)
	}
	return 1
}

// pow2Divisor returns the largest power of two dividing x, with zero
// mapped to the lattice cap.
func pow2Divisor(x int64) int64 {
	if x == 0 {
		return maxDivisibility
	}
	if x < 0 {
		x = -x
	}
	return x & -x
}

func gcd64(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
