package lower

import (
	"github.com/gogpu/triton/ir"
)

// scanTensorPointers records, for every op consuming a tensor-pointer
// descriptor (loads, stores and advances), the make-tensor-ptr
// operation that built it. The scan runs before any rewriting because
// the descriptor chain is lost once those ops are lowered; entries are
// write-once and read during the main legalization pass.
func (cx *context) scanTensorPointers() {
	for _, fn := range cx.mod.Funcs {
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				op := fn.Op(id)
				if op.Dead() {
					continue
				}
				var ptr ir.ValueID
				switch op.Kind {
				case ir.OpLoad, ir.OpStore, ir.OpAdvance:
					ptr = op.Args[0]
				default:
					continue
				}
				if !cx.reg().IsTensorPointer(fn.ValueType(ptr)) {
					continue
				}
				if mk, ok := findMakeTensorPtr(fn, ptr); ok {
					cx.tensorPtr[opRef{fn, id}] = mk
				}
			}
		}
	}
}

// findMakeTensorPtr chases a descriptor value through advances and
// bridge casts back to the op that constructed it.
func findMakeTensorPtr(fn *ir.Function, v ir.ValueID) (ir.OpID, bool) {
	for {
		def, ok := fn.Def(v)
		if !ok {
			return ir.InvalidOp, false
		}
		op := fn.Op(def)
		switch op.Kind {
		case ir.OpMakeTensorPtr:
			return def, true
		case ir.OpAdvance, ir.OpBridge:
			v = op.Args[0]
		default:
			return ir.InvalidOp, false
		}
	}
}

// foldSplatMasks rewrites every async slice insertion whose mask is a
// splat so that it carries the splatted scalar directly. In-place
// operand update; the op itself is untouched.
func (cx *context) foldSplatMasks() {
	for _, fn := range cx.mod.Funcs {
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				op := fn.Op(id)
				if op.Dead() || op.Kind != ir.OpInsertSliceAsync || len(op.Args) < 4 {
					continue
				}
				mask := op.Args[3]
				def, ok := fn.Def(mask)
				if !ok {
					continue
				}
				if splat := fn.Op(def); splat.Kind == ir.OpSplat {
					op.Args[3] = splat.Args[0]
				}
			}
		}
	}
}
