package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateElementwiseRules(rs ruleSet) {
	binops := map[ir.OpKind]ir.OpKind{
		ir.OpAdd: ir.LLAdd,
		ir.OpSub: ir.LLSub,
		ir.OpMul: ir.LLMul,
		ir.OpDiv: ir.LLDiv,
		ir.OpAnd: ir.LLAnd,
		ir.OpOr:  ir.LLOr,
		ir.OpXor: ir.LLXor,
	}
	for tile, ll := range binops {
		rs.add(tile, 1, binaryRule(ll))
	}
	rs.add(ir.OpCmp, 1, lowerCmp)
	rs.add(ir.OpSelect, 1, lowerSelect)
	for _, k := range []ir.OpKind{ir.OpExp, ir.OpLog, ir.OpSqrt} {
		rs.add(k, 1, lowerMathCall)
	}
	rs.add(ir.OpGetProgramID, 1, lowerProgramID)
	rs.add(ir.OpGetNumPrograms, 1, lowerNumPrograms)
}

// binaryRule lowers a tile-dialect binary op to one scalar op per
// register fragment, or to a single scalar op when the operands are
// plain scalars.
func binaryRule(ll ir.OpKind) ruleFunc {
	return func(cx *context, fn *ir.Function, id ir.OpID) error {
		op := fn.Op(id)
		b := cx.builder(fn)
		resTy := fn.ValueType(op.Results[0])

		if _, isTile := cx.reg().Tile(resTy); !isTile {
			cx.replaceOp(fn, id, b.Binary(ll, op.Args[0], op.Args[1]))
			return nil
		}
		xs, ok := cx.unpackTile(b, fn, op.Args[0])
		if !ok {
			return errNoMatch
		}
		ys, _ := cx.unpackTile(b, fn, op.Args[1])
		out := make([]ir.ValueID, len(xs))
		for i := range xs {
			out[i] = b.Binary(ll, xs[i], ys[i])
		}
		cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
		return nil
	}
}

func lowerCmp(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	b := cx.builder(fn)
	resTy := fn.ValueType(op.Results[0])

	if _, isTile := cx.reg().Tile(resTy); !isTile {
		cx.replaceOp(fn, id, b.Cmp(op.IntVal, op.Args[0], op.Args[1]))
		return nil
	}
	xs, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	ys, _ := cx.unpackTile(b, fn, op.Args[1])
	out := make([]ir.ValueID, len(xs))
	for i := range xs {
		out[i] = b.Cmp(op.IntVal, xs[i], ys[i])
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

func lowerSelect(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	b := cx.builder(fn)
	resTy := fn.ValueType(op.Results[0])

	if _, isTile := cx.reg().Tile(resTy); !isTile {
		cx.replaceOp(fn, id, b.Select(op.Args[0], op.Args[1], op.Args[2]))
		return nil
	}
	xs, ok := cx.unpackTile(b, fn, op.Args[1])
	if !ok {
		return errNoMatch
	}
	ys, _ := cx.unpackTile(b, fn, op.Args[2])

	// The condition may be a predicate tile or a single predicate
	// applied to every fragment.
	conds, condTile := cx.unpackTile(b, fn, op.Args[0])
	out := make([]ir.ValueID, len(xs))
	for i := range xs {
		c := op.Args[0]
		if condTile {
			c = conds[i]
		}
		out[i] = b.Select(c, xs[i], ys[i])
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

// lowerMathCall lowers a transcendental op to one libdevice call per
// fragment, using the target's math-library symbol.
func lowerMathCall(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	sym := mathSymbol(cx.target, op.Kind)
	if sym == "" {
		return &LegalizeError{
			Function: fn.Name, Op: id, Kind: op.Kind,
			Reason: "no math-library symbol for target " + cx.target.String(),
		}
	}
	b := cx.builder(fn)
	resTy := fn.ValueType(op.Results[0])

	tt, isTile := cx.reg().Tile(resTy)
	if !isTile {
		_, res := b.Call(sym, resTy, op.Args[0])
		cx.replaceOp(fn, id, res)
		return nil
	}
	xs, ok := cx.unpackTile(b, fn, op.Args[0])
	if !ok {
		return errNoMatch
	}
	out := make([]ir.ValueID, len(xs))
	for i := range xs {
		_, out[i] = b.Call(sym, tt.Elem, xs[i])
	}
	cx.replaceOp(fn, id, cx.packTile(b, fn, out, resTy))
	return nil
}

func lowerProgramID(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	cx.replaceOp(fn, id, cx.identity(fn).programID[op.Axis])
	return nil
}

// lowerNumPrograms lowers the grid-extent query to the target's
// runtime intrinsic.
func lowerNumPrograms(cx *context, fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	b := cx.builder(fn)
	i32 := cx.reg().Scalar(ir.ScalarInt, 32)

	var res ir.ValueID
	switch cx.target {
	case TargetNVVM:
		sym := [3]string{
			"llvm.nvvm.read.ptx.sreg.nctaid.x",
			"llvm.nvvm.read.ptx.sreg.nctaid.y",
			"llvm.nvvm.read.ptx.sreg.nctaid.z",
		}[op.Axis]
		_, res = b.Call(sym, i32)
	case TargetGENX:
		_, res = b.Call("_Z14get_num_groupsj", i32, b.I32(int64(op.Axis)))
	default:
		_, res = b.Call("__ockl_get_num_groups", i32, b.I32(int64(op.Axis)))
	}
	cx.replaceOp(fn, id, res)
	return nil
}
