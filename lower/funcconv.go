package lower

import (
	"github.com/gogpu/triton/ir"
)

// convertSignatures runs the function part of the calling-convention
// rewrite. Entry functions receive the target's kernel attributes and
// keep their signature; every other function gains one trailing
// pointer parameter, the shared-memory base, which makes shared-memory
// allocation composable across call boundaries.
func (cx *context) convertSignatures() {
	attrs := cx.mod.Attrs
	maxThreads := attrs.ThreadsPerWarp * attrs.EffectiveWarps()

	for _, fn := range cx.mod.Funcs {
		switch cx.target {
		case TargetNVVM, TargetROCDL:
			// Consumed by the downstream codegen's launch-bounds
			// annotation.
			fn.Attrs.MaxThreadsPerBlock = maxThreads
		case TargetGENX:
			fn.Attrs.MaxWorkGroupSize = [3]int{maxThreads, 1, 1}
			fn.Attrs.ReqdSubGroupSize = attrs.ThreadsPerWarp
		}
		if fn.Kernel {
			continue
		}

		// Strip caller-only attributes before they land on the amended
		// argument list.
		for i := range fn.Attrs.ArgAttrs {
			fn.Attrs.ArgAttrs[i].ByVal = false
		}
		fn.AddParam(cx.i8Ptr(ir.SpaceShared))

		// Inlining would break the base-pointer threading and the
		// barrier placement computed against function boundaries.
		fn.Attrs.Noinline = true
	}
}

// convertCallsAndReturns lowers every call and return in the module to
// the low-level convention. It runs after signatures are amended and
// after the shared-memory arena exists, because call sites need the
// callee's base address.
func (cx *context) convertCallsAndReturns() error {
	for _, fn := range cx.mod.Funcs {
		var ids []ir.OpID
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				switch fn.Op(id).Kind {
				case ir.OpReturn, ir.OpCall:
					ids = append(ids, id)
				}
			}
		}
		for _, id := range ids {
			op := fn.Op(id)
			var err error
			if op.Kind == ir.OpReturn {
				err = cx.lowerReturn(fn, id)
			} else {
				err = cx.lowerCall(fn, id)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (cx *context) lowerReturn(fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	ws := op.WS
	b := cx.builder(fn)
	b.SetInsertBefore(id)
	b.TakeCreated()

	if fn.Kernel {
		if len(op.Args) > 0 {
			return &ConventionError{
				Function: fn.Name,
				Message:  "kernel functions do not support return with operands",
			}
		}
		nid := b.Emit0(ir.LLReturn)
		fn.Op(nid).WS = ws
		fn.Erase(id)
		return nil
	}

	if len(op.Args) <= 1 {
		args := make([]ir.ValueID, 0, 1)
		for _, a := range op.Args {
			t, _ := cx.convertType(fn.ValueType(a))
			args = append(args, b.Bridge(a, t))
		}
		nid := b.Emit0(ir.LLReturn, args...)
		fn.Op(nid).WS = ws
		fn.Erase(id)
		return nil
	}

	// The low-level convention allows at most one return value: pack
	// all results into a single aggregate by sequential insertion.
	fields := make([]ir.TypeHandle, len(op.Args))
	for i, a := range op.Args {
		fields[i], _ = cx.convertType(fn.ValueType(a))
	}
	packedTy := cx.reg().StructOf(fields)
	agg := b.Undef(packedTy)
	for i, a := range op.Args {
		agg = b.InsertValue(agg, b.Bridge(a, fields[i]), i)
	}
	nid := b.Emit0(ir.LLReturn, agg)
	fn.Op(nid).WS = ws
	fn.Erase(id)
	return nil
}

func (cx *context) lowerCall(fn *ir.Function, id ir.OpID) error {
	op := fn.Op(id)
	ws := op.WS
	b := cx.builder(fn)
	b.SetInsertBefore(id)
	b.TakeCreated()

	// Promote one extra operand: the callee's shared-memory base. A
	// caller without a static allocation offset forwards its own
	// high-water mark; one with an offset computes the address past its
	// own arena usage.
	var base ir.ValueID
	if fn.Attrs.AllocOffset < 0 {
		base = fn.Params[len(fn.Params)-1]
	} else {
		base = cx.smemBase(b, fn)
		hw := fn.Attrs.AllocOffset
		if fa := cx.alloc.Func(fn); fa != nil {
			hw += fa.Size
		}
		if hw > 0 {
			base = b.GEP(base, cx.reg().Scalar(ir.ScalarInt, 8), b.I32(hw))
		}
	}

	args := make([]ir.ValueID, 0, len(op.Args)+1)
	for _, a := range op.Args {
		t, _ := cx.convertType(fn.ValueType(a))
		args = append(args, b.Bridge(a, t))
	}
	args = append(args, base)

	switch n := len(op.Results); {
	case n == 0:
		cid := b.Emit0(ir.LLCall, args...)
		nop := fn.Op(cid)
		nop.Sym = op.Sym
		nop.WS = ws
	case n == 1:
		orig := fn.ValueType(op.Results[0])
		rt, _ := cx.convertType(orig)
		cid, res := b.Emit1(ir.LLCall, rt, args...)
		nop := fn.Op(cid)
		nop.Sym = op.Sym
		nop.WS = ws
		fn.ReplaceAllUses(op.Results[0], b.Bridge(res, orig))
	default:
		// The callee returns one packed aggregate; reconstruct the
		// original multi-value interface with one extraction per
		// result index.
		fields := make([]ir.TypeHandle, n)
		for i, r := range op.Results {
			fields[i], _ = cx.convertType(fn.ValueType(r))
		}
		packedTy := cx.reg().StructOf(fields)
		cid, res := b.Emit1(ir.LLCall, packedTy, args...)
		nop := fn.Op(cid)
		nop.Sym = op.Sym
		nop.WS = ws
		for i, r := range op.Results {
			ext := b.ExtractValue(res, i, fields[i])
			fn.ReplaceAllUses(r, b.Bridge(ext, fn.ValueType(r)))
		}
	}
	fn.Erase(id)
	return nil
}
