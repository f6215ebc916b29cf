package ir

import (
	"fmt"
)

// VerifyError describes one structural defect found in a module.
type VerifyError struct {
	Message  string
	Function string
	Op       OpID
	HasOp    bool
}

// Error implements the error interface.
func (e VerifyError) Error() string {
	if e.Function != "" {
		if e.HasOp {
			return fmt.Sprintf("in function %s, op %d: %s", e.Function, e.Op, e.Message)
		}
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	return e.Message
}

// verifier walks a module collecting structural defects.
type verifier struct {
	module *Module
	errors []VerifyError
	fn     *Function
}

// Verify checks the module graph for structural consistency: valid
// handles, sane attribute values, call targets that exist. It does not
// enforce lowering conventions; those are the lowering stage's own
// reported failures.
func Verify(module *Module) []VerifyError {
	if module == nil {
		return []VerifyError{{Message: "module is nil"}}
	}
	v := &verifier{module: module}
	v.verifyAttrs()
	for _, f := range module.Funcs {
		v.fn = f
		v.verifyFunction(f)
	}
	return v.errors
}

func (v *verifier) addError(format string, args ...any) {
	e := VerifyError{Message: fmt.Sprintf(format, args...)}
	if v.fn != nil {
		e.Function = v.fn.Name
	}
	v.errors = append(v.errors, e)
}

func (v *verifier) addOpError(id OpID, format string, args ...any) {
	v.errors = append(v.errors, VerifyError{
		Message:  fmt.Sprintf(format, args...),
		Function: v.fn.Name,
		Op:       id,
		HasOp:    true,
	})
}

func (v *verifier) verifyAttrs() {
	a := v.module.Attrs
	if a.NumWarps <= 0 {
		v.errors = append(v.errors, VerifyError{Message: fmt.Sprintf("num_warps must be positive, got %d", a.NumWarps)})
	}
	if a.ThreadsPerWarp <= 0 {
		v.errors = append(v.errors, VerifyError{Message: fmt.Sprintf("threads_per_warp must be positive, got %d", a.ThreadsPerWarp)})
	}
	if a.NumCTAs <= 0 {
		v.errors = append(v.errors, VerifyError{Message: fmt.Sprintf("num_ctas must be positive, got %d", a.NumCTAs)})
	}
}

func (v *verifier) verifyFunction(f *Function) {
	if f.Name == "" {
		v.addError("function has empty name")
	}
	if len(f.Blocks) == 0 {
		v.addError("function has no blocks")
		return
	}
	if f.Kernel && len(f.ResultTypes) > 0 {
		v.addError("kernel declares %d result types", len(f.ResultTypes))
	}
	for _, p := range f.Params {
		if int(p) >= len(f.values) {
			v.addError("parameter value %d out of range", p)
		}
	}
	seen := make(map[OpID]bool)
	for _, blk := range f.Blocks {
		for _, id := range blk.Ops {
			if int(id) >= len(f.ops) {
				v.addError("block references op %d out of range", id)
				continue
			}
			if seen[id] {
				v.addOpError(id, "op linked into a block twice")
			}
			seen[id] = true
			v.verifyOp(f, id)
		}
	}
}

func (v *verifier) verifyOp(f *Function, id OpID) {
	op := f.Op(id)
	if op.Dead() {
		v.addOpError(id, "dead op still linked into a block")
		return
	}
	if KindDialect(op.Kind) == DialectUnknown {
		v.addOpError(id, "unknown op kind %d", op.Kind)
	}
	for _, a := range op.Args {
		if int(a) >= len(f.values) {
			v.addOpError(id, "operand value %d out of range", a)
		}
	}
	for i, res := range op.Results {
		if int(res) >= len(f.values) {
			v.addOpError(id, "result value %d out of range", res)
			continue
		}
		def := f.values[res]
		if def.op != id || def.index != i {
			v.addOpError(id, "result %d not defined by this op", res)
		}
	}
	if op.Kind == OpCall || op.Kind == LLCall {
		if op.Sym == "" {
			v.addOpError(id, "call without a callee symbol")
		}
	}
	if op.Kind == OpCall {
		callee := v.module.Function(op.Sym)
		if callee == nil {
			v.addOpError(id, "call to undefined function %q", op.Sym)
		} else if len(op.Args) < len(callee.Params) {
			// A call site may briefly carry one extra promoted operand
			// mid-lowering, never fewer than the callee declares.
			v.addOpError(id, "call to %q has %d arguments, callee declares %d",
				op.Sym, len(op.Args), len(callee.Params))
		}
	}
}
