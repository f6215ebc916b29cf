package lower

import (
	"github.com/gogpu/triton/ir"
)

// Target selects the native backend dialect. The set is closed; the
// choice is made once per compilation and never changes mid-pipeline.
type Target uint8

const (
	TargetNVVM Target = iota
	TargetGENX
	TargetROCDL
)

// String returns the target's dialect name.
func (t Target) String() string {
	switch t {
	case TargetNVVM:
		return "nvvm"
	case TargetGENX:
		return "genx"
	case TargetROCDL:
		return "rocdl"
	}
	return "unknown"
}

// nativeDialect returns the dialect whose operations stay legal for t.
func (t Target) nativeDialect() ir.Dialect {
	switch t {
	case TargetNVVM:
		return ir.DialectNVVM
	case TargetGENX:
		return ir.DialectGENX
	default:
		return ir.DialectROCDL
	}
}

// legal reports whether an operation kind may remain in the module
// after legalization: the low-level dialect, the target's native
// dialect, and the always-legal bridge cast.
func (t Target) legal(k ir.OpKind) bool {
	switch ir.KindDialect(k) {
	case ir.DialectLL, ir.DialectBridge:
		return true
	default:
		return ir.KindDialect(k) == t.nativeDialect()
	}
}

// eligibleCopyBytes returns the per-copy byte widths the target's
// native async bulk-copy path accepts. An empty set means the backend
// has no native path and every async copy is decomposed.
func eligibleCopyBytes(t Target, capability int) []int64 {
	if t == TargetNVVM && capability >= 80 {
		return []int64{4, 8, 16}
	}
	return nil
}

// supportsAsyncGroups reports whether commit/wait group markers have a
// native equivalent on this configuration.
func supportsAsyncGroups(t Target, capability int) bool {
	return t == TargetNVVM && capability >= 80
}

// mathSymbol returns the target's math-intrinsic symbol for an
// elementwise transcendental op, or "" when the op has no call-based
// lowering.
func mathSymbol(t Target, k ir.OpKind) string {
	type key struct {
		t Target
		k ir.OpKind
	}
	syms := map[key]string{
		{TargetNVVM, ir.OpExp}:   "__nv_expf",
		{TargetNVVM, ir.OpLog}:   "__nv_logf",
		{TargetNVVM, ir.OpSqrt}:  "__nv_sqrtf",
		{TargetGENX, ir.OpExp}:   "_Z15__spirv_ocl_expf",
		{TargetGENX, ir.OpLog}:   "_Z15__spirv_ocl_logf",
		{TargetGENX, ir.OpSqrt}:  "_Z16__spirv_ocl_sqrtf",
		{TargetROCDL, ir.OpExp}:  "__ocml_exp_f32",
		{TargetROCDL, ir.OpLog}:  "__ocml_log_f32",
		{TargetROCDL, ir.OpSqrt}: "__ocml_sqrt_f32",
	}
	return syms[key{t, k}]
}
