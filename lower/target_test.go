package lower

import (
	"testing"

	"github.com/gogpu/triton/ir"
)

func TestTarget_LegalKinds(t *testing.T) {
	cases := []struct {
		target Target
		kind   ir.OpKind
		legal  bool
	}{
		{TargetNVVM, ir.LLAdd, true},
		{TargetNVVM, ir.OpBridge, true},
		{TargetNVVM, ir.NVVMBarrier0, true},
		{TargetNVVM, ir.GENXBarrier, false},
		{TargetNVVM, ir.OpLoad, false},
		{TargetGENX, ir.GENXSlmBase, true},
		{TargetGENX, ir.NVVMThreadID, false},
		{TargetROCDL, ir.ROCDLBarrier, true},
		{TargetROCDL, ir.NVVMCpAsync, false},
		{TargetROCDL, ir.OpConvertLayout, false},
	}
	for _, tc := range cases {
		if got := tc.target.legal(tc.kind); got != tc.legal {
			t.Errorf("%s.legal(%s): Expected %v, got %v", tc.target, tc.kind, tc.legal, got)
		}
	}
}

func TestTarget_EligibleCopyBytes(t *testing.T) {
	if got := eligibleCopyBytes(TargetNVVM, 80); len(got) != 3 {
		t.Errorf("Expected 3 eligible widths on sm_80, got %v", got)
	}
	if got := eligibleCopyBytes(TargetNVVM, 70); got != nil {
		t.Errorf("Expected no native path on sm_70, got %v", got)
	}
	if got := eligibleCopyBytes(TargetROCDL, 90); got != nil {
		t.Errorf("Expected no native path on rocdl, got %v", got)
	}
}

func TestTarget_SupportsAsyncGroups(t *testing.T) {
	if !supportsAsyncGroups(TargetNVVM, 80) {
		t.Error("Expected group markers supported on sm_80")
	}
	if supportsAsyncGroups(TargetNVVM, 75) {
		t.Error("Expected no group markers on sm_75")
	}
	if supportsAsyncGroups(TargetGENX, 0) {
		t.Error("Expected no group markers on genx")
	}
}

func TestTarget_MathSymbols(t *testing.T) {
	cases := []struct {
		target Target
		kind   ir.OpKind
		sym    string
	}{
		{TargetNVVM, ir.OpExp, "__nv_expf"},
		{TargetGENX, ir.OpLog, "_Z15__spirv_ocl_logf"},
		{TargetROCDL, ir.OpSqrt, "__ocml_sqrt_f32"},
	}
	for _, tc := range cases {
		if got := mathSymbol(tc.target, tc.kind); got != tc.sym {
			t.Errorf("mathSymbol(%s, %s): Expected %q, got %q", tc.target, tc.kind, tc.sym, got)
		}
	}
	if got := mathSymbol(TargetNVVM, ir.OpAdd); got != "" {
		t.Errorf("Expected no symbol for non-transcendental op, got %q", got)
	}
}
