package lower

import (
	"fmt"

	"github.com/gogpu/triton/ir"
)

// LegalizeError reports an operation no rewrite rule could lower, or a
// type conversion the pipeline cannot express. It aborts the whole
// compilation; a partially lowered module is never a valid result.
type LegalizeError struct {
	Function string
	Op       ir.OpID
	Kind     ir.OpKind
	Reason   string
}

// Error implements the error interface.
func (e *LegalizeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("legalization failed in function %s: op %d (%s): %s",
			e.Function, e.Op, e.Kind, e.Reason)
	}
	return fmt.Sprintf("legalization failed in function %s: op %d (%s) has no applicable lowering rule",
		e.Function, e.Op, e.Kind)
}

// ConventionError reports a calling-convention violation detected
// during signature or return rewriting.
type ConventionError struct {
	Function string
	Message  string
}

// Error implements the error interface.
func (e *ConventionError) Error() string {
	return fmt.Sprintf("calling convention violation in function %s: %s", e.Function, e.Message)
}
