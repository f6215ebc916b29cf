package lower

import (
	"fmt"

	"github.com/gogpu/triton/analysis"
	"github.com/gogpu/triton/ir"
)

// Options configures one lowering run.
type Options struct {
	// Target selects the native backend dialect.
	Target Target

	// Capability is the device generation, e.g. 80 for an NVVM sm_80
	// device. It gates the native async-copy path.
	Capability int

	// SharedTable, when non-nil, receives the final shared-memory
	// layout for downstream emission or inspection.
	SharedTable *SharedTable
}

// Lower rewrites mod in place from the tile dialect to the low-level
// dialect plus the target's native operations. On error the module is
// left partially rewritten and must be discarded.
func Lower(mod *ir.Module, opts Options) error {
	if errs := ir.Verify(mod); len(errs) > 0 {
		return fmt.Errorf("module verification: %w", errs[0])
	}
	cx := newContext(mod, opts)

	// Pre-lowering rewrites on the tile dialect. Splat-mask folding
	// runs first so the decomposition's width analysis sees scalar
	// masks; the descriptor scan runs before anything erases the
	// descriptor chains.
	cx.foldSplatMasks()
	cx.scanTensorPointers()
	cx.decomposeAsyncCopies()

	// Analyses over the still-structured module.
	cx.alloc = analysis.RunAllocation(mod)
	analysis.RunMembar(mod, cx.alloc)
	cx.fillSharedTable()
	cx.axis = analysis.RunAxisInfo(mod)

	// Calling convention and the arena declaration.
	cx.convertSignatures()
	cx.initSharedMemory()
	if err := cx.convertCallsAndReturns(); err != nil {
		return err
	}

	// Main rewrite to the fixed point, then cleanup.
	cx.materializeIdentities()
	if err := cx.legalize(); err != nil {
		return err
	}
	cx.foldClusterIDs()
	cx.eliminateDeadOps()
	return cx.checkLegal()
}
