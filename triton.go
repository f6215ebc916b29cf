// Package triton lowers tile-level GPU kernel modules to a low-level
// register-and-pointer form ready for backend code emission.
//
// A module enters as tile-dialect IR: multi-dimensional values
// distributed across threads by explicit layouts, asynchronous copies
// into a shared-memory arena, and structured calls between kernels and
// device functions. Lowering rewrites it, in place, to scalar
// operations, raw pointer arithmetic and the chosen backend's native
// operations (NVVM, GENX or ROCDL).
//
// The simplest entry point picks a target and runs the whole pipeline:
//
//	module := ir.NewModule(ir.ModuleAttrs{
//	    NumWarps: 4, ThreadsPerWarp: 32, NumCTAs: 1,
//	})
//	// ... build kernels ...
//	err := triton.LowerNVVM(module, 80)
//
// For control over the shared-memory report or the target selection,
// use the lower package directly:
//
//	table := &lower.SharedTable{}
//	err := lower.Lower(module, lower.Options{
//	    Target:      lower.TargetROCDL,
//	    SharedTable: table,
//	})
package triton

import (
	"github.com/gogpu/triton/ir"
	"github.com/gogpu/triton/lower"
)

// LowerNVVM lowers a module for an NVVM device of the given compute
// capability (e.g. 80 for sm_80).
func LowerNVVM(mod *ir.Module, capability int) error {
	return lower.Lower(mod, lower.Options{Target: lower.TargetNVVM, Capability: capability})
}

// LowerGENX lowers a module for an Intel GENX device.
func LowerGENX(mod *ir.Module) error {
	return lower.Lower(mod, lower.Options{Target: lower.TargetGENX})
}

// LowerROCDL lowers a module for an AMD ROCDL device.
func LowerROCDL(mod *ir.Module) error {
	return lower.Lower(mod, lower.Options{Target: lower.TargetROCDL})
}
