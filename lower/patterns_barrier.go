package lower

import (
	"github.com/gogpu/triton/ir"
)

func populateBarrierRules(rs ruleSet) {
	rs.add(ir.OpBarrier, 1, lowerWorkgroupBarrier)
}

func lowerWorkgroupBarrier(cx *context, fn *ir.Function, id ir.OpID) error {
	b := cx.builder(fn)
	switch cx.target {
	case TargetNVVM:
		b.Emit0(ir.NVVMBarrier0)
	case TargetGENX:
		b.Emit0(ir.GENXBarrier)
	default:
		b.Emit0(ir.ROCDLBarrier)
	}
	fn.Erase(id)
	return nil
}
