package lower

import (
	"github.com/gogpu/triton/ir"
)

// identityCache holds the per-function thread/warp/block/cluster
// identity values. They are materialized once at the top of the entry
// block and reused by every rule: on some backends the identity comes
// from inline assembly the common-subexpression eliminator cannot see
// through, so redundant materialization would survive to the final
// binary. Unused identities are swept as dead code after legalization.
type identityCache struct {
	threadID  ir.ValueID
	laneID    ir.ValueID
	warpID    ir.ValueID
	programID [3]ir.ValueID
	clusterID ir.ValueID
}

// materializeIdentities emits the identity values for every function
// and caches them. The cluster id is emitted unconditionally for
// uniformity; when the module declares a single cluster it is folded
// to the literal zero after legalization.
func (cx *context) materializeIdentities() {
	for _, fn := range cx.mod.Funcs {
		b := cx.builder(fn)
		b.SetInsertAtStart(fn.EntryBlock())

		i32 := cx.reg().Scalar(ir.ScalarInt, 32)
		c := &identityCache{}

		var tidKind, bidKind ir.OpKind
		switch cx.target {
		case TargetNVVM:
			tidKind, bidKind = ir.NVVMThreadID, ir.NVVMBlockID
		case TargetGENX:
			tidKind, bidKind = ir.GENXWorkitemID, ir.GENXWorkgroupID
		default:
			tidKind, bidKind = ir.ROCDLWorkitemID, ir.ROCDLWorkgroupID
		}

		tidOp, tid := b.Emit1(tidKind, i32)
		fn.Op(tidOp).Axis = 0
		c.threadID = tid

		tpw := int64(cx.mod.Attrs.ThreadsPerWarp)
		c.laneID = b.Binary(ir.LLAnd, tid, b.ConstInt(i32, tpw-1))
		c.warpID = b.Binary(ir.LLDiv, tid, b.ConstInt(i32, tpw))

		for axis := 0; axis < 3; axis++ {
			bidOp, bid := b.Emit1(bidKind, i32)
			fn.Op(bidOp).Axis = axis
			c.programID[axis] = bid
		}

		if cx.target == TargetNVVM {
			_, cid := b.Emit1(ir.NVVMClusterCTAID, i32)
			c.clusterID = cid
		} else {
			c.clusterID = b.ConstInt(i32, 0)
		}

		cx.identities[fn] = c
		b.TakeCreated()
	}
}

// identity returns the cached identities of fn.
func (cx *context) identity(fn *ir.Function) *identityCache {
	return cx.identities[fn]
}
