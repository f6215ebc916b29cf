package lower

import (
	"errors"
	"sort"

	"github.com/gogpu/triton/ir"
)

// errNoMatch is returned by a rule that does not apply to the op it
// was offered; the driver falls through to the next candidate.
var errNoMatch = errors.New("rule does not match")

// ruleFunc rewrites one op. It must either fully apply or return
// errNoMatch without touching the module; any other error aborts the
// pipeline.
type ruleFunc func(cx *context, fn *ir.Function, id ir.OpID) error

type rule struct {
	benefit int
	apply   ruleFunc
}

// ruleSet is the priority-ordered lowering registry, one candidate
// list per op kind.
type ruleSet map[ir.OpKind][]rule

func (rs ruleSet) add(kind ir.OpKind, benefit int, fn ruleFunc) {
	rs[kind] = append(rs[kind], rule{benefit: benefit, apply: fn})
}

// newRuleSet assembles the full registry, one category at a time.
func newRuleSet() ruleSet {
	rs := make(ruleSet)
	populateConvertLayoutRules(rs)
	populateViewRules(rs)
	populateDotRules(rs)
	populateElementwiseRules(rs)
	populateMemoryRules(rs)
	populateReduceRules(rs)
	populateScanRules(rs)
	populateBarrierRules(rs)
	populateHistogramRules(rs)
	for k := range rs {
		sort.SliceStable(rs[k], func(i, j int) bool {
			return rs[k][i].benefit > rs[k][j].benefit
		})
	}
	return rs
}

// legalize applies the rule registry to a fixed point over a worklist
// of op handles. Every op starts on the list; each successful rewrite
// enqueues the ops it created, since a rule's output may itself need
// further legalization. An illegal op no rule accepts is a hard
// failure.
func (cx *context) legalize() error {
	var work []opRef
	for _, fn := range cx.mod.Funcs {
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				work = append(work, opRef{fn, id})
			}
		}
	}

	for len(work) > 0 {
		ref := work[0]
		work = work[1:]
		fn, id := ref.fn, ref.id
		op := fn.Op(id)
		if op.Dead() || cx.target.legal(op.Kind) {
			continue
		}

		ws := op.WS
		b := cx.builder(fn)
		matched := false
		for _, r := range cx.rules[op.Kind] {
			b.SetInsertBefore(id)
			b.TakeCreated()
			err := r.apply(cx, fn, id)
			if errors.Is(err, errNoMatch) {
				continue
			}
			if err != nil {
				return err
			}
			// Replacement ops inherit the warp-specialization tags of
			// the op they replace, and go back on the list.
			for _, nid := range b.TakeCreated() {
				if nop := fn.Op(nid); nop.WS.Empty() {
					nop.WS = ws
				}
				work = append(work, opRef{fn, nid})
			}
			matched = true
			break
		}
		if !matched {
			return &LegalizeError{Function: fn.Name, Op: id, Kind: op.Kind}
		}
	}
	return nil
}

// foldClusterIDs replaces every cluster-id value with the literal zero
// when the module declares exactly one cluster. Some rules emit the id
// unconditionally for uniformity; computing it is pointless then, and
// the producer becomes dead code.
func (cx *context) foldClusterIDs() {
	if cx.mod.Attrs.NumCTAs != 1 {
		return
	}
	for _, fn := range cx.mod.Funcs {
		var ids []ir.OpID
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				if fn.Op(id).Kind == ir.NVVMClusterCTAID {
					ids = append(ids, id)
				}
			}
		}
		for _, id := range ids {
			b := cx.builder(fn)
			b.SetInsertBefore(id)
			b.TakeCreated()
			zero := b.ConstInt(cx.reg().Scalar(ir.ScalarInt, 32), 0)
			fn.ReplaceAllUses(fn.Op(id).Results[0], zero)
		}
	}
}

// eliminateDeadOps sweeps ops whose results are all unused and that
// have no side effects, iterating until stable so chains of bridge
// casts and constants collapse.
func (cx *context) eliminateDeadOps() {
	for _, fn := range cx.mod.Funcs {
		for changed := true; changed; {
			changed = false
			for _, blk := range fn.Blocks {
				ids := make([]ir.OpID, len(blk.Ops))
				copy(ids, blk.Ops)
				for _, id := range ids {
					op := fn.Op(id)
					if op.Dead() || op.HasSideEffects() {
						continue
					}
					used := false
					for _, r := range op.Results {
						if fn.NumUses(r) > 0 {
							used = true
							break
						}
					}
					if !used {
						fn.Erase(id)
						changed = true
					}
				}
			}
		}
	}
}

// checkLegal is the final whitelist scan: any surviving op outside the
// low-level dialect, the target's native dialect and the bridge kind
// is a legalization failure, reported, never silently dropped.
func (cx *context) checkLegal() error {
	for _, fn := range cx.mod.Funcs {
		for _, blk := range fn.Blocks {
			for _, id := range blk.Ops {
				op := fn.Op(id)
				if op.Dead() {
					continue
				}
				if !cx.target.legal(op.Kind) {
					return &LegalizeError{
						Function: fn.Name,
						Op:       id,
						Kind:     op.Kind,
						Reason:   "op survived legalization",
					}
				}
			}
		}
	}
	return nil
}
