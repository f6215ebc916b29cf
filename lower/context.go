package lower

import (
	"github.com/gogpu/triton/analysis"
	"github.com/gogpu/triton/ir"
)

// opRef names one operation in the module: op ids are per-function
// arena indices, so a module-wide reference needs both.
type opRef struct {
	fn *ir.Function
	id ir.OpID
}

// context carries all pass-wide state. One instance lives for exactly
// one Lower call; nothing is package-global.
type context struct {
	mod        *ir.Module
	target     Target
	capability int

	alloc *analysis.ModuleAllocation
	axis  *analysis.ModuleAxisInfo

	// tensorPtr maps a tensor-pointer memory operation to the
	// make-tensor-ptr operation that built its descriptor. Entries are
	// written once by the pre-lowering scan and read during
	// legalization.
	tensorPtr map[opRef]ir.OpID

	identities map[*ir.Function]*identityCache
	builders   map[*ir.Function]*ir.Builder

	table *SharedTable
	rules ruleSet
}

func newContext(mod *ir.Module, opts Options) *context {
	return &context{
		mod:        mod,
		target:     opts.Target,
		capability: opts.Capability,
		tensorPtr:  make(map[opRef]ir.OpID),
		identities: make(map[*ir.Function]*identityCache),
		builders:   make(map[*ir.Function]*ir.Builder),
		table:      opts.SharedTable,
		rules:      newRuleSet(),
	}
}

func (cx *context) reg() *ir.TypeRegistry { return cx.mod.Types }

// builder returns the per-function builder, creating it on first use.
// Callers reposition it before emitting.
func (cx *context) builder(fn *ir.Function) *ir.Builder {
	b, ok := cx.builders[fn]
	if !ok {
		b = ir.NewBuilder(fn)
		cx.builders[fn] = b
	}
	return b
}

// i8Ptr returns ptr<i8, space>.
func (cx *context) i8Ptr(space ir.AddressSpace) ir.TypeHandle {
	reg := cx.reg()
	return reg.Ptr(reg.Scalar(ir.ScalarInt, 8), space)
}

// convertType maps a tile-dialect type to its low-level form:
// blocked tiles become per-thread register fragments (a struct),
// shared tiles become a shared-space pointer, tensor-pointer
// descriptors collapse to a raw global pointer, and everything else is
// already low-level.
func (cx *context) convertType(t ir.TypeHandle) (ir.TypeHandle, bool) {
	reg := cx.reg()
	if tt, ok := reg.Tile(t); ok {
		if tt.IsShared() {
			return reg.Ptr(tt.Elem, ir.SpaceShared), true
		}
		n := tt.ElemsPerThread()
		fields := make([]ir.TypeHandle, n)
		for i := range fields {
			fields[i] = tt.Elem
		}
		return reg.StructOf(fields), true
	}
	if pt, ok := reg.Pointer(t); ok && pt.Pointee != ir.InvalidType {
		if inner, ok := reg.Tile(pt.Pointee); ok {
			return reg.Ptr(inner.Elem, ir.SpaceGlobal), true
		}
	}
	return t, true
}

// unpackTile bridges a blocked tile value to its fragment struct and
// extracts every element.
func (cx *context) unpackTile(b *ir.Builder, fn *ir.Function, v ir.ValueID) ([]ir.ValueID, bool) {
	reg := cx.reg()
	tt, ok := reg.Tile(fn.ValueType(v))
	if !ok {
		return nil, false
	}
	structTy, _ := cx.convertType(fn.ValueType(v))
	st, ok := reg.Struct(structTy)
	if !ok {
		return nil, false
	}
	sv := b.Bridge(v, structTy)
	out := make([]ir.ValueID, len(st.Fields))
	for i := range out {
		out[i] = b.ExtractValue(sv, i, tt.Elem)
	}
	return out, true
}

// packTile packs scalar fragments into a struct and bridges it back to
// the tile type expected by not-yet-rewritten consumers.
func (cx *context) packTile(b *ir.Builder, fn *ir.Function, elems []ir.ValueID, tileTy ir.TypeHandle) ir.ValueID {
	structTy, _ := cx.convertType(tileTy)
	agg := b.Undef(structTy)
	for i, e := range elems {
		agg = b.InsertValue(agg, e, i)
	}
	return b.Bridge(agg, tileTy)
}

// replaceOp rewires every use of the op's single result to repl and
// erases the op.
func (cx *context) replaceOp(fn *ir.Function, id ir.OpID, repl ir.ValueID) {
	op := fn.Op(id)
	fn.ReplaceAllUses(op.Results[0], repl)
	fn.Erase(id)
}

// sharedElemPtr bridges a shared tile value to its element pointer.
func (cx *context) sharedElemPtr(b *ir.Builder, fn *ir.Function, v ir.ValueID) (ir.ValueID, bool) {
	reg := cx.reg()
	tt, ok := reg.Tile(fn.ValueType(v))
	if !ok || !tt.IsShared() {
		return ir.InvalidValue, false
	}
	return b.Bridge(v, reg.Ptr(tt.Elem, ir.SpaceShared)), true
}

// tileOf returns the tile structure of a value's type.
func (cx *context) tileOf(fn *ir.Function, v ir.ValueID) (ir.TileType, bool) {
	return cx.reg().Tile(fn.ValueType(v))
}
