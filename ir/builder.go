package ir

// Builder appends operations to a function at a movable insertion
// point. It records every operation it creates so rewrite drivers can
// feed new work back into their worklist.
type Builder struct {
	fn      *Function
	blk     *Block
	pos     int
	created []OpID
}

// NewBuilder returns a builder positioned at the end of the entry
// block.
func NewBuilder(fn *Function) *Builder {
	b := &Builder{fn: fn}
	b.SetInsertAtEnd(fn.EntryBlock())
	return b
}

// Func returns the function being built.
func (b *Builder) Func() *Function { return b.fn }

// SetInsertAtEnd positions the builder after the last op of blk.
func (b *Builder) SetInsertAtEnd(blk *Block) {
	b.blk = blk
	b.pos = len(blk.Ops)
}

// SetInsertAtStart positions the builder before the first op of blk.
func (b *Builder) SetInsertAtStart(blk *Block) {
	b.blk = blk
	b.pos = 0
}

// SetInsertBefore positions the builder immediately before id.
func (b *Builder) SetInsertBefore(id OpID) {
	blk := b.fn.BlockOf(id)
	b.blk = blk
	b.pos = blk.indexOf(id)
}

// SetInsertAfter positions the builder immediately after id.
func (b *Builder) SetInsertAfter(id OpID) {
	blk := b.fn.BlockOf(id)
	b.blk = blk
	b.pos = blk.indexOf(id) + 1
}

// TakeCreated returns the ops created since the last call and resets
// the record.
func (b *Builder) TakeCreated() []OpID {
	out := b.created
	b.created = nil
	return out
}

// Emit appends an operation with one result per entry of resultTypes
// and returns its id.
func (b *Builder) Emit(kind OpKind, resultTypes []TypeHandle, args ...ValueID) OpID {
	fn := b.fn
	id := OpID(len(fn.ops))
	fn.ops = append(fn.ops, Op{
		Kind:  kind,
		Args:  args,
		block: b.blk,
	})
	op := &fn.ops[id]
	for i, t := range resultTypes {
		v := fn.newValue(valueDef{op: id, index: i, typ: t})
		op.Results = append(op.Results, v)
	}
	b.blk.Ops = append(b.blk.Ops, InvalidOp)
	copy(b.blk.Ops[b.pos+1:], b.blk.Ops[b.pos:])
	b.blk.Ops[b.pos] = id
	b.pos++
	b.created = append(b.created, id)
	return id
}

// Emit1 appends a single-result operation and returns the op and its
// result value.
func (b *Builder) Emit1(kind OpKind, resultType TypeHandle, args ...ValueID) (OpID, ValueID) {
	id := b.Emit(kind, []TypeHandle{resultType}, args...)
	return id, b.fn.Op(id).Results[0]
}

// Emit0 appends a zero-result operation.
func (b *Builder) Emit0(kind OpKind, args ...ValueID) OpID {
	return b.Emit(kind, nil, args...)
}

func (b *Builder) reg() *TypeRegistry { return b.fn.mod.Types }

// ConstInt emits an integer constant of type t.
func (b *Builder) ConstInt(t TypeHandle, v int64) ValueID {
	id, res := b.Emit1(LLConstInt, t)
	b.fn.Op(id).IntVal = v
	return res
}

// ConstFloat emits a floating-point constant of type t.
func (b *Builder) ConstFloat(t TypeHandle, v float64) ValueID {
	id, res := b.Emit1(LLConstFloat, t)
	b.fn.Op(id).FloatVal = v
	return res
}

// I32 emits an i32 constant.
func (b *Builder) I32(v int64) ValueID {
	return b.ConstInt(b.reg().Scalar(ScalarInt, 32), v)
}

// Undef emits an undefined value of type t.
func (b *Builder) Undef(t TypeHandle) ValueID {
	_, res := b.Emit1(LLUndef, t)
	return res
}

// InsertValue emits a field insertion into an aggregate.
func (b *Builder) InsertValue(agg, elem ValueID, index int) ValueID {
	id, res := b.Emit1(LLInsertValue, b.fn.ValueType(agg), agg, elem)
	b.fn.Op(id).IntVal = int64(index)
	return res
}

// ExtractValue emits a field extraction from an aggregate.
func (b *Builder) ExtractValue(agg ValueID, index int, t TypeHandle) ValueID {
	id, res := b.Emit1(LLExtractValue, t, agg)
	b.fn.Op(id).IntVal = int64(index)
	return res
}

// GEP emits pointer arithmetic in units of elem.
func (b *Builder) GEP(ptr ValueID, elem TypeHandle, offset ValueID) ValueID {
	id, res := b.Emit1(LLGEP, b.fn.ValueType(ptr), ptr, offset)
	b.fn.Op(id).TypeArg = elem
	return res
}

// Binary emits a two-operand op whose result type matches the first
// operand.
func (b *Builder) Binary(kind OpKind, x, y ValueID) ValueID {
	_, res := b.Emit1(kind, b.fn.ValueType(x), x, y)
	return res
}

// Cmp emits a predicate-producing comparison.
func (b *Builder) Cmp(pred int64, x, y ValueID) ValueID {
	id, res := b.Emit1(LLCmp, b.reg().Scalar(ScalarPred, 1), x, y)
	b.fn.Op(id).IntVal = pred
	return res
}

// Select emits cond ? x : y.
func (b *Builder) Select(cond, x, y ValueID) ValueID {
	_, res := b.Emit1(LLSelect, b.fn.ValueType(x), cond, x, y)
	return res
}

// Load emits a vectorized load of width vec elements.
func (b *Builder) Load(ptr ValueID, t TypeHandle, vec int64) ValueID {
	id, res := b.Emit1(LLLoad, t, ptr)
	b.fn.Op(id).IntVal = vec
	return res
}

// Store emits a store, optionally predicated.
func (b *Builder) Store(ptr, val ValueID, pred ValueID) OpID {
	if pred == InvalidValue {
		return b.Emit0(LLStore, ptr, val)
	}
	return b.Emit0(LLStore, ptr, val, pred)
}

// Call emits a call to a named symbol with at most one result. Pass
// InvalidType for a void call.
func (b *Builder) Call(sym string, result TypeHandle, args ...ValueID) (OpID, ValueID) {
	if result == InvalidType {
		id := b.Emit0(LLCall, args...)
		b.fn.Op(id).Sym = sym
		return id, InvalidValue
	}
	id, res := b.Emit1(LLCall, result, args...)
	b.fn.Op(id).Sym = sym
	return id, res
}

// AddrOf emits the address of a module global.
func (b *Builder) AddrOf(sym string, t TypeHandle) ValueID {
	id, res := b.Emit1(LLAddrOf, t)
	b.fn.Op(id).Sym = sym
	return res
}

// Bridge emits an always-legal cast of v to type t. Casts that cancel
// out are folded instead of emitted.
func (b *Builder) Bridge(v ValueID, t TypeHandle) ValueID {
	if b.fn.ValueType(v) == t {
		return v
	}
	if def, ok := b.fn.Def(v); ok {
		op := b.fn.Op(def)
		if op.Kind == OpBridge && b.fn.ValueType(op.Args[0]) == t {
			return op.Args[0]
		}
	}
	_, res := b.Emit1(OpBridge, t, v)
	return res
}
