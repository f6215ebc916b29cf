package ir

// Handle types for referencing IR objects.
type (
	TypeHandle uint32
	FuncHandle uint32
	OpID       uint32
	ValueID    uint32
)

// Invalid handle sentinels.
const (
	InvalidType  TypeHandle = ^TypeHandle(0)
	InvalidFunc  FuncHandle = ^FuncHandle(0)
	InvalidOp    OpID       = ^OpID(0)
	InvalidValue ValueID    = ^ValueID(0)
)

// Module is the top-level container for one compilation unit.
type Module struct {
	Types   *TypeRegistry
	Funcs   []*Function
	Globals []Global
	Attrs   ModuleAttrs
}

// ModuleAttrs carries the module-wide launch configuration.
type ModuleAttrs struct {
	NumWarps       int
	ThreadsPerWarp int
	NumCTAs        int
	WSSupported    bool

	// WarpGroupsPerCTA is an optional multiplier applied to the
	// effective warp count; zero means absent.
	WarpGroupsPerCTA int
}

// EffectiveWarps returns the warp count with the optional warp-group
// multiplier applied.
func (a ModuleAttrs) EffectiveWarps() int {
	if a.WarpGroupsPerCTA > 1 {
		return a.NumWarps * a.WarpGroupsPerCTA
	}
	return a.NumWarps
}

// Global is a module-scope variable declaration.
type Global struct {
	Name  string
	Elem  TypeHandle
	Count int64
	Align int
	Space AddressSpace
}

// NewModule creates an empty module with the given attributes.
func NewModule(attrs ModuleAttrs) *Module {
	return &Module{
		Types: NewTypeRegistry(),
		Attrs: attrs,
	}
}

// AddFunction appends a new empty function with one entry block.
func (m *Module) AddFunction(name string, kernel bool) *Function {
	f := &Function{
		Name:   name,
		Kernel: kernel,
		Attrs:  FuncAttrs{AllocOffset: -1},
		mod:    m,
	}
	f.AddBlock()
	m.Funcs = append(m.Funcs, f)
	return f
}

// Function finds a function by name, or nil.
func (m *Module) Function(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddGlobal appends a global declaration and returns it.
func (m *Module) AddGlobal(g Global) *Global {
	m.Globals = append(m.Globals, g)
	return &m.Globals[len(m.Globals)-1]
}

// GlobalByName finds a global by name, or nil.
func (m *Module) GlobalByName(name string) *Global {
	for i := range m.Globals {
		if m.Globals[i].Name == name {
			return &m.Globals[i]
		}
	}
	return nil
}

// FuncAttrs holds the typed function attributes attached during
// lowering. AllocOffset is the function's static shared-memory offset;
// -1 means no offset has been assigned.
type FuncAttrs struct {
	MaxThreadsPerBlock int
	MaxWorkGroupSize   [3]int
	ReqdSubGroupSize   int
	Noinline           bool
	AllocOffset        int64
	ArgAttrs           []ArgAttrs
}

// ArgAttrs holds per-argument attributes. ByVal is caller-only and is
// stripped before attributes are copied onto amended signatures.
type ArgAttrs struct {
	NoAlias  bool
	ReadOnly bool
	ByVal    bool
}

// Function is a named unit with a body of basic blocks over op and
// value arenas.
type Function struct {
	Name        string
	Kernel      bool
	Params      []ValueID
	ResultTypes []TypeHandle
	Attrs       FuncAttrs
	Blocks      []*Block

	mod    *Module
	ops    []Op
	values []valueDef
}

// Block is an ordered list of operations.
type Block struct {
	Ops []OpID
}

// valueDef records the producer of a value. A parameter has op set to
// InvalidOp and index set to its parameter position.
type valueDef struct {
	op    OpID
	index int
	typ   TypeHandle
}

// Module returns the owning module.
func (f *Function) Module() *Module { return f.mod }

// AddBlock appends a new empty block.
func (f *Function) AddBlock() *Block {
	b := &Block{}
	f.Blocks = append(f.Blocks, b)
	return b
}

// EntryBlock returns the function's first block.
func (f *Function) EntryBlock() *Block { return f.Blocks[0] }

// AddParam appends a function parameter of the given type and returns
// its value.
func (f *Function) AddParam(t TypeHandle) ValueID {
	v := f.newValue(valueDef{op: InvalidOp, index: len(f.Params), typ: t})
	f.Params = append(f.Params, v)
	f.Attrs.ArgAttrs = append(f.Attrs.ArgAttrs, ArgAttrs{})
	return v
}

func (f *Function) newValue(def valueDef) ValueID {
	f.values = append(f.values, def)
	return ValueID(len(f.values) - 1)
}

// Op returns the operation with the given id.
func (f *Function) Op(id OpID) *Op { return &f.ops[id] }

// NumOps returns the arena size, including dead slots.
func (f *Function) NumOps() int { return len(f.ops) }

// ValueType returns the type of a value.
func (f *Function) ValueType(v ValueID) TypeHandle { return f.values[v].typ }

// Def returns the operation producing v, or false if v is a parameter.
func (f *Function) Def(v ValueID) (OpID, bool) {
	d := f.values[v]
	if d.op == InvalidOp {
		return InvalidOp, false
	}
	return d.op, true
}

// ParamIndex returns the parameter position of v, or false if v is an
// operation result.
func (f *Function) ParamIndex(v ValueID) (int, bool) {
	d := f.values[v]
	if d.op != InvalidOp {
		return 0, false
	}
	return d.index, true
}

// ResultIndex returns which result of its producer v is.
func (f *Function) ResultIndex(v ValueID) int { return f.values[v].index }

// ReplaceAllUses rewrites every live operand referring to old so that
// it refers to new instead.
func (f *Function) ReplaceAllUses(old, new ValueID) {
	for i := range f.ops {
		op := &f.ops[i]
		if op.dead {
			continue
		}
		for j, a := range op.Args {
			if a == old {
				op.Args[j] = new
			}
		}
	}
}

// NumUses counts live operands referring to v.
func (f *Function) NumUses(v ValueID) int {
	n := 0
	for i := range f.ops {
		op := &f.ops[i]
		if op.dead {
			continue
		}
		for _, a := range op.Args {
			if a == v {
				n++
			}
		}
	}
	return n
}

// Erase flags the operation dead and unlinks it from its block. The
// arena slot is retained so outstanding handles stay valid.
func (f *Function) Erase(id OpID) {
	op := &f.ops[id]
	if op.dead {
		return
	}
	op.dead = true
	if op.block != nil {
		op.block.remove(id)
		op.block = nil
	}
}

// BlockOf returns the block currently containing id, or nil for a dead
// operation.
func (f *Function) BlockOf(id OpID) *Block { return f.ops[id].block }

func (b *Block) remove(id OpID) {
	for i, o := range b.Ops {
		if o == id {
			b.Ops = append(b.Ops[:i], b.Ops[i+1:]...)
			return
		}
	}
}

func (b *Block) indexOf(id OpID) int {
	for i, o := range b.Ops {
		if o == id {
			return i
		}
	}
	return -1
}
