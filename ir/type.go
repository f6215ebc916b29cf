package ir

// TypeInner represents the inner type kind.
type TypeInner interface {
	typeInner()
}

// Type pairs an optional name with its structure.
type Type struct {
	Name  string
	Inner TypeInner
}

// VoidType is the empty result type.
type VoidType struct{}

func (VoidType) typeInner() {}

// ScalarKind represents scalar type kinds.
type ScalarKind uint8

const (
	ScalarInt   ScalarKind = iota // Signed integer
	ScalarUint                    // Unsigned integer
	ScalarFloat                   // Floating point
	ScalarPred                    // 1-bit predicate
)

// ScalarType represents scalar register types.
type ScalarType struct {
	Kind ScalarKind
	Bits uint16
}

func (ScalarType) typeInner() {}

// AddressSpace represents memory address spaces, numbered the way the
// NVVM backend numbers them.
type AddressSpace uint8

const (
	SpaceGeneric AddressSpace = 0
	SpaceGlobal  AddressSpace = 1
	SpaceShared  AddressSpace = 3
)

// PointerType represents raw pointers.
type PointerType struct {
	Pointee TypeHandle // InvalidType for opaque pointers
	Space   AddressSpace
}

func (PointerType) typeInner() {}

// TileType represents a multi-dimensional value distributed across
// the parallel execution units according to its layout.
type TileType struct {
	Shape  []int64
	Elem   TypeHandle
	Layout Layout
}

func (TileType) typeInner() {}

// StructType represents an aggregate of fields, used for packed
// multi-value returns and lowered register fragments.
type StructType struct {
	Fields []TypeHandle
}

func (StructType) typeInner() {}

// ArrayType represents fixed-length arrays, used for the shared-memory
// global declaration.
type ArrayType struct {
	Elem  TypeHandle
	Count int64
}

func (ArrayType) typeInner() {}

// Layout describes how a tile's elements are distributed.
type Layout interface {
	layout()
}

// BlockedLayout distributes elements across registers, threads and
// warps, dimension by dimension.
type BlockedLayout struct {
	SizePerThread  []int64
	ThreadsPerWarp []int64
	WarpsPerCTA    []int64
	Order          []int
}

func (BlockedLayout) layout() {}

// SharedLayout places a tile in the shared-memory arena. Vec is the
// native vector width of the layout in elements.
type SharedLayout struct {
	Vec      int64
	PerPhase int64
	MaxPhase int64
	Order    []int
}

func (SharedLayout) layout() {}

// NumElements returns the product of a shape.
func NumElements(shape []int64) int64 {
	n := int64(1)
	for _, s := range shape {
		n *= s
	}
	return n
}

// ElemsPerThread returns how many elements of a blocked tile each
// thread owns: per dimension, ceil(shape/(sizePerThread*threads*warps))
// replicated back up by sizePerThread.
func (t TileType) ElemsPerThread() int64 {
	bl, ok := t.Layout.(BlockedLayout)
	if !ok {
		return NumElements(t.Shape)
	}
	n := int64(1)
	for d, s := range t.Shape {
		per := bl.SizePerThread[d]
		span := per * bl.ThreadsPerWarp[d] * bl.WarpsPerCTA[d]
		reps := (s + span - 1) / span
		n *= reps * per
	}
	return n
}

// IsShared reports whether the tile lives in shared memory.
func (t TileType) IsShared() bool {
	_, ok := t.Layout.(SharedLayout)
	return ok
}

// Tile returns the tile structure of t, if t is a tile type.
func (r *TypeRegistry) Tile(t TypeHandle) (TileType, bool) {
	typ, ok := r.Lookup(t)
	if !ok {
		return TileType{}, false
	}
	tt, ok := typ.Inner.(TileType)
	return tt, ok
}

// Pointer returns the pointer structure of t, if t is a pointer type.
func (r *TypeRegistry) Pointer(t TypeHandle) (PointerType, bool) {
	typ, ok := r.Lookup(t)
	if !ok {
		return PointerType{}, false
	}
	pt, ok := typ.Inner.(PointerType)
	return pt, ok
}

// Struct returns the struct structure of t, if t is a struct type.
func (r *TypeRegistry) Struct(t TypeHandle) (StructType, bool) {
	typ, ok := r.Lookup(t)
	if !ok {
		return StructType{}, false
	}
	st, ok := typ.Inner.(StructType)
	return st, ok
}

// IsTensorPointer reports whether t is a scalar pointer whose pointee
// is a tile, the descriptor produced by make-tensor-ptr.
func (r *TypeRegistry) IsTensorPointer(t TypeHandle) bool {
	pt, ok := r.Pointer(t)
	if !ok || pt.Pointee == InvalidType {
		return false
	}
	_, ok = r.Tile(pt.Pointee)
	return ok
}

// IsPointerTile reports whether t is a tile whose elements are
// pointers.
func (r *TypeRegistry) IsPointerTile(t TypeHandle) bool {
	tt, ok := r.Tile(t)
	if !ok {
		return false
	}
	_, ok = r.Pointer(tt.Elem)
	return ok
}

// ScalarBits returns the bit width of a scalar type, or 0.
func (r *TypeRegistry) ScalarBits(t TypeHandle) int64 {
	typ, ok := r.Lookup(t)
	if !ok {
		return 0
	}
	if st, ok := typ.Inner.(ScalarType); ok {
		return int64(st.Bits)
	}
	return 0
}
