package ir

import (
	"fmt"
	"strconv"
)

// TypeRegistry deduplicates types structurally so that handle equality
// is type equality, which rewrite rules rely on when bridging values
// between dialects.
type TypeRegistry struct {
	types   []Type
	typeMap map[string]TypeHandle
	keyBuf  []byte // reusable buffer for building type keys
}

// NewTypeRegistry creates a new type registry for deduplication.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:   make([]Type, 0, 16),
		typeMap: make(map[string]TypeHandle, 16),
		keyBuf:  make([]byte, 0, 64),
	}
}

// GetOrCreate returns an existing handle for the type if it exists,
// or creates a new one if it's unique.
func (r *TypeRegistry) GetOrCreate(name string, inner TypeInner) TypeHandle {
	key := r.normalizeType(inner)

	if handle, exists := r.typeMap[key]; exists {
		return handle
	}

	handle := TypeHandle(len(r.types))
	r.types = append(r.types, Type{
		Name:  name,
		Inner: inner,
	})
	r.typeMap[key] = handle

	return handle
}

// Scalar interns a scalar type.
func (r *TypeRegistry) Scalar(kind ScalarKind, bits uint16) TypeHandle {
	return r.GetOrCreate("", ScalarType{Kind: kind, Bits: bits})
}

// Ptr interns a pointer type.
func (r *TypeRegistry) Ptr(pointee TypeHandle, space AddressSpace) TypeHandle {
	return r.GetOrCreate("", PointerType{Pointee: pointee, Space: space})
}

// StructOf interns a struct type over the given fields.
func (r *TypeRegistry) StructOf(fields []TypeHandle) TypeHandle {
	return r.GetOrCreate("", StructType{Fields: fields})
}

// Void interns the void type.
func (r *TypeRegistry) Void() TypeHandle {
	return r.GetOrCreate("", VoidType{})
}

// Lookup finds a type by its handle.
func (r *TypeRegistry) Lookup(handle TypeHandle) (Type, bool) {
	if int(handle) >= len(r.types) {
		return Type{}, false
	}
	return r.types[handle], true
}

// Count returns the number of unique types registered.
func (r *TypeRegistry) Count() int {
	return len(r.types)
}

// normalizeType creates a unique key for a type based on its structure.
// Two structurally identical types produce the same key. Uses a
// reusable byte buffer to avoid fmt.Sprintf allocations for common
// types.
func (r *TypeRegistry) normalizeType(inner TypeInner) string {
	b := r.keyBuf[:0]

	switch t := inner.(type) {
	case VoidType:
		return "void"

	case ScalarType:
		b = append(b, "scalar:"...)
		b = strconv.AppendInt(b, int64(t.Kind), 10)
		b = append(b, ':')
		b = strconv.AppendUint(b, uint64(t.Bits), 10)
		r.keyBuf = b
		return string(b)

	case PointerType:
		b = append(b, "ptr:"...)
		b = strconv.AppendInt(b, int64(int32(t.Pointee)), 10)
		b = append(b, ':')
		b = strconv.AppendInt(b, int64(t.Space), 10)
		r.keyBuf = b
		return string(b)

	case ArrayType:
		b = append(b, "array:"...)
		b = strconv.AppendInt(b, int64(t.Elem), 10)
		b = append(b, ':')
		b = strconv.AppendInt(b, t.Count, 10)
		r.keyBuf = b
		return string(b)

	case StructType:
		b = append(b, "struct"...)
		for _, f := range t.Fields {
			b = append(b, ':')
			b = strconv.AppendInt(b, int64(f), 10)
		}
		r.keyBuf = b
		return string(b)

	case TileType:
		// Tiles carry layouts; they are rare enough that Sprintf is
		// acceptable.
		return fmt.Sprintf("tile:%v:%d:%s", t.Shape, t.Elem, layoutKey(t.Layout))

	default:
		return fmt.Sprintf("unknown:%T", inner)
	}
}

func layoutKey(l Layout) string {
	switch l := l.(type) {
	case BlockedLayout:
		return fmt.Sprintf("blocked:%v:%v:%v:%v", l.SizePerThread, l.ThreadsPerWarp, l.WarpsPerCTA, l.Order)
	case SharedLayout:
		return fmt.Sprintf("shared:%d:%d:%d:%v", l.Vec, l.PerPhase, l.MaxPhase, l.Order)
	case nil:
		return "none"
	default:
		return fmt.Sprintf("unknown:%T", l)
	}
}
