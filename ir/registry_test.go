package ir

import (
	"testing"
)

func TestTypeRegistry_ScalarDeduplication(t *testing.T) {
	reg := NewTypeRegistry()

	f32a := reg.Scalar(ScalarFloat, 32)
	f32b := reg.Scalar(ScalarFloat, 32)

	if f32a != f32b {
		t.Errorf("Expected same handle for identical scalar types, got %d and %d", f32a, f32b)
	}
	if reg.Count() != 1 {
		t.Errorf("Expected 1 type, got %d", reg.Count())
	}
}

func TestTypeRegistry_DifferentScalars(t *testing.T) {
	reg := NewTypeRegistry()

	handles := []TypeHandle{
		reg.Scalar(ScalarFloat, 32),
		reg.Scalar(ScalarInt, 32),
		reg.Scalar(ScalarUint, 32),
		reg.Scalar(ScalarPred, 1),
		reg.Scalar(ScalarFloat, 16),
	}
	for i := 0; i < len(handles); i++ {
		for j := i + 1; j < len(handles); j++ {
			if handles[i] == handles[j] {
				t.Errorf("Expected different handles for different types, got %d == %d", handles[i], handles[j])
			}
		}
	}
	if reg.Count() != 5 {
		t.Errorf("Expected 5 types, got %d", reg.Count())
	}
}

func TestTypeRegistry_PointerDeduplication(t *testing.T) {
	reg := NewTypeRegistry()

	f32 := reg.Scalar(ScalarFloat, 32)
	p1 := reg.Ptr(f32, SpaceGlobal)
	p2 := reg.Ptr(f32, SpaceGlobal)
	p3 := reg.Ptr(f32, SpaceShared)

	if p1 != p2 {
		t.Errorf("Expected same handle for identical pointer types, got %d and %d", p1, p2)
	}
	if p1 == p3 {
		t.Errorf("Expected different handles for different address spaces, got %d == %d", p1, p3)
	}
}

func TestTypeRegistry_TileDeduplication(t *testing.T) {
	reg := NewTypeRegistry()
	f32 := reg.Scalar(ScalarFloat, 32)

	layout := BlockedLayout{
		SizePerThread:  []int64{1},
		ThreadsPerWarp: []int64{32},
		WarpsPerCTA:    []int64{4},
		Order:          []int{0},
	}
	t1 := reg.GetOrCreate("", TileType{Shape: []int64{128}, Elem: f32, Layout: layout})
	t2 := reg.GetOrCreate("", TileType{Shape: []int64{128}, Elem: f32, Layout: layout})
	t3 := reg.GetOrCreate("", TileType{Shape: []int64{64}, Elem: f32, Layout: layout})

	if t1 != t2 {
		t.Errorf("Expected same handle for identical tile types, got %d and %d", t1, t2)
	}
	if t1 == t3 {
		t.Errorf("Expected different handles for different shapes, got %d == %d", t1, t3)
	}
}

func TestTypeRegistry_TileLayoutDistinguishes(t *testing.T) {
	reg := NewTypeRegistry()
	f32 := reg.Scalar(ScalarFloat, 32)

	blocked := TileType{
		Shape: []int64{64},
		Elem:  f32,
		Layout: BlockedLayout{
			SizePerThread:  []int64{2},
			ThreadsPerWarp: []int64{32},
			WarpsPerCTA:    []int64{1},
			Order:          []int{0},
		},
	}
	shared := TileType{
		Shape:  []int64{64},
		Elem:   f32,
		Layout: SharedLayout{Vec: 4, PerPhase: 1, MaxPhase: 1, Order: []int{0}},
	}
	h1 := reg.GetOrCreate("", blocked)
	h2 := reg.GetOrCreate("", shared)
	if h1 == h2 {
		t.Errorf("Expected different handles for different layouts, got %d == %d", h1, h2)
	}

	tt, ok := reg.Tile(h2)
	if !ok {
		t.Fatal("Expected tile lookup to succeed")
	}
	if !tt.IsShared() {
		t.Error("Expected shared layout tile to report IsShared")
	}
}

func TestTileType_ElemsPerThread(t *testing.T) {
	reg := NewTypeRegistry()
	f32 := reg.Scalar(ScalarFloat, 32)

	cases := []struct {
		name  string
		tile  TileType
		elems int64
	}{
		{
			name: "exact fit",
			tile: TileType{
				Shape: []int64{128},
				Elem:  f32,
				Layout: BlockedLayout{
					SizePerThread:  []int64{1},
					ThreadsPerWarp: []int64{32},
					WarpsPerCTA:    []int64{4},
					Order:          []int{0},
				},
			},
			elems: 1,
		},
		{
			name: "replicated",
			tile: TileType{
				Shape: []int64{256},
				Elem:  f32,
				Layout: BlockedLayout{
					SizePerThread:  []int64{2},
					ThreadsPerWarp: []int64{32},
					WarpsPerCTA:    []int64{1},
					Order:          []int{0},
				},
			},
			elems: 8,
		},
		{
			name: "2d",
			tile: TileType{
				Shape: []int64{32, 32},
				Elem:  f32,
				Layout: BlockedLayout{
					SizePerThread:  []int64{1, 2},
					ThreadsPerWarp: []int64{4, 8},
					WarpsPerCTA:    []int64{4, 1},
					Order:          []int{1, 0},
				},
			},
			elems: 8,
		},
	}
	for _, tc := range cases {
		if got := tc.tile.ElemsPerThread(); got != tc.elems {
			t.Errorf("%s: Expected %d elems per thread, got %d", tc.name, tc.elems, got)
		}
	}
}

func TestTypeRegistry_TensorPointer(t *testing.T) {
	reg := NewTypeRegistry()
	f32 := reg.Scalar(ScalarFloat, 32)
	tile := reg.GetOrCreate("", TileType{
		Shape: []int64{16, 16},
		Elem:  f32,
		Layout: BlockedLayout{
			SizePerThread:  []int64{1, 1},
			ThreadsPerWarp: []int64{4, 8},
			WarpsPerCTA:    []int64{4, 1},
			Order:          []int{1, 0},
		},
	})
	desc := reg.Ptr(tile, SpaceGlobal)
	plain := reg.Ptr(f32, SpaceGlobal)

	if !reg.IsTensorPointer(desc) {
		t.Error("Expected pointer-to-tile to be a tensor pointer")
	}
	if reg.IsTensorPointer(plain) {
		t.Error("Expected pointer-to-scalar not to be a tensor pointer")
	}
	if reg.IsPointerTile(desc) {
		t.Error("Expected descriptor not to be a pointer tile")
	}
}
