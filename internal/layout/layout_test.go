package layout

import (
	"testing"

	"github.com/rollang/loader/internal/assembly"
)

type fakeType struct {
	size, align int
	storage     assembly.StorageMode
}

func (f fakeType) LayoutSize() int                        { return f.size }
func (f fakeType) LayoutAlignment() int                    { return f.align }
func (f fakeType) LayoutStorage() assembly.StorageMode     { return f.storage }

func i32() fakeType { return fakeType{size: 4, align: 4, storage: assembly.Value} }
func i64() fakeType { return fakeType{size: 8, align: 8, storage: assembly.Value} }
func u8() fakeType  { return fakeType{size: 1, align: 1, storage: assembly.Value} }

func TestLayoutPair(t *testing.T) {
	r := Layout([]FieldSpec{
		{Name: "a", Type: i32()},
		{Name: "b", Type: i64()},
	})
	if r.Fields[0].Offset != 0 || r.Fields[1].Offset != 8 {
		t.Fatalf("got offsets %d,%d want 0,8", r.Fields[0].Offset, r.Fields[1].Offset)
	}
	if r.Size != 16 {
		t.Errorf("got size %d, want 16", r.Size)
	}
	if r.Alignment != 8 {
		t.Errorf("got alignment %d, want 8", r.Alignment)
	}
}

func TestLayoutU8I32U8(t *testing.T) {
	r := Layout([]FieldSpec{
		{Name: "a", Type: u8()},
		{Name: "b", Type: i32()},
		{Name: "c", Type: u8()},
	})
	wantOffsets := []int{0, 4, 8}
	for i, f := range r.Fields {
		if f.Offset != wantOffsets[i] {
			t.Errorf("field %d offset = %d, want %d", i, f.Offset, wantOffsets[i])
		}
	}
	if r.Size != 9 {
		t.Errorf("got size %d, want 9 (no trailing padding)", r.Size)
	}
	if r.Alignment != 4 {
		t.Errorf("got alignment %d, want 4", r.Alignment)
	}
}

func TestLayoutReferenceFieldIsPointerWidth(t *testing.T) {
	ref := fakeType{size: 999, align: 999, storage: assembly.Reference}
	r := Layout([]FieldSpec{{Name: "next", Type: ref}})
	if r.Fields[0].Length != PointerSize {
		t.Errorf("got length %d, want %d", r.Fields[0].Length, PointerSize)
	}
	if r.Alignment != PointerSize {
		t.Errorf("got alignment %d, want %d", r.Alignment, PointerSize)
	}
}

func TestLayoutEmptyFieldsMinimumSize(t *testing.T) {
	r := Layout(nil)
	if r.Size != 1 {
		t.Errorf("got size %d, want 1", r.Size)
	}
	if r.Alignment != 1 {
		t.Errorf("got alignment %d, want 1", r.Alignment)
	}
}

func TestAllocateStatic(t *testing.T) {
	s := AllocateStatic(16, 8)
	if len(s.Bytes()) != 24 {
		t.Errorf("got %d bytes, want 24", len(s.Bytes()))
	}
}
