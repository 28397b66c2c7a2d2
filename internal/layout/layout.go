// Package layout computes field offsets, size and alignment for a value,
// reference or global-storage type, and allocates the raw static-storage
// block GLOBAL types get (spec §4.4). It has no dependency on the loader —
// callers describe each field through the FieldType interface, which any
// already-loaded runtime type can satisfy.
package layout

import (
	"unsafe"

	"github.com/rollang/loader/internal/assembly"
)

// PointerSize is the width used for reference-storage fields and for
// Core.Pointer<T>'s own size/alignment. Matches the host's native pointer
// width rather than a fixed cross-platform constant, since this loader has
// no separate target-machine model.
const PointerSize = int(unsafe.Sizeof(uintptr(0)))

// FieldType is the minimal view a field's resolved type must expose for
// layout purposes — satisfied by *loader.RuntimeType without an import
// cycle.
type FieldType interface {
	LayoutSize() int
	LayoutAlignment() int
	LayoutStorage() assembly.StorageMode
}

// FieldSpec is one field awaiting layout, in declaration order.
type FieldSpec struct {
	Name string
	Type FieldType
}

// Field is a laid-out field: its resolved type, byte offset, and storage
// length (pointer-width for reference fields, the type's own size
// otherwise).
type Field struct {
	Name   string
	Type   FieldType
	Offset int
	Length int
}

// Result is the outcome of laying out one type's fields.
type Result struct {
	Fields    []Field
	Size      int
	Alignment int
}

// Layout computes offsets, overall size and overall alignment for fields in
// declaration order: each field's offset is rounded up to its own
// alignment, size accumulates, and total alignment is the max across
// fields. Size is NOT rounded up to a multiple of alignment — trailing
// padding is never added (spec §4.4's invariant note).
func Layout(fields []FieldSpec) Result {
	offset := 0
	align := 1

	out := make([]Field, len(fields))
	for i, f := range fields {
		fieldAlign := f.Type.LayoutAlignment()
		length := f.Type.LayoutSize()
		if f.Type.LayoutStorage() == assembly.Reference {
			fieldAlign = PointerSize
			length = PointerSize
		}
		if fieldAlign < 1 {
			fieldAlign = 1
		}
		offset = roundUp(offset, fieldAlign)
		out[i] = Field{Name: f.Name, Type: f.Type, Offset: offset, Length: length}
		offset += length
		if fieldAlign > align {
			align = fieldAlign
		}
	}

	size := offset
	if size < 1 {
		size = 1
	}
	return Result{Fields: out, Size: size, Alignment: align}
}

func roundUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + (align - rem)
}

// StaticStorage is the raw memory backing a GLOBAL type's single instance.
// Go's allocator already aligns any slice to at least PointerSize, which
// covers every alignment this loader ever computes, so Base is always 0 —
// the size+alignment over-allocation is kept only to match the amount of
// memory spec §4.4 calls for reserving.
type StaticStorage struct {
	raw  []byte
	Base int
}

// AllocateStatic reserves size+alignment raw bytes for a GLOBAL type's
// single instance, per spec §4.4.
func AllocateStatic(size, alignment int) *StaticStorage {
	if alignment < 1 {
		alignment = 1
	}
	if size < 1 {
		size = 1
	}
	return &StaticStorage{raw: make([]byte, size+alignment), Base: 0}
}

// Bytes returns the full backing slice (size+alignment bytes); Base indexes
// into it for the aligned instance view.
func (s *StaticStorage) Bytes() []byte { return s.raw }
