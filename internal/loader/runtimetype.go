package loader

import "github.com/rollang/loader/internal/assembly"

// typeState is where a RuntimeType sits in the pipeline (spec §3 lifecycle).
type typeState uint8

const (
	stateCreating typeState = iota
	stateLoadingRef
	stateLoadingFields
	statePostLoading
	stateFinished
	stateCommitted
)

// Field is one laid-out field of a RuntimeType.
type Field struct {
	Name   string
	Type   *RuntimeType
	Offset int
	Length int
}

// InterfaceBinding is one interface a type implements, with its
// virtual-function table bound by post-load.
type InterfaceBinding struct {
	Interface *RuntimeType
	VTable    []*RuntimeFunction
}

// RuntimeType is one fully (or partially, mid-pipeline) instantiated
// specialization of a type template.
type RuntimeType struct {
	loader *Loader

	Args LoadingArguments
	// TypeId is assigned when the object is created (pipeline-local,
	// monotonic across the loader's lifetime; committed or not).
	TypeId int

	state typeState

	Storage assembly.StorageMode

	Fields    []Field
	Size      int
	Alignment int

	Base       *RuntimeType
	Interfaces []InterfaceBinding

	Initializer *RuntimeFunction
	Finalizer   *RuntimeFunction

	StaticBase []byte // non-nil only for GLOBAL

	// PointerType is set when this type's Core.Pointer<Self> specialization
	// finishes; at most one assignment is ever made (spec §4.4).
	PointerType *RuntimeType

	// vtable is this type's own public virtual-dispatch table, built in
	// post-load from Base's vtable plus overrides/new slots; consulted when
	// building a derived type's InterfaceBinding/vtable.
	vtable []vtableSlot

	publicFields    map[string]int // name -> index into Fields
	publicFunctions map[string][]*RuntimeFunction
}

type vtableSlot struct {
	name string
	fn   *RuntimeFunction
}

// TypeIdentity satisfies constraint.RuntimeTypeHandle.
func (t *RuntimeType) TypeIdentity() any { return t.TypeId }

// LayoutSize/LayoutAlignment/LayoutStorage satisfy layout.FieldType.
func (t *RuntimeType) LayoutSize() int                    { return t.Size }
func (t *RuntimeType) LayoutAlignment() int                { return t.Alignment }
func (t *RuntimeType) LayoutStorage() assembly.StorageMode { return t.Storage }

// IsBase reports whether b is on t's base chain, reflexively.
func (t *RuntimeType) IsBase(b *RuntimeType) bool {
	for cur := t; cur != nil; cur = cur.Base {
		if cur == b {
			return true
		}
	}
	return false
}

// HasInterface reports whether i is on t's interface set, transitively
// through each interface's own Interfaces (an interface type may itself
// declare interfaces). It looks only at t.Interfaces; it does not go
// through boxing (the INTERFACE constraint's boxing rule lives in
// constraintResolver.HasInterface).
func (t *RuntimeType) HasInterface(i *RuntimeType) bool {
	for _, ib := range t.Interfaces {
		if ib.Interface == i {
			return true
		}
		if ib.Interface.HasInterface(i) {
			return true
		}
	}
	return false
}

// PublicField looks up a field by name.
func (t *RuntimeType) PublicField(name string) (*RuntimeType, int, bool) {
	idx, ok := t.publicFields[name]
	if !ok {
		return nil, 0, false
	}
	return t.Fields[idx].Type, idx, true
}

// PublicFunctions returns every public overload named name.
func (t *RuntimeType) PublicFunctions(name string) []*RuntimeFunction {
	return t.publicFunctions[name]
}
