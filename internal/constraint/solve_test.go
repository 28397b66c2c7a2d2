package constraint

import (
	"testing"

	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/errs"
)

// fakeHandle is a trivial RuntimeTypeHandle for tests: identity is just a
// string name.
type fakeHandle string

func (f fakeHandle) TypeIdentity() any { return string(f) }

// fakeResolver implements Resolver over a tiny fixed universe: types
// "i32", "i64" with i32 a base of nothing, i64 "implements" interface "Eq",
// and a trait "Comparable" requiring a function "Cmp".
type fakeResolver struct {
	bases      map[fakeHandle]fakeHandle
	interfaces map[fakeHandle][]fakeHandle
	fields     map[fakeHandle]map[string]fakeHandle
	functions  map[fakeHandle]map[string]FuncSig
}

func (f *fakeResolver) LoadType(ref GenericRef, args [][]RuntimeTypeHandle) (RuntimeTypeHandle, error) {
	return fakeHandle(ref.AssemblyName), nil
}

func (f *fakeResolver) LoadSubtype(name string, parent RuntimeTypeHandle, args [][]RuntimeTypeHandle) (RuntimeTypeHandle, error) {
	return fakeHandle(name), nil
}

func (f *fakeResolver) SameType(a, b RuntimeTypeHandle) bool {
	return a != nil && b != nil && a.TypeIdentity() == b.TypeIdentity()
}

func (f *fakeResolver) IsBase(a, b RuntimeTypeHandle) bool {
	if f.SameType(a, b) {
		return true
	}
	ah, _ := a.(fakeHandle)
	bh, _ := b.(fakeHandle)
	for cur := ah; ; {
		base, ok := f.bases[cur]
		if !ok {
			return false
		}
		if base == bh {
			return true
		}
		cur = base
	}
}

func (f *fakeResolver) HasInterface(t, i RuntimeTypeHandle) bool {
	th, _ := t.(fakeHandle)
	ih, _ := i.(fakeHandle)
	for _, iface := range f.interfaces[th] {
		if iface == ih {
			return true
		}
	}
	return false
}

func (f *fakeResolver) Trait(assemblyName string, ref GenericRef) (TraitHandle, error) {
	return ref.TemplateID, nil
}

func (f *fakeResolver) TraitRequirements(root *Root, t TraitHandle, selfArg Type, args [][]Type) (TraitRequirements, error) {
	return TraitRequirements{
		Functions: []TraitFunctionReq{{Name: "Cmp", Expected: FuncSig{}}},
	}, nil
}

func (f *fakeResolver) PublicField(t RuntimeTypeHandle, name string) (RuntimeTypeHandle, int, bool) {
	th, _ := t.(fakeHandle)
	fields := f.fields[th]
	if fields == nil {
		return nil, 0, false
	}
	v, ok := fields[name]
	return v, 0, ok
}

func (f *fakeResolver) FunctionCandidates(t RuntimeTypeHandle, name string, want FuncSig) []OverloadCandidate {
	th, _ := t.(fakeHandle)
	if _, ok := f.functions[th][name]; !ok {
		return nil
	}
	return []OverloadCandidate{{ID: name, VirtualSlot: -1}}
}

func (f *fakeResolver) StorageOf(t RuntimeTypeHandle) assembly.StorageMode { return assembly.Value }

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		bases:      map[fakeHandle]fakeHandle{"Derived": "Base"},
		interfaces: map[fakeHandle][]fakeHandle{"i64": {"Eq"}},
		fields:     map[fakeHandle]map[string]fakeHandle{},
		functions:  map[fakeHandle]map[string]FuncSig{"i64": {"Cmp": {}}},
	}
}

func TestCheckSame(t *testing.T) {
	r := newFakeResolver()
	spec := ConstraintSpec{Kind: assembly.ConstraintSame, Target: RTType(fakeHandle("i32")), Arguments: []Type{RTType(fakeHandle("i32"))}}
	root := &Root{}
	c := NewCache(root, spec, nil)
	if err := CheckConstraintCached(r, c); err != nil {
		t.Fatal(err)
	}
}

func TestCheckSameFails(t *testing.T) {
	r := newFakeResolver()
	spec := ConstraintSpec{Kind: assembly.ConstraintSame, Target: RTType(fakeHandle("i32")), Arguments: []Type{RTType(fakeHandle("i64"))}}
	root := &Root{}
	c := NewCache(root, spec, nil)
	err := CheckConstraintCached(r, c)
	if !errs.Is(err, errs.ConstraintCheckFailure) {
		t.Fatalf("got %v, want ConstraintCheckFailure", err)
	}
}

func TestCheckBase(t *testing.T) {
	r := newFakeResolver()
	spec := ConstraintSpec{Kind: assembly.ConstraintBase, Target: RTType(fakeHandle("Derived")), Arguments: []Type{RTType(fakeHandle("Base"))}}
	root := &Root{}
	c := NewCache(root, spec, nil)
	if err := CheckConstraintCached(r, c); err != nil {
		t.Fatal(err)
	}
}

func TestCheckInterface(t *testing.T) {
	r := newFakeResolver()
	spec := ConstraintSpec{Kind: assembly.ConstraintInterface, Target: RTType(fakeHandle("i64")), Arguments: []Type{RTType(fakeHandle("Eq"))}}
	root := &Root{}
	c := NewCache(root, spec, nil)
	if err := CheckConstraintCached(r, c); err != nil {
		t.Fatal(err)
	}
}

func TestCheckExistDeterminesAny(t *testing.T) {
	r := newFakeResolver()
	root := &Root{}
	v := root.NewVar()
	root.DeductRT(v.AnyIndex, fakeHandle("i32"))
	spec := ConstraintSpec{Kind: assembly.ConstraintExist, Target: v}
	c := NewCache(root, spec, nil)
	if err := CheckConstraintCached(r, c); err != nil {
		t.Fatal(err)
	}
}

func TestCheckTraitFunctionFound(t *testing.T) {
	r := newFakeResolver()
	spec := ConstraintSpec{
		Kind:   assembly.ConstraintTrait,
		Target: RTType(fakeHandle("i64")),
		Trait:  GenericRef{AssemblyName: "Core", TemplateID: 1},
	}
	root := &Root{}
	c := NewCache(root, spec, nil)
	if err := CheckConstraintCached(r, c); err != nil {
		t.Fatal(err)
	}
}

func TestCheckTraitFunctionMissingFails(t *testing.T) {
	r := newFakeResolver()
	spec := ConstraintSpec{
		Kind:   assembly.ConstraintTrait,
		Target: RTType(fakeHandle("i32")), // i32 has no Cmp function registered
		Trait:  GenericRef{AssemblyName: "Core", TemplateID: 1},
	}
	root := &Root{}
	c := NewCache(root, spec, nil)
	err := CheckConstraintCached(r, c)
	if !errs.Is(err, errs.ConstraintCheckFailure) {
		t.Fatalf("got %v, want ConstraintCheckFailure", err)
	}
}

func TestBacktrackUndoesDeductions(t *testing.T) {
	root := &Root{}
	v := root.NewVar()
	level := root.StartBacktrackPoint()
	root.DeductRT(v.AnyIndex, fakeHandle("i32"))
	if root.Determined(v.AnyIndex) == nil {
		t.Fatal("expected variable to be bound")
	}
	root.DoBacktrack(level)
	if root.Determined(v.AnyIndex) != nil {
		t.Fatal("expected backtrack to undo binding")
	}
}
