package constraint

import (
	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/errs"
)

// Cache is one node of the sub-cache tree built while checking a
// constraint: the constraint being checked, its (possibly still symbolic)
// target and arguments, the resolved trait for trait-kind constraints, and
// one child Cache per sub-constraint of that trait.
type Cache struct {
	Root *Root

	Spec   ConstraintSpec
	Target Type
	Args   []Type

	parent *Cache

	// Trait-only fields.
	trait    TraitHandle
	reqs     TraitRequirements
	fields   []boundField
	funcs    []boundFunction
	children []*Cache
}

type boundField struct {
	req   TraitFieldReq
	index int
}

type boundFunction struct {
	req        TraitFunctionReq
	candidates []OverloadCandidate
	cursor     int
}

// NewCache builds the cache node for spec, binding its target/arguments as
// fresh symbolic Types derived from already-bound caller arguments. parent
// is nil for a top-level constraint.
func NewCache(root *Root, spec ConstraintSpec, parent *Cache) *Cache {
	return &Cache{Root: root, Spec: spec, Target: spec.Target, Args: spec.Arguments, parent: parent}
}

// circular walks the parent chain looking for a Cache whose (trait,
// argument-list) identity matches c's — a trait requiring itself
// (directly or through a chain of other traits) is CircularConstraint
// rather than infinite recursion.
func (c *Cache) circular(traitRef GenericRef, args []Type) bool {
	for p := c.parent; p != nil; p = p.parent {
		if p.Spec.Trait == traitRef && sameTypeList(p.Args, args) {
			return true
		}
	}
	return false
}

func sameTypeList(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameSymbolicType(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameSymbolicType is the cache-equality comparison (spec: "type-wise
// AreConstraintTypesEqual"): structural equality over the symbolic
// representation, not full unification.
func sameSymbolicType(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case RT:
		return a.RT != nil && b.RT != nil && a.RT.TypeIdentity() == b.RT.TypeIdentity()
	case Any:
		return a.AnyIndex == b.AnyIndex
	case Generic:
		if a.Ref != b.Ref || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !sameTypeList(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case Subtype:
		if a.SubtypeName != b.SubtypeName {
			return false
		}
		if (a.Parent == nil) != (b.Parent == nil) {
			return false
		}
		if a.Parent != nil && !sameSymbolicType(*a.Parent, *b.Parent) {
			return false
		}
		if len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !sameTypeList(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	default:
		return true // Fail/Empty carry no payload
	}
}

// buildTraitChildren resolves spec's trait, binds its requirements, and
// recursively builds one child Cache per sub-constraint — failing with
// CircularConstraint if any ancestor already checks the same
// (trait, args) pair.
func buildTraitChildren(r Resolver, c *Cache) error {
	if c.circular(c.Spec.Trait, c.Args) {
		return errs.New(errs.CircularConstraint, "trait %v required by itself", c.Spec.Trait)
	}
	trait, err := r.Trait(c.Spec.SourceAssembly, c.Spec.Trait)
	if err != nil {
		return err
	}
	c.trait = trait

	self := c.Target
	reqs, err := r.TraitRequirements(c.Root, trait, self, [][]Type{c.Args})
	if err != nil {
		return err
	}
	c.reqs = reqs

	c.fields = make([]boundField, len(reqs.Fields))
	for i, f := range reqs.Fields {
		c.fields[i] = boundField{req: f, index: -1}
	}
	c.funcs = make([]boundFunction, len(reqs.Functions))
	for i, f := range reqs.Functions {
		c.funcs[i] = boundFunction{req: f}
	}

	c.children = make([]*Cache, len(reqs.SubConstraints))
	for i, sub := range reqs.SubConstraints {
		child := NewCache(c.Root, sub, c)
		if sub.Kind == assembly.ConstraintTrait {
			if err := buildTraitChildren(r, child); err != nil {
				return err
			}
		}
		c.children[i] = child
	}
	return nil
}
