package constraint

import "github.com/rollang/loader/internal/assembly"

// FuncSig is the quick-match signature of one candidate function: enough to
// run the trait resolver's cheap "possibly-equal" filter before committing
// to a full type-equality check once every symbolic type is simplified.
type FuncSig struct {
	// ID is opaque to this package: the loader hands it back unchanged in
	// OverloadCandidate.ID so it can look the real function back up.
	ID         any
	ReturnType Type
	Parameters []Type
}

// OverloadCandidate is one function this package considers as satisfying a
// trait's function requirement, as returned by Resolver.FunctionCandidates.
type OverloadCandidate struct {
	ID   any
	Sig  FuncSig
	// VirtualSlot, when >= 0, means this candidate is bound through an
	// interface's virtual table rather than directly on the target type.
	VirtualSlot int
}

// Resolver is the seam between the constraint solver and the loader: every
// operation that needs to inspect or instantiate an actual type, function
// or trait goes through it.
type Resolver interface {
	// LoadType instantiates (or fetches from cache) the type named by ref
	// with the given fully-RT argument multilist. Used by simplify.
	LoadType(ref GenericRef, args [][]RuntimeTypeHandle) (RuntimeTypeHandle, error)

	// LoadSubtype resolves a named subtype off an already-determined parent.
	LoadSubtype(name string, parent RuntimeTypeHandle, args [][]RuntimeTypeHandle) (RuntimeTypeHandle, error)

	// SameType reports whether two resolved handles denote the same
	// specialization (SAME constraint).
	SameType(a, b RuntimeTypeHandle) bool

	// IsBase reports whether b is on a's base-class chain, reflexively
	// (BASE constraint).
	IsBase(a, b RuntimeTypeHandle) bool

	// HasInterface reports whether i is on t's interface set, transitively
	// for reference types and through boxing for value types (INTERFACE
	// constraint).
	HasInterface(t, i RuntimeTypeHandle) bool

	// Trait resolves a trait template (local or import/export chain) to an
	// opaque handle used by the Trait* methods below.
	Trait(assemblyName string, ref GenericRef) (TraitHandle, error)

	// TraitRequirements returns the trait's own field/function requirements
	// (already substituted for the trait's generic arguments and SELF). root
	// is the same backtracking Root the enclosing Cache tree solves
	// against, so any ANY entry inside the trait's own declaration shares
	// the caller's undetermined-variable table rather than a disconnected one.
	TraitRequirements(root *Root, t TraitHandle, selfArg Type, args [][]Type) (TraitRequirements, error)

	// PublicField looks up a field named name on t, returning its type.
	PublicField(t RuntimeTypeHandle, name string) (fieldType RuntimeTypeHandle, index int, ok bool)

	// FunctionCandidates enumerates the functions of t named name as
	// overload candidates for a trait function requirement with signature
	// want. An implementation may filter against want and may add
	// candidates found through t's base or interfaces (VirtualSlot >= 0);
	// the loader's implementation does neither (see
	// constraintResolver.FunctionCandidates).
	FunctionCandidates(t RuntimeTypeHandle, name string, want FuncSig) []OverloadCandidate

	// StorageOf reports a handle's storage mode, needed for INTERFACE's
	// boxing rule.
	StorageOf(t RuntimeTypeHandle) assembly.StorageMode
}

// TraitHandle is an opaque reference to a resolved trait template.
type TraitHandle any

// TraitRequirements is one trait's field/function demands, substituted for
// its own generic arguments and SELF.
type TraitRequirements struct {
	Fields    []TraitFieldReq
	Functions []TraitFunctionReq
	// SubConstraints are the trait's own GenericDeclaration.Constraints,
	// re-bound against its arguments — loaded as child caches so circular
	// trait -> trait dependence is caught by the cache-tree walk.
	SubConstraints []ConstraintSpec
}

type TraitFieldReq struct {
	Name         string
	ExpectedType Type
}

type TraitFunctionReq struct {
	Name     string
	Expected FuncSig
}

// ConstraintSpec is one constraint entry of a GenericDeclaration, already
// decoded from its RefList encoding by the caller (internal/assembly +
// internal/refs sit below this package; it never parses RefLists itself).
type ConstraintSpec struct {
	Kind       assembly.ConstraintKind
	Target     Type
	Arguments  []Type
	Trait      GenericRef
	ExportName string
	SourceAssembly string
}
