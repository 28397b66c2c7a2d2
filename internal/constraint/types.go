// Package constraint implements the generic-constraint solver (spec §4.6):
// a symbolic type-equation engine that determines undetermined generic
// arguments, resolves trait requirements against overload sets, and backs
// its own case analysis with an undo log so failed guesses can be
// unwound and retried.
//
// The package knows nothing about the instantiation pipeline itself —
// Resolver is the seam the loader hooks through to actually load types,
// functions and traits, and to compare/inspect already-loaded ones.
package constraint

// Kind tags a ConstraintType's case.
type Kind uint8

const (
	Fail Kind = iota
	RT        // fully determined: wraps a resolved RuntimeType handle
	Generic   // partially determined: an assembly/import template + args
	Subtype   // partially determined: a named subtype lookup off a parent
	Any       // undetermined variable: index into the root's variable table
	Empty
)

func (k Kind) String() string {
	switch k {
	case Fail:
		return "FAIL"
	case RT:
		return "RT"
	case Generic:
		return "GENERIC"
	case Subtype:
		return "SUBTYPE"
	case Any:
		return "ANY"
	case Empty:
		return "EMPTY"
	default:
		return "UNKNOWN"
	}
}

// RuntimeTypeHandle is the loader's resolved-type representation, opaque to
// this package beyond identity and the introspection Resolver exposes.
type RuntimeTypeHandle interface {
	// TypeIdentity returns a value comparable with ==; two handles for the
	// same specialization must compare equal.
	TypeIdentity() any
}

// GenericRef names an uninstantiated template: either a local type
// (ImportIndex < 0) or an imported one.
type GenericRef struct {
	AssemblyName string
	TemplateID   int
	ImportIndex  int // >= 0 selects ImportTypes[ImportIndex] instead
}

// Type is a symbolic, possibly-undetermined type used while solving. Its
// zero value is Fail.
type Type struct {
	Kind Kind

	RT RuntimeTypeHandle // Kind == RT

	Ref  GenericRef // Kind == Generic
	Args [][]Type   // Kind == Generic or Subtype: generic arguments

	SubtypeName string // Kind == Subtype
	Parent      *Type  // Kind == Subtype

	AnyIndex int // Kind == Any: index into Root.vars

	// TryFallback marks a Type produced from a TRY reference: failing to
	// determine or satisfy it is not itself an error, it simply resolves
	// to Fail.
	TryFallback bool
}

func FailType() Type  { return Type{Kind: Fail} }
func EmptyType() Type { return Type{Kind: Empty} }
func RTType(h RuntimeTypeHandle) Type { return Type{Kind: RT, RT: h} }

// undeterminedVar is one slot of a Root's variable table: either still
// unbound (Determined == nil) or bound to a concrete RuntimeTypeHandle.
type undeterminedVar struct {
	determined RuntimeTypeHandle
}

// logEntry is one undo-log record: restoring index's prior value rolls
// back a single DeductRT mutation, the only mutation the log records
// (there is no separate fail deduction).
type logEntry struct {
	index int
	prev  undeterminedVar
}

// Root owns the undetermined-variable table shared by every
// ConstraintType produced while checking one constraint, plus the
// backtracking log every mutation of that table is recorded against.
type Root struct {
	vars []undeterminedVar
	log  []logEntry
}

// NewVar allocates a fresh undetermined variable and returns an Any Type
// referencing it.
func (r *Root) NewVar() Type {
	r.vars = append(r.vars, undeterminedVar{})
	return Type{Kind: Any, AnyIndex: len(r.vars) - 1}
}

// Determined returns the bound value of an Any variable, or nil if still
// unbound.
func (r *Root) Determined(index int) RuntimeTypeHandle {
	return r.vars[index].determined
}

// DeductRT binds variable index to h, recording the prior value so
// DoBacktrack can undo it.
func (r *Root) DeductRT(index int, h RuntimeTypeHandle) {
	r.log = append(r.log, logEntry{index: index, prev: r.vars[index]})
	r.vars[index].determined = h
}

// StartBacktrackPoint returns the current log depth.
func (r *Root) StartBacktrackPoint() int { return len(r.log) }

// DoBacktrack rolls back every mutation recorded at or after level.
func (r *Root) DoBacktrack(level int) {
	for i := len(r.log) - 1; i >= level; i-- {
		e := r.log[i]
		r.vars[e.index] = e.prev
	}
	r.log = r.log[:level]
}

// Clear resets the root for reuse between independent top-level
// constraints (spec's root.Clear() between GenericDeclaration.Constraints
// entries).
func (r *Root) Clear() {
	r.vars = r.vars[:0]
	r.log = r.log[:0]
}
