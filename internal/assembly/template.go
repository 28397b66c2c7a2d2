// Package assembly holds the immutable, parsed-ahead-of-time template data
// the loader consumes: assemblies, their type/function/trait templates, and
// import/export tables. Nothing here is mutated once an Assembly is built —
// the registry only ever hands out borrowed pointers into this data.
package assembly

import "github.com/rollang/loader/internal/refs"

// StorageMode is the template's type-storage mode (spec §3).
type StorageMode uint8

const (
	Value StorageMode = iota
	Reference
	Global
	InterfaceStorage
)

func (m StorageMode) String() string {
	switch m {
	case Value:
		return "VALUE"
	case Reference:
		return "REFERENCE"
	case Global:
		return "GLOBAL"
	case InterfaceStorage:
		return "INTERFACE"
	default:
		return "UNKNOWN"
	}
}

// SegmentSize describes one segment of a generic parameter-count shape: a
// required count, or a minimum count if Variable (variadic generics).
type SegmentSize struct {
	Size     int
	Variable bool
}

// ParameterCount is the shape a LoadingArguments.Arguments multilist must
// match for a template to accept it.
type ParameterCount struct {
	Segments []SegmentSize
}

func (p ParameterCount) IsEmpty() bool { return len(p.Segments) == 0 }

// CanMatch reports whether sizes (the length of each argument segment) is
// compatible with this shape. Preserves the legacy single-dimension
// backward-compatibility rule from the original encoding: a caller passing
// one all-zero-length segment matches an otherwise-empty shape.
//
// TODO: this is the "legacy single-dimension paths" gap named in spec §9 —
// it does not attempt true variable-size segment matching beyond a simple
// per-segment minimum check.
func (p ParameterCount) CanMatch(sizes []int) bool {
	if len(sizes) == 1 && sizes[0] == 0 {
		if p.IsEmpty() {
			return true
		}
		if len(p.Segments) == 1 && p.Segments[0].Size == 0 && !p.Segments[0].Variable {
			return true
		}
		return false
	}
	if len(p.Segments) != len(sizes) {
		return false
	}
	for i, seg := range p.Segments {
		if seg.Variable {
			if sizes[i] < seg.Size {
				return false
			}
		} else if sizes[i] != seg.Size {
			return false
		}
	}
	return true
}

// NewParameterCount builds the common case: a single fixed-size segment of
// n parameters (n == 0 yields the empty shape).
func NewParameterCount(n int) ParameterCount {
	if n <= 0 {
		return ParameterCount{}
	}
	return ParameterCount{Segments: []SegmentSize{{Size: n}}}
}

// ConstraintKind is one of the five generic-constraint predicates (spec §4.6).
type ConstraintKind uint8

const (
	ConstraintExist ConstraintKind = iota
	ConstraintSame
	ConstraintBase
	ConstraintInterface
	ConstraintTrait
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintExist:
		return "EXIST"
	case ConstraintSame:
		return "SAME"
	case ConstraintBase:
		return "BASE"
	case ConstraintInterface:
		return "INTERFACE"
	case ConstraintTrait:
		return "TRAIT"
	default:
		return "UNKNOWN"
	}
}

// Constraint is one entry of a GenericDeclaration's constraint list. Target
// and Arguments index into the declaration's ConstraintRefs list (a small
// RefList shared by every constraint of the declaration), which may contain
// ANY and TRY entries in addition to the ordinary reference tags.
type Constraint struct {
	Kind ConstraintKind

	// TraitIndex/TraitIsImport identify the trait template for
	// ConstraintTrait; unused otherwise.
	TraitIndex    int
	TraitIsImport bool

	// Target is the constrained type (T in EXIST(T), SAME(T,U), ...).
	Target int

	// Arguments are the constraint's remaining operands: [U] for SAME,
	// [B] for BASE, [I] for INTERFACE, the trait's own generic arguments
	// for TRAIT.
	Arguments []int

	// ExportName, when non-empty, is the prefix constraint.CONSTRAINT
	// RefList entries elsewhere use to read back a value this constraint's
	// satisfaction determined (see internal/constraint's export binder).
	ExportName string
}

// GenericDeclaration is the generic "shape" shared by type, function and
// trait templates: how many parameters it takes, what must hold of them,
// and the RefLists that describe its referenceable types/functions/fields.
type GenericDeclaration struct {
	ParameterCount ParameterCount
	Constraints    []Constraint
	ConstraintRefs refs.List

	Types     refs.List
	Functions refs.List
	Fields    refs.List

	// NamesList is indexed by SUBTYPE and CONSTRAINT RefList entries.
	NamesList []string
}

// TypeTemplate is an uninstantiated, possibly-generic type.
type TypeTemplate struct {
	Name    string
	Generic GenericDeclaration
	Storage StorageMode

	// StructFields indexes Generic.Types: the concrete field order for
	// VALUE/REFERENCE/GLOBAL storage. Ignored for InterfaceStorage.
	StructFields []int

	// FieldNames is parallel to StructFields; empty names are legal (an
	// unnamed/positional field is never reachable by PublicField, only by
	// offset).
	FieldNames []string

	// Base indexes Generic.Types: REF_EMPTY (unused index -1) means no base.
	// Only meaningful for Reference storage.
	Base int

	// Interfaces indexes Generic.Types: the set of interface templates this
	// type implements.
	Interfaces []int

	// OnInitialize/OnFinalize index Generic.Functions; -1 means absent.
	OnInitialize int
	OnFinalize   int

	Functions FunctionTable
}

// NoRef is the sentinel "absent" index for Base/OnInitialize/OnFinalize.
const NoRef = -1

// FunctionTable is a template's public member table: name -> id, where id
// indexes Generic.Functions (for instance methods contributing to a vtable)
// or, for a type's own declared functions, a FunctionTemplate id in the
// same assembly.
type FunctionTable struct {
	ByName map[string][]FunctionMember
}

// FunctionMember names one overload of a public function.
type FunctionMember struct {
	Name string
	// RefIndex indexes Generic.Functions (a DeclarationReference to the
	// concrete function, e.g. REF_ASSEMBLY pointing at a FunctionTemplate).
	RefIndex int
}

func (t *FunctionTable) Add(name string, refIndex int) {
	if t.ByName == nil {
		t.ByName = make(map[string][]FunctionMember)
	}
	t.ByName[name] = append(t.ByName[name], FunctionMember{Name: name, RefIndex: refIndex})
}

// FunctionTemplate is an uninstantiated, possibly-generic function.
type FunctionTemplate struct {
	Name    string
	Generic GenericDeclaration

	// ReturnType/Parameters index Generic.Types.
	ReturnType int
	Parameters []int

	Instruction  []byte
	ConstantData []byte
	ConstantTable []ConstantEntry
	Locals       []LocalVariable
}

// ConstantEntry describes one constant-pool slot of a function's bytecode.
// Length == 0 marks an as-yet-unresolved import-constant reference (spec §4.8).
type ConstantEntry struct {
	Offset int
	Length int
	// ImportConstant is only meaningful when Length == 0: the index into
	// the owning assembly's ImportConstants table.
	ImportConstant int
}

// LocalVariable describes one local slot referenced by a function's code.
type LocalVariable struct {
	Name string
	Type int // indexes Generic.Types
}

// TraitTemplate declares a set of required fields and function signatures
// a type must expose to satisfy a TRAIT constraint.
type TraitTemplate struct {
	Name    string
	Generic GenericDeclaration

	// FieldNames/FieldRefs are parallel: FieldNames[i] names the field whose
	// required type is the Generic.Fields entry at FieldRefs[i]. This is a
	// deliberate simplification of the original's uniform NamesList-indexed
	// scheme (see DESIGN.md).
	FieldNames []string
	FieldRefs  []int

	// FunctionNames/FunctionRefs are parallel in the same way, indexing
	// Generic.Functions.
	FunctionNames []string
	FunctionRefs  []int

	SuperTraits []int // indexes into the same assembly's Traits (or -1 n/a)
}
