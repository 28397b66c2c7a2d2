package assembly

// ImportEntry names a foreign template this assembly depends on.
type ImportEntry struct {
	AssemblyName      string
	ImportName        string
	GenericParameters int
}

// ExportEntry maps a name this assembly exposes to an internal id. An id
// greater than or equal to the corresponding template array's length means
// "this export is itself a re-export of one of our own imports" — the
// registry recurses into ImportTypes/ImportFunctions/etc. at
// id - len(templates) to resolve it.
type ExportEntry struct {
	ExportName string
	InternalID int
}

// NativeType is a host-provided value type this assembly declares by name.
// Loader.AddNativeType does not consult this table: it resolves the name
// through ExportTypes.
type NativeType struct {
	Name string
	// TemplateID indexes Types: the template must be non-generic, VALUE
	// storage, with no initializer/finalizer (spec §4.7).
	TemplateID int
}

// Assembly is an immutable bundle of templates plus the tables that let
// other assemblies refer to them. The loader never mutates an Assembly
// after it is registered.
type Assembly struct {
	Name string

	Types     []TypeTemplate
	Functions []FunctionTemplate
	Traits    []TraitTemplate

	ImportTypes     []ImportEntry
	ImportFunctions []ImportEntry
	ImportTraits    []ImportEntry
	ImportConstants []ImportEntry

	ExportTypes     []ExportEntry
	ExportFunctions []ExportEntry
	ExportTraits    []ExportEntry
	ExportConstants []ExportEntry

	// Constants holds this assembly's own u32 constant values; ExportConstants
	// entries with InternalID < len(Constants) name one directly, entries at
	// or past that index re-export ImportConstants[id-len(Constants)].
	Constants []uint32

	NativeTypes []NativeType
}
