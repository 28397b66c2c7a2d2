package assembly

import "github.com/rollang/loader/internal/errs"

// Registry holds the immutable collection of parsed assemblies a loader
// instance was constructed with. It is safe for concurrent readers — it
// never changes after construction — but the loader still takes its own
// lock around any call sequence that must observe a consistent snapshot of
// in-flight instantiation state alongside it.
type Registry struct {
	assemblies []Assembly
	byName     map[string]*Assembly
}

func NewRegistry(assemblies []Assembly) *Registry {
	r := &Registry{assemblies: assemblies, byName: make(map[string]*Assembly, len(assemblies))}
	for i := range r.assemblies {
		r.byName[r.assemblies[i].Name] = &r.assemblies[i]
	}
	return r
}

// Find returns a borrowed pointer to the named assembly, or an
// AssemblyNotFound error.
func (r *Registry) Find(name string) (*Assembly, error) {
	if a, ok := r.byName[name]; ok {
		return a, nil
	}
	return nil, errs.New(errs.AssemblyNotFound, "assembly %q not found", name)
}

// FindNoThrow is Find without the error: nil means absent. Used in
// construction-time probes (e.g. locating the Core assembly for
// intrinsics) where absence is not itself an error — see spec §6.
func (r *Registry) FindNoThrow(name string) *Assembly {
	return r.byName[name]
}

// FindTypeTemplate bounds-checks id against the named assembly's Types.
func (r *Registry) FindTypeTemplate(assemblyName string, id int) (*TypeTemplate, error) {
	a, err := r.Find(assemblyName)
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(a.Types) {
		return nil, errs.New(errs.InvalidReference, "type id %d out of range in %q", id, assemblyName)
	}
	return &a.Types[id], nil
}

func (r *Registry) FindFunctionTemplate(assemblyName string, id int) (*FunctionTemplate, error) {
	a, err := r.Find(assemblyName)
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(a.Functions) {
		return nil, errs.New(errs.InvalidReference, "function id %d out of range in %q", id, assemblyName)
	}
	return &a.Functions[id], nil
}

func (r *Registry) FindTraitTemplate(assemblyName string, id int) (*TraitTemplate, error) {
	a, err := r.Find(assemblyName)
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(a.Traits) {
		return nil, errs.New(errs.InvalidReference, "trait id %d out of range in %q", id, assemblyName)
	}
	return &a.Traits[id], nil
}

// ResolvedExport is the outcome of following a (possibly re-exported) name
// to the assembly and internal id that actually owns the template.
type ResolvedExport struct {
	Assembly string
	ID       int
}

// ResolveExportType follows assembly's ExportTypes[name] to its owning
// assembly, recursing through re-exports (an id at or past the Types
// array's length names an import slot instead of a template id).
func (r *Registry) ResolveExportType(assemblyName, name string) (ResolvedExport, error) {
	a, err := r.Find(assemblyName)
	if err != nil {
		return ResolvedExport{}, err
	}
	for _, e := range a.ExportTypes {
		if e.ExportName == name {
			if e.InternalID < len(a.Types) {
				return ResolvedExport{Assembly: assemblyName, ID: e.InternalID}, nil
			}
			imp := e.InternalID - len(a.Types)
			if imp < 0 || imp >= len(a.ImportTypes) {
				return ResolvedExport{}, errs.New(errs.LinkageFailure, "export %q of %q re-exports an invalid import slot", name, assemblyName)
			}
			return r.resolveImportType(a.ImportTypes[imp])
		}
	}
	return ResolvedExport{}, errs.New(errs.LinkageFailure, "export type %q not found in %q", name, assemblyName)
}

// ResolveImportTypeEntry resolves a standalone ImportEntry (e.g. one read
// directly out of an Assembly's ImportTypes table) to its owning assembly
// and internal id.
func (r *Registry) ResolveImportTypeEntry(e ImportEntry) (ResolvedExport, error) {
	return r.resolveImportType(e)
}

// ResolveImportFunctionEntry mirrors ResolveImportTypeEntry for functions.
func (r *Registry) ResolveImportFunctionEntry(e ImportEntry) (ResolvedExport, error) {
	return r.resolveImportFunction(e)
}

// ResolveImportTraitEntry mirrors ResolveImportTypeEntry for traits.
func (r *Registry) ResolveImportTraitEntry(e ImportEntry) (ResolvedExport, error) {
	return r.resolveImportTrait(e)
}

func (r *Registry) resolveImportType(imp ImportEntry) (ResolvedExport, error) {
	target, err := r.Find(imp.AssemblyName)
	if err != nil {
		return ResolvedExport{}, err
	}
	for _, e := range target.ExportTypes {
		if e.ExportName == imp.ImportName {
			if e.InternalID < len(target.Types) {
				if imp.GenericParameters >= 0 && len(target.Types[e.InternalID].Generic.ParameterCount.Segments) != boolToSegs(imp.GenericParameters) {
					// shape mismatch is surfaced by CheckGenericArguments later;
					// here we only catch an outright missing template.
				}
				return ResolvedExport{Assembly: imp.AssemblyName, ID: e.InternalID}, nil
			}
			nested := e.InternalID - len(target.Types)
			if nested < 0 || nested >= len(target.ImportTypes) {
				return ResolvedExport{}, errs.New(errs.LinkageFailure, "re-export chain broken for %q", imp.ImportName)
			}
			return r.resolveImportType(target.ImportTypes[nested])
		}
	}
	return ResolvedExport{}, errs.New(errs.LinkageFailure, "import %q not found in %q", imp.ImportName, imp.AssemblyName)
}

func boolToSegs(n int) int {
	if n <= 0 {
		return 0
	}
	return 1
}

// ResolveExportFunction mirrors ResolveExportType for functions.
func (r *Registry) ResolveExportFunction(assemblyName, name string) (ResolvedExport, error) {
	a, err := r.Find(assemblyName)
	if err != nil {
		return ResolvedExport{}, err
	}
	for _, e := range a.ExportFunctions {
		if e.ExportName == name {
			if e.InternalID < len(a.Functions) {
				return ResolvedExport{Assembly: assemblyName, ID: e.InternalID}, nil
			}
			imp := e.InternalID - len(a.Functions)
			if imp < 0 || imp >= len(a.ImportFunctions) {
				return ResolvedExport{}, errs.New(errs.LinkageFailure, "export %q of %q re-exports an invalid import slot", name, assemblyName)
			}
			return r.resolveImportFunction(a.ImportFunctions[imp])
		}
	}
	return ResolvedExport{}, errs.New(errs.LinkageFailure, "export function %q not found in %q", name, assemblyName)
}

func (r *Registry) resolveImportFunction(imp ImportEntry) (ResolvedExport, error) {
	target, err := r.Find(imp.AssemblyName)
	if err != nil {
		return ResolvedExport{}, err
	}
	for _, e := range target.ExportFunctions {
		if e.ExportName == imp.ImportName {
			if e.InternalID < len(target.Functions) {
				return ResolvedExport{Assembly: imp.AssemblyName, ID: e.InternalID}, nil
			}
			nested := e.InternalID - len(target.Functions)
			if nested < 0 || nested >= len(target.ImportFunctions) {
				return ResolvedExport{}, errs.New(errs.LinkageFailure, "re-export chain broken for %q", imp.ImportName)
			}
			return r.resolveImportFunction(target.ImportFunctions[nested])
		}
	}
	return ResolvedExport{}, errs.New(errs.LinkageFailure, "import %q not found in %q", imp.ImportName, imp.AssemblyName)
}

// ResolveExportTrait mirrors ResolveExportType for traits.
func (r *Registry) ResolveExportTrait(assemblyName, name string) (ResolvedExport, error) {
	a, err := r.Find(assemblyName)
	if err != nil {
		return ResolvedExport{}, err
	}
	for _, e := range a.ExportTraits {
		if e.ExportName == name {
			if e.InternalID < len(a.Traits) {
				return ResolvedExport{Assembly: assemblyName, ID: e.InternalID}, nil
			}
			imp := e.InternalID - len(a.Traits)
			if imp < 0 || imp >= len(a.ImportTraits) {
				return ResolvedExport{}, errs.New(errs.LinkageFailure, "export %q of %q re-exports an invalid import slot", name, assemblyName)
			}
			return r.resolveImportTrait(a.ImportTraits[imp])
		}
	}
	return ResolvedExport{}, errs.New(errs.LinkageFailure, "export trait %q not found in %q", name, assemblyName)
}

func (r *Registry) resolveImportTrait(imp ImportEntry) (ResolvedExport, error) {
	target, err := r.Find(imp.AssemblyName)
	if err != nil {
		return ResolvedExport{}, err
	}
	for _, e := range target.ExportTraits {
		if e.ExportName == imp.ImportName {
			if e.InternalID < len(target.Traits) {
				return ResolvedExport{Assembly: imp.AssemblyName, ID: e.InternalID}, nil
			}
			nested := e.InternalID - len(target.Traits)
			if nested < 0 || nested >= len(target.ImportTraits) {
				return ResolvedExport{}, errs.New(errs.LinkageFailure, "re-export chain broken for %q", imp.ImportName)
			}
			return r.resolveImportTrait(target.ImportTraits[nested])
		}
	}
	return ResolvedExport{}, errs.New(errs.LinkageFailure, "import %q not found in %q", imp.ImportName, imp.AssemblyName)
}

// ResolveExportConstant follows a constant export name to the owning
// assembly's Constants slot, recursing through re-exports exactly like
// ResolveExportType.
func (r *Registry) ResolveExportConstant(assemblyName, name string) (ResolvedExport, error) {
	a, err := r.Find(assemblyName)
	if err != nil {
		return ResolvedExport{}, err
	}
	for _, e := range a.ExportConstants {
		if e.ExportName == name {
			if e.InternalID < len(a.Constants) {
				return ResolvedExport{Assembly: assemblyName, ID: e.InternalID}, nil
			}
			imp := e.InternalID - len(a.Constants)
			if imp < 0 || imp >= len(a.ImportConstants) {
				return ResolvedExport{}, errs.New(errs.LinkageFailure, "export %q of %q re-exports an invalid import slot", name, assemblyName)
			}
			return r.resolveImportConstant(a.ImportConstants[imp])
		}
	}
	return ResolvedExport{}, errs.New(errs.LinkageFailure, "export constant %q not found in %q", name, assemblyName)
}

func (r *Registry) resolveImportConstant(imp ImportEntry) (ResolvedExport, error) {
	target, err := r.Find(imp.AssemblyName)
	if err != nil {
		return ResolvedExport{}, err
	}
	for _, e := range target.ExportConstants {
		if e.ExportName == imp.ImportName {
			if e.InternalID < len(target.Constants) {
				return ResolvedExport{Assembly: imp.AssemblyName, ID: e.InternalID}, nil
			}
			nested := e.InternalID - len(target.Constants)
			if nested < 0 || nested >= len(target.ImportConstants) {
				return ResolvedExport{}, errs.New(errs.LinkageFailure, "re-export chain broken for %q", imp.ImportName)
			}
			return r.resolveImportConstant(target.ImportConstants[nested])
		}
	}
	return ResolvedExport{}, errs.New(errs.LinkageFailure, "import %q not found in %q", imp.ImportName, imp.AssemblyName)
}

// ConstantValue resolves a local ImportConstants entry (by index within
// assemblyName's ImportConstants table) all the way to its u32 value.
func (r *Registry) ConstantValue(assemblyName string, importConstantIndex int) (uint32, error) {
	a, err := r.Find(assemblyName)
	if err != nil {
		return 0, err
	}
	if importConstantIndex < 0 || importConstantIndex >= len(a.ImportConstants) {
		return 0, errs.New(errs.InvalidReference, "import constant %d out of range in %q", importConstantIndex, assemblyName)
	}
	res, err := r.resolveImportConstant(a.ImportConstants[importConstantIndex])
	if err != nil {
		return 0, err
	}
	owner, err := r.Find(res.Assembly)
	if err != nil {
		return 0, err
	}
	if res.ID < 0 || res.ID >= len(owner.Constants) {
		return 0, errs.New(errs.InvalidReference, "resolved constant id %d out of range in %q", res.ID, res.Assembly)
	}
	return owner.Constants[res.ID], nil
}

// FindExportType returns the internal template id for a name export, or -1.
func (r *Registry) FindExportType(assemblyName, name string) int {
	a := r.byName[assemblyName]
	if a == nil {
		return -1
	}
	for _, e := range a.ExportTypes {
		if e.ExportName == name {
			return e.InternalID
		}
	}
	return -1
}

// FindExportFunction returns the internal template id for a name export, or -1.
func (r *Registry) FindExportFunction(assemblyName, name string) int {
	a := r.byName[assemblyName]
	if a == nil {
		return -1
	}
	for _, e := range a.ExportFunctions {
		if e.ExportName == name {
			return e.InternalID
		}
	}
	return -1
}

// FindNativeID resolves a NativeTypes entry by name, or -1 if absent.
func (a *Assembly) FindNativeID(name string) int {
	for _, n := range a.NativeTypes {
		if n.Name == name {
			return n.TemplateID
		}
	}
	return -1
}
