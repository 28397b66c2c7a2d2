package assembly

// Builder assembles an Assembly value in memory. There is no bytecode
// parser in this loader: assemblies are constructed either by the manifest
// loader (internal/manifest) from a JSON description, or directly by Go
// code (the Core assembly's intrinsics, and tests).
type Builder struct {
	a Assembly
}

func NewBuilder(name string) *Builder {
	return &Builder{a: Assembly{Name: name}}
}

func (b *Builder) AddType(t TypeTemplate) int {
	b.a.Types = append(b.a.Types, t)
	return len(b.a.Types) - 1
}

func (b *Builder) AddFunction(f FunctionTemplate) int {
	b.a.Functions = append(b.a.Functions, f)
	return len(b.a.Functions) - 1
}

func (b *Builder) AddTrait(t TraitTemplate) int {
	b.a.Traits = append(b.a.Traits, t)
	return len(b.a.Traits) - 1
}

func (b *Builder) AddImportType(e ImportEntry) int {
	b.a.ImportTypes = append(b.a.ImportTypes, e)
	return len(b.a.ImportTypes) - 1
}

func (b *Builder) AddImportFunction(e ImportEntry) int {
	b.a.ImportFunctions = append(b.a.ImportFunctions, e)
	return len(b.a.ImportFunctions) - 1
}

func (b *Builder) AddImportTrait(e ImportEntry) int {
	b.a.ImportTraits = append(b.a.ImportTraits, e)
	return len(b.a.ImportTraits) - 1
}

func (b *Builder) AddImportConstant(e ImportEntry) int {
	b.a.ImportConstants = append(b.a.ImportConstants, e)
	return len(b.a.ImportConstants) - 1
}

func (b *Builder) AddConstant(v uint32) int {
	b.a.Constants = append(b.a.Constants, v)
	return len(b.a.Constants) - 1
}

func (b *Builder) ExportType(name string, internalID int) {
	b.a.ExportTypes = append(b.a.ExportTypes, ExportEntry{ExportName: name, InternalID: internalID})
}

func (b *Builder) ExportFunction(name string, internalID int) {
	b.a.ExportFunctions = append(b.a.ExportFunctions, ExportEntry{ExportName: name, InternalID: internalID})
}

func (b *Builder) ExportTrait(name string, internalID int) {
	b.a.ExportTraits = append(b.a.ExportTraits, ExportEntry{ExportName: name, InternalID: internalID})
}

func (b *Builder) ExportConstant(name string, internalID int) {
	b.a.ExportConstants = append(b.a.ExportConstants, ExportEntry{ExportName: name, InternalID: internalID})
}

func (b *Builder) AddNativeType(name string, templateID int) {
	b.a.NativeTypes = append(b.a.NativeTypes, NativeType{Name: name, TemplateID: templateID})
}

func (b *Builder) Build() Assembly {
	return b.a
}
