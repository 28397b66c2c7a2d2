// Package manifest loads a small JSON description of a set of assemblies
// for the demo CLI (spec.md §1 explicitly keeps the real bytecode format
// out of scope) into internal/assembly's in-memory Assembly builder types.
// It covers the subset of the data model a hand-written demo fixture
// actually needs: non-generic types, their exported names, native-type
// declarations, and import/export wiring. Generics, traits and constraints
// are built directly via internal/assembly's struct literals, the way the
// real parser's output would be — the manifest format exists only to make
// "point the daemon at a JSON file and go" possible for a demo, not to
// replace the assembly builder.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/errs"
	"github.com/rollang/loader/internal/refs"
)

// Manifest is the top-level JSON document: an ordered list of assemblies,
// each fully independent (imports are resolved by name against the whole
// set, the same way internal/assembly.Registry resolves them).
type Manifest struct {
	Assemblies []AssemblyDoc `json:"assemblies"`
}

// AssemblyDoc is one assembly's JSON form.
type AssemblyDoc struct {
	Name        string      `json:"name"`
	Types       []TypeDoc   `json:"types,omitempty"`
	NativeTypes []NativeDoc `json:"native_types,omitempty"`
	ExportTypes []ExportDoc `json:"export_types,omitempty"`
	ImportTypes []ImportDoc `json:"import_types,omitempty"`
}

// TypeDoc is a non-generic type template: storage mode by name ("VALUE",
// "REFERENCE", "GLOBAL", "INTERFACE") and, for VALUE/REFERENCE/GLOBAL, a
// field list naming each field's type either by a same-assembly type name
// (Ref) or an import slot (ImportRef), mutually exclusive.
type TypeDoc struct {
	Name    string     `json:"name"`
	Storage string     `json:"storage"`
	Fields  []FieldDoc `json:"fields,omitempty"`
}

// FieldDoc names one field; exactly one of Ref/ImportRef should be set.
type FieldDoc struct {
	Name      string `json:"name"`
	Ref       string `json:"ref,omitempty"`        // a type name within the same assembly
	ImportRef string `json:"import_ref,omitempty"` // a name present in ImportTypes
}

// NativeDoc declares a NativeTypes entry naming an already-declared TypeDoc.
type NativeDoc struct {
	Name string `json:"name"`
	Type string `json:"type"` // must name a TypeDoc.Name in the same assembly
}

// ExportDoc exports a same-assembly TypeDoc by name under ExportName —
// AddNativeType looks up exactly this table, so a type meant to be
// installed as a native type still needs an ExportDoc entry naming it.
type ExportDoc struct {
	ExportName string `json:"export_name"`
	Type       string `json:"type,omitempty"`
}

// ImportDoc names a foreign export this assembly imports under a local
// alias used by FieldDoc.ImportRef.
type ImportDoc struct {
	Alias        string `json:"alias"`
	FromAssembly string `json:"from_assembly"`
	ExportName   string `json:"export_name"`
}

// Load reads and parses a manifest file.
func Load(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}
	return m, nil
}

func storageFromString(s string) (assembly.StorageMode, error) {
	switch s {
	case "VALUE":
		return assembly.Value, nil
	case "REFERENCE":
		return assembly.Reference, nil
	case "GLOBAL":
		return assembly.Global, nil
	case "INTERFACE":
		return assembly.InterfaceStorage, nil
	default:
		return 0, errs.New(errs.MalformedTemplate, "unknown storage mode %q", s)
	}
}

// Build translates the manifest into internal/assembly.Assembly values
// ready for assembly.NewRegistry, resolving each FieldDoc/NativeDoc/
// ExportDoc against its own assembly's declared types by name.
func (m Manifest) Build() ([]assembly.Assembly, error) {
	out := make([]assembly.Assembly, len(m.Assemblies))
	for i, doc := range m.Assemblies {
		a, err := doc.build()
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (d AssemblyDoc) build() (assembly.Assembly, error) {
	a := assembly.Assembly{Name: d.Name}

	byName := make(map[string]int, len(d.Types))
	for i, td := range d.Types {
		byName[td.Name] = i
	}
	importAlias := make(map[string]int, len(d.ImportTypes))
	for i, imp := range d.ImportTypes {
		importAlias[imp.Alias] = i
		a.ImportTypes = append(a.ImportTypes, assembly.ImportEntry{
			AssemblyName: imp.FromAssembly,
			ImportName:   imp.ExportName,
		})
	}

	a.Types = make([]assembly.TypeTemplate, len(d.Types))
	for i, td := range d.Types {
		storage, err := storageFromString(td.Storage)
		if err != nil {
			return assembly.Assembly{}, fmt.Errorf("manifest: assembly %s type %s: %w", d.Name, td.Name, err)
		}
		tmpl := assembly.TypeTemplate{
			Name:         td.Name,
			Storage:      storage,
			Base:         assembly.NoRef,
			OnInitialize: assembly.NoRef,
			OnFinalize:   assembly.NoRef,
		}
		for _, fd := range td.Fields {
			refIdx, err := appendFieldRef(&tmpl.Generic.Types, fd, byName, importAlias)
			if err != nil {
				return assembly.Assembly{}, fmt.Errorf("manifest: assembly %s type %s field %s: %w", d.Name, td.Name, fd.Name, err)
			}
			tmpl.StructFields = append(tmpl.StructFields, refIdx)
			tmpl.FieldNames = append(tmpl.FieldNames, fd.Name)
		}
		a.Types[i] = tmpl
	}

	for _, nd := range d.NativeTypes {
		idx, ok := byName[nd.Type]
		if !ok {
			return assembly.Assembly{}, errs.New(errs.MalformedTemplate, "manifest: assembly %s native type %s names unknown type %s", d.Name, nd.Name, nd.Type)
		}
		a.NativeTypes = append(a.NativeTypes, assembly.NativeType{Name: nd.Name, TemplateID: idx})
	}

	for _, ed := range d.ExportTypes {
		idx, ok := byName[ed.Type]
		if !ok {
			return assembly.Assembly{}, errs.New(errs.MalformedTemplate, "manifest: assembly %s export %s names unknown type %s", d.Name, ed.ExportName, ed.Type)
		}
		a.ExportTypes = append(a.ExportTypes, assembly.ExportEntry{ExportName: ed.ExportName, InternalID: idx})
	}

	return a, nil
}

// appendFieldRef appends one ASSEMBLY or IMPORT RefList entry followed by
// an EMPTY terminator for its (always empty, manifest types are never
// generic) trailing argument list, and returns the reference's own index.
func appendFieldRef(types *refs.List, fd FieldDoc, byName, importAlias map[string]int) (int, error) {
	var entry refs.Entry
	switch {
	case fd.Ref != "":
		idx, ok := byName[fd.Ref]
		if !ok {
			return 0, errs.New(errs.InvalidReference, "unknown type %q", fd.Ref)
		}
		entry = refs.Entry{Tag: refs.ASSEMBLY, Index: idx}
	case fd.ImportRef != "":
		idx, ok := importAlias[fd.ImportRef]
		if !ok {
			return 0, errs.New(errs.InvalidReference, "unknown import %q", fd.ImportRef)
		}
		entry = refs.Entry{Tag: refs.IMPORT, Index: idx}
	default:
		return 0, errs.New(errs.MalformedTemplate, "field names neither ref nor import_ref")
	}
	refIdx := len(*types)
	*types = append(*types, entry, refs.Entry{Tag: refs.EMPTY})
	return refIdx, nil
}
