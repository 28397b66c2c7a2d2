package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rollang/loader/internal/assembly"
)

const sampleJSON = `{
	"assemblies": [
		{
			"name": "Core",
			"types": [
				{"name": "Int32", "storage": "VALUE"},
				{"name": "Node", "storage": "REFERENCE", "fields": [
					{"name": "value", "ref": "Int32"}
				]}
			],
			"native_types": [
				{"name": "Int32Native", "type": "Int32"}
			],
			"export_types": [
				{"export_name": "Core.Int32", "type": "Int32"},
				{"export_name": "Core.Node", "type": "Node"}
			]
		}
	]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.json")
	if err := os.WriteFile(path, []byte(sampleJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndBuild(t *testing.T) {
	m, err := Load(writeSample(t))
	if err != nil {
		t.Fatal(err)
	}
	assemblies, err := m.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(assemblies) != 1 {
		t.Fatalf("got %d assemblies, want 1", len(assemblies))
	}
	core := assemblies[0]
	if core.Name != "Core" || len(core.Types) != 2 {
		t.Fatalf("got %+v", core)
	}

	reg := assembly.NewRegistry(assemblies)
	id := reg.FindExportType("Core", "Core.Node")
	if id < 0 {
		t.Fatal("expected Core.Node to be exported")
	}
	tmpl, err := reg.FindTypeTemplate("Core", id)
	if err != nil {
		t.Fatal(err)
	}
	if len(tmpl.StructFields) != 1 || tmpl.FieldNames[0] != "value" {
		t.Errorf("got %+v", tmpl)
	}
}

func TestBuildUnknownStorage(t *testing.T) {
	m := Manifest{Assemblies: []AssemblyDoc{{
		Name:  "Bad",
		Types: []TypeDoc{{Name: "X", Storage: "NOPE"}},
	}}}
	if _, err := m.Build(); err == nil {
		t.Error("expected an error for an unknown storage mode")
	}
}

func TestBuildUnknownFieldRef(t *testing.T) {
	m := Manifest{Assemblies: []AssemblyDoc{{
		Name: "Bad",
		Types: []TypeDoc{{
			Name: "X", Storage: "REFERENCE",
			Fields: []FieldDoc{{Name: "f", Ref: "Missing"}},
		}},
	}}}
	if _, err := m.Build(); err == nil {
		t.Error("expected an error for an unknown field type reference")
	}
}
