package assembly

import (
	"testing"

	"github.com/rollang/loader/internal/errs"
)

func sampleAssemblies() []Assembly {
	core := Assembly{
		Name: "Core",
		Types: []TypeTemplate{
			{Name: "Int32", Storage: Value, Base: NoRef, OnInitialize: NoRef, OnFinalize: NoRef},
		},
		ExportTypes: []ExportEntry{
			{ExportName: "Int32", InternalID: 0},
		},
	}
	app := Assembly{
		Name: "App",
		ImportTypes: []ImportEntry{
			{AssemblyName: "Core", ImportName: "Int32", GenericParameters: 0},
		},
		ExportTypes: []ExportEntry{
			// re-export: id 0 is past len(app.Types)==0, so it names ImportTypes[0]
			{ExportName: "Reexported", InternalID: 0},
		},
	}
	return []Assembly{core, app}
}

func TestRegistryFind(t *testing.T) {
	r := NewRegistry(sampleAssemblies())
	a, err := r.Find("Core")
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "Core" {
		t.Errorf("got %q", a.Name)
	}
	if _, err := r.Find("Missing"); !errs.Is(err, errs.AssemblyNotFound) {
		t.Errorf("got %v, want AssemblyNotFound", err)
	}
}

func TestRegistryFindNoThrow(t *testing.T) {
	r := NewRegistry(sampleAssemblies())
	if r.FindNoThrow("Missing") != nil {
		t.Error("expected nil for missing assembly")
	}
	if r.FindNoThrow("Core") == nil {
		t.Error("expected non-nil for Core")
	}
}

func TestFindTypeTemplateBounds(t *testing.T) {
	r := NewRegistry(sampleAssemblies())
	if _, err := r.FindTypeTemplate("Core", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := r.FindTypeTemplate("Core", 1); !errs.Is(err, errs.InvalidReference) {
		t.Errorf("got %v, want InvalidReference", err)
	}
	if _, err := r.FindTypeTemplate("Core", -1); !errs.Is(err, errs.InvalidReference) {
		t.Errorf("got %v, want InvalidReference", err)
	}
}

func TestResolveExportTypeDirect(t *testing.T) {
	r := NewRegistry(sampleAssemblies())
	res, err := r.ResolveExportType("Core", "Int32")
	if err != nil {
		t.Fatal(err)
	}
	if res.Assembly != "Core" || res.ID != 0 {
		t.Errorf("got %+v", res)
	}
}

func TestResolveExportTypeReexport(t *testing.T) {
	r := NewRegistry(sampleAssemblies())
	res, err := r.ResolveExportType("App", "Reexported")
	if err != nil {
		t.Fatal(err)
	}
	if res.Assembly != "Core" || res.ID != 0 {
		t.Errorf("got %+v, want Core/0", res)
	}
}

func TestResolveExportTypeMissing(t *testing.T) {
	r := NewRegistry(sampleAssemblies())
	if _, err := r.ResolveExportType("Core", "NoSuchExport"); !errs.Is(err, errs.LinkageFailure) {
		t.Errorf("got %v, want LinkageFailure", err)
	}
}

func TestFindNativeID(t *testing.T) {
	a := Assembly{NativeTypes: []NativeType{{Name: "Int32", TemplateID: 3}}}
	if id := a.FindNativeID("Int32"); id != 3 {
		t.Errorf("got %d, want 3", id)
	}
	if id := a.FindNativeID("Missing"); id != -1 {
		t.Errorf("got %d, want -1", id)
	}
}
