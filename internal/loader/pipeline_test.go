package loader

import (
	"testing"

	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/config"
	"github.com/rollang/loader/internal/errs"
)

func coreAssembly() assembly.Assembly {
	return assembly.Assembly{
		Name: "Core",
		Types: []assembly.TypeTemplate{
			{
				Name:         "Unit",
				Storage:      assembly.Value,
				Base:         assembly.NoRef,
				OnInitialize: assembly.NoRef,
				OnFinalize:   assembly.NoRef,
			},
			{
				Name:         "Pointer",
				Storage:      assembly.Value,
				Base:         assembly.NoRef,
				OnInitialize: assembly.NoRef,
				OnFinalize:   assembly.NoRef,
				Generic:      assembly.GenericDeclaration{ParameterCount: assembly.NewParameterCount(1)},
			},
		},
		ExportTypes: []assembly.ExportEntry{
			{ExportName: "Core.Unit", InternalID: 0},
			{ExportName: "Core.Pointer", InternalID: 1},
		},
	}
}

func newTestLoader() *Loader {
	reg := assembly.NewRegistry([]assembly.Assembly{coreAssembly()})
	return New(reg, config.DefaultConfig(), nil)
}

func TestGetTypeLoadsAndMemoizes(t *testing.T) {
	l := newTestLoader()
	id := l.FindExportType("Core", "Core.Unit")
	if id != 0 {
		t.Fatalf("got id %d, want 0", id)
	}
	a, err := l.GetType(LoadingArguments{AssemblyName: "Core", TemplateID: id})
	if err != nil {
		t.Fatal(err)
	}
	if a.Storage != assembly.Value || a.Size != 1 || a.Alignment != 1 {
		t.Errorf("got %+v", a)
	}
	b, err := l.GetType(LoadingArguments{AssemblyName: "Core", TemplateID: id})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected the same committed pointer on a repeat request")
	}
}

func TestGetTypeMissingTemplate(t *testing.T) {
	l := newTestLoader()
	if _, err := l.GetType(LoadingArguments{AssemblyName: "Core", TemplateID: 99}); !errs.Is(err, errs.InvalidReference) {
		t.Errorf("got %v, want InvalidReference", err)
	}
}

func TestLoadPointerType(t *testing.T) {
	l := newTestLoader()
	unit, err := l.GetType(LoadingArguments{AssemblyName: "Core", TemplateID: 0})
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := l.LoadPointerType(unit)
	if err != nil {
		t.Fatal(err)
	}
	if ptr.Args.AssemblyName != "Core" || ptr.Args.TemplateID != 1 {
		t.Errorf("got %+v", ptr.Args)
	}
	if unit.PointerType != ptr {
		t.Error("expected Core.Pointer<Unit> to bind back onto Unit.PointerType")
	}
}

func TestAddNativeType(t *testing.T) {
	l := newTestLoader()
	nt, err := l.AddNativeType("Core", "Core.Unit", 8, 4)
	if err != nil {
		t.Fatal(err)
	}
	if nt.Size != 8 || nt.Alignment != 4 || nt.Storage != assembly.Value {
		t.Errorf("got %+v", nt)
	}
	again, err := l.AddNativeType("Core", "Core.Unit", 8, 4)
	if err != nil {
		t.Fatal(err)
	}
	if again != nt {
		t.Error("expected AddNativeType to return the already-committed type on a repeat call")
	}
}

func TestAddNativeTypeRejectsGeneric(t *testing.T) {
	l := newTestLoader()
	if _, err := l.AddNativeType("Core", "Core.Pointer", 8, 8); !errs.Is(err, errs.NativeTypeUnsuitable) {
		t.Errorf("got %v, want NativeTypeUnsuitable", err)
	}
}

func TestAddNativeTypeRejectsUnknownExport(t *testing.T) {
	l := newTestLoader()
	if _, err := l.AddNativeType("Core", "NoSuchType", 8, 8); !errs.Is(err, errs.LinkageFailure) {
		t.Errorf("got %v, want LinkageFailure", err)
	}
}

func TestGetTypeByIdOutOfRange(t *testing.T) {
	l := newTestLoader()
	if l.GetTypeById(999) != nil {
		t.Error("expected nil for an uncommitted id")
	}
}
