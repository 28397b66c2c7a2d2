package diagnostics

import (
	"testing"

	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/config"
	"github.com/rollang/loader/internal/loader"
)

func testAssembly() assembly.Assembly {
	return assembly.Assembly{
		Name: "Core",
		Types: []assembly.TypeTemplate{
			{Name: "Unit", Storage: assembly.Value, Base: assembly.NoRef, OnInitialize: assembly.NoRef, OnFinalize: assembly.NoRef},
		},
		ExportTypes: []assembly.ExportEntry{{ExportName: "Core.Unit", InternalID: 0}},
	}
}

func TestAuditRecordsCommit(t *testing.T) {
	store, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	reg := assembly.NewRegistry([]assembly.Assembly{testAssembly()})
	l := loader.New(reg, config.DefaultConfig(), store)

	id := l.FindExportType("Core", "Core.Unit")
	if _, err := l.GetType(loader.LoadingArguments{AssemblyName: "Core", TemplateID: id}); err != nil {
		t.Fatal(err)
	}

	n, err := store.TypeCommitCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %d type commits, want 1", n)
	}
}

func TestAuditRecordsCallSessionEvenOnFailure(t *testing.T) {
	store, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	reg := assembly.NewRegistry([]assembly.Assembly{testAssembly()})
	l := loader.New(reg, config.DefaultConfig(), store)

	if _, err := l.GetType(loader.LoadingArguments{AssemblyName: "Core", TemplateID: 99}); err == nil {
		t.Fatal("expected an error for an invalid template id")
	}

	n, err := store.SessionCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %d call sessions, want 1 — a session is recorded even when the load fails", n)
	}
}

func TestAuditAbsentAfterFailedLoad(t *testing.T) {
	store, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	reg := assembly.NewRegistry([]assembly.Assembly{testAssembly()})
	l := loader.New(reg, config.DefaultConfig(), store)

	if _, err := l.GetType(loader.LoadingArguments{AssemblyName: "Core", TemplateID: 99}); err == nil {
		t.Fatal("expected an error for an invalid template id")
	}

	n, err := store.TypeCommitCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("got %d type commits, want 0 after a failed load", n)
	}
}
