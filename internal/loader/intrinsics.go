package loader

import (
	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/errs"
)

// resolveCoreIntrinsics locates Core.Pointer and Core.Box by export name in
// the Core assembly and verifies their shape (spec §9): both take exactly
// one generic parameter; Pointer is VALUE storage, Box is REFERENCE
// storage. A registry with no Core assembly, or one whose Core.Pointer/
// Core.Box don't match this shape, simply never has the intrinsic — no
// error, since plenty of valid registries (tests, partial assemblies) have
// neither. Must be called with l.mu held.
func (l *Loader) resolveCoreIntrinsics() {
	if l.intrinsicsResolved {
		return
	}
	l.intrinsicsResolved = true

	core := l.reg.FindNoThrow("Core")
	if core == nil {
		return
	}

	if id := l.reg.FindExportType("Core", "Core.Pointer"); id >= 0 {
		if t, err := l.reg.FindTypeTemplate("Core", id); err == nil && intrinsicShapeOK(t, assembly.Value) {
			l.pointerAssembly, l.pointerTemplateID = "Core", id
		}
	}
	if id := l.reg.FindExportType("Core", "Core.Box"); id >= 0 {
		if t, err := l.reg.FindTypeTemplate("Core", id); err == nil && intrinsicShapeOK(t, assembly.Reference) {
			l.boxAssembly, l.boxTemplateID = "Core", id
		}
	}
}

func intrinsicShapeOK(t *assembly.TypeTemplate, want assembly.StorageMode) bool {
	if t.Storage != want {
		return false
	}
	return t.Generic.ParameterCount.CanMatch([]int{1})
}

// maybeBindPointerIntrinsic sets T.PointerType when t is a freshly finished
// Core.Pointer<T> specialization. Each T has at most one pointer
// specialization; a second one reaching here is a loader bug, not a
// template error, so it is returned as an InternalAssertion error (which
// fails the call like any other load error) rather than MalformedTemplate.
func (l *Loader) maybeBindPointerIntrinsic(t *RuntimeType) error {
	l.resolveCoreIntrinsics()
	if l.pointerAssembly == "" || t.Args.AssemblyName != l.pointerAssembly || t.Args.TemplateID != l.pointerTemplateID {
		return nil
	}
	if len(t.Args.Arguments) != 1 || len(t.Args.Arguments[0]) != 1 {
		return errs.New(errs.MalformedTemplate, "Core.Pointer must take exactly one type argument")
	}
	target := t.Args.Arguments[0][0]
	if target == nil {
		return nil
	}
	if target.PointerType != nil {
		return errs.New(errs.InternalAssertion, "double assignment of PointerType on %s#%d", target.Args.AssemblyName, target.Args.TemplateID)
	}
	target.PointerType = t
	return nil
}

// LoadBoxType instantiates Core.Box<t> on demand, the mechanism by which a
// VALUE-storage type's interface set is checked (spec.md's "through boxing
// for value types"): Box's own template declares the wrapped value's
// interfaces, so checking INTERFACE(BoxedT, I) reduces to an ordinary
// RuntimeType.HasInterface walk over Box<t>.Interfaces. Returns nil, nil if
// this registry has no Core.Box intrinsic.
func (l *Loader) LoadBoxType(run *pipelineRun, t *RuntimeType) (*RuntimeType, error) {
	l.resolveCoreIntrinsics()
	if l.boxAssembly == "" {
		return nil, nil
	}
	return l.LoadTypeInternal(run, LoadingArguments{
		AssemblyName: l.boxAssembly, TemplateID: l.boxTemplateID,
		Arguments: [][]*RuntimeType{{t}},
	})
}
