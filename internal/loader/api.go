package loader

import (
	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/errs"
)

// GetType is the public entry point for "load or return cached" on a type
// specialization (spec §6). It drives one pipeline run end to end: resolve
// the root request, drain every worklist, and commit atomically — or
// return the first error, leaving nothing committed.
func (l *Loader) GetType(args LoadingArguments) (*RuntimeType, error) {
	l.notifySession(NewCallSession("type", args))
	v, err, _ := l.sf.Do("type:"+args.key(), func() (any, error) {
		l.mu.Lock()
		defer l.mu.Unlock()

		if t, ok := l.committedTypes[args.key()]; ok {
			return t, nil
		}
		run := newRun()
		t, err := l.LoadTypeInternal(run, args)
		if err != nil {
			return nil, err
		}
		if err := l.drain(run); err != nil {
			return nil, err
		}
		if err := l.MoveFinishedObjects(run); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RuntimeType), nil
}

// GetFunction mirrors GetType for function specializations.
func (l *Loader) GetFunction(args FunctionLoadingArguments) (*RuntimeFunction, error) {
	l.notifySession(NewCallSession("function", LoadingArguments(args)))
	v, err, _ := l.sf.Do("func:"+args.key(), func() (any, error) {
		l.mu.Lock()
		defer l.mu.Unlock()

		if f, ok := l.committedFunctions[args.key()]; ok {
			return f, nil
		}
		run := newRun()
		f, err := l.LoadFunctionInternal(run, args)
		if err != nil {
			return nil, err
		}
		if err := l.drain(run); err != nil {
			return nil, err
		}
		if err := l.MoveFinishedObjects(run); err != nil {
			return nil, err
		}
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RuntimeFunction), nil
}

// GetTypeById returns the committed type with the given id, or nil if out
// of range or not yet committed.
func (l *Loader) GetTypeById(id int) *RuntimeType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.typesById[id]
}

// GetFunctionById mirrors GetTypeById for functions.
func (l *Loader) GetFunctionById(id int) *RuntimeFunction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.functionsById[id]
}

// FindExportType returns the internal template id for a type exported by
// name from assemblyName, or -1 if absent.
func (l *Loader) FindExportType(assemblyName, name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.FindExportType(assemblyName, name)
}

// FindExportFunction mirrors FindExportType for functions.
func (l *Loader) FindExportFunction(assemblyName, name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.FindExportFunction(assemblyName, name)
}

// LoadPointerType is a convenience wrapper loading Core.Pointer<t> (spec
// §6's load_pointer_type).
func (l *Loader) LoadPointerType(t *RuntimeType) (*RuntimeType, error) {
	l.mu.Lock()
	l.resolveCoreIntrinsics()
	pointerAssembly, pointerTemplateID := l.pointerAssembly, l.pointerTemplateID
	l.mu.Unlock()

	if pointerAssembly == "" {
		return nil, errs.New(errs.InvalidIntrinsic, "Core.Pointer intrinsic not found")
	}
	return l.GetType(LoadingArguments{
		AssemblyName: pointerAssembly,
		TemplateID:   pointerTemplateID,
		Arguments:    [][]*RuntimeType{{t}},
	})
}

// AddNativeType installs a host-provided VALUE-storage type directly into
// the committed table, bypassing the pipeline entirely (spec §4.7).
// Requirements: the named template must be non-generic, VALUE storage, and
// carry neither an initializer nor a finalizer.
func (l *Loader) AddNativeType(assemblyName, name string, size, alignment int) (*RuntimeType, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.reg.FindExportType(assemblyName, name)
	if id < 0 {
		return nil, errs.New(errs.LinkageFailure, "export type %s not found in %s", name, assemblyName)
	}
	tmpl, err := l.reg.FindTypeTemplate(assemblyName, id)
	if err != nil {
		return nil, err
	}
	if !tmpl.Generic.ParameterCount.IsEmpty() {
		return nil, errs.New(errs.NativeTypeUnsuitable, "native type %s must be non-generic", name)
	}
	if tmpl.Storage != assembly.Value {
		return nil, errs.New(errs.NativeTypeUnsuitable, "native type %s must be VALUE storage", name)
	}
	if tmpl.OnInitialize != assembly.NoRef || tmpl.OnFinalize != assembly.NoRef {
		return nil, errs.New(errs.NativeTypeUnsuitable, "native type %s must have no initializer or finalizer", name)
	}

	args := LoadingArguments{AssemblyName: assemblyName, TemplateID: id}
	if t, ok := l.committedTypes[args.key()]; ok {
		return t, nil
	}

	t := &RuntimeType{
		loader:    l,
		Args:      args,
		TypeId:    l.nextTypeId,
		Storage:   assembly.Value,
		Size:      size,
		Alignment: alignment,
		state:     stateCommitted,
	}
	l.nextTypeId++

	if err := l.obs.OnTypeLoaded(t); err != nil {
		return nil, err
	}
	l.committedTypes[args.key()] = t
	l.typesById[t.TypeId] = t
	return t, nil
}
