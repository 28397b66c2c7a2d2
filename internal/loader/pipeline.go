package loader

import (
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/config"
	"github.com/rollang/loader/internal/constraint"
	"github.com/rollang/loader/internal/errs"
	"github.com/rollang/loader/internal/layout"
)

// Observer receives commit-time notifications; an error from either hook
// aborts the whole commit (spec §6/§9).
type Observer interface {
	OnTypeLoaded(t *RuntimeType) error
	OnFunctionLoaded(f *RuntimeFunction) error
}

// Loader is the instantiation engine: one immutable Registry of parsed
// assemblies, the committed type/function tables, and the coarse lock
// serializing every public entry point (spec §5: single-writer,
// cooperative, one lock).
type Loader struct {
	reg  *assembly.Registry
	code *assembly.CodeStorage
	cfg  config.Config
	obs  Observer

	mu sync.Mutex
	sf singleflight.Group

	nextTypeId     int
	nextFunctionId int

	// intrinsics caches the Core.Pointer/Core.Box export ids (spec §9);
	// resolved lazily on first use since Find("Core") may legitimately fail
	// for a registry that never loads a Core assembly.
	intrinsicsResolved  bool
	pointerAssembly     string
	pointerTemplateID   int
	boxAssembly         string
	boxTemplateID       int

	committedTypes     map[string]*RuntimeType
	committedFunctions map[string]*RuntimeFunction
	typesById          map[int]*RuntimeType
	functionsById      map[int]*RuntimeFunction
}

// nopObserver is used when New is given a nil Observer.
type nopObserver struct{}

func (nopObserver) OnTypeLoaded(*RuntimeType) error         { return nil }
func (nopObserver) OnFunctionLoaded(*RuntimeFunction) error { return nil }

// New constructs a Loader over reg. obs may be nil.
func New(reg *assembly.Registry, cfg config.Config, obs Observer) *Loader {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Loader{
		reg:                 reg,
		code:                assembly.NewCodeStorage(reg),
		cfg:                 cfg,
		obs:                 obs,
		committedTypes:      make(map[string]*RuntimeType),
		committedFunctions:  make(map[string]*RuntimeFunction),
		typesById:           make(map[int]*RuntimeType),
		functionsById:       make(map[int]*RuntimeFunction),
	}
}

// pipelineRun is the worklist state of a single API call; it never
// survives past that call's lock hold.
type pipelineRun struct {
	loadingRef       []*RuntimeType
	loadingValues    []string // stack of LoadingArguments keys, cycle detector
	postLoading      []*RuntimeType
	loadingFunctions []*RuntimeFunction
	finishedTypes    []*RuntimeType
	finishedFunctions []*RuntimeFunction

	pendingTypes     map[string]*RuntimeType
	pendingFunctions map[string]*RuntimeFunction

	created int
}

func newRun() *pipelineRun {
	return &pipelineRun{
		pendingTypes:     make(map[string]*RuntimeType),
		pendingFunctions: make(map[string]*RuntimeFunction),
	}
}

func (l *Loader) checkLimit(run *pipelineRun) error {
	run.created++
	if l.cfg.LoadingLimit > 0 && run.created > l.cfg.LoadingLimit {
		return errs.New(errs.LoadingLimitExceeded, "loading limit of %d objects exceeded", l.cfg.LoadingLimit)
	}
	return nil
}

// LoadTypeInternal is the type entry point used both by the public API and
// recursively by the RefList evaluator and constraint solver. It searches
// committed, then this run's pending table, before creating anything new
// (spec §3's lookup order).
func (l *Loader) LoadTypeInternal(run *pipelineRun, args LoadingArguments) (*RuntimeType, error) {
	key := args.key()
	if t, ok := l.committedTypes[key]; ok {
		return t, nil
	}
	if t, ok := run.pendingTypes[key]; ok {
		return t, nil
	}

	tmpl, err := l.reg.FindTypeTemplate(args.AssemblyName, args.TemplateID)
	if err != nil {
		return nil, err
	}

	sizes := make([]int, len(args.Arguments))
	for i, seg := range args.Arguments {
		sizes[i] = len(seg)
	}
	if !tmpl.Generic.ParameterCount.CanMatch(sizes) {
		return nil, errs.New(errs.InvalidGenericArgs, "argument shape mismatch for %s#%d", args.AssemblyName, args.TemplateID)
	}

	if err := l.checkLimit(run); err != nil {
		return nil, err
	}

	if _, err := l.checkConstraints(run, args.AssemblyName, &tmpl.Generic, args.Arguments, nil); err != nil {
		return nil, err
	}

	t := &RuntimeType{loader: l, Args: args, TypeId: l.nextTypeId, Storage: tmpl.Storage}
	l.nextTypeId++

	switch tmpl.Storage {
	case assembly.Reference:
		t.state = stateLoadingRef
		run.pendingTypes[key] = t
		run.loadingRef = append(run.loadingRef, t)
		return t, nil
	default:
		for _, k := range run.loadingValues {
			if k == key {
				return nil, errs.New(errs.CyclicDependence, "cyclic value-type dependency on %s#%d", args.AssemblyName, args.TemplateID)
			}
		}
		run.loadingValues = append(run.loadingValues, key)
		run.pendingTypes[key] = t
		if err := l.layoutType(run, t, tmpl); err != nil {
			return nil, err
		}
		run.loadingValues = run.loadingValues[:len(run.loadingValues)-1]
		t.state = statePostLoading
		run.postLoading = append(run.postLoading, t)
		return t, nil
	}
}

// layoutType resolves and lays out t's fields via internal/layout, self
// being t itself so recursive reference fields (List<T>.tail) see a
// published pointer rather than re-entering instantiation.
func (l *Loader) layoutType(run *pipelineRun, t *RuntimeType, tmpl *assembly.TypeTemplate) error {
	ctx := &refCtx{loader: l, run: run, assemblyName: t.Args.AssemblyName, names: tmpl.Generic.NamesList, args: t.Args.Arguments, self: t}

	if tmpl.Base != assembly.NoRef {
		base, err := evalType(ctx, tmpl.Generic.Types, tmpl.Base)
		if err != nil {
			return err
		}
		t.Base = base
	}
	for _, ifaceIdx := range tmpl.Interfaces {
		iface, err := evalType(ctx, tmpl.Generic.Types, ifaceIdx)
		if err != nil {
			return err
		}
		t.Interfaces = append(t.Interfaces, InterfaceBinding{Interface: iface})
	}

	specs := make([]layout.FieldSpec, len(tmpl.StructFields))
	for i, fieldTypeIdx := range tmpl.StructFields {
		ft, err := evalType(ctx, tmpl.Generic.Types, fieldTypeIdx)
		if err != nil {
			return err
		}
		if ft == nil {
			return errs.New(errs.MalformedTemplate, "field %d of %s#%d resolves to void", i, t.Args.AssemblyName, t.Args.TemplateID)
		}
		name := ""
		if i < len(tmpl.FieldNames) {
			name = tmpl.FieldNames[i]
		}
		specs[i] = layout.FieldSpec{Name: name, Type: ft}
	}
	res := layout.Layout(specs)
	t.Size, t.Alignment = res.Size, res.Alignment
	l.resolveCoreIntrinsics()
	if l.pointerAssembly != "" && t.Args.AssemblyName == l.pointerAssembly && t.Args.TemplateID == l.pointerTemplateID {
		t.Size, t.Alignment = layout.PointerSize, layout.PointerSize
	}
	t.Fields = make([]Field, len(res.Fields))
	t.publicFields = make(map[string]int, len(res.Fields))
	for i, f := range res.Fields {
		rt, _ := f.Type.(*RuntimeType)
		t.Fields[i] = Field{Name: f.Name, Type: rt, Offset: f.Offset, Length: f.Length}
		if f.Name != "" {
			t.publicFields[f.Name] = i
		}
	}
	return nil
}

// postLoadType resolves initializer/finalizer, allocates static storage
// for GLOBAL types, and builds the public vtable.
func (l *Loader) postLoadType(run *pipelineRun, t *RuntimeType) error {
	tmpl, err := l.reg.FindTypeTemplate(t.Args.AssemblyName, t.Args.TemplateID)
	if err != nil {
		return err
	}
	ctx := &refCtx{loader: l, run: run, assemblyName: t.Args.AssemblyName, names: tmpl.Generic.NamesList, args: t.Args.Arguments, self: t}

	if tmpl.OnInitialize != assembly.NoRef {
		if t.Storage != assembly.Global {
			return errs.New(errs.MalformedTemplate, "only GLOBAL types may have an initializer")
		}
		fn, err := evalFunction(ctx, tmpl.Generic.Functions, tmpl.OnInitialize)
		if err != nil {
			return err
		}
		if err := l.requireVoidNoParams(fn); err != nil {
			return err
		}
		t.Initializer = fn
	}
	if tmpl.OnFinalize != assembly.NoRef {
		if t.Storage != assembly.Reference {
			return errs.New(errs.MalformedTemplate, "only REFERENCE types may have a finalizer")
		}
		fn, err := evalFunction(ctx, tmpl.Generic.Functions, tmpl.OnFinalize)
		if err != nil {
			return err
		}
		if err := l.requireVoidSelfParam(fn, t); err != nil {
			return err
		}
		t.Finalizer = fn
	}

	if t.Storage == assembly.Global {
		t.StaticBase = layout.AllocateStatic(t.Size, t.Alignment).Bytes()
	}

	l.buildVTable(ctx, t, tmpl)
	l.bindPublicFunctions(ctx, t, tmpl)

	if err := l.maybeBindPointerIntrinsic(t); err != nil {
		return err
	}
	return nil
}

func (l *Loader) requireVoidNoParams(fn *RuntimeFunction) error {
	if len(fn.Parameters) != 0 || fn.ReturnType != nil {
		return errs.New(errs.MalformedTemplate, "initializer must take no parameters and return void")
	}
	return nil
}

func (l *Loader) requireVoidSelfParam(fn *RuntimeFunction, self *RuntimeType) error {
	if len(fn.Parameters) != 1 || fn.Parameters[0] != self || fn.ReturnType != nil {
		return errs.New(errs.MalformedTemplate, "finalizer must take exactly one self-typed parameter and return void")
	}
	return nil
}

func (l *Loader) buildVTable(ctx *refCtx, t *RuntimeType, tmpl *assembly.TypeTemplate) {
	var vtable []vtableSlot
	if t.Base != nil {
		vtable = append(vtable, t.Base.vtable...)
	}
	for name, members := range tmpl.Functions.ByName {
		for _, m := range members {
			fn, err := evalFunction(ctx, tmpl.Generic.Functions, m.RefIndex)
			if err != nil || fn == nil {
				continue
			}
			overridden := false
			for i, slot := range vtable {
				if slot.name == name {
					vtable[i].fn = fn
					overridden = true
					break
				}
			}
			if !overridden {
				vtable = append(vtable, vtableSlot{name: name, fn: fn})
			}
		}
	}
	t.vtable = vtable

	for i := range t.Interfaces {
		ib := &t.Interfaces[i]
		ib.VTable = make([]*RuntimeFunction, len(ib.Interface.vtable))
		for j, slot := range ib.Interface.vtable {
			for _, own := range vtable {
				if own.name == slot.name {
					ib.VTable[j] = own.fn
					break
				}
			}
		}
	}
}

func (l *Loader) bindPublicFunctions(ctx *refCtx, t *RuntimeType, tmpl *assembly.TypeTemplate) {
	t.publicFunctions = make(map[string][]*RuntimeFunction, len(tmpl.Functions.ByName))
	for name, members := range tmpl.Functions.ByName {
		for _, m := range members {
			fn, err := evalFunction(ctx, tmpl.Generic.Functions, m.RefIndex)
			if err != nil || fn == nil {
				continue
			}
			t.publicFunctions[name] = append(t.publicFunctions[name], fn)
		}
	}
}

// LoadFunctionInternal mirrors LoadTypeInternal for functions.
func (l *Loader) LoadFunctionInternal(run *pipelineRun, args FunctionLoadingArguments) (*RuntimeFunction, error) {
	key := args.key()
	if f, ok := l.committedFunctions[key]; ok {
		return f, nil
	}
	if f, ok := run.pendingFunctions[key]; ok {
		return f, nil
	}

	tmpl, err := l.reg.FindFunctionTemplate(args.AssemblyName, args.TemplateID)
	if err != nil {
		return nil, err
	}
	sizes := make([]int, len(args.Arguments))
	for i, seg := range args.Arguments {
		sizes[i] = len(seg)
	}
	if !tmpl.Generic.ParameterCount.CanMatch(sizes) {
		return nil, errs.New(errs.InvalidGenericArgs, "argument shape mismatch for function %s#%d", args.AssemblyName, args.TemplateID)
	}
	if err := l.checkLimit(run); err != nil {
		return nil, err
	}
	if _, err := l.checkConstraints(run, args.AssemblyName, &tmpl.Generic, args.Arguments, nil); err != nil {
		return nil, err
	}

	code, err := l.code.GetCode(args.AssemblyName, args.TemplateID)
	if err != nil {
		return nil, err
	}

	f := &RuntimeFunction{loader: l, Args: args, FunctionId: l.nextFunctionId, Code: code, state: funcLoading}
	l.nextFunctionId++
	run.pendingFunctions[key] = f
	run.loadingFunctions = append(run.loadingFunctions, f)
	return f, nil
}

func (l *Loader) postLoadFunction(run *pipelineRun, f *RuntimeFunction) error {
	tmpl, err := l.reg.FindFunctionTemplate(f.Args.AssemblyName, f.Args.TemplateID)
	if err != nil {
		return err
	}
	ctx := &refCtx{loader: l, run: run, assemblyName: f.Args.AssemblyName, names: tmpl.Generic.NamesList, args: f.Args.Arguments}

	retType, err := evalType(ctx, tmpl.Generic.Types, tmpl.ReturnType)
	if err != nil {
		return err
	}
	f.ReturnType = retType

	f.Parameters = make([]*RuntimeType, len(tmpl.Parameters))
	for i, idx := range tmpl.Parameters {
		pt, err := evalType(ctx, tmpl.Generic.Types, idx)
		if err != nil {
			return err
		}
		f.Parameters[i] = pt
	}
	return nil
}

// checkConstraints evaluates every constraint of a declaration in order,
// each against its own backtracking Root (spec §4.6's CheckConstraintsImpl):
// the Root must exist before a constraint's operands are decoded, since an
// ANY entry allocates its undetermined variable on that same Root. This is
// why the loop below builds and solves one constraint.Cache at a time
// instead of pre-decoding every constraint.ConstraintSpec up front.
// wantExports, when non-nil, collects export-binder results.
func (l *Loader) checkConstraints(run *pipelineRun, assemblyName string, g *assembly.GenericDeclaration, args [][]*RuntimeType, wantExports []string) ([]constraint.ExportEntry, error) {
	if len(g.Constraints) == 0 {
		return nil, nil
	}
	ctx := &refCtx{loader: l, run: run, assemblyName: assemblyName, names: g.NamesList, args: args}
	resolver := &constraintResolver{loader: l, run: run, ctx: ctx}

	var exports []constraint.ExportEntry
	for _, c := range g.Constraints {
		root := &constraint.Root{}
		target, err := evalConstraintOperand(ctx, root, g.ConstraintRefs, c.Target)
		if err != nil {
			return nil, err
		}
		spec := constraint.ConstraintSpec{
			Kind: c.Kind, Target: target, ExportName: c.ExportName,
			SourceAssembly: assemblyName,
			Trait:          GenericRefFor(assemblyName, c.TraitIndex, c.TraitIsImport),
		}
		for _, a := range c.Arguments {
			argT, err := evalConstraintOperand(ctx, root, g.ConstraintRefs, a)
			if err != nil {
				return nil, err
			}
			spec.Arguments = append(spec.Arguments, argT)
		}

		cache := constraint.NewCache(root, spec, nil)
		if err := constraint.CheckConstraintCached(resolver, cache); err != nil {
			return nil, err
		}

		prefix := spec.ExportName + "/"
		for _, want := range wantExports {
			if !strings.HasPrefix(want, prefix) {
				continue
			}
			if e := constraint.BindExports(resolver, cache, strings.TrimPrefix(want, prefix)); e != nil {
				e.Name = want
				exports = append(exports, *e)
			}
		}
	}
	return exports, nil
}

// GenericRefFor builds a constraint.GenericRef for a trait index that is
// either local (isImport false) or an ImportTraits slot.
func GenericRefFor(assemblyName string, index int, isImport bool) constraint.GenericRef {
	if !isImport {
		return constraint.GenericRef{AssemblyName: assemblyName, TemplateID: index, ImportIndex: -1}
	}
	return constraint.GenericRef{AssemblyName: assemblyName, TemplateID: index, ImportIndex: index}
}

// MoveFinishedObjects commits every finished object in run into the
// loader's tables, invoking observer hooks first so a hook failure aborts
// the whole commit before anything is mutated (spec §6/§9).
func (l *Loader) MoveFinishedObjects(run *pipelineRun) error {
	for _, t := range run.finishedTypes {
		if err := l.obs.OnTypeLoaded(t); err != nil {
			return err
		}
	}
	for _, f := range run.finishedFunctions {
		if err := l.obs.OnFunctionLoaded(f); err != nil {
			return err
		}
	}
	for _, t := range run.finishedTypes {
		t.state = stateCommitted
		l.committedTypes[t.Args.key()] = t
		l.typesById[t.TypeId] = t
	}
	for _, f := range run.finishedFunctions {
		f.state = funcCommitted
		l.committedFunctions[f.Args.key()] = f
		l.functionsById[f.FunctionId] = f
	}
	return nil
}

// drain processes worklists in priority order (loading_ref, post_loading,
// loading_functions) until all are empty, per spec §4.3.
func (l *Loader) drain(run *pipelineRun) error {
	for {
		if len(run.loadingRef) > 0 {
			t := run.loadingRef[0]
			run.loadingRef = run.loadingRef[1:]
			tmpl, err := l.reg.FindTypeTemplate(t.Args.AssemblyName, t.Args.TemplateID)
			if err != nil {
				return err
			}
			if err := l.layoutType(run, t, tmpl); err != nil {
				return err
			}
			t.state = statePostLoading
			run.postLoading = append(run.postLoading, t)
			continue
		}
		if len(run.postLoading) > 0 {
			t := run.postLoading[0]
			run.postLoading = run.postLoading[1:]
			if err := l.postLoadType(run, t); err != nil {
				return err
			}
			t.state = stateFinished
			run.finishedTypes = append(run.finishedTypes, t)
			continue
		}
		if len(run.loadingFunctions) > 0 {
			f := run.loadingFunctions[0]
			run.loadingFunctions = run.loadingFunctions[1:]
			if err := l.postLoadFunction(run, f); err != nil {
				return err
			}
			f.state = funcFinished
			run.finishedFunctions = append(run.finishedFunctions, f)
			continue
		}
		break
	}
	return nil
}
