package loader

import (
	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/constraint"
	"github.com/rollang/loader/internal/errs"
	"github.com/rollang/loader/internal/refs"
)

// constraintTypeResolver implements refs.Resolver[constraint.Type] over a
// GenericDeclaration's ConstraintRefs list: ASSEMBLY/IMPORT entries become
// symbolic constraint.Generic types (not yet instantiated — the solver
// instantiates them lazily via constraintResolver.LoadType),
// ARGUMENT/SELF resolve directly to already-known RuntimeTypes, CONSTRAINT
// reads back a sibling constraint's export, and ANY allocates a fresh
// undetermined variable on root.
type constraintTypeResolver struct {
	c    *refCtx
	root *constraint.Root

	// symbolicSelf/symbolicArgs override SELF/ARGUMENT resolution when
	// evaluating a trait body (spec §4.6): the trait's own declaration
	// references SELF for the type being checked and ARGUMENT for the
	// trait's own generic parameters, both of which may still be symbolic
	// (unresolved Generic/Any types) rather than already-known
	// RuntimeTypes, so they can't go through refCtx's *RuntimeType-typed
	// self/args. Left unset (hasSymbolicSelf false, symbolicArgs nil) for
	// ordinary (non-trait) constraint decoding, which falls back to
	// refCtx's own already-resolved self/args.
	hasSymbolicSelf bool
	symbolicSelf    constraint.Type
	symbolicArgs    []constraint.Type
}

func (r constraintTypeResolver) Empty() constraint.Type { return constraint.EmptyType() }

func (r constraintTypeResolver) Assembly(index int, args [][]constraint.Type) (constraint.Type, error) {
	return constraint.Type{Kind: constraint.Generic, Ref: constraint.GenericRef{AssemblyName: r.c.assemblyName, TemplateID: index, ImportIndex: -1}, Args: args}, nil
}

func (r constraintTypeResolver) Import(index int, args [][]constraint.Type) (constraint.Type, error) {
	a, err := r.c.loader.reg.Find(r.c.assemblyName)
	if err != nil {
		return constraint.FailType(), err
	}
	if index < 0 || index >= len(a.ImportTypes) {
		return constraint.FailType(), errs.New(errs.InvalidReference, "import type %d out of range in %q", index, r.c.assemblyName)
	}
	res, err := r.c.loader.reg.ResolveImportTypeEntry(a.ImportTypes[index])
	if err != nil {
		return constraint.FailType(), err
	}
	return constraint.Type{Kind: constraint.Generic, Ref: constraint.GenericRef{AssemblyName: res.Assembly, TemplateID: res.ID, ImportIndex: -1}, Args: args}, nil
}

func (r constraintTypeResolver) Argument(index int) (constraint.Type, error) {
	if r.symbolicArgs != nil {
		if index < 0 || index >= len(r.symbolicArgs) {
			return constraint.FailType(), errs.New(errs.InvalidReference, "trait argument %d out of range", index)
		}
		return r.symbolicArgs[index], nil
	}
	if len(r.c.args) == 0 || index < 0 || index >= len(r.c.args[0]) {
		return constraint.FailType(), errs.New(errs.InvalidReference, "generic argument %d out of range", index)
	}
	t := r.c.args[0][index]
	if t == nil {
		return constraint.EmptyType(), nil
	}
	return constraint.RTType(t), nil
}

func (r constraintTypeResolver) Self() (constraint.Type, error) {
	if r.hasSymbolicSelf {
		return r.symbolicSelf, nil
	}
	if r.c.self == nil {
		return constraint.FailType(), errs.New(errs.InvalidReference, "SELF referenced outside a self-type context")
	}
	return constraint.RTType(r.c.self), nil
}

func (r constraintTypeResolver) Subtype(nameIndex int, parent constraint.Type, args [][]constraint.Type) (constraint.Type, error) {
	name, err := r.c.nameAt(nameIndex)
	if err != nil {
		return constraint.FailType(), err
	}
	return constraint.Type{Kind: constraint.Subtype, SubtypeName: name, Parent: &parent, Args: args}, nil
}

func (r constraintTypeResolver) Constraint(index int) (constraint.Type, error) {
	name, err := r.c.nameAt(index)
	if err != nil {
		return constraint.FailType(), err
	}
	t, ok := r.c.constraintExports[name]
	if !ok {
		return constraint.FailType(), errs.New(errs.InvalidReference, "constraint export %q not available", name)
	}
	return constraint.RTType(t), nil
}

func (r constraintTypeResolver) Any() (constraint.Type, error) {
	return r.root.NewVar(), nil
}

func (r constraintTypeResolver) TryFallback() constraint.Type {
	return constraint.Type{Kind: constraint.Fail, TryFallback: true}
}

func evalConstraintOperand(ctx *refCtx, root *constraint.Root, list refs.List, index int) (constraint.Type, error) {
	return refs.Eval[constraint.Type](list, index, constraintTypeResolver{c: ctx, root: root})
}

// evalTraitOperand evaluates one entry of a trait's own ConstraintRefs/Fields
// list, substituting self/traitArgs for SELF/ARGUMENT instead of ctx's own
// (unrelated) self/args.
func evalTraitOperand(ctx *refCtx, root *constraint.Root, self constraint.Type, traitArgs []constraint.Type, list refs.List, index int) (constraint.Type, error) {
	return refs.Eval[constraint.Type](list, index, constraintTypeResolver{
		c: ctx, root: root, hasSymbolicSelf: true, symbolicSelf: self, symbolicArgs: traitArgs,
	})
}

// constraintResolver implements constraint.Resolver by delegating back
// into the loader's pipeline: loading a Generic/Subtype symbolic type
// means instantiating it through the ordinary LoadTypeInternal path (so it
// joins the same worklists and cycle detection as everything else).
type constraintResolver struct {
	loader *Loader
	run    *pipelineRun
	ctx    *refCtx
}

func (r *constraintResolver) LoadType(ref constraint.GenericRef, args [][]constraint.RuntimeTypeHandle) (constraint.RuntimeTypeHandle, error) {
	rtArgs := make([][]*RuntimeType, len(args))
	for i, seg := range args {
		rtArgs[i] = make([]*RuntimeType, len(seg))
		for j, h := range seg {
			rt, _ := h.(*RuntimeType)
			rtArgs[i][j] = rt
		}
	}
	assemblyName, templateID := ref.AssemblyName, ref.TemplateID
	if ref.ImportIndex >= 0 {
		a, err := r.loader.reg.Find(ref.AssemblyName)
		if err != nil {
			return nil, err
		}
		if ref.ImportIndex >= len(a.ImportTypes) {
			return nil, errs.New(errs.InvalidReference, "import type %d out of range", ref.ImportIndex)
		}
		res, err := r.loader.reg.ResolveImportTypeEntry(a.ImportTypes[ref.ImportIndex])
		if err != nil {
			return nil, err
		}
		assemblyName, templateID = res.Assembly, res.ID
	}
	t, err := r.loader.LoadTypeInternal(r.run, LoadingArguments{AssemblyName: assemblyName, TemplateID: templateID, Arguments: rtArgs})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return t, nil
}

func (r *constraintResolver) LoadSubtype(name string, parent constraint.RuntimeTypeHandle, args [][]constraint.RuntimeTypeHandle) (constraint.RuntimeTypeHandle, error) {
	p, _ := parent.(*RuntimeType)
	if p == nil {
		return nil, errs.New(errs.InvalidReference, "subtype lookup %q on a nil parent", name)
	}
	ownerAssembly := p.Args.AssemblyName
	id := r.loader.reg.FindExportType(ownerAssembly, name)
	if id < 0 {
		return nil, errs.New(errs.LinkageFailure, "subtype %q not exported by %q", name, ownerAssembly)
	}
	rtArgs := make([][]*RuntimeType, len(args))
	for i, seg := range args {
		rtArgs[i] = make([]*RuntimeType, len(seg))
		for j, h := range seg {
			rt, _ := h.(*RuntimeType)
			rtArgs[i][j] = rt
		}
	}
	return r.loader.LoadTypeInternal(r.run, LoadingArguments{AssemblyName: ownerAssembly, TemplateID: id, Arguments: rtArgs})
}

func (r *constraintResolver) SameType(a, b constraint.RuntimeTypeHandle) bool {
	at, _ := a.(*RuntimeType)
	bt, _ := b.(*RuntimeType)
	return at == bt
}

func (r *constraintResolver) IsBase(a, b constraint.RuntimeTypeHandle) bool {
	at, _ := a.(*RuntimeType)
	bt, _ := b.(*RuntimeType)
	if at == nil || bt == nil {
		return false
	}
	return at.IsBase(bt)
}

func (r *constraintResolver) HasInterface(t, i constraint.RuntimeTypeHandle) bool {
	tt, _ := t.(*RuntimeType)
	it, _ := i.(*RuntimeType)
	if tt == nil || it == nil {
		return false
	}
	if tt.HasInterface(it) {
		return true
	}
	if tt.Storage != assembly.Value {
		return false
	}
	box, err := r.loader.LoadBoxType(r.run, tt)
	if err != nil || box == nil {
		return false
	}
	return box.HasInterface(it)
}

func (r *constraintResolver) Trait(assemblyName string, ref constraint.GenericRef) (constraint.TraitHandle, error) {
	name := assemblyName
	id := ref.TemplateID
	if ref.ImportIndex >= 0 {
		a, err := r.loader.reg.Find(assemblyName)
		if err != nil {
			return nil, err
		}
		if ref.ImportIndex >= len(a.ImportTraits) {
			return nil, errs.New(errs.InvalidReference, "import trait %d out of range", ref.ImportIndex)
		}
		res, err := r.loader.reg.ResolveImportTraitEntry(a.ImportTraits[ref.ImportIndex])
		if err != nil {
			return nil, err
		}
		name, id = res.Assembly, res.ID
	}
	tmpl, err := r.loader.reg.FindTraitTemplate(name, id)
	if err != nil {
		return nil, err
	}
	return &traitHandle{assemblyName: name, templateID: id, tmpl: tmpl}, nil
}

type traitHandle struct {
	assemblyName string
	templateID   int
	tmpl         *assembly.TraitTemplate
}

func (r *constraintResolver) TraitRequirements(root *constraint.Root, th constraint.TraitHandle, self constraint.Type, args [][]constraint.Type) (constraint.TraitRequirements, error) {
	h, ok := th.(*traitHandle)
	if !ok {
		return constraint.TraitRequirements{}, errs.New(errs.InternalAssertion, "not a traitHandle")
	}
	ctx := &refCtx{loader: r.loader, run: r.run, assemblyName: h.assemblyName, names: h.tmpl.Generic.NamesList}
	var traitArgs []constraint.Type
	if len(args) > 0 {
		traitArgs = args[0]
	}

	reqs := constraint.TraitRequirements{}
	for i, refIdx := range h.tmpl.FieldRefs {
		expected, err := evalTraitOperand(ctx, root, self, traitArgs, h.tmpl.Generic.Fields, refIdx)
		if err != nil {
			return constraint.TraitRequirements{}, err
		}
		name := ""
		if i < len(h.tmpl.FieldNames) {
			name = h.tmpl.FieldNames[i]
		}
		reqs.Fields = append(reqs.Fields, constraint.TraitFieldReq{Name: name, ExpectedType: expected})
	}
	for i := range h.tmpl.FunctionRefs {
		name := ""
		if i < len(h.tmpl.FunctionNames) {
			name = h.tmpl.FunctionNames[i]
		}
		reqs.Functions = append(reqs.Functions, constraint.TraitFunctionReq{Name: name})
	}
	for _, c := range h.tmpl.Generic.Constraints {
		target, err := evalTraitOperand(ctx, root, self, traitArgs, h.tmpl.Generic.ConstraintRefs, c.Target)
		if err != nil {
			return constraint.TraitRequirements{}, err
		}
		spec := constraint.ConstraintSpec{Kind: c.Kind, Target: target, ExportName: c.ExportName, SourceAssembly: h.assemblyName, Trait: GenericRefFor(h.assemblyName, c.TraitIndex, c.TraitIsImport)}
		for _, a := range c.Arguments {
			argT, err := evalTraitOperand(ctx, root, self, traitArgs, h.tmpl.Generic.ConstraintRefs, a)
			if err != nil {
				return constraint.TraitRequirements{}, err
			}
			spec.Arguments = append(spec.Arguments, argT)
		}
		reqs.SubConstraints = append(reqs.SubConstraints, spec)
	}
	return reqs, nil
}

func (r *constraintResolver) PublicField(t constraint.RuntimeTypeHandle, name string) (constraint.RuntimeTypeHandle, int, bool) {
	rt, _ := t.(*RuntimeType)
	if rt == nil {
		return nil, 0, false
	}
	ft, idx, ok := rt.PublicField(name)
	return ft, idx, ok
}

// FunctionCandidates returns t's own public functions named name, each
// with VirtualSlot -1. want is ignored (no signature filter is applied),
// and t's base chain and interface vtables are not searched.
func (r *constraintResolver) FunctionCandidates(t constraint.RuntimeTypeHandle, name string, want constraint.FuncSig) []constraint.OverloadCandidate {
	rt, _ := t.(*RuntimeType)
	if rt == nil {
		return nil
	}
	var out []constraint.OverloadCandidate
	for _, fn := range rt.PublicFunctions(name) {
		out = append(out, constraint.OverloadCandidate{ID: fn, VirtualSlot: -1})
	}
	return out
}

func (r *constraintResolver) StorageOf(t constraint.RuntimeTypeHandle) assembly.StorageMode {
	rt, _ := t.(*RuntimeType)
	if rt == nil {
		return assembly.Value
	}
	return rt.Storage
}
