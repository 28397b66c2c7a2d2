package loader

import (
	"github.com/rollang/loader/internal/errs"
	"github.com/rollang/loader/internal/refs"
)

// refCtx is the shared evaluation context for one GenericDeclaration's
// Types/Functions/Fields RefLists: which assembly owns the declaration,
// what the current specialization's own arguments and self-type are, its
// names table, and any constraint-export bindings available to CONSTRAINT
// entries.
type refCtx struct {
	loader *Loader
	run    *pipelineRun

	assemblyName string
	names        []string
	args         [][]*RuntimeType // the specialization's own generic arguments
	self         *RuntimeType     // nil if not yet available (e.g. evaluating a function's own Generic outside any type)

	// constraintExports holds name -> resolved type/function bound by a
	// prior constraint's export binder, read back by CONSTRAINT entries.
	constraintExports map[string]*RuntimeType
}

func (c *refCtx) nameAt(i int) (string, error) {
	if i < 0 || i >= len(c.names) {
		return "", errs.New(errs.InvalidReference, "names table index %d out of range", i)
	}
	return c.names[i], nil
}

// typeRefResolver implements refs.Resolver[*RuntimeType] over a refCtx.
type typeRefResolver struct{ c *refCtx }

func (r typeRefResolver) Empty() *RuntimeType { return nil }

func (r typeRefResolver) Assembly(index int, args [][]*RuntimeType) (*RuntimeType, error) {
	return r.c.loader.LoadTypeInternal(r.c.run, LoadingArguments{
		AssemblyName: r.c.assemblyName, TemplateID: index, Arguments: args,
	})
}

func (r typeRefResolver) Import(index int, args [][]*RuntimeType) (*RuntimeType, error) {
	a, err := r.c.loader.reg.Find(r.c.assemblyName)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(a.ImportTypes) {
		return nil, errs.New(errs.InvalidReference, "import type %d out of range in %q", index, r.c.assemblyName)
	}
	res, err := r.c.loader.reg.ResolveImportTypeEntry(a.ImportTypes[index])
	if err != nil {
		return nil, err
	}
	return r.c.loader.LoadTypeInternal(r.c.run, LoadingArguments{
		AssemblyName: res.Assembly, TemplateID: res.ID, Arguments: args,
	})
}

func (r typeRefResolver) Argument(index int) (*RuntimeType, error) {
	if len(r.c.args) == 0 || index < 0 || index >= len(r.c.args[0]) {
		return nil, errs.New(errs.InvalidReference, "generic argument %d out of range", index)
	}
	return r.c.args[0][index], nil
}

func (r typeRefResolver) Self() (*RuntimeType, error) {
	if r.c.self == nil {
		return nil, errs.New(errs.InvalidReference, "SELF referenced outside a self-type context")
	}
	return r.c.self, nil
}

func (r typeRefResolver) Subtype(nameIndex int, parent *RuntimeType, args [][]*RuntimeType) (*RuntimeType, error) {
	name, err := r.c.nameAt(nameIndex)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, errs.New(errs.InvalidReference, "subtype lookup %q on a nil parent", name)
	}
	ownerAssembly := parent.Args.AssemblyName
	id := r.c.loader.reg.FindExportType(ownerAssembly, name)
	if id < 0 {
		return nil, errs.New(errs.LinkageFailure, "subtype %q not exported by %q", name, ownerAssembly)
	}
	return r.c.loader.LoadTypeInternal(r.c.run, LoadingArguments{
		AssemblyName: ownerAssembly, TemplateID: id, Arguments: args,
	})
}

func (r typeRefResolver) Constraint(index int) (*RuntimeType, error) {
	name, err := r.c.nameAt(index)
	if err != nil {
		return nil, err
	}
	t, ok := r.c.constraintExports[name]
	if !ok {
		return nil, errs.New(errs.InvalidReference, "constraint export %q not available", name)
	}
	return t, nil
}

func (r typeRefResolver) Any() (*RuntimeType, error) {
	return nil, errs.New(errs.MalformedTemplate, "ANY is only valid inside constraint evaluation")
}

func (r typeRefResolver) TryFallback() *RuntimeType { return nil }

// evalType evaluates list at index as a type reference in ctx.
func evalType(ctx *refCtx, list refs.List, index int) (*RuntimeType, error) {
	return refs.Eval[*RuntimeType](list, index, typeRefResolver{c: ctx})
}

// functionRefResolver implements refs.Resolver[*RuntimeFunction] over a refCtx.
type functionRefResolver struct{ c *refCtx }

func (r functionRefResolver) Empty() *RuntimeFunction { return nil }

func (r functionRefResolver) Assembly(index int, args [][]*RuntimeFunction) (*RuntimeFunction, error) {
	return r.c.loader.LoadFunctionInternal(r.c.run, FunctionLoadingArguments{
		AssemblyName: r.c.assemblyName, TemplateID: index, Arguments: toTypeArgs(r.c, args),
	})
}

func (r functionRefResolver) Import(index int, args [][]*RuntimeFunction) (*RuntimeFunction, error) {
	a, err := r.c.loader.reg.Find(r.c.assemblyName)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(a.ImportFunctions) {
		return nil, errs.New(errs.InvalidReference, "import function %d out of range in %q", index, r.c.assemblyName)
	}
	res, err := r.c.loader.reg.ResolveImportFunctionEntry(a.ImportFunctions[index])
	if err != nil {
		return nil, err
	}
	return r.c.loader.LoadFunctionInternal(r.c.run, FunctionLoadingArguments{
		AssemblyName: res.Assembly, TemplateID: res.ID, Arguments: toTypeArgs(r.c, args),
	})
}

// toTypeArgs function-reference arguments are themselves type arguments
// (a function specialization's own generic args, e.g. selecting an
// overload of a generic function) — since RuntimeFunction args in this
// evaluator are always empty in practice (functions referenced from a
// Functions RefList take the surrounding declaration's own type
// arguments), this simply reuses ctx.args.
func toTypeArgs(c *refCtx, _ [][]*RuntimeFunction) [][]*RuntimeType {
	return c.args
}

func (r functionRefResolver) Argument(index int) (*RuntimeFunction, error) {
	return nil, errs.New(errs.InvalidReference, "ARGUMENT is not valid in a function reference position")
}

func (r functionRefResolver) Self() (*RuntimeFunction, error) {
	return nil, errs.New(errs.InvalidReference, "SELF is not valid in a function reference position")
}

func (r functionRefResolver) Subtype(nameIndex int, parent *RuntimeFunction, args [][]*RuntimeFunction) (*RuntimeFunction, error) {
	return nil, errs.New(errs.InvalidReference, "SUBTYPE is not valid in a function reference position")
}

func (r functionRefResolver) Constraint(index int) (*RuntimeFunction, error) {
	return nil, errs.New(errs.InvalidReference, "CONSTRAINT is not valid in a function reference position")
}

func (r functionRefResolver) Any() (*RuntimeFunction, error) {
	return nil, errs.New(errs.MalformedTemplate, "ANY is only valid inside constraint evaluation")
}

func (r functionRefResolver) TryFallback() *RuntimeFunction { return nil }

func evalFunction(ctx *refCtx, list refs.List, index int) (*RuntimeFunction, error) {
	return refs.Eval[*RuntimeFunction](list, index, functionRefResolver{c: ctx})
}
