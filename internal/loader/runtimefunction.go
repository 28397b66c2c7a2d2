package loader

import "github.com/rollang/loader/internal/assembly"

type functionState uint8

const (
	funcCreating functionState = iota
	funcLoading
	funcPostLoading
	funcFinished
	funcCommitted
)

// RuntimeFunction is one fully (or partially) instantiated specialization
// of a function template.
type RuntimeFunction struct {
	loader *Loader

	Args FunctionLoadingArguments
	FunctionId int

	state functionState

	Code *assembly.RuntimeFunctionCode

	ReferencedTypes     []*RuntimeType
	ReferencedFunctions []*RuntimeFunction

	ReturnType *RuntimeType
	Parameters []*RuntimeType
}

func (f *RuntimeFunction) TypeIdentity() any { return f.FunctionId }
