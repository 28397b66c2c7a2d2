// Package errs defines the loader's closed error taxonomy (spec §6/§7): a
// kind tag plus a message, used everywhere in place of ad hoc string errors
// so callers (and tests) can switch on failure class.
package errs

import "fmt"

// Kind is a closed set of loader failure classes.
type Kind string

const (
	AssemblyNotFound       Kind = "AssemblyNotFound"
	InvalidReference       Kind = "InvalidReference"
	InvalidGenericArgs     Kind = "InvalidGenericArguments"
	CyclicDependence       Kind = "CyclicDependence"
	CircularConstraint     Kind = "CircularConstraint"
	InvalidConstraint      Kind = "InvalidConstraint"
	ConstraintCheckFailure Kind = "ConstraintCheckFailure"
	LinkageFailure         Kind = "LinkageFailure"
	InvalidIntrinsic       Kind = "InvalidIntrinsic"
	NativeTypeUnsuitable   Kind = "NativeTypeUnsuitable"
	LoadingLimitExceeded   Kind = "LoadingLimitExceeded"
	MalformedTemplate      Kind = "MalformedTemplate"
	InternalAssertion      Kind = "InternalAssertion"
)

// LoaderError is the error type returned by every public and internal
// loader operation. A nil *LoaderError is never returned as a non-nil
// error; use New to construct one.
type LoaderError struct {
	Kind    Kind
	Message string
}

func New(kind Kind, format string, args ...any) *LoaderError {
	return &LoaderError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether err is a *LoaderError of the given kind, so callers
// can do errs.Is(err, errs.CyclicDependence) instead of a type assertion.
func Is(err error, kind Kind) bool {
	le, ok := err.(*LoaderError)
	return ok && le.Kind == kind
}
