package constraint

import (
	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/errs"
)

// unify attempts to make a and b denote the same type, binding any Any
// variables it encounters along the way via root.DeductRT, and reports
// whether it made progress (bound a variable) plus the types to use going
// forward. It never itself fails outright — genuine mismatches are left
// for the final RT-vs-RT comparison made by simplify's callers.
func unify(root *Root, a, b Type) (Type, Type, bool) {
	if a.Kind == Any {
		if h := root.Determined(a.AnyIndex); h != nil {
			a = RTType(h)
		}
	}
	if b.Kind == Any {
		if h := root.Determined(b.AnyIndex); h != nil {
			b = RTType(h)
		}
	}
	switch {
	case a.Kind == Any && b.Kind == RT:
		root.DeductRT(a.AnyIndex, b.RT)
		return b, b, true
	case b.Kind == Any && a.Kind == RT:
		root.DeductRT(b.AnyIndex, a.RT)
		return a, a, true
	case a.Kind == Generic && b.Kind == Generic && a.Ref == b.Ref:
		progress := false
		for i := range a.Args {
			for j := range a.Args[i] {
				_, _, p := unify(root, a.Args[i][j], b.Args[i][j])
				progress = progress || p
			}
		}
		return a, b, progress
	default:
		return a, b, false
	}
}

// tryDetermineConstraintArgument runs one unification pass over a
// constraint's target and arguments, reporting whether any variable
// changed state.
func tryDetermineConstraintArgument(root *Root, c *Cache) bool {
	progress := false
	for i, arg := range c.Args {
		_, _, p := unify(root, c.Target, arg)
		progress = progress || p
		_ = i
	}
	return progress
}

// simplify resolves a symbolic Type to RT by instantiating through r,
// recursively simplifying GENERIC/SUBTYPE arguments first. An undetermined
// ANY yields a nil handle with no error when it carries TryFallback, and a
// ConstraintCheckFailure error otherwise (EXIST/SAME/BASE/INTERFACE/TRAIT
// all need their operands fully concrete).
func simplify(r Resolver, root *Root, t Type) (RuntimeTypeHandle, error) {
	switch t.Kind {
	case RT:
		return t.RT, nil
	case Any:
		if h := root.Determined(t.AnyIndex); h != nil {
			return h, nil
		}
		if t.TryFallback {
			return nil, nil
		}
		return nil, errs.New(errs.ConstraintCheckFailure, "undetermined generic argument")
	case Generic:
		args := make([][]RuntimeTypeHandle, len(t.Args))
		for i, seg := range t.Args {
			args[i] = make([]RuntimeTypeHandle, len(seg))
			for j, a := range seg {
				h, err := simplify(r, root, a)
				if err != nil {
					return nil, err
				}
				args[i][j] = h
			}
		}
		return r.LoadType(t.Ref, args)
	case Subtype:
		parent, err := simplify(r, root, *t.Parent)
		if err != nil {
			return nil, err
		}
		args := make([][]RuntimeTypeHandle, len(t.Args))
		for i, seg := range t.Args {
			args[i] = make([]RuntimeTypeHandle, len(seg))
			for j, a := range seg {
				h, err := simplify(r, root, a)
				if err != nil {
					return nil, err
				}
				args[i][j] = h
			}
		}
		return r.LoadSubtype(t.SubtypeName, parent, args)
	case Empty:
		return nil, nil
	default:
		if t.TryFallback {
			return nil, nil
		}
		return nil, errs.New(errs.ConstraintCheckFailure, "constraint target failed to resolve")
	}
}

// checkSinglePass runs one fix-point iteration: unify until no progress,
// then simplify every operand to RT and evaluate the constraint's
// predicate. Returns an error for "this combination of overload/backtrack
// choices does not satisfy the constraint" as much as for a hard loader
// failure — CheckConstraintCached distinguishes by retrying on any error
// from here, exhausting when backtracking is spent.
func checkSinglePass(r Resolver, c *Cache) error {
	for tryDetermineConstraintArgument(c.Root, c) {
	}

	switch c.Spec.Kind {
	case assembly.ConstraintExist:
		_, err := simplify(r, c.Root, c.Target)
		return err
	case assembly.ConstraintSame:
		a, err := simplify(r, c.Root, c.Target)
		if err != nil {
			return err
		}
		b, err := simplify(r, c.Root, c.Args[0])
		if err != nil {
			return err
		}
		if !r.SameType(a, b) {
			return errs.New(errs.ConstraintCheckFailure, "SAME: types differ")
		}
		return nil
	case assembly.ConstraintBase:
		a, err := simplify(r, c.Root, c.Target)
		if err != nil {
			return err
		}
		b, err := simplify(r, c.Root, c.Args[0])
		if err != nil {
			return err
		}
		if !r.IsBase(a, b) {
			return errs.New(errs.ConstraintCheckFailure, "BASE: not on base chain")
		}
		return nil
	case assembly.ConstraintInterface:
		a, err := simplify(r, c.Root, c.Target)
		if err != nil {
			return err
		}
		b, err := simplify(r, c.Root, c.Args[0])
		if err != nil {
			return err
		}
		if !r.HasInterface(a, b) {
			return errs.New(errs.ConstraintCheckFailure, "INTERFACE: not implemented")
		}
		return nil
	case assembly.ConstraintTrait:
		return checkTrait(r, c)
	default:
		return errs.New(errs.InvalidConstraint, "unknown constraint kind %v", c.Spec.Kind)
	}
}

// checkTrait verifies every bound field (presence and type) against the
// (now-simplified) target type. For each bound function it only checks that
// a candidate exists at the current overload cursor; the candidate's
// signature is not compared with the requirement's expected one.
func checkTrait(r Resolver, c *Cache) error {
	self, err := simplify(r, c.Root, c.Target)
	if err != nil {
		return err
	}

	for i, bf := range c.fields {
		fieldType, idx, ok := r.PublicField(self, bf.req.Name)
		if !ok {
			return errs.New(errs.ConstraintCheckFailure, "TRAIT: missing field %q", bf.req.Name)
		}
		want, err := simplify(r, c.Root, bf.req.ExpectedType)
		if err != nil {
			return err
		}
		if !r.SameType(fieldType, want) {
			return errs.New(errs.ConstraintCheckFailure, "TRAIT: field %q type mismatch", bf.req.Name)
		}
		c.fields[i].index = idx
	}

	for i, bfn := range c.funcs {
		if bfn.candidates == nil {
			c.funcs[i].candidates = r.FunctionCandidates(self, bfn.req.Name, bfn.req.Expected)
		}
		if bfn.cursor >= len(c.funcs[i].candidates) {
			return errs.New(errs.ConstraintCheckFailure, "TRAIT: no matching overload for %q", bfn.req.Name)
		}
	}

	for _, child := range c.children {
		if err := checkSinglePass(r, child); err != nil {
			return err
		}
	}
	return nil
}

// moveToNextCandidates advances the nested overload counter formed by
// every bound function's cursor across the whole cache tree (children
// first, then this node's own functions), reporting whether another
// combination exists.
func moveToNextCandidates(c *Cache) bool {
	for _, child := range c.children {
		if moveToNextCandidates(child) {
			return true
		}
	}
	for i := range c.funcs {
		c.funcs[i].cursor++
		if c.funcs[i].cursor < len(c.funcs[i].candidates) {
			return true
		}
		c.funcs[i].cursor = 0
	}
	return false
}

// CheckConstraintCached repeatedly runs checkSinglePass, backtracking the
// root's variable table and advancing overload cursors between attempts,
// until it succeeds or every combination is exhausted.
func CheckConstraintCached(r Resolver, c *Cache) error {
	if c.Spec.Kind == assembly.ConstraintTrait && c.trait == nil {
		if err := buildTraitChildren(r, c); err != nil {
			return err
		}
	}

	var lastErr error
	for {
		level := c.Root.StartBacktrackPoint()
		err := checkSinglePass(r, c)
		if err == nil {
			return nil
		}
		lastErr = err
		c.Root.DoBacktrack(level)
		if !moveToNextCandidates(c) {
			if c.Spec.Target.TryFallback {
				return nil
			}
			return lastErr
		}
	}
}
