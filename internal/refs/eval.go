package refs

import "fmt"

// MalformedError reports a RefList that cannot be interpreted: an
// out-of-range index, an unbounded CLONE chain, or a tag used where it is
// not meaningful (e.g. LISTEND as a standalone reference).
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string { return "malformed template: " + e.Reason }

// Resolver supplies the domain meaning for every RefList tag that reaches
// beyond pure list structure. T is the kind of object a single reference
// evaluates to: *loader.RuntimeType when walking a type RefList,
// *loader.RuntimeFunction for a function RefList, constraint.Type
// inside the solver's symbolic evaluation, and so on. Eval itself never
// constructs a T — every case of consequence is delegated here.
type Resolver[T any] interface {
	// Empty is returned for a standalone EMPTY entry (the "void" type) and
	// as the resolved value for a field slot that legitimately has none.
	Empty() T

	// Assembly resolves a local template reference (ASSEMBLY tag): index is
	// the template id in the current assembly, args is the already-evaluated
	// trailing argument multilist.
	Assembly(index int, args [][]T) (T, error)

	// Import resolves a foreign reference via the current assembly's import
	// table (IMPORT tag): index is the import-table slot.
	Import(index int, args [][]T) (T, error)

	// Argument picks arguments[0][index] under the single-dimension legacy
	// path (see DESIGN.md "multi-segment parameter lists" open question —
	// true multi-segment ARGUMENT addressing is not implemented).
	Argument(index int) (T, error)

	// Self substitutes the type currently being specialized (for a trait
	// target, the type the trait is being checked against).
	Self() (T, error)

	// Subtype performs a name-qualified member lookup: nameIndex indexes
	// the template's NamesList, parent is the already-evaluated parent type,
	// args is the trailing argument multilist.
	Subtype(nameIndex int, parent T, args [][]T) (T, error)

	// Constraint reads a previously bound constraint export by index into
	// the caller's NamesList/export table.
	Constraint(index int) (T, error)

	// Any produces a fresh undetermined variable. Valid only while
	// evaluating inside the constraint solver.
	Any() (T, error)

	// TryFallback is substituted for a TRY-wrapped evaluation that failed,
	// instead of propagating the error.
	TryFallback() T
}

type evalCtx[T any] struct {
	list List
	r    Resolver[T]
}

// Eval interprets the entry at index, following CLONE aliases (bounded by a
// visited set — an unbounded CLONE chain fails with MalformedError rather
// than looping forever) and delegating every domain-meaningful tag to r.
func Eval[T any](list List, index int, r Resolver[T]) (T, error) {
	c := evalCtx[T]{list: list, r: r}
	return c.evalFollowingClones(index)
}

func (c evalCtx[T]) evalFollowingClones(index int) (T, error) {
	var zero T
	visited := make(map[int]bool)
	for {
		e, err := c.list.at(index)
		if err != nil {
			return zero, err
		}
		if e.Tag != CLONE {
			return c.evalEntry(index, e)
		}
		if visited[index] {
			return zero, &MalformedError{Reason: fmt.Sprintf("cyclic CLONE chain at index %d", index)}
		}
		visited[index] = true
		index = e.Index
	}
}

func (c evalCtx[T]) evalEntry(index int, e Entry) (T, error) {
	var zero T
	switch e.Tag {
	case EMPTY:
		return c.r.Empty(), nil
	case ASSEMBLY:
		args, err := c.evalArgs(index + 1)
		if err != nil {
			return zero, err
		}
		return c.r.Assembly(e.Index, args)
	case IMPORT:
		args, err := c.evalArgs(index + 1)
		if err != nil {
			return zero, err
		}
		return c.r.Import(e.Index, args)
	case ARGUMENT:
		return c.r.Argument(e.Index)
	case SELF:
		return c.r.Self()
	case SUBTYPE:
		parentEntry := index + 1
		parent, err := c.evalFollowingClones(parentEntry)
		if err != nil {
			return zero, err
		}
		args, err := c.evalArgs(parentEntry + 1)
		if err != nil {
			return zero, err
		}
		return c.r.Subtype(e.Index, parent, args)
	case CONSTRAINT:
		return c.r.Constraint(e.Index)
	case ANY:
		return c.r.Any()
	case TRY:
		v, err := c.evalFollowingClones(e.Index)
		if err != nil {
			return c.r.TryFallback(), nil
		}
		return v, nil
	case LISTEND, SEGMENT:
		return zero, &MalformedError{Reason: fmt.Sprintf("%s used as a standalone reference at index %d", e.Tag, index)}
	case CLONETYPE:
		return zero, &MalformedError{Reason: "CLONETYPE is only valid in function RefList contexts"}
	default:
		return zero, &MalformedError{Reason: fmt.Sprintf("unknown tag %s at index %d", e.Tag, index)}
	}
}

// evalArgs evaluates the trailing argument multilist starting at from,
// splitting into segments on SEGMENT entries and stopping at the first
// EMPTY or LISTEND (see List.ArgsEnd).
func (c evalCtx[T]) evalArgs(from int) ([][]T, error) {
	end := c.list.ArgsEnd(from)
	var segments [][]T
	var cur []T
	for i := from; i < end; i++ {
		e, err := c.list.at(i)
		if err != nil {
			return nil, err
		}
		if e.Tag == SEGMENT {
			segments = append(segments, cur)
			cur = nil
			continue
		}
		v, err := c.evalFollowingClones(i)
		if err != nil {
			return nil, err
		}
		cur = append(cur, v)
	}
	segments = append(segments, cur)
	return segments, nil
}

// ShapeScan returns the size of each argument segment trailing the
// reference at from, without resolving any of the referenced entries.
// Nothing in the loader or the constraint solver calls it.
func ShapeScan(list List, from int) ([]int, error) {
	end := list.ArgsEnd(from)
	var sizes []int
	cur := 0
	seenAny := false
	for i := from; i < end; i++ {
		e, err := list.at(i)
		if err != nil {
			return nil, err
		}
		if e.Tag == SEGMENT {
			sizes = append(sizes, cur)
			cur = 0
			continue
		}
		cur++
		seenAny = true
	}
	if seenAny || len(sizes) > 0 || from < end {
		sizes = append(sizes, cur)
	}
	return sizes, nil
}
