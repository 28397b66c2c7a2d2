package constraint

import "strings"

// ExportKind tags what an ExportEntry names.
type ExportKind uint8

const (
	ExportTargetType ExportKind = iota
	ExportField
	ExportFunction
)

// ExportEntry is one constraint-derived value a later RefList CONSTRAINT
// entry can read back, keyed by the full "exportName/trailing/path" name.
type ExportEntry struct {
	Name  string
	Kind  ExportKind
	Type  RuntimeTypeHandle // ExportTargetType, ExportField
	Field int               // ExportField: field index on the target
	Func  *OverloadCandidate // ExportFunction: currently-selected overload
}

// BindExports walks name against c's own export surface: the literal
// ".target" yields SELF, otherwise a trait-declared field/function name
// matches directly, and a path segment before the next "/" descends into a
// named sub-constraint (spec §4.6's export binder).
func BindExports(r Resolver, c *Cache, name string) *ExportEntry {
	if name == ".target" {
		h, err := simplify(r, c.Root, c.Target)
		if err != nil {
			return nil
		}
		return &ExportEntry{Name: name, Kind: ExportTargetType, Type: h}
	}

	head, rest, hasRest := strings.Cut(name, "/")

	for i, bf := range c.fields {
		if bf.req.Name == head && !hasRest {
			h, err := simplify(r, c.Root, c.Target)
			if err != nil {
				return nil
			}
			return &ExportEntry{Name: name, Kind: ExportField, Type: h, Field: c.fields[i].index}
		}
	}
	for i, bfn := range c.funcs {
		if bfn.req.Name == head && !hasRest {
			if bfn.cursor >= len(bfn.candidates) {
				return nil
			}
			cand := c.funcs[i].candidates[bfn.cursor]
			return &ExportEntry{Name: name, Kind: ExportFunction, Func: &cand}
		}
	}
	if hasRest {
		for _, child := range c.children {
			if child.Spec.ExportName == head {
				return BindExports(r, child, rest)
			}
		}
	}
	return nil
}

// CheckConstraints evaluates every constraint of a declaration in order,
// building a fresh Cache (and Root) per constraint and collecting export
// entries whose name begins with "constraint.ExportName/". Matches spec
// §4.6's CheckConstraintsImpl: failure on any constraint aborts the whole
// declaration, but each constraint gets its own backtracking root.
func CheckConstraints(r Resolver, specs []ConstraintSpec, wantExports []string) ([]ExportEntry, error) {
	var exports []ExportEntry
	for _, spec := range specs {
		root := &Root{}
		cache := NewCache(root, spec, nil)
		if err := CheckConstraintCached(r, cache); err != nil {
			return nil, err
		}

		prefix := spec.ExportName + "/"
		for _, want := range wantExports {
			if !strings.HasPrefix(want, prefix) {
				continue
			}
			if e := BindExports(r, cache, strings.TrimPrefix(want, prefix)); e != nil {
				e.Name = want
				exports = append(exports, *e)
			}
		}
	}
	return exports, nil
}
