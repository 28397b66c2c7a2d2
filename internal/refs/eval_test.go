package refs

import "testing"

// stubResolver resolves ASSEMBLY/IMPORT to a tagged string so tests can
// assert on shape without needing real templates.
type stubResolver struct {
	self   string
	consts map[int]string
}

func (s stubResolver) Empty() string { return "" }

func (s stubResolver) Assembly(index int, args [][]string) (string, error) {
	return join("asm", index, args), nil
}

func (s stubResolver) Import(index int, args [][]string) (string, error) {
	return join("imp", index, args), nil
}

func (s stubResolver) Argument(index int) (string, error) {
	return join("arg", index, nil), nil
}

func (s stubResolver) Self() (string, error) { return s.self, nil }

func (s stubResolver) Subtype(nameIndex int, parent string, args [][]string) (string, error) {
	return join("sub:"+parent, nameIndex, args), nil
}

func (s stubResolver) Constraint(index int) (string, error) {
	return s.consts[index], nil
}

func (s stubResolver) Any() (string, error) { return "any", nil }

func (s stubResolver) TryFallback() string { return "fail" }

func join(prefix string, index int, args [][]string) string {
	out := prefix
	for range args {
		out += "+seg"
	}
	_ = index
	return out
}

func TestEvalClone(t *testing.T) {
	list := List{
		{Tag: CLONE, Index: 1},
		{Tag: SELF},
	}
	v, err := Eval[string](list, 0, stubResolver{self: "T"})
	if err != nil {
		t.Fatal(err)
	}
	if v != "T" {
		t.Errorf("got %q, want T", v)
	}
}

func TestEvalCloneCycleFails(t *testing.T) {
	list := List{
		{Tag: CLONE, Index: 1},
		{Tag: CLONE, Index: 0},
	}
	_, err := Eval[string](list, 0, stubResolver{})
	if err == nil {
		t.Fatal("expected cyclic CLONE to fail")
	}
}

func TestEvalEmpty(t *testing.T) {
	list := List{{Tag: EMPTY}}
	v, err := Eval[string](list, 0, stubResolver{})
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("got %q, want empty", v)
	}
}

func TestEvalAssemblyWithArgsAndSegments(t *testing.T) {
	// ASSEMBLY(id=5) SELF SEGMENT SELF EMPTY
	list := List{
		{Tag: ASSEMBLY, Index: 5},
		{Tag: SELF},
		{Tag: SEGMENT},
		{Tag: SELF},
		{Tag: EMPTY},
	}
	v, err := Eval[string](list, 0, stubResolver{self: "T"})
	if err != nil {
		t.Fatal(err)
	}
	if v != "asm+seg+seg" {
		t.Errorf("got %q", v)
	}
}

func TestEvalTryToleratesFailure(t *testing.T) {
	list := List{
		{Tag: TRY, Index: 1},
		{Tag: LISTEND}, // evaluating a LISTEND directly is malformed
	}
	v, err := Eval[string](list, 0, stubResolver{})
	if err != nil {
		t.Fatal(err)
	}
	if v != "fail" {
		t.Errorf("got %q, want fail", v)
	}
}

func TestEvalOutOfRangeIndex(t *testing.T) {
	list := List{{Tag: SELF}}
	_, err := Eval[string](list, 5, stubResolver{})
	if err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestShapeScanNoArgs(t *testing.T) {
	list := List{
		{Tag: ASSEMBLY, Index: 0},
		{Tag: EMPTY},
	}
	sizes, err := ShapeScan(list, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(sizes) != 0 {
		t.Errorf("got %v, want empty", sizes)
	}
}

func TestShapeScanMultipleSegments(t *testing.T) {
	list := List{
		{Tag: SELF},
		{Tag: SELF},
		{Tag: SEGMENT},
		{Tag: SELF},
		{Tag: EMPTY},
	}
	sizes, err := ShapeScan(list, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Errorf("got %v, want [2 1]", sizes)
	}
}
