// Package loader implements the multi-phase instantiation pipeline: the
// instantiation cache, the layout/constraint/RefList pieces wired
// together, and the public GetType/GetFunction entry points.
package loader

import "strings"

// LoadingArguments is the identity key of a specialization request:
// assembly-qualified template id plus a multilist of resolved runtime type
// arguments. Two requests with equal LoadingArguments denote the same
// specialization (spec §3).
type LoadingArguments struct {
	AssemblyName string
	TemplateID   int
	Arguments    [][]*RuntimeType
}

// key renders a LoadingArguments into a comparable string built from each
// argument's own monotonic TypeId — never reflect.DeepEqual, since two
// RuntimeType values are never structurally compared, only identity
// (pointer/TypeId) compared, per spec's "identity & equality" rule.
func (a LoadingArguments) key() string {
	var b strings.Builder
	b.WriteString(a.AssemblyName)
	b.WriteByte('#')
	writeInt(&b, a.TemplateID)
	for _, seg := range a.Arguments {
		b.WriteByte('|')
		for _, t := range seg {
			b.WriteByte(',')
			if t == nil {
				b.WriteByte('-')
				continue
			}
			writeInt(&b, t.TypeId)
		}
	}
	return b.String()
}

func writeInt(b *strings.Builder, n int) {
	if n == 0 {
		b.WriteByte('0')
		return
	}
	neg := n < 0
	if neg {
		n = -n
		b.WriteByte('-')
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	b.Write(digits[i:])
}

// FunctionLoadingArguments is the analogous key for a function
// specialization request.
type FunctionLoadingArguments struct {
	AssemblyName string
	TemplateID   int
	Arguments    [][]*RuntimeType
}

func (a FunctionLoadingArguments) key() string {
	return LoadingArguments(a).key()
}
