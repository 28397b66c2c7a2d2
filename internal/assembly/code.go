package assembly

import (
	"encoding/binary"
	"sync"

	"github.com/rollang/loader/internal/errs"
)

// nopByte pads the tail of every function's instruction stream so a
// misaligned final instruction read never runs off the end of the slice.
const nopByte = 0x00
const nopPadding = 16

// RuntimeFunctionCode is the resolved, executable form of a FunctionTemplate,
// shared by every specialization of that template regardless of generic
// arguments — only field layouts and vtables vary per instantiation, never
// the code (spec §4.8).
type RuntimeFunctionCode struct {
	Assembly string
	ID       int

	Instruction  []byte
	ConstantData []byte
	ConstantTable []ConstantEntry
	Locals        []LocalVariable
}

// CodeStorage memoizes RuntimeFunctionCode by (assembly, template id) so
// repeated instantiations of the same generic function template never
// re-copy or re-rewrite its bytecode.
type CodeStorage struct {
	reg *Registry

	mu    sync.Mutex
	cache map[codeKey]*RuntimeFunctionCode
}

type codeKey struct {
	assembly string
	id       int
}

func NewCodeStorage(reg *Registry) *CodeStorage {
	return &CodeStorage{reg: reg, cache: make(map[codeKey]*RuntimeFunctionCode)}
}

// GetCode returns the memoized RuntimeFunctionCode for (assembly, id),
// building it on first access: template bytecode is copied, 16 trailing
// no-op bytes are appended, and every ConstantTable entry with Length==0 is
// resolved to its cross-assembly u32 value and rewritten to a 4-byte
// inline entry.
func (c *CodeStorage) GetCode(assemblyName string, id int) (*RuntimeFunctionCode, error) {
	key := codeKey{assembly: assemblyName, id: id}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	tmpl, err := c.reg.FindFunctionTemplate(assemblyName, id)
	if err != nil {
		return nil, err
	}

	code := &RuntimeFunctionCode{
		Assembly:     assemblyName,
		ID:           id,
		Instruction:  append(append([]byte(nil), tmpl.Instruction...), makeNopPad()...),
		ConstantData: append([]byte(nil), tmpl.ConstantData...),
		Locals:       append([]LocalVariable(nil), tmpl.Locals...),
	}
	code.ConstantTable = make([]ConstantEntry, len(tmpl.ConstantTable))
	copy(code.ConstantTable, tmpl.ConstantTable)

	for i, ce := range code.ConstantTable {
		if ce.Length != 0 {
			continue
		}
		val, err := c.reg.ConstantValue(assemblyName, ce.ImportConstant)
		if err != nil {
			return nil, errs.New(errs.LinkageFailure, "resolving import constant %d of %s#%d: %s", ce.ImportConstant, assemblyName, id, err)
		}
		offset := len(code.ConstantData)
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], val)
		code.ConstantData = append(code.ConstantData, buf[:]...)
		code.ConstantTable[i] = ConstantEntry{Offset: offset, Length: 4}
	}

	c.mu.Lock()
	if existing, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.cache[key] = code
	c.mu.Unlock()
	return code, nil
}

func makeNopPad() []byte {
	pad := make([]byte, nopPadding)
	for i := range pad {
		pad[i] = nopByte
	}
	return pad
}
