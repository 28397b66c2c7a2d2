package assembly

import "testing"

func codeTestAssemblies() []Assembly {
	core := Assembly{
		Name:      "Core",
		Constants: []uint32{42},
		ExportConstants: []ExportEntry{
			{ExportName: "Answer", InternalID: 0},
		},
	}
	app := Assembly{
		Name: "App",
		Functions: []FunctionTemplate{
			{
				Name:         "F",
				Instruction:  []byte{0x01, 0x02},
				ConstantData: []byte{0xAA},
				ConstantTable: []ConstantEntry{
					{Offset: 0, Length: 1},         // inline, untouched
					{Offset: 0, Length: 0, ImportConstant: 0}, // import constant
				},
			},
		},
		ImportConstants: []ImportEntry{
			{AssemblyName: "Core", ImportName: "Answer"},
		},
	}
	return []Assembly{core, app}
}

func TestGetCodePadsAndRewrites(t *testing.T) {
	reg := NewRegistry(codeTestAssemblies())
	store := NewCodeStorage(reg)

	code, err := store.GetCode("App", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(code.Instruction) != 2+nopPadding {
		t.Fatalf("got instruction length %d, want %d", len(code.Instruction), 2+nopPadding)
	}
	for _, b := range code.Instruction[2:] {
		if b != nopByte {
			t.Fatalf("expected nop padding, got %x", b)
		}
	}

	if code.ConstantTable[0].Length != 1 {
		t.Errorf("inline entry should be untouched, got %+v", code.ConstantTable[0])
	}
	rewritten := code.ConstantTable[1]
	if rewritten.Length != 4 {
		t.Fatalf("expected rewritten entry length 4, got %+v", rewritten)
	}
	if len(code.ConstantData) != 1+4 {
		t.Fatalf("expected constant data grown by 4 bytes, got %d", len(code.ConstantData))
	}
	val := uint32(code.ConstantData[rewritten.Offset]) |
		uint32(code.ConstantData[rewritten.Offset+1])<<8 |
		uint32(code.ConstantData[rewritten.Offset+2])<<16 |
		uint32(code.ConstantData[rewritten.Offset+3])<<24
	if val != 42 {
		t.Errorf("got constant value %d, want 42", val)
	}
}

func TestGetCodeMemoizes(t *testing.T) {
	reg := NewRegistry(codeTestAssemblies())
	store := NewCodeStorage(reg)

	a, err := store.GetCode("App", 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.GetCode("App", 0)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected GetCode to return the same cached pointer")
	}
}
