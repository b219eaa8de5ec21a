package ir

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

const sampleProgram = `{
  "functions": [{
    "name": "main",
    "args": [{"name": "n", "type": "int"}],
    "instrs": [
      {"op": "const", "dest": "one", "type": "int", "value": 1},
      {"op": "lt", "dest": "c", "type": "bool", "args": ["n", "one"]},
      {"op": "br", "args": ["c"], "labels": ["then", "else"]},
      {"label": "then"},
      {"op": "print", "args": ["n"]},
      {"op": "jmp", "labels": ["end"]},
      {"label": "else"},
      {"op": "id", "dest": "x", "type": {"ptr": "int"}, "args": ["n"]},
      {"label": "end"},
      {"op": "phi", "dest": "y", "type": "int", "base": "y", "args": ["n", "x"], "labels": ["then", "else"]},
      {"op": "ret", "args": ["one"]}
    ]
  }]
}`

func TestDecodeProgram(t *testing.T) {
	prog, err := DecodeProgram(strings.NewReader(sampleProgram))
	assert.NilError(t, err)
	assert.Assert(t, is.Len(prog.Functions, 1))

	fn := prog.Functions[0]
	assert.Equal(t, fn.Name, "main")
	assert.DeepEqual(t, fn.ParamNames(), []string{"n"})
	assert.Assert(t, is.Len(fn.Instrs, 11))

	assert.DeepEqual(t, fn.Instrs[0], Instruction(ValueOp{Op: "const", Dest: "one", Type: "int", Value: "1"}))
	assert.DeepEqual(t, fn.Instrs[2], Instruction(Branch{Cond: "c", True: "then", False: "else"}))
	assert.DeepEqual(t, fn.Instrs[3], Instruction(Label{Name: "then"}))
	assert.DeepEqual(t, fn.Instrs[4], Instruction(EffectOp{Op: "print", Args: []string{"n"}}))
	assert.DeepEqual(t, fn.Instrs[5], Instruction(Jump{Target: "end"}))
	assert.DeepEqual(t, fn.Instrs[10], Instruction(Return{Arg: "one"}))

	v, ok := fn.Instrs[7].(ValueOp)
	assert.Assert(t, ok)
	assert.Equal(t, v.Type, `{"ptr":"int"}`)

	phi, ok := fn.Instrs[9].(Phi)
	assert.Assert(t, ok)
	assert.Equal(t, phi.Base, "y")
	assert.DeepEqual(t, phi.Labels, []string{"then", "else"})
}

func TestDecodeProgramRejectsMalformedInstructions(t *testing.T) {
	tests := []struct {
		name  string
		instr string
		want  string
	}{
		{"br with one label", `{"op": "br", "args": ["c"], "labels": ["a"]}`, "br needs"},
		{"jmp without label", `{"op": "jmp"}`, "jmp needs"},
		{"ret with two args", `{"op": "ret", "args": ["a", "b"]}`, "ret takes"},
		{"empty instruction", `{}`, "neither label nor op"},
		{"phi arity mismatch", `{"op": "phi", "dest": "x", "args": ["a"], "labels": []}`, "phi x has"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := `{"functions": [{"name": "f", "instrs": [` + tc.instr + `]}]}`
			_, err := DecodeProgram(strings.NewReader(src))
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestRenameCopiesOperands(t *testing.T) {
	orig := ValueOp{Op: "add", Dest: "x", Args: []string{"a", "b"}}
	renamed := Rename(orig, strings.ToUpper, func(s string) string { return s + ".1" })

	assert.DeepEqual(t, renamed, Instruction(ValueOp{Op: "add", Dest: "x.1", Args: []string{"A", "B"}}))
	assert.DeepEqual(t, orig.Args, []string{"a", "b"})
}

func TestRenameLeavesPhiOperands(t *testing.T) {
	phi := Phi{Dest: "x", Base: "x", Args: []string{"x", "x"}, Labels: []string{"a", "b"}}
	renamed := Rename(phi, strings.ToUpper, func(s string) string { return s + ".3" }).(Phi)

	assert.Equal(t, renamed.Dest, "x.3")
	assert.DeepEqual(t, renamed.Args, []string{"x", "x"})
}

func TestUsesAndDef(t *testing.T) {
	tests := []struct {
		name   string
		instr  Instruction
		uses   []string
		def    string
		hasDef bool
		isTerm bool
		opcode string
	}{
		{"value op", ValueOp{Op: "add", Dest: "z", Args: []string{"x", "y"}}, []string{"x", "y"}, "z", true, false, "add"},
		{"effect op", EffectOp{Op: "print", Args: []string{"x"}}, []string{"x"}, "", false, false, "print"},
		{"branch", Branch{Cond: "c", True: "a", False: "b"}, []string{"c"}, "", false, true, "br"},
		{"jump", Jump{Target: "a"}, nil, "", false, true, "jmp"},
		{"return value", Return{Arg: "r"}, []string{"r"}, "", false, true, "ret"},
		{"bare return", Return{}, nil, "", false, true, "ret"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.DeepEqual(t, Uses(tc.instr), tc.uses)
			def, ok := Def(tc.instr)
			assert.Equal(t, ok, tc.hasDef)
			assert.Equal(t, def, tc.def)
			assert.Equal(t, IsTerminator(tc.instr), tc.isTerm)
			assert.Equal(t, Opcode(tc.instr), tc.opcode)
		})
	}
}

func TestSorted(t *testing.T) {
	s := NewSet("c", "a", "b")
	assert.DeepEqual(t, Sorted(s), []string{"a", "b", "c"})
	assert.Assert(t, is.Len(Sorted(nil), 0))
}
