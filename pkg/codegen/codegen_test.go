package codegen

import (
	"bytes"
	"testing"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/ir/irtest"
	"github.com/raymyers/ralph-ra/pkg/regalloc"
	"github.com/raymyers/ralph-ra/pkg/ssa"
)

func TestEmitInstruction(t *testing.T) {
	tests := []struct {
		name  string
		instr ir.Instruction
		want  string
	}{
		{"const", irtest.Const("t0", 5), "\tli t0, 5\n"},
		{"id", irtest.Op("id", "t1", "t0"), "\tmv t1, t0\n"},
		{"eq", irtest.Op("eq", "t2", "t0", "t1"), "\tsub t2, t0, t1\n"},
		{"generic value op", irtest.Op("add", "t2", "t0", "t1"), "\tadd t2, t0, t1\n"},
		{"call", ir.ValueOp{Op: "call", Dest: "t0", Funcs: []string{"f"}, Args: []string{"t1"}}, "\tcall t0, @f, t1\n"},
		{"effect", irtest.Effect("print", "t0", "t1"), "\tprint t0, t1\n"},
		{"jmp", irtest.Jmp("loop"), "\tj .loop\n"},
		{"br", irtest.Br("t0", "then", "else"), "\tbeq t0, zero, .then\n\tj .else\n"},
		{"ret value", irtest.Ret("t0"), "\tmv a0, t0\n\tjr ra\n"},
		{"ret", irtest.Ret(), "\tjr ra\n"},
		{"phi", ir.Phi{Dest: "t0", Args: []string{"t1", "mr"}, Labels: []string{"a", "b"}}, "\t# t0 = phi t1 .a, mr .b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewEmitter(&buf, DefaultRegisterSpecs()).emitInstruction(tt.instr)
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewriteAndEmit(t *testing.T) {
	c, err := cfg.New(irtest.Pressure())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ComputeLiveness(); err != nil {
		t.Fatal(err)
	}
	g := regalloc.BuildInterferenceGraph(c)
	res, err := regalloc.ColorGraph(g, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := Rewrite(c, res.Assignment, DefaultRegisterSpecs()); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	NewEmitter(&buf, DefaultRegisterSpecs()).EmitFunction(c)

	// a spills; c, s and t share register 0 without overlapping.
	want := `pressure:
	li mr, 1
	li t1, 2
	li t0, 3
	j .l1
.l1:
	add t0, t1, t0
	add t0, t0, mr
	mv a0, t0
	jr ra
`
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestEmitPhiNodes(t *testing.T) {
	c, err := cfg.New(irtest.Diamond())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ssa.Convert(c); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	NewEmitter(&buf, DefaultRegisterSpecs()).EmitFunction(c)

	want := `diamond:
	beq c.0, zero, .left
	j .right
.left:
	li x.1, 1
	j .join
.right:
	li x.2, 2
	j .join
.join:
	# x.3 = phi x.1 .left, x.2 .right
	print x.3
	jr ra
`
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRewriteRejectsRegisterOutsideTable(t *testing.T) {
	c, err := cfg.New(irtest.Func("f", nil, irtest.Const("a", 1), irtest.Ret("a")))
	if err != nil {
		t.Fatal(err)
	}
	a := regalloc.NewAssignment()
	a.Regs["a"] = 99
	if err := Rewrite(c, a, DefaultRegisterSpecs()); err == nil {
		t.Error("expected an error for register 99")
	}
}
