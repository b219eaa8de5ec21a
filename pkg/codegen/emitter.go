package codegen

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// Emitter outputs RISC-V style assembly, one instruction per line
type Emitter struct {
	w     io.Writer
	specs RegisterSpecs
}

// NewEmitter creates a new assembly emitter
func NewEmitter(w io.Writer, specs RegisterSpecs) *Emitter {
	return &Emitter{w: w, specs: specs}
}

// EmitFunction outputs every block of c in layout order. The entry block is
// labelled with the function name, the others with ".<label>:". Phi nodes
// have no machine form and are kept as comments.
func (e *Emitter) EmitFunction(c *cfg.CFG) {
	for _, b := range c.BlocksInOrder() {
		if b.Label == cfg.EntryLabel {
			fmt.Fprintf(e.w, "%s:\n", c.Name)
		} else {
			fmt.Fprintf(e.w, ".%s:\n", b.Label)
		}
		for _, phi := range b.SortedPhis() {
			srcs := make([]string, 0, len(phi.Sources))
			for _, pred := range c.InLayoutOrder(ir.NewSet(phi.SourceBlocks()...)) {
				srcs = append(srcs, fmt.Sprintf("%s %s", phi.Sources[pred], blockRef(pred)))
			}
			fmt.Fprintf(e.w, "\t# %s = phi %s\n", phi.Var, strings.Join(srcs, ", "))
		}
		for _, instr := range b.Instrs {
			e.emitInstruction(instr)
		}
	}
}

func (e *Emitter) line(op string, operands ...string) {
	if len(operands) == 0 {
		fmt.Fprintf(e.w, "\t%s\n", op)
		return
	}
	fmt.Fprintf(e.w, "\t%s %s\n", op, strings.Join(operands, ", "))
}

func (e *Emitter) emitInstruction(instr ir.Instruction) {
	switch i := instr.(type) {
	case ir.ValueOp:
		operands := []string{i.Dest}
		switch i.Op {
		case "const":
			e.line("li", i.Dest, i.Value)
			return
		case "id":
			e.line("mv", append(operands, i.Args...)...)
			return
		case "eq":
			e.line("sub", append(operands, i.Args...)...)
			return
		}
		for _, f := range i.Funcs {
			operands = append(operands, "@"+f)
		}
		if i.Value != "" {
			operands = append(operands, i.Value)
		}
		e.line(i.Op, append(operands, i.Args...)...)
	case ir.EffectOp:
		var operands []string
		for _, f := range i.Funcs {
			operands = append(operands, "@"+f)
		}
		e.line(i.Op, append(operands, i.Args...)...)
	case ir.Phi:
		parts := make([]string, len(i.Args))
		for k := range i.Args {
			parts[k] = fmt.Sprintf("%s .%s", i.Args[k], i.Labels[k])
		}
		fmt.Fprintf(e.w, "\t# %s = phi %s\n", i.Dest, strings.Join(parts, ", "))
	case ir.Jump:
		e.line("j", "."+i.Target)
	case ir.Branch:
		e.line("beq", i.Cond, zeroReg, "."+i.True)
		e.line("j", "."+i.False)
	case ir.Return:
		if i.Arg != "" {
			e.line("mv", e.specs.ReturnValue(), i.Arg)
		}
		e.line("jr", e.specs.ReturnAddress())
	}
}

func blockRef(label string) string {
	if label == cfg.EntryLabel {
		return label
	}
	return "." + label
}
