package ir

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs the IR in a compact textual form, one instruction per line.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new IR printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints every function of prog
func (p *Printer) PrintProgram(prog *Program) {
	for i := range prog.Functions {
		p.PrintFunction(&prog.Functions[i])
		if i < len(prog.Functions)-1 {
			fmt.Fprintln(p.w)
		}
	}
}

// PrintFunction prints a function header followed by its instructions
func (p *Printer) PrintFunction(fn *Function) {
	params := make([]string, len(fn.Params))
	for i, param := range fn.Params {
		if param.Type != "" {
			params[i] = param.Name + ": " + param.Type
		} else {
			params[i] = param.Name
		}
	}
	fmt.Fprintf(p.w, "@%s(%s) {\n", fn.Name, strings.Join(params, ", "))
	for _, instr := range fn.Instrs {
		if l, ok := instr.(Label); ok {
			fmt.Fprintf(p.w, ".%s:\n", l.Name)
			continue
		}
		fmt.Fprintf(p.w, "  %s;\n", Format(instr))
	}
	fmt.Fprintln(p.w, "}")
}

// Format renders a single instruction.
func Format(instr Instruction) string {
	switch i := instr.(type) {
	case Label:
		return "." + i.Name + ":"
	case ValueOp:
		var sb strings.Builder
		sb.WriteString(i.Dest)
		if i.Type != "" {
			sb.WriteString(": " + i.Type)
		}
		sb.WriteString(" = " + i.Op)
		for _, f := range i.Funcs {
			sb.WriteString(" @" + f)
		}
		if i.Value != "" {
			sb.WriteString(" " + i.Value)
		}
		for _, a := range i.Args {
			sb.WriteString(" " + a)
		}
		return sb.String()
	case EffectOp:
		parts := []string{i.Op}
		for _, f := range i.Funcs {
			parts = append(parts, "@"+f)
		}
		parts = append(parts, i.Args...)
		return strings.Join(parts, " ")
	case Phi:
		var sb strings.Builder
		sb.WriteString(i.Dest)
		if i.Type != "" {
			sb.WriteString(": " + i.Type)
		}
		sb.WriteString(" = phi")
		for k := range i.Args {
			fmt.Fprintf(&sb, " %s .%s", i.Args[k], i.Labels[k])
		}
		return sb.String()
	case Branch:
		return fmt.Sprintf("br %s .%s .%s", i.Cond, i.True, i.False)
	case Jump:
		return "jmp ." + i.Target
	case Return:
		if i.Arg != "" {
			return "ret " + i.Arg
		}
		return "ret"
	}
	return fmt.Sprintf("%v", instr)
}
