// Package ir defines the JSON-shaped intermediate representation consumed by the
// back end: a program is a list of functions, each an ordered stream of
// instructions with opcodes, destinations, argument lists and branch labels.
// Instructions are a closed set of variants fixed at decode time.
package ir

// Terminator opcodes
const (
	OpBr  = "br"
	OpJmp = "jmp"
	OpRet = "ret"
	OpPhi = "phi"
)

// Instruction is one element of a function's instruction stream.
type Instruction interface {
	implInstruction()
}

// Label marks the start of a new basic block. It is not an operation.
type Label struct {
	Name string
}

// ValueOp produces a value into Dest, from either Args or a literal Value.
type ValueOp struct {
	Op    string
	Dest  string
	Type  string
	Args  []string
	Funcs []string
	Value string // literal JSON text, empty when Args are used
}

// EffectOp is an operation evaluated only for its side effect (print, store, call).
type EffectOp struct {
	Op    string
	Args  []string
	Funcs []string
}

// Phi selects a value according to the predecessor control arrived from.
// Args[i] flows in from the block labelled Labels[i]. Base is the unversioned
// variable the phi merges.
type Phi struct {
	Dest   string
	Type   string
	Base   string
	Args   []string
	Labels []string
}

// Branch transfers control to True when Cond is non-zero, False otherwise.
type Branch struct {
	Cond  string
	True  string
	False string
}

// Jump unconditionally transfers control to Target.
type Jump struct {
	Target string
}

// Return leaves the function, optionally yielding Arg.
type Return struct {
	Arg string // empty when nothing is returned
}

func (Label) implInstruction()    {}
func (ValueOp) implInstruction()  {}
func (EffectOp) implInstruction() {}
func (Phi) implInstruction()      {}
func (Branch) implInstruction()   {}
func (Jump) implInstruction()     {}
func (Return) implInstruction()   {}

// Param is a formal parameter of a function.
type Param struct {
	Name string
	Type string
}

// Function is one function of a program.
type Function struct {
	Name   string
	Params []Param
	Instrs []Instruction
}

// ParamNames returns the names of the function's formal parameters in order.
func (f *Function) ParamNames() []string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return names
}

// Program is a list of functions.
type Program struct {
	Functions []Function
}

// IsTerminator reports whether instr ends a basic block.
func IsTerminator(instr Instruction) bool {
	switch instr.(type) {
	case Branch, Jump, Return:
		return true
	}
	return false
}

// Opcode returns the opcode of instr, or "" for a label.
func Opcode(instr Instruction) string {
	switch i := instr.(type) {
	case ValueOp:
		return i.Op
	case EffectOp:
		return i.Op
	case Phi:
		return OpPhi
	case Branch:
		return OpBr
	case Jump:
		return OpJmp
	case Return:
		return OpRet
	}
	return ""
}

// Def returns the variable defined by instr, if any.
func Def(instr Instruction) (string, bool) {
	switch i := instr.(type) {
	case ValueOp:
		return i.Dest, i.Dest != ""
	case Phi:
		return i.Dest, i.Dest != ""
	}
	return "", false
}

// Uses returns the variables read by instr in operand order.
// Phi operands are edge uses and are reported as well; callers that need
// per-edge treatment must special-case Phi.
func Uses(instr Instruction) []string {
	switch i := instr.(type) {
	case ValueOp:
		return i.Args
	case EffectOp:
		return i.Args
	case Phi:
		return i.Args
	case Branch:
		return []string{i.Cond}
	case Return:
		if i.Arg != "" {
			return []string{i.Arg}
		}
	}
	return nil
}

// Targets returns the labels instr may transfer control to.
func Targets(instr Instruction) []string {
	switch i := instr.(type) {
	case Branch:
		return []string{i.True, i.False}
	case Jump:
		return []string{i.Target}
	}
	return nil
}

// Rename returns a copy of instr with every used variable passed through use
// and the defined variable passed through def. Phi operands are left alone;
// they are rewritten per incoming edge by their owner. Either function may be nil.
func Rename(instr Instruction, use, def func(string) string) Instruction {
	if use == nil {
		use = identity
	}
	if def == nil {
		def = identity
	}
	switch i := instr.(type) {
	case ValueOp:
		i.Args = mapNames(i.Args, use)
		if i.Dest != "" {
			i.Dest = def(i.Dest)
		}
		return i
	case EffectOp:
		i.Args = mapNames(i.Args, use)
		return i
	case Phi:
		i.Args = append([]string(nil), i.Args...)
		i.Labels = append([]string(nil), i.Labels...)
		if i.Dest != "" {
			i.Dest = def(i.Dest)
		}
		return i
	case Branch:
		i.Cond = use(i.Cond)
		return i
	case Return:
		if i.Arg != "" {
			i.Arg = use(i.Arg)
		}
		return i
	}
	return instr
}

// RenamePhiArgs returns a copy of p with every operand passed through fn.
func RenamePhiArgs(p Phi, fn func(string) string) Phi {
	p.Args = mapNames(p.Args, fn)
	p.Labels = append([]string(nil), p.Labels...)
	return p
}

func mapNames(names []string, fn func(string) string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fn(n)
	}
	return out
}

func identity(s string) string { return s }
