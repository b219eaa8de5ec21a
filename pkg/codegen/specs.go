// Package codegen lowers an allocated function to a RISC-V style assembly
// listing. Variables are first rewritten to register names through the
// allocator's assignment, then each instruction is printed as one or two
// target mnemonics.
package codegen

import (
	"github.com/pkg/errors"
)

// SpilledName is the pseudo-register printed for a variable that lives in
// memory.
const SpilledName = "mr"

// zeroReg is the hard-wired zero register.
const zeroReg = "zero"

// RegisterSpecs is the register naming table of the target. Register index i
// of an assignment maps to GP[i].
type RegisterSpecs struct {
	Args    []string `yaml:"args"`
	Ret     []string `yaml:"ret"`
	GP      []string `yaml:"gp"`
	Special []string `yaml:"special"`
}

// DefaultRegisterSpecs returns the RISC-V naming table.
func DefaultRegisterSpecs() RegisterSpecs {
	return RegisterSpecs{
		Args: []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"},
		Ret:  []string{"ra"},
		GP: []string{
			"t0", "t1", "t2",
			"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
			"t3", "t4", "t5", "t6",
		},
		Special: []string{"fp", "sp", "gp", "tp", "zero"},
	}
}

// ReturnValue is the register a function result is moved into.
func (s RegisterSpecs) ReturnValue() string {
	if len(s.Args) > 0 {
		return s.Args[0]
	}
	return "a0"
}

// ReturnAddress is the register holding the return address.
func (s RegisterSpecs) ReturnAddress() string {
	if len(s.Ret) > 0 {
		return s.Ret[0]
	}
	return "ra"
}

// GPName returns the name of general-purpose register i.
func (s RegisterSpecs) GPName(i int) (string, error) {
	if i < 0 || i >= len(s.GP) {
		return "", errors.Errorf("register index %d outside the %d general-purpose registers", i, len(s.GP))
	}
	return s.GP[i], nil
}
