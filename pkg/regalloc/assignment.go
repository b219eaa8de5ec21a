package regalloc

import (
	"github.com/pkg/errors"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// ErrConflict reports two interfering variables assigned the same register.
var ErrConflict = errors.New("register allocation conflict")

// ErrNoRegisters reports an allocation request for fewer than one register.
var ErrNoRegisters = errors.New("register count must be at least 1")

// Assignment maps variables to register indices. A variable is either in
// Regs or in Spilled, never both.
type Assignment struct {
	Regs    map[string]int
	Spilled ir.Set
}

// NewAssignment creates an empty assignment
func NewAssignment() *Assignment {
	return &Assignment{Regs: make(map[string]int), Spilled: ir.NewSet()}
}

// Register returns the register index of v, if it has one.
func (a *Assignment) Register(v string) (int, bool) {
	r, ok := a.Regs[v]
	return r, ok
}

// RegistersUsed returns the number of distinct registers in the assignment.
func (a *Assignment) RegistersUsed() int {
	used := make(map[int]bool)
	for _, r := range a.Regs {
		used[r] = true
	}
	return len(used)
}

// Verify checks a against g: no edge may join two variables that hold the
// same register. Spilled variables live in memory and never conflict.
func Verify(g *InterferenceGraph, a *Assignment) error {
	for _, e := range g.EdgeList() {
		ra, okA := a.Regs[e.A]
		rb, okB := a.Regs[e.B]
		if okA && okB && ra == rb {
			return errors.Wrapf(ErrConflict, "%s and %s interfere but both hold register %d", e.A, e.B, ra)
		}
	}
	for v := range a.Regs {
		if a.Spilled.Contains(v) {
			return errors.Wrapf(ErrConflict, "%s is both assigned and spilled", v)
		}
	}
	return nil
}
