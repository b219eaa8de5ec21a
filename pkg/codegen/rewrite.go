package codegen

import (
	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/regalloc"
)

// Rewrite replaces, in place, every variable of c with its register name
// under a: an assigned variable becomes its general-purpose register, a
// spilled one becomes SpilledName. Names a does not cover are left alone.
// Parameters and phi nodes are rewritten too.
func Rewrite(c *cfg.CFG, a *regalloc.Assignment, specs RegisterSpecs) error {
	var err error
	name := func(v string) string {
		if r, ok := a.Register(v); ok {
			reg, gpErr := specs.GPName(r)
			if gpErr != nil {
				if err == nil {
					err = gpErr
				}
				return v
			}
			return reg
		}
		if a.Spilled.Contains(v) {
			return SpilledName
		}
		return v
	}

	for i, p := range c.Params {
		c.Params[i] = name(p)
	}
	for _, b := range c.BlocksInOrder() {
		for _, phi := range b.Phis {
			phi.Var = name(phi.Var)
			for pred, src := range phi.Sources {
				phi.Sources[pred] = name(src)
			}
		}
		for i, instr := range b.Instrs {
			if phi, ok := instr.(ir.Phi); ok {
				instr = ir.RenamePhiArgs(phi, name)
			}
			b.Instrs[i] = ir.Rename(instr, name, name)
		}
	}
	return err
}
