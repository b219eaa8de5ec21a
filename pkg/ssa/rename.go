package ssa

import (
	"fmt"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// renameContext carries the renaming state for one function. Nothing in it
// is shared between functions, so functions can be renamed concurrently.
type renameContext struct {
	c *cfg.CFG

	// stacks holds, per base variable, the names visible at the current
	// point of the dominator-tree walk; the top is the current version.
	stacks map[string][]string

	// counters holds the last version minted per base variable.
	counters map[string]int
}

func newRenameContext(c *cfg.CFG) *renameContext {
	return &renameContext{
		c:        c,
		stacks:   make(map[string][]string),
		counters: make(map[string]int),
	}
}

// versioned returns the name of version n of base.
func versioned(base string, n int) string {
	return fmt.Sprintf("%s.%d", base, n)
}

// mint creates the next version of base and makes it current.
func (r *renameContext) mint(base string) string {
	r.counters[base]++
	name := versioned(base, r.counters[base])
	r.c.Base[name] = base
	r.stacks[base] = append(r.stacks[base], name)
	return name
}

// current returns the visible version of base. Version 0 stands for the value
// flowing into the function: a parameter, or a variable read before any
// definition reaches it.
func (r *renameContext) current(base string) string {
	if s := r.stacks[base]; len(s) > 0 {
		return s[len(s)-1]
	}
	name := versioned(base, 0)
	r.c.Base[name] = base
	return name
}

// use and def version a name as written in the input, which may itself
// already carry a version suffix.
func (r *renameContext) use(v string) string { return r.current(r.c.BaseName(v)) }

func (r *renameContext) def(v string) string { return r.mint(r.c.BaseName(v)) }

// heights snapshots every stack depth so a block's pushes can be undone.
func (r *renameContext) heights() map[string]int {
	h := make(map[string]int, len(r.stacks))
	for base, s := range r.stacks {
		h[base] = len(s)
	}
	return h
}

func (r *renameContext) restore(h map[string]int) {
	for base, s := range r.stacks {
		r.stacks[base] = s[:h[base]]
	}
}

// Rename rewrites every definition in c to a fresh version and every use to
// the version that reaches it, filling in phi sources along the way. Each
// dominator-tree child is visited exactly once, and the names a block
// defines stay visible only within its dominator subtree. Blocks unreachable
// from the entry are renamed afterwards, each on its own.
func Rename(c *cfg.CFG) {
	r := newRenameContext(c)
	for _, p := range c.Params {
		name := versioned(p, 0)
		c.Base[name] = p
		r.stacks[p] = append(r.stacks[p], name)
	}
	r.renameBlock(cfg.EntryLabel)

	for _, l := range c.Order {
		if !c.Reachable.Contains(l) {
			r.renameBlock(l)
		}
	}

	for i, p := range c.Params {
		c.Params[i] = versioned(p, 0)
	}
	c.Versions = r.counters
}

func (r *renameContext) renameBlock(label string) {
	saved := r.heights()
	b := r.c.Blocks[label]

	for _, phi := range b.SortedPhis() {
		phi.Var = r.mint(r.c.BaseName(phi.Var))
	}

	for i, instr := range b.Instrs {
		if phi, ok := instr.(ir.Phi); ok {
			phi = ir.RenamePhiArgs(phi, func(s string) string { return s })
			base := phi.Base
			if base == "" {
				base = r.c.BaseName(phi.Dest)
			}
			phi.Dest = r.mint(base)
			b.Instrs[i] = phi
			continue
		}
		b.Instrs[i] = ir.Rename(instr, r.use, r.def)
	}

	for _, s := range r.c.InLayoutOrder(b.Succs) {
		r.fillPhiSources(label, r.c.Blocks[s])
	}

	if r.c.Reachable.Contains(label) {
		for _, child := range r.c.ImmediatelyDominated(label) {
			r.renameBlock(child)
		}
	}
	r.restore(saved)
}

// fillPhiSources records, in every phi of succ, the name flowing in from pred.
// Phi instructions from the input keep their operand variables and only have
// them versioned; an edge they lack is added reading the phi's base variable.
func (r *renameContext) fillPhiSources(pred string, succ *cfg.Block) {
	for base, phi := range succ.Phis {
		if _, ok := phi.Sources[pred]; ok {
			phi.Sources[pred] = r.current(base)
		}
	}
	for i, instr := range succ.Instrs {
		phi, ok := instr.(ir.Phi)
		if !ok {
			continue
		}
		phi = ir.RenamePhiArgs(phi, func(s string) string { return s })
		found := false
		for k, l := range phi.Labels {
			if l == pred {
				phi.Args[k] = r.use(phi.Args[k])
				found = true
			}
		}
		if !found {
			phi.Args = append(phi.Args, r.current(r.c.BaseName(phi.Dest)))
			phi.Labels = append(phi.Labels, pred)
		}
		succ.Instrs[i] = phi
	}
}
