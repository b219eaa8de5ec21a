package cfg

import (
	"sort"
	"strings"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// CFG is the control-flow graph of one function together with the results of
// the analyses run over it.
type CFG struct {
	Name   string
	Params []string

	Blocks map[string]*Block
	Order  []string
	pos    map[string]int

	// Vars is every variable defined in the function, parameters included.
	Vars ir.Set
	// Defs maps a variable to the blocks defining it.
	Defs map[string]ir.Set
	// Base maps a versioned SSA name back to the variable it versions.
	Base map[string]string
	// Versions holds the last version minted per base variable once the
	// function has been renamed into SSA form.
	Versions map[string]int

	Reachable           ir.Set
	Dominators          map[string]ir.Set
	StrictDominators    map[string]ir.Set
	ImmediateDominators map[string]string
	DominatorTree       map[string][]string
	DominanceFrontiers  map[string]ir.Set
	Anomalies           []Anomaly

	Terminating ir.Set
}

// New builds the CFG of fn and computes its dominance information.
func New(fn *ir.Function) (*CFG, error) {
	blocks, order, err := FormBlocks(fn)
	if err != nil {
		return nil, err
	}
	c := &CFG{
		Name:   fn.Name,
		Params: fn.ParamNames(),
		Blocks: blocks,
		Order:  order,
		Base:   make(map[string]string),
	}
	c.reindex()
	c.recordInputBases()
	c.ReadVariables()
	c.ComputeUseDef()
	c.Terminating = ir.NewSet()
	for _, b := range c.BlocksInOrder() {
		if b.IsTerminating() {
			c.Terminating.Add(b.Label)
		}
	}
	if err := c.ComputeDominance(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CFG) reindex() {
	c.pos = make(map[string]int, len(c.Order))
	for i, l := range c.Order {
		c.pos[l] = i
	}
}

// Entry returns the implicit entry block.
func (c *CFG) Entry() *Block {
	return c.Blocks[EntryLabel]
}

// BlocksInOrder returns the blocks in layout order, entry first.
func (c *CFG) BlocksInOrder() []*Block {
	out := make([]*Block, len(c.Order))
	for i, l := range c.Order {
		out[i] = c.Blocks[l]
	}
	return out
}

// InLayoutOrder returns the block ids of s sorted by layout position.
func (c *CFG) InLayoutOrder(s ir.Set) []string {
	out := s.ToSlice()
	sort.Slice(out, func(i, j int) bool {
		return c.pos[out[i]] < c.pos[out[j]]
	})
	return out
}

// recordInputBases maps names that arrive already versioned to their base:
// an input phi's destination to its declared base, and any other name of the
// form base.N to base.
func (c *CFG) recordInputBases() {
	note := func(v string) {
		if base, ok := splitVersion(v); ok {
			c.Base[v] = base
		}
	}
	for _, b := range c.BlocksInOrder() {
		for _, instr := range b.Instrs {
			if phi, ok := instr.(ir.Phi); ok && phi.Base != "" && phi.Base != phi.Dest {
				c.Base[phi.Dest] = phi.Base
				for _, arg := range phi.Args {
					note(arg)
				}
				continue
			}
			if dest, ok := ir.Def(instr); ok {
				note(dest)
			}
			for _, arg := range ir.Uses(instr) {
				note(arg)
			}
		}
	}
}

// splitVersion splits base.N into base, for a non-empty base and decimal N.
func splitVersion(v string) (string, bool) {
	i := strings.LastIndexByte(v, '.')
	if i <= 0 || i == len(v)-1 {
		return "", false
	}
	for _, r := range v[i+1:] {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return v[:i], true
}

// BaseName returns the unversioned variable a (possibly versioned) name refers to.
func (c *CFG) BaseName(v string) string {
	if b, ok := c.Base[v]; ok {
		return b
	}
	return v
}

// ReadVariables recomputes Vars and Defs from the current instruction stream,
// phi tables and parameters.
func (c *CFG) ReadVariables() {
	c.Vars = ir.NewSet()
	c.Defs = make(map[string]ir.Set)
	define := func(v, block string) {
		c.Vars.Add(v)
		if c.Defs[v] == nil {
			c.Defs[v] = ir.NewSet()
		}
		if block != "" {
			c.Defs[v].Add(block)
		}
	}
	for _, p := range c.Params {
		define(p, EntryLabel)
	}
	for _, b := range c.BlocksInOrder() {
		for _, phi := range b.Phis {
			define(phi.Var, b.Label)
		}
		for _, instr := range b.Instrs {
			if dest, ok := ir.Def(instr); ok {
				define(dest, b.Label)
			}
		}
	}
}

// DefSitesByBase groups definition sites by base variable.
func (c *CFG) DefSitesByBase() map[string]ir.Set {
	sites := make(map[string]ir.Set)
	for v, blocks := range c.Defs {
		base := c.BaseName(v)
		if sites[base] == nil {
			sites[base] = ir.NewSet()
		}
		sites[base] = sites[base].Union(blocks)
	}
	return sites
}

// ComputeUseDef recomputes the used/defined sets of every block.
func (c *CFG) ComputeUseDef() {
	for _, b := range c.BlocksInOrder() {
		if b.Label == EntryLabel {
			b.ComputeUseDef(c.Params)
		} else {
			b.ComputeUseDef(nil)
		}
	}
}

// InstructionCount returns the number of instructions across all blocks.
func (c *CFG) InstructionCount() int {
	n := 0
	for _, b := range c.Blocks {
		n += len(b.Instrs)
	}
	return n
}
