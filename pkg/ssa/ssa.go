package ssa

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// ErrMultipleDefinitions reports a name defined more than once after renaming.
var ErrMultipleDefinitions = errors.New("name defined more than once")

// Stats summarizes one conversion.
type Stats struct {
	Phis     int
	Versions int
}

// Convert puts c into SSA form in place: phi insertion followed by renaming.
// Variable and use/def information is recomputed afterwards so later analyses
// see the versioned names.
func Convert(c *cfg.CFG) (Stats, error) {
	phis := InsertPhiNodes(c)
	Rename(c)
	c.ReadVariables()
	c.ComputeUseDef()
	if err := CheckSingleDefinition(c); err != nil {
		return Stats{}, err
	}
	return Stats{Phis: phis, Versions: c.Vars.Cardinality()}, nil
}

// CheckSingleDefinition verifies that every name in c has exactly one static
// definition, counting parameters, phi nodes and instruction destinations.
func CheckSingleDefinition(c *cfg.CFG) error {
	count := make(map[string]int)
	for _, p := range c.Params {
		count[p]++
	}
	for _, b := range c.BlocksInOrder() {
		for _, phi := range b.Phis {
			count[phi.Var]++
		}
		for _, instr := range b.Instrs {
			if dest, ok := ir.Def(instr); ok {
				count[dest]++
			}
		}
	}
	var dups []string
	for name, n := range count {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	sort.Strings(dups)
	return errors.Wrapf(ErrMultipleDefinitions, "function %s: %s", c.Name, strings.Join(dups, ", "))
}
