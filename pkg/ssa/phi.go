// Package ssa converts a function's CFG into static single assignment form:
// phi nodes are placed on the iterated dominance frontier of every variable's
// definition sites, then every definition is given a fresh version by a walk
// of the dominator tree.
package ssa

import (
	"sort"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// InsertPhiNodes places a phi node for every variable at each block of the
// iterated dominance frontier of its definition sites, and returns how many
// were added. Phis are keyed by base variable, so a block that already has a
// phi for a variable (from an earlier run or from the input) is left as is.
// Dominance must be computed.
func InsertPhiNodes(c *cfg.CFG) int {
	sites := c.DefSitesByBase()
	bases := make([]string, 0, len(sites))
	for base := range sites {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	inserted := 0
	for _, base := range bases {
		inserted += insertFor(c, base, sites[base])
	}
	return inserted
}

func insertFor(c *cfg.CFG, base string, defs ir.Set) int {
	inserted := 0
	hasPhi := ir.NewSet()
	everOnList := defs.Clone()
	worklist := c.InLayoutOrder(defs)
	for len(worklist) > 0 {
		x := worklist[0]
		worklist = worklist[1:]
		for _, y := range c.InLayoutOrder(c.DominanceFrontiers[x]) {
			if !hasPhi.Add(y) {
				continue
			}
			blk := c.Blocks[y]
			if !hasPhiFor(blk, base) {
				blk.Phis[base] = cfg.NewPhiNode(base, c.InLayoutOrder(blk.Preds))
				inserted++
			}
			if everOnList.Add(y) {
				worklist = append(worklist, y)
			}
		}
	}
	return inserted
}

func hasPhiFor(b *cfg.Block, base string) bool {
	if _, ok := b.Phis[base]; ok {
		return true
	}
	for _, instr := range b.Instrs {
		if phi, ok := instr.(ir.Phi); ok && phi.Base == base {
			return true
		}
	}
	return false
}
