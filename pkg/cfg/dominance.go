package cfg

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// Anomaly records a block whose immediate dominator could not be determined
// uniquely. Chosen is the best-effort pick ("" when there was none).
type Anomaly struct {
	Block      string
	Candidates []string
	Chosen     string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("immediate dominator of %s: %d candidates {%s}, chose %q",
		a.Block, len(a.Candidates), strings.Join(a.Candidates, ", "), a.Chosen)
}

// ComputeDominance computes dominators, strict dominators, immediate
// dominators, the dominator tree and dominance frontiers, in that order.
func (c *CFG) ComputeDominance() error {
	c.computeReachable()
	if err := c.computeDominators(); err != nil {
		return err
	}
	c.computeStrictDominators()
	c.computeImmediateDominators()
	c.computeDominanceFrontiers()
	return nil
}

func (c *CFG) computeReachable() {
	c.Reachable = ir.NewSet()
	stack := []string{EntryLabel}
	for len(stack) > 0 {
		n := len(stack) - 1
		l := stack[n]
		stack = stack[:n]
		if !c.Reachable.Add(l) {
			continue
		}
		stack = append(stack, c.InLayoutOrder(c.Blocks[l].Succs)...)
	}
}

// computeDominators iterates dom(B) = {B} ∪ ⋂ dom(P) over predecessors P,
// starting from the full block set, until nothing changes.
func (c *CFG) computeDominators() error {
	all := ir.NewSet(c.Order...)
	doms := make(map[string]ir.Set, len(c.Order))
	for _, l := range c.Order {
		doms[l] = all.Clone()
	}
	doms[EntryLabel] = ir.NewSet(EntryLabel)

	// Each productive pass removes at least one member from some set.
	limit := len(c.Order)*len(c.Order) + 2
	for iter := 0; ; iter++ {
		if iter > limit {
			return errors.Wrapf(ErrFixpointGuard, "function %s: dominators did not converge after %d passes", c.Name, iter)
		}
		changed := false
		for _, l := range c.Order[1:] {
			newDoms := all.Clone()
			for _, p := range c.Blocks[l].Preds.ToSlice() {
				newDoms = newDoms.Intersect(doms[p])
			}
			newDoms.Add(l)
			if !newDoms.Equal(doms[l]) {
				doms[l] = newDoms
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	c.Dominators = doms
	return nil
}

func (c *CFG) computeStrictDominators() {
	c.StrictDominators = make(map[string]ir.Set, len(c.Order))
	for _, l := range c.Order {
		sd := c.Dominators[l].Clone()
		sd.Remove(l)
		c.StrictDominators[l] = sd
	}
}

// computeImmediateDominators picks, among the strict dominators of each
// block, the one that strictly dominates no other strict dominator.
// Unreachable blocks get no immediate dominator.
func (c *CFG) computeImmediateDominators() {
	c.ImmediateDominators = make(map[string]string, len(c.Order))
	c.DominatorTree = make(map[string][]string, len(c.Order))
	c.Anomalies = nil

	for _, l := range c.Order {
		if l == EntryLabel || !c.Reachable.Contains(l) {
			continue
		}
		sdoms := c.StrictDominators[l]
		if sdoms.Cardinality() == 1 {
			c.ImmediateDominators[l] = ir.Sorted(sdoms)[0]
			continue
		}

		candidates := sdoms.Clone()
		for _, s := range ir.Sorted(sdoms) {
			for _, other := range ir.Sorted(sdoms) {
				if other != s && c.StrictDominators[other].Contains(s) {
					candidates.Remove(s)
					break
				}
			}
		}
		if candidates.Cardinality() == 1 {
			c.ImmediateDominators[l] = ir.Sorted(candidates)[0]
			continue
		}

		chosen := c.deepest(candidates)
		c.Anomalies = append(c.Anomalies, Anomaly{
			Block:      l,
			Candidates: c.InLayoutOrder(candidates),
			Chosen:     chosen,
		})
		if chosen != "" {
			c.ImmediateDominators[l] = chosen
		}
	}

	for _, l := range c.Order {
		if idom, ok := c.ImmediateDominators[l]; ok {
			c.DominatorTree[idom] = append(c.DominatorTree[idom], l)
		}
	}
}

// deepest returns the candidate with the largest dominator set, earliest in
// layout order on ties.
func (c *CFG) deepest(candidates ir.Set) string {
	chosen := ""
	best := -1
	for _, cand := range c.InLayoutOrder(candidates) {
		if n := c.Dominators[cand].Cardinality(); n > best {
			best = n
			chosen = cand
		}
	}
	return chosen
}

// computeDominanceFrontiers searches forward from the successors of each
// block B, expanding only through blocks strictly dominated by B. The first
// block on each path that B does not strictly dominate is in DF(B).
func (c *CFG) computeDominanceFrontiers() {
	c.DominanceFrontiers = make(map[string]ir.Set, len(c.Order))
	for _, l := range c.Order {
		df := ir.NewSet()
		seen := ir.NewSet()
		check := c.InLayoutOrder(c.Blocks[l].Succs)
		for len(check) > 0 {
			n := len(check) - 1
			s := check[n]
			check = check[:n]
			if !seen.Add(s) {
				continue
			}
			if !c.StrictDominators[s].Contains(l) {
				df.Add(s)
			} else {
				check = append(check, c.InLayoutOrder(c.Blocks[s].Succs)...)
			}
		}
		c.DominanceFrontiers[l] = df
	}
}

// Dominates reports whether a dominates b.
func (c *CFG) Dominates(a, b string) bool {
	doms, ok := c.Dominators[b]
	return ok && doms.Contains(a)
}

// ImmediatelyDominated returns the children of l in the dominator tree, in
// layout order.
func (c *CFG) ImmediatelyDominated(l string) []string {
	return c.DominatorTree[l]
}
