package cfg

import (
	"github.com/pkg/errors"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// ComputeLiveness solves the backward liveness equations
//
//	live_out(B) = ⋃ live_in(S) over successors S  (plus phi operands read along B→S)
//	live_in(B)  = used(B) ∪ (live_out(B) − defined(B))
//
// Each sweep seeds a worklist with the terminating blocks, pops a block,
// recomputes both sets and, on change, queues predecessors not yet processed
// in the sweep. Blocks the worklist never reached (exit-less loops) are then
// processed in reverse layout order. Sweeps repeat until one makes no change.
func (c *CFG) ComputeLiveness() error {
	c.ComputeUseDef()
	for _, b := range c.Blocks {
		b.LiveIn = ir.NewSet()
		b.LiveOut = ir.NewSet()
	}

	limit := 2*len(c.Order)*(c.Vars.Cardinality()+1) + 2
	for sweep := 0; ; sweep++ {
		if sweep > limit {
			return errors.Wrapf(ErrFixpointGuard, "function %s: liveness did not converge after %d sweeps", c.Name, sweep)
		}
		if !c.livenessSweep() {
			return nil
		}
	}
}

func (c *CFG) livenessSweep() bool {
	changed := false
	processed := ir.NewSet()

	var worklist []string
	drain := func() {
		for len(worklist) > 0 {
			n := len(worklist) - 1
			l := worklist[n]
			worklist = worklist[:n]
			if !processed.Add(l) {
				continue
			}
			b := c.Blocks[l]
			if !c.updateLiveness(b) {
				continue
			}
			changed = true
			for _, p := range c.InLayoutOrder(b.Preds) {
				if !processed.Contains(p) {
					worklist = append(worklist, p)
				}
			}
		}
	}

	worklist = append(worklist, c.InLayoutOrder(c.Terminating)...)
	drain()
	for i := len(c.Order) - 1; i >= 0; i-- {
		if !processed.Contains(c.Order[i]) {
			worklist = append(worklist, c.Order[i])
			drain()
		}
	}
	return changed
}

// updateLiveness recomputes live_out and live_in of b and reports whether
// either changed.
func (c *CFG) updateLiveness(b *Block) bool {
	out := ir.NewSet()
	for _, s := range b.Succs.ToSlice() {
		succ := c.Blocks[s]
		out = out.Union(succ.LiveIn)
		out.Append(succ.PhiUses(b.Label)...)
	}
	in := b.Used.Union(out.Difference(b.Defined))

	changed := !in.Equal(b.LiveIn) || !out.Equal(b.LiveOut)
	b.LiveIn = in
	b.LiveOut = out
	return changed
}

// InstrLiveness returns, for each instruction of b, the variables live
// immediately before and immediately after it. Liveness must be computed.
func (b *Block) InstrLiveness() (before, after []ir.Set) {
	n := len(b.Instrs)
	before = make([]ir.Set, n)
	after = make([]ir.Set, n)
	live := b.LiveOut.Clone()
	for i := n - 1; i >= 0; i-- {
		instr := b.Instrs[i]
		after[i] = live.Clone()
		if dest, ok := ir.Def(instr); ok {
			live.Remove(dest)
		}
		if _, isPhi := instr.(ir.Phi); !isPhi {
			live.Append(ir.Uses(instr)...)
		}
		before[i] = live.Clone()
	}
	return before, after
}

// MinRegisterCount estimates register pressure as the largest number of
// distinct base variables live into or out of any block, and returns the
// block attaining it ("" for a function with no live variables).
func (c *CFG) MinRegisterCount() (int, string) {
	count := 0
	maxBlock := ""
	for _, b := range c.BlocksInOrder() {
		for _, s := range []ir.Set{b.LiveIn, b.LiveOut} {
			bases := ir.NewSet()
			for _, v := range s.ToSlice() {
				bases.Add(c.BaseName(v))
			}
			if n := bases.Cardinality(); n > count {
				count = n
				maxBlock = b.Label
			}
		}
	}
	return count, maxBlock
}
