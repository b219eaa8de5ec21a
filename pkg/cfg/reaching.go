package cfg

import (
	"github.com/pkg/errors"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// reachingVisitFloor is the minimum number of times a block may be revisited
// before the reaching-definitions worklist is declared non-convergent.
const reachingVisitFloor = 100

// ReachingDefinitions computes, per block, the variable names whose
// definitions may reach its entry and exit:
//
//	in(B)     = ⋃ out(P) over predecessors P
//	killed(B) = names in in(B) whose base variable B redefines
//	out(B)    = defined(B) ∪ (in(B) − killed(B))
func (c *CFG) ReachingDefinitions() error {
	c.ComputeUseDef()
	for _, b := range c.Blocks {
		b.ReachIn = ir.NewSet()
		b.ReachOut = ir.NewSet()
		b.Killed = ir.NewSet()
	}
	limit := 2 * (c.Vars.Cardinality() + 1)
	if limit < reachingVisitFloor {
		limit = reachingVisitFloor
	}
	visits := make(map[string]int, len(c.Order))

	worklist := []string{EntryLabel}
	for len(worklist) > 0 {
		l := worklist[0]
		worklist = worklist[1:]
		visits[l]++
		if visits[l] > limit {
			return errors.Wrapf(ErrFixpointGuard, "function %s: reaching definitions revisited %s %d times", c.Name, l, visits[l])
		}
		b := c.Blocks[l]
		in := ir.NewSet()
		for _, p := range b.Preds.ToSlice() {
			in = in.Union(c.Blocks[p].ReachOut)
		}
		redefined := ir.NewSet()
		for _, v := range b.Defined.ToSlice() {
			redefined.Add(c.BaseName(v))
		}
		killed := ir.NewSet()
		for _, v := range in.ToSlice() {
			if redefined.Contains(c.BaseName(v)) {
				killed.Add(v)
			}
		}
		out := b.Defined.Union(in.Difference(killed))

		changed := !out.Equal(b.ReachOut) || visits[l] == 1
		b.ReachIn = in
		b.Killed = killed
		b.ReachOut = out
		if changed {
			worklist = append(worklist, c.InLayoutOrder(b.Succs)...)
		}
	}
	return nil
}

// UndefinedUse is a read of a variable that no definition reaches.
type UndefinedUse struct {
	Block string
	Var   string
}

// UndefinedUses reports variables read at a point no definition of them can
// reach. ReachingDefinitions must have been computed.
func (c *CFG) UndefinedUses() []UndefinedUse {
	var out []UndefinedUse
	for _, l := range c.Order {
		if !c.Reachable.Contains(l) {
			continue
		}
		b := c.Blocks[l]
		reach := b.ReachIn.Union(b.PhiDefs())
		if l == EntryLabel {
			reach.Append(c.Params...)
		}
		reported := ir.NewSet()
		for _, instr := range b.Instrs {
			if _, isPhi := instr.(ir.Phi); !isPhi {
				for _, arg := range ir.Uses(instr) {
					if !reach.Contains(arg) && reported.Add(arg) {
						out = append(out, UndefinedUse{Block: l, Var: arg})
					}
				}
			}
			if dest, ok := ir.Def(instr); ok {
				reach.Add(dest)
			}
		}
	}
	return out
}
