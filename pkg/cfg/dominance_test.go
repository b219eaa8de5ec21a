package cfg

import (
	"testing"

	"gotest.tools/v3/assert"
	"pgregory.net/rapid"

	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/ir/irtest"
)

func TestDominanceDiamond(t *testing.T) {
	c := mustCFG(t, irtest.Diamond())

	assert.DeepEqual(t, ir.Sorted(c.Dominators["join"]), []string{EntryLabel, "join"})
	assert.DeepEqual(t, ir.Sorted(c.Dominators["left"]), []string{EntryLabel, "left"})
	assert.DeepEqual(t, ir.Sorted(c.StrictDominators["left"]), []string{EntryLabel})

	assert.DeepEqual(t, c.ImmediateDominators, map[string]string{
		"left":  EntryLabel,
		"right": EntryLabel,
		"join":  EntryLabel,
	})
	assert.DeepEqual(t, c.ImmediatelyDominated(EntryLabel), []string{"left", "right", "join"})

	assert.DeepEqual(t, ir.Sorted(c.DominanceFrontiers["left"]), []string{"join"})
	assert.DeepEqual(t, ir.Sorted(c.DominanceFrontiers["right"]), []string{"join"})
	assert.Equal(t, c.DominanceFrontiers[EntryLabel].Cardinality(), 0)
	assert.Equal(t, c.DominanceFrontiers["join"].Cardinality(), 0)
	assert.Assert(t, len(c.Anomalies) == 0)
}

func TestDominanceLoop(t *testing.T) {
	c := mustCFG(t, irtest.Loop())

	assert.Equal(t, c.ImmediateDominators["head"], EntryLabel)
	assert.Equal(t, c.ImmediateDominators["body"], "head")
	assert.Equal(t, c.ImmediateDominators["exit"], "head")
	assert.Assert(t, c.Dominates("head", "body"))
	assert.Assert(t, !c.Dominates("body", "exit"))

	assert.DeepEqual(t, ir.Sorted(c.DominanceFrontiers["body"]), []string{"head"})
	assert.DeepEqual(t, ir.Sorted(c.DominanceFrontiers["head"]), []string{"head"})
	assert.Equal(t, c.DominanceFrontiers["exit"].Cardinality(), 0)
}

func TestUnreachableBlockHasNoImmediateDominator(t *testing.T) {
	c := mustCFG(t, irtest.Func("f", nil,
		irtest.Ret(),
		irtest.Label("dead"),
		irtest.Ret(),
	))
	assert.Assert(t, !c.Reachable.Contains("dead"))
	_, ok := c.ImmediateDominators["dead"]
	assert.Assert(t, !ok)
	assert.Assert(t, len(c.Anomalies) == 0)
}

func TestDominanceProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c, err := New(irtest.GenFunction(t))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		for _, l := range c.Order {
			if !c.Reachable.Contains(l) {
				continue
			}
			if !c.Dominates(EntryLabel, l) {
				t.Fatalf("entry does not dominate %s", l)
			}
			if !c.Dominates(l, l) {
				t.Fatalf("%s does not dominate itself", l)
			}
			if l == EntryLabel {
				continue
			}
			idom, ok := c.ImmediateDominators[l]
			if !ok {
				t.Fatalf("reachable block %s has no immediate dominator", l)
			}
			if !c.StrictDominators[l].Contains(idom) {
				t.Fatalf("idom %s does not strictly dominate %s", idom, l)
			}
			// Every other strict dominator also dominates the idom.
			for _, d := range c.StrictDominators[l].ToSlice() {
				if !c.Dominates(d, idom) {
					t.Fatalf("%s strictly dominates %s but not its idom %s", d, l, idom)
				}
			}
		}
		for _, a := range c.Order {
			if !c.Reachable.Contains(a) {
				continue
			}
			for _, b := range c.DominanceFrontiers[a].ToSlice() {
				if c.StrictDominators[b].Contains(a) {
					t.Fatalf("%s in DF(%s) but strictly dominated by it", b, a)
				}
				found := false
				for _, p := range c.Blocks[b].Preds.ToSlice() {
					if c.Dominates(a, p) {
						found = true
					}
				}
				if !found {
					t.Fatalf("%s in DF(%s) but no predecessor is dominated by %s", b, a, a)
				}
			}
		}
		if len(c.Anomalies) != 0 {
			t.Fatalf("unexpected anomalies: %v", c.Anomalies)
		}
	})
}
