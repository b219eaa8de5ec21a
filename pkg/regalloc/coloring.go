package regalloc

import (
	"time"

	"github.com/pkg/errors"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// stackEntry is a vertex removed during simplify. Colorable vertices had
// fewer than k neighbors at removal; the rest are potential spills.
type stackEntry struct {
	v         string
	colorable bool
}

// colorer runs one simplify/select pass of optimistic Chaitin-Briggs coloring.
type colorer struct {
	original *InterferenceGraph // restored edges come from here
	work     *InterferenceGraph // shrinks during simplify
	K        int
	colors   map[string]int

	selectStack []stackEntry
	spilled     ir.Set
}

// ColoringResult holds the result of graph-coloring allocation
type ColoringResult struct {
	Assignment *Assignment
	// Passes counts simplify/select rounds until the spill set settled.
	Passes  int
	Elapsed time.Duration
}

// Spills returns the number of spilled variables
func (r *ColoringResult) Spills() int {
	return r.Assignment.Spilled.Cardinality()
}

// ColorGraph colors g with k registers. Each pass runs on g minus the
// variables spilled so far; passes repeat until one spills nothing new. The
// spill set only grows and is bounded by the vertex count, so this ends.
func ColorGraph(g *InterferenceGraph, k int) (*ColoringResult, error) {
	if k < 1 {
		return nil, errors.Wrapf(ErrNoRegisters, "graph coloring with %d registers", k)
	}
	start := time.Now()
	spilled := ir.NewSet()
	result := &ColoringResult{}
	for {
		result.Passes++
		graph := g.Clone()
		for _, v := range spilled.ToSlice() {
			graph.RemoveNode(v)
		}
		c := &colorer{
			original: graph,
			work:     graph.Clone(),
			K:        k,
			colors:   make(map[string]int),
			spilled:  ir.NewSet(),
		}
		c.simplify()
		c.assignColors()

		if c.spilled.Cardinality() == 0 {
			result.Assignment = &Assignment{Regs: c.colors, Spilled: spilled}
			break
		}
		spilled = spilled.Union(c.spilled)
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// simplify removes every vertex from the work graph onto the select stack:
// the first (by name) vertex of degree < k if there is one, otherwise the
// vertex of highest degree, flagged as a potential spill.
func (c *colorer) simplify() {
	for c.work.Nodes.Cardinality() > 0 {
		nodes := ir.Sorted(c.work.Nodes)
		pick, colorable := "", false
		for _, v := range nodes {
			if c.work.Degree(v) < c.K {
				pick, colorable = v, true
				break
			}
		}
		if !colorable {
			pick = c.selectSpill(nodes)
		}
		c.selectStack = append(c.selectStack, stackEntry{v: pick, colorable: colorable})
		c.work.RemoveNode(pick)
	}
}

// selectSpill picks the highest-degree vertex; ties go to the first name.
func (c *colorer) selectSpill(nodes []string) string {
	maxDeg := -1
	var maxVar string
	for _, v := range nodes {
		if d := c.work.Degree(v); d > maxDeg {
			maxDeg = d
			maxVar = v
		}
	}
	return maxVar
}

// assignColors pops the select stack, giving each vertex the lowest register
// no colored neighbor in the original graph holds. A potential spill is
// colored only while its neighbors use fewer than k distinct registers.
func (c *colorer) assignColors() {
	for len(c.selectStack) > 0 {
		n := len(c.selectStack) - 1
		e := c.selectStack[n]
		c.selectStack = c.selectStack[:n]

		usedColors := make(map[int]bool)
		for _, neighbor := range c.original.Edges[e.v].ToSlice() {
			if color, ok := c.colors[neighbor]; ok {
				usedColors[color] = true
			}
		}
		if !e.colorable && len(usedColors) >= c.K {
			c.spilled.Add(e.v)
			continue
		}

		color := -1
		for r := 0; r < c.K; r++ {
			if !usedColors[r] {
				color = r
				break
			}
		}
		if color < 0 {
			// Cannot happen for colorable vertices: fewer than k neighbors
			// were left when they were removed.
			c.spilled.Add(e.v)
			continue
		}
		c.colors[e.v] = color
	}
}
