// Package regalloc assigns physical registers to the variables of a function
// whose liveness has been computed. Two allocators are provided, a linear
// scan over live intervals and an optimistic Chaitin-Briggs graph coloring,
// together with a verifier that checks any assignment against the
// interference graph.
package regalloc

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// InterferenceGraph represents the variable interference graph.
// Two variables interfere if they are both live at the same point.
type InterferenceGraph struct {
	// Nodes are (possibly versioned) variable names
	Nodes ir.Set
	// Edges maps each variable to its interfering neighbors
	Edges map[string]ir.Set
}

// NewInterferenceGraph creates an empty interference graph
func NewInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{
		Nodes: ir.NewSet(),
		Edges: make(map[string]ir.Set),
	}
}

// AddNode adds a variable to the graph
func (g *InterferenceGraph) AddNode(v string) {
	g.Nodes.Add(v)
	if g.Edges[v] == nil {
		g.Edges[v] = ir.NewSet()
	}
}

// AddEdge adds an interference edge between two variables
func (g *InterferenceGraph) AddEdge(a, b string) {
	if a == b {
		return // No self-edges
	}
	g.AddNode(a)
	g.AddNode(b)
	g.Edges[a].Add(b)
	g.Edges[b].Add(a)
}

// HasEdge returns true if there is an interference edge
func (g *InterferenceGraph) HasEdge(a, b string) bool {
	if edges, ok := g.Edges[a]; ok {
		return edges.Contains(b)
	}
	return false
}

// Degree returns the number of neighbors of a variable
func (g *InterferenceGraph) Degree(v string) int {
	if edges, ok := g.Edges[v]; ok {
		return edges.Cardinality()
	}
	return 0
}

// Neighbors returns the interfering neighbors of a variable
func (g *InterferenceGraph) Neighbors(v string) ir.Set {
	if edges, ok := g.Edges[v]; ok {
		return edges.Clone()
	}
	return ir.NewSet()
}

// RemoveNode removes a variable and its edges from the graph
func (g *InterferenceGraph) RemoveNode(v string) {
	if edges, ok := g.Edges[v]; ok {
		for _, neighbor := range edges.ToSlice() {
			g.Edges[neighbor].Remove(v)
		}
	}
	g.Nodes.Remove(v)
	delete(g.Edges, v)
}

// Clone returns a deep copy of the graph
func (g *InterferenceGraph) Clone() *InterferenceGraph {
	out := &InterferenceGraph{
		Nodes: g.Nodes.Clone(),
		Edges: make(map[string]ir.Set, len(g.Edges)),
	}
	for v, edges := range g.Edges {
		out.Edges[v] = edges.Clone()
	}
	return out
}

// Edge is an unordered interference pair, stored with A < B.
type Edge struct {
	A, B string
}

// EdgeList returns every edge once, sorted
func (g *InterferenceGraph) EdgeList() []Edge {
	var edges []Edge
	for v, neighbors := range g.Edges {
		for _, n := range neighbors.ToSlice() {
			if v < n {
				edges = append(edges, Edge{A: v, B: n})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// BuildInterferenceGraph constructs the interference graph from liveness info.
// Every variable the function defines or reads is a node; a variable defined
// in a block interferes with every variable live out of that block.
func BuildInterferenceGraph(c *cfg.CFG) *InterferenceGraph {
	g := NewInterferenceGraph()

	for _, p := range c.Params {
		g.AddNode(p)
	}
	for _, v := range c.Vars.ToSlice() {
		g.AddNode(v)
	}
	for _, b := range c.BlocksInOrder() {
		for _, v := range b.Used.ToSlice() {
			g.AddNode(v)
		}
		for _, v := range b.LiveIn.Union(b.LiveOut).ToSlice() {
			g.AddNode(v)
		}
	}

	for _, b := range c.BlocksInOrder() {
		for _, def := range b.Defined.ToSlice() {
			for _, live := range b.LiveOut.ToSlice() {
				g.AddEdge(def, live)
			}
		}
	}
	return g
}

// WriteMermaid renders the graph as a mermaid flowchart. Colored variables
// are labelled with their register; spilled ones are marked.
func (g *InterferenceGraph) WriteMermaid(w io.Writer, a *Assignment) {
	fmt.Fprintln(w, "graph LR")
	for _, v := range ir.Sorted(g.Nodes) {
		label := v
		if a != nil {
			if r, ok := a.Regs[v]; ok {
				label = fmt.Sprintf("%s r%d", v, r)
			} else if a.Spilled.Contains(v) {
				label = v + " spilled"
			}
		}
		fmt.Fprintf(w, "  %s[\"%s\"]\n", mermaidID(v), label)
	}
	for _, e := range g.EdgeList() {
		fmt.Fprintf(w, "  %s --- %s\n", mermaidID(e.A), mermaidID(e.B))
	}
}

func mermaidID(v string) string {
	return "v_" + strings.NewReplacer(".", "_", "-", "_").Replace(v)
}
