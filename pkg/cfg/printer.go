package cfg

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// Printer dumps a CFG and its analysis results
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new CFG printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func braces(items []string) string {
	if len(items) == 0 {
		return "{ }"
	}
	return "{ " + strings.Join(items, " ") + " }"
}

// PrintEdges prints one line per block: "{ preds } -> block -> { succs }"
func (p *Printer) PrintEdges(c *CFG) {
	fmt.Fprintf(p.w, "%s:\n", c.Name)
	for _, b := range c.BlocksInOrder() {
		fmt.Fprintf(p.w, "  %s -> %s -> %s\n",
			braces(c.InLayoutOrder(b.Preds)), b.Label, braces(c.InLayoutOrder(b.Succs)))
	}
}

// PrintBlocks prints every block with its phi nodes and instructions
func (p *Printer) PrintBlocks(c *CFG) {
	fmt.Fprintf(p.w, "@%s(%s) {\n", c.Name, strings.Join(c.Params, ", "))
	for _, b := range c.BlocksInOrder() {
		fmt.Fprintf(p.w, "%s:\n", blockName(b.Label))
		for _, phi := range b.SortedPhis() {
			srcs := make([]string, 0, len(phi.Sources))
			for _, pred := range c.InLayoutOrder(ir.NewSet(phi.SourceBlocks()...)) {
				srcs = append(srcs, fmt.Sprintf("%s %s", phi.Sources[pred], blockName(pred)))
			}
			fmt.Fprintf(p.w, "  %s = phi %s;\n", phi.Var, strings.Join(srcs, " "))
		}
		for _, instr := range b.Instrs {
			fmt.Fprintf(p.w, "  %s;\n", ir.Format(instr))
		}
	}
	fmt.Fprintln(p.w, "}")
}

// PrintDominance prints dominators, immediate dominators and frontiers
func (p *Printer) PrintDominance(c *CFG) {
	fmt.Fprintf(p.w, "%s:\n", c.Name)
	for _, l := range c.Order {
		idom := c.ImmediateDominators[l]
		if idom == "" {
			idom = "-"
		}
		fmt.Fprintf(p.w, "  %s dom=%s idom=%s df=%s\n", l,
			braces(c.InLayoutOrder(c.Dominators[l])), idom,
			braces(c.InLayoutOrder(c.DominanceFrontiers[l])))
	}
	for _, a := range c.Anomalies {
		fmt.Fprintf(p.w, "  warning: %s\n", a)
	}
}

// PrintLiveness prints use/def, live-in/out and reaching sets per block
func (p *Printer) PrintLiveness(c *CFG) {
	fmt.Fprintf(p.w, "%s:\n", c.Name)
	for _, b := range c.BlocksInOrder() {
		fmt.Fprintf(p.w, "  %s\n", b.Label)
		fmt.Fprintf(p.w, "    used=%s defined=%s\n", braces(ir.Sorted(b.Used)), braces(ir.Sorted(b.Defined)))
		fmt.Fprintf(p.w, "    live_in=%s live_out=%s\n", braces(ir.Sorted(b.LiveIn)), braces(ir.Sorted(b.LiveOut)))
		fmt.Fprintf(p.w, "    reach_in=%s reach_out=%s killed=%s\n",
			braces(ir.Sorted(b.ReachIn)), braces(ir.Sorted(b.ReachOut)), braces(ir.Sorted(b.Killed)))
	}
	n, blk := c.MinRegisterCount()
	fmt.Fprintf(p.w, "  min registers: %d (at %s)\n", n, blk)
}

func blockName(label string) string {
	if label == EntryLabel {
		return label
	}
	return "." + label
}
