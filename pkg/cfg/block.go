// Package cfg builds control-flow graphs over the IR and runs the classic
// analyses on them: dominators, dominance frontiers, liveness and reaching
// definitions. A CFG is built once per function and mutated in place by each
// analysis; it is never shared across functions.
package cfg

import (
	"sort"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// EntryLabel is the synthetic id of the implicit entry block.
const EntryLabel = ".start"

// PhiNode merges the values of one variable at a join block.
// Var starts as the base variable and is rewritten to its SSA version during
// renaming. Sources maps a predecessor block id to the name flowing in from it.
type PhiNode struct {
	Var     string
	Sources map[string]string
}

// NewPhiNode creates a phi for v with one source slot per predecessor.
func NewPhiNode(v string, preds []string) *PhiNode {
	p := &PhiNode{Var: v, Sources: make(map[string]string, len(preds))}
	for _, pred := range preds {
		p.Sources[pred] = v
	}
	return p
}

// Useful reports whether the phi merges more than one distinct source block.
// Non-useful phis are kept; they are not pruned.
func (p *PhiNode) Useful() bool {
	return len(p.Sources) > 1
}

// SourceBlocks returns the predecessor ids feeding the phi, sorted.
func (p *PhiNode) SourceBlocks() []string {
	out := make([]string, 0, len(p.Sources))
	for b := range p.Sources {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Block is a basic block: a maximal straight-line instruction sequence.
type Block struct {
	Label  string
	Instrs []ir.Instruction
	Preds  ir.Set
	Succs  ir.Set

	// Used holds upward-exposed uses, Defined every variable assigned in the
	// block (parameters count as definitions of the entry block).
	Used    ir.Set
	Defined ir.Set
	Killed  ir.Set

	LiveIn  ir.Set
	LiveOut ir.Set

	// Reaching definitions, by variable name.
	ReachIn  ir.Set
	ReachOut ir.Set

	// Phis is keyed by the phi's base variable.
	Phis map[string]*PhiNode
}

// NewBlock creates an empty block
func NewBlock(label string) *Block {
	return &Block{
		Label:    label,
		Preds:    ir.NewSet(),
		Succs:    ir.NewSet(),
		Used:     ir.NewSet(),
		Defined:  ir.NewSet(),
		Killed:   ir.NewSet(),
		LiveIn:   ir.NewSet(),
		LiveOut:  ir.NewSet(),
		ReachIn:  ir.NewSet(),
		ReachOut: ir.NewSet(),
		Phis:     make(map[string]*PhiNode),
	}
}

// IsTerminating reports whether the block has no successors (a program exit
// point for its control path).
func (b *Block) IsTerminating() bool {
	return b.Succs.Cardinality() == 0
}

// ComputeUseDef recomputes the Used and Defined sets. params are treated as
// pre-defined; pass them only for the entry block.
func (b *Block) ComputeUseDef(params []string) {
	b.Used = ir.NewSet()
	b.Defined = ir.NewSet(params...)
	for _, phi := range b.Phis {
		b.Defined.Add(phi.Var)
	}
	for _, instr := range b.Instrs {
		if phi, ok := instr.(ir.Phi); ok {
			// Phi operands are uses on the incoming edges, not in this block.
			b.Defined.Add(phi.Dest)
			continue
		}
		for _, arg := range ir.Uses(instr) {
			if !b.Defined.Contains(arg) {
				b.Used.Add(arg)
			}
		}
		if dest, ok := ir.Def(instr); ok {
			b.Defined.Add(dest)
		}
	}
}

// PhiUses returns the names this block's phis read along the edge from pred.
func (b *Block) PhiUses(pred string) []string {
	var uses []string
	for _, v := range sortedPhiKeys(b.Phis) {
		if src, ok := b.Phis[v].Sources[pred]; ok {
			uses = append(uses, src)
		}
	}
	for _, instr := range b.Instrs {
		phi, ok := instr.(ir.Phi)
		if !ok {
			continue
		}
		for i, l := range phi.Labels {
			if l == pred {
				uses = append(uses, phi.Args[i])
			}
		}
	}
	return uses
}

// PhiDefs returns the variables defined by phis at the top of the block.
func (b *Block) PhiDefs() ir.Set {
	defs := ir.NewSet()
	for _, phi := range b.Phis {
		defs.Add(phi.Var)
	}
	for _, instr := range b.Instrs {
		if phi, ok := instr.(ir.Phi); ok {
			defs.Add(phi.Dest)
		}
	}
	return defs
}

// SortedPhis returns the phi nodes of b ordered by base variable.
func (b *Block) SortedPhis() []*PhiNode {
	out := make([]*PhiNode, 0, len(b.Phis))
	for _, v := range sortedPhiKeys(b.Phis) {
		out = append(out, b.Phis[v])
	}
	return out
}

func sortedPhiKeys(phis map[string]*PhiNode) []string {
	keys := make([]string, 0, len(phis))
	for k := range phis {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
