package cfg

import (
	"github.com/pkg/errors"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// blockBuilder partitions a flat instruction stream into basic blocks.
type blockBuilder struct {
	blocks map[string]*Block
	order  []string // entry first, then labels in order of appearance
	opened ir.Set   // labels that have appeared as label markers
	cur    *Block   // nil right after a terminator
}

// FormBlocks partitions fn's instruction stream into blocks and wires the
// predecessor/successor edges. It returns the blocks and their layout order.
func FormBlocks(fn *ir.Function) (map[string]*Block, []string, error) {
	b := &blockBuilder{
		blocks: make(map[string]*Block),
		opened: ir.NewSet(EntryLabel),
	}
	entry := NewBlock(EntryLabel)
	b.blocks[EntryLabel] = entry
	b.order = append(b.order, EntryLabel)
	b.cur = entry

	for idx, instr := range fn.Instrs {
		if l, ok := instr.(ir.Label); ok {
			if err := b.openLabel(l.Name); err != nil {
				return nil, nil, errors.Wrapf(err, "function %s: instruction %d", fn.Name, idx)
			}
			continue
		}
		if b.cur == nil {
			return nil, nil, errors.Wrapf(ErrMalformed,
				"function %s: instruction %d (%s) follows a terminator without a label",
				fn.Name, idx, ir.Format(instr))
		}
		b.cur.Instrs = append(b.cur.Instrs, instr)
		if ir.IsTerminator(instr) {
			for _, target := range ir.Targets(instr) {
				b.addEdge(b.cur, b.placeholder(target))
			}
			b.cur = nil
		}
	}

	for label := range b.blocks {
		if !b.opened.Contains(label) {
			return nil, nil, errors.Wrapf(ErrMalformed, "function %s: branch target .%s is never defined", fn.Name, label)
		}
	}
	return b.blocks, b.order, nil
}

// openLabel closes the current block, recording a fallthrough edge when the
// previous instruction was not a terminator, and makes label current.
func (b *blockBuilder) openLabel(name string) error {
	if name == EntryLabel {
		return errors.Wrapf(ErrMalformed, "label %s is reserved", name)
	}
	if b.opened.Contains(name) {
		return errors.Wrapf(ErrMalformed, "duplicate label .%s", name)
	}
	next := b.placeholder(name)
	if b.cur != nil {
		b.addEdge(b.cur, next)
	}
	b.opened.Add(name)
	b.order = append(b.order, name)
	b.cur = next
	return nil
}

// placeholder returns the block for label, creating an empty one if the label
// has not been seen yet.
func (b *blockBuilder) placeholder(label string) *Block {
	if blk, ok := b.blocks[label]; ok {
		return blk
	}
	blk := NewBlock(label)
	b.blocks[label] = blk
	return blk
}

func (b *blockBuilder) addEdge(from, to *Block) {
	from.Succs.Add(to.Label)
	to.Preds.Add(from.Label)
}
