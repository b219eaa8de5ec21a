package regalloc

import (
	"sort"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// Interval is the closed range of positions over which a variable may hold a
// register.
//
// Positions number the function in layout order. A block entered at p with
// n instructions spans [p, p+2n]: instruction j reads its operands at
// p+1+2j and writes its result at p+2+2j. Phi results and parameters are
// written at p. The next block starts at p+2n+1.
type Interval struct {
	Var   string
	Start int
	End   int
	Param bool
}

// Overlaps reports whether the two intervals share a position.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start <= o.End && o.Start <= iv.End
}

// BuildIntervals computes one interval per variable as the hull of every
// position where it is written or live. A variable live out of a block is
// stretched over the whole block, so any two variables joined by an
// interference edge have overlapping intervals. Liveness must be computed.
//
// The result is ordered by start position, parameters first, then by name.
func BuildIntervals(c *cfg.CFG) []Interval {
	hull := make(map[string]*Interval)
	touch := func(v string, pos int) {
		iv, ok := hull[v]
		if !ok {
			hull[v] = &Interval{Var: v, Start: pos, End: pos}
			return
		}
		if pos < iv.Start {
			iv.Start = pos
		}
		if pos > iv.End {
			iv.End = pos
		}
	}

	pos := 0
	for _, b := range c.BlocksInOrder() {
		p := pos
		end := p + 2*len(b.Instrs)

		if b.Label == cfg.EntryLabel {
			for _, param := range c.Params {
				touch(param, p)
			}
		}
		for _, v := range b.LiveIn.ToSlice() {
			touch(v, p)
		}
		for _, v := range b.PhiDefs().ToSlice() {
			touch(v, p)
		}
		for _, v := range b.LiveOut.ToSlice() {
			touch(v, p)
			touch(v, end)
		}

		before, after := b.InstrLiveness()
		for j, instr := range b.Instrs {
			use, def := p+1+2*j, p+2+2*j
			for _, v := range before[j].ToSlice() {
				touch(v, use)
			}
			for _, v := range after[j].ToSlice() {
				touch(v, def)
			}
			if _, isPhi := instr.(ir.Phi); !isPhi {
				for _, v := range ir.Uses(instr) {
					touch(v, use)
				}
			}
			if dest, ok := ir.Def(instr); ok {
				touch(dest, def)
			}
		}
		pos = end + 1
	}

	params := ir.NewSet(c.Params...)
	out := make([]Interval, 0, len(hull))
	for _, iv := range hull {
		iv.Param = params.Contains(iv.Var)
		out = append(out, *iv)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Param != b.Param {
			return a.Param
		}
		return a.Var < b.Var
	})
	return out
}
