package regalloc

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// TraceKind names a linear-scan event.
type TraceKind string

const (
	TraceAssign TraceKind = "assign"
	TraceEvict  TraceKind = "evict"
	TraceFree   TraceKind = "free"
)

// TraceEvent records one change to register occupancy.
type TraceEvent struct {
	Pos  int
	Kind TraceKind
	Var  string
	Reg  int
}

func (e TraceEvent) String() string {
	return fmt.Sprintf("%4d %-6s r%d %s", e.Pos, e.Kind, e.Reg, e.Var)
}

// LinearScanResult holds the result of linear-scan allocation
type LinearScanResult struct {
	Assignment *Assignment
	// Spills counts evictions; each evicted variable lives in memory afterwards.
	Spills int
	// PeakRegisters is the largest number of registers occupied at once.
	PeakRegisters int
	Elapsed       time.Duration
	Trace         []TraceEvent
}

// linearScan holds the occupancy state while intervals are walked in order.
type linearScan struct {
	k      int
	policy SpillPolicy
	rng    *rand.Rand
	slots  []*Interval // occupant per register, nil when free
	result *LinearScanResult
}

// LinearScan allocates k registers over the live intervals of c. Intervals
// are taken in start order; a register is released once the position passes
// its occupant's end. When a new interval finds every register taken, the
// policy picks an occupant to evict: it is spilled for the rest of the
// function and the new interval takes its register. rng drives the random
// policy and may be nil otherwise. Liveness must be computed.
func LinearScan(c *cfg.CFG, k int, policy SpillPolicy, rng *rand.Rand) (*LinearScanResult, error) {
	if k < 1 {
		return nil, errors.Wrapf(ErrNoRegisters, "linear scan with %d registers", k)
	}
	if policy == RandomSpill && rng == nil {
		return nil, errors.New("random spill policy needs a random source")
	}
	start := time.Now()
	ls := &linearScan{
		k:      k,
		policy: policy,
		rng:    rng,
		slots:  make([]*Interval, k),
		result: &LinearScanResult{Assignment: NewAssignment()},
	}

	intervals := BuildIntervals(c)
	for i := range intervals {
		iv := &intervals[i]
		ls.expire(iv.Start)
		ls.allocate(iv)
		if n := ls.occupied(); n > ls.result.PeakRegisters {
			ls.result.PeakRegisters = n
		}
	}

	ls.result.Elapsed = time.Since(start)
	return ls.result, nil
}

// expire frees every register whose occupant ends before pos.
func (ls *linearScan) expire(pos int) {
	for r, occ := range ls.slots {
		if occ != nil && occ.End < pos {
			ls.trace(occ.End, TraceFree, occ.Var, r)
			ls.slots[r] = nil
		}
	}
}

func (ls *linearScan) allocate(iv *Interval) {
	a := ls.result.Assignment
	if _, ok := a.Regs[iv.Var]; ok || a.Spilled.Contains(iv.Var) {
		return
	}
	for r, occ := range ls.slots {
		if occ == nil {
			ls.assign(iv, r)
			return
		}
	}

	r := ls.victim()
	evicted := ls.slots[r]
	delete(a.Regs, evicted.Var)
	a.Spilled.Add(evicted.Var)
	ls.result.Spills++
	ls.trace(iv.Start, TraceEvict, evicted.Var, r)
	ls.assign(iv, r)
}

func (ls *linearScan) assign(iv *Interval, r int) {
	ls.slots[r] = iv
	ls.result.Assignment.Regs[iv.Var] = r
	ls.trace(iv.Start, TraceAssign, iv.Var, r)
}

// victim picks the register to evict; every register is occupied.
func (ls *linearScan) victim() int {
	if ls.policy == RandomSpill {
		return ls.rng.Intn(ls.k)
	}
	best := 0
	for r, occ := range ls.slots {
		if occ.End > ls.slots[best].End {
			best = r
		}
	}
	return best
}

func (ls *linearScan) occupied() int {
	n := 0
	for _, occ := range ls.slots {
		if occ != nil {
			n++
		}
	}
	return n
}

func (ls *linearScan) trace(pos int, kind TraceKind, v string, r int) {
	ls.result.Trace = append(ls.result.Trace, TraceEvent{Pos: pos, Kind: kind, Var: v, Reg: r})
}

// SpilledVars returns the spilled variables, sorted
func (r *LinearScanResult) SpilledVars() []string {
	return ir.Sorted(r.Assignment.Spilled)
}
