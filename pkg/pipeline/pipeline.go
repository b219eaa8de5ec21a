// Package pipeline drives the back end over a whole program: per function it
// builds the CFG, optionally converts to SSA, computes liveness, runs both
// allocators for every configured register count, verifies each assignment
// and emits assembly. Functions are independent and run in parallel.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/codegen"
	"github.com/raymyers/ralph-ra/pkg/config"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/regalloc"
	"github.com/raymyers/ralph-ra/pkg/ssa"
)

// Dumps selects the intermediate states written to FunctionResult.Dump.
type Dumps struct {
	CFG          bool
	Dominance    bool
	SSA          bool
	Liveness     bool
	Interference bool
	Graph        bool
	Trace        bool
}

// Options configures a run.
type Options struct {
	Config config.Config
	Dumps  Dumps
}

// Run processes every function of prog, at most Config.Workers at a time;
// a limit below 1 runs them all at once.
// A failing function does not stop the others; its error is kept in its
// result and makes Report.Failed true.
func Run(ctx context.Context, prog *ir.Program, opts Options) (*Report, error) {
	report := &Report{Functions: make([]*FunctionResult, len(prog.Functions))}

	eg, ctx := errgroup.WithContext(ctx)
	limit := opts.Config.Workers
	if limit < 1 {
		limit = -1
	}
	eg.SetLimit(limit)
	for i := range prog.Functions {
		i := i
		eg.Go(func() error {
			report.Functions[i] = RunFunction(ctx, &prog.Functions[i], opts)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// RunFunction runs the whole back end over one function.
func RunFunction(ctx context.Context, fn *ir.Function, opts Options) *FunctionResult {
	res := &FunctionResult{Name: fn.Name}
	ctx = log.WithLogger(ctx, log.G(ctx).WithField("function", fn.Name))
	if err := ctx.Err(); err != nil {
		res.fail(err)
		return res
	}
	if err := res.run(ctx, fn, opts); err != nil {
		log.G(ctx).WithError(err).Error("function failed")
		res.fail(err)
	}
	return res
}

func (res *FunctionResult) run(ctx context.Context, fn *ir.Function, opts Options) error {
	conf := opts.Config
	var dump bytes.Buffer
	defer func() { res.Dump = dump.String() }()
	printer := cfg.NewPrinter(&dump)

	c, err := cfg.New(fn)
	if err != nil {
		return err
	}
	res.Blocks = len(c.Order)
	for _, a := range c.Anomalies {
		log.G(ctx).WithField("block", a.Block).Warn(a.String())
		res.Anomalies = append(res.Anomalies, a.String())
	}
	if opts.Dumps.CFG {
		printer.PrintEdges(c)
	}
	if opts.Dumps.Dominance {
		printer.PrintDominance(c)
	}

	if err := c.ReachingDefinitions(); err != nil {
		return err
	}
	for _, u := range c.UndefinedUses() {
		log.G(ctx).WithFields(log.Fields{"block": u.Block, "var": u.Var}).Warn("variable may be used before it is defined")
		res.UndefinedUses = append(res.UndefinedUses, fmt.Sprintf("%s in %s", u.Var, u.Block))
	}

	if conf.SSA {
		stats, err := ssa.Convert(c)
		if err != nil {
			return err
		}
		res.Phis = stats.Phis
		log.G(ctx).WithFields(log.Fields{"phis": stats.Phis, "versions": stats.Versions}).Debug("converted to SSA")
		if opts.Dumps.SSA {
			printer.PrintBlocks(c)
		}
	}

	if err := c.ComputeLiveness(); err != nil {
		return err
	}
	res.MinRegisters, res.MinRegistersBlock = c.MinRegisterCount()
	if opts.Dumps.Liveness {
		printer.PrintLiveness(c)
	}

	g := regalloc.BuildInterferenceGraph(c)
	res.Variables = g.Nodes.Cardinality()
	res.Edges = len(g.EdgeList())
	if opts.Dumps.Interference {
		fmt.Fprintf(&dump, "%s interference:\n", c.Name)
		for _, e := range g.EdgeList() {
			fmt.Fprintf(&dump, "  %s -- %s\n", e.A, e.B)
		}
	}

	scans := make(map[int]*regalloc.LinearScanResult)
	colorings := make(map[int]*regalloc.ColoringResult)
	for _, k := range conf.Registers {
		ls, gc, err := allocate(ctx, c, g, k, conf)
		if err != nil {
			return err
		}
		scans[k], colorings[k] = ls, gc
		res.LinearScan = append(res.LinearScan, AllocationStats{
			Registers:     k,
			Spills:        ls.Spills,
			Spilled:       ls.SpilledVars(),
			RegistersUsed: ls.PeakRegisters,
			Seconds:       ls.Elapsed.Seconds(),
		})
		res.GraphColoring = append(res.GraphColoring, AllocationStats{
			Registers:     k,
			Spills:        gc.Spills(),
			Spilled:       ir.Sorted(gc.Assignment.Spilled),
			RegistersUsed: gc.Assignment.RegistersUsed(),
			Passes:        gc.Passes,
			Seconds:       gc.Elapsed.Seconds(),
		})
	}

	if conf.Emit == config.EmitNone {
		return nil
	}
	k := conf.EmitK()
	if scans[k] == nil {
		ls, gc, err := allocate(ctx, c, g, k, conf)
		if err != nil {
			return err
		}
		scans[k], colorings[k] = ls, gc
	}
	assignment := colorings[k].Assignment
	if conf.Emit == config.EmitLinearScan {
		assignment = scans[k].Assignment
	}
	if opts.Dumps.Graph {
		g.WriteMermaid(&dump, assignment)
	}
	if opts.Dumps.Trace {
		fmt.Fprintf(&dump, "%s linear scan trace, %d registers:\n", c.Name, k)
		for _, e := range scans[k].Trace {
			fmt.Fprintf(&dump, "  %s\n", e)
		}
	}

	if err := codegen.Rewrite(c, assignment, conf.RegisterSpecs); err != nil {
		return err
	}
	var asm bytes.Buffer
	codegen.NewEmitter(&asm, conf.RegisterSpecs).EmitFunction(c)
	res.Assembly = asm.String()
	return nil
}

// allocate runs and verifies both allocators with k registers.
func allocate(ctx context.Context, c *cfg.CFG, g *regalloc.InterferenceGraph, k int, conf config.Config) (*regalloc.LinearScanResult, *regalloc.ColoringResult, error) {
	logger := log.G(ctx).WithField("registers", k)

	ls, err := regalloc.LinearScan(c, k, conf.SpillPolicy, rand.New(rand.NewSource(conf.Seed)))
	if err != nil {
		return nil, nil, err
	}
	if err := regalloc.Verify(g, ls.Assignment); err != nil {
		return nil, nil, errors.Wrapf(err, "linear scan with %d registers", k)
	}
	logger.WithFields(log.Fields{
		"allocator": "linear-scan",
		"spills":    ls.Spills,
		"peak":      ls.PeakRegisters,
		"elapsed":   ls.Elapsed,
	}).Info("allocated")

	gc, err := regalloc.ColorGraph(g, k)
	if err != nil {
		return nil, nil, err
	}
	if err := regalloc.Verify(g, gc.Assignment); err != nil {
		return nil, nil, errors.Wrapf(err, "graph coloring with %d registers", k)
	}
	logger.WithFields(log.Fields{
		"allocator": "graph-coloring",
		"spills":    gc.Spills(),
		"passes":    gc.Passes,
		"elapsed":   gc.Elapsed,
	}).Info("allocated")
	return ls, gc, nil
}
