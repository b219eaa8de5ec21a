package pipeline

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// AllocationStats summarizes one allocator run at one register count.
type AllocationStats struct {
	Registers     int      `yaml:"registers"`
	Spills        int      `yaml:"spills"`
	Spilled       []string `yaml:"spilled,omitempty"`
	RegistersUsed int      `yaml:"registers_used"`
	Passes        int      `yaml:"passes,omitempty"`
	Seconds       float64  `yaml:"seconds"`
}

// FunctionResult is the outcome of running the back end over one function.
type FunctionResult struct {
	Name              string            `yaml:"name"`
	Blocks            int               `yaml:"blocks"`
	Variables         int               `yaml:"variables"`
	Edges             int               `yaml:"interference_edges"`
	Phis              int               `yaml:"phis,omitempty"`
	MinRegisters      int               `yaml:"min_registers"`
	MinRegistersBlock string            `yaml:"min_registers_block,omitempty"`
	Anomalies         []string          `yaml:"anomalies,omitempty"`
	UndefinedUses     []string          `yaml:"undefined_uses,omitempty"`
	LinearScan        []AllocationStats `yaml:"linear_scan"`
	GraphColoring     []AllocationStats `yaml:"graph_coloring"`
	Error             string            `yaml:"error,omitempty"`

	Err      error  `yaml:"-"`
	Assembly string `yaml:"-"`
	Dump     string `yaml:"-"`
}

func (res *FunctionResult) fail(err error) {
	res.Err = err
	res.Error = err.Error()
}

// Report collects the results of every function, in program order.
type Report struct {
	Functions []*FunctionResult `yaml:"functions"`
}

// Failed reports whether any function hit a fatal condition.
func (r *Report) Failed() bool {
	for _, f := range r.Functions {
		if f.Err != nil {
			return true
		}
	}
	return false
}

// WriteText writes the allocator statistics as plain lines, one group per
// function, allocator and register count:
//
//	<fn> <k> Linear Scan Time Taken: <seconds>
//	<fn> <k> Linear Scan Number of spills: <n>
//	<fn> <k> Linear Scan Maximum number of registers in use: <n>
func (r *Report) WriteText(w io.Writer) {
	for _, f := range r.Functions {
		if f.Err != nil {
			continue
		}
		for i := range f.LinearScan {
			ls, gc := f.LinearScan[i], f.GraphColoring[i]
			fmt.Fprintf(w, "%s %d Linear Scan Time Taken: %.6f\n", f.Name, ls.Registers, ls.Seconds)
			fmt.Fprintf(w, "%s %d Linear Scan Number of spills: %d\n", f.Name, ls.Registers, ls.Spills)
			fmt.Fprintf(w, "%s %d Linear Scan Maximum number of registers in use: %d\n", f.Name, ls.Registers, ls.RegistersUsed)
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%s %d Graph Coloring Time Taken: %.6f\n", f.Name, gc.Registers, gc.Seconds)
			fmt.Fprintf(w, "%s %d Graph Coloring Number of spills: %d\n", f.Name, gc.Registers, gc.Spills)
			fmt.Fprintf(w, "%s %d Graph Coloring Number of registers in use: %d\n", f.Name, gc.Registers, gc.RegistersUsed)
			fmt.Fprintln(w)
		}
	}
}

// WriteYAML writes the whole report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
