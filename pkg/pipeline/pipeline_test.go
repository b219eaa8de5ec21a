package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gopkg.in/yaml.v3"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/raymyers/ralph-ra/pkg/cfg"
	"github.com/raymyers/ralph-ra/pkg/config"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/ir/irtest"
)

func testContext(t *testing.T) (context.Context, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return log.WithLogger(context.Background(), logrus.NewEntry(logger)), hook
}

func testOptions(registers ...int) Options {
	conf := config.Default()
	conf.Registers = registers
	return Options{Config: conf}
}

func TestRunFunctionPressure(t *testing.T) {
	ctx, _ := testContext(t)
	res := RunFunction(ctx, irtest.Pressure(), testOptions(3, 2))
	assert.NilError(t, res.Err)

	assert.Equal(t, res.Blocks, 2)
	assert.Equal(t, res.MinRegisters, 3)
	assert.Assert(t, is.Len(res.LinearScan, 2))
	assert.Equal(t, res.LinearScan[0].Spills, 0)
	assert.Equal(t, res.LinearScan[1].Spills, 1)
	assert.DeepEqual(t, res.LinearScan[1].Spilled, []string{"a"})
	assert.Equal(t, res.GraphColoring[0].Spills, 0)
	assert.Equal(t, res.GraphColoring[1].Spills, 1)
	assert.Equal(t, res.GraphColoring[1].Passes, 2)

	want := `pressure:
	li mr, 1
	li t1, 2
	li t0, 3
	j .l1
.l1:
	add t0, t1, t0
	add t0, t0, mr
	mv a0, t0
	jr ra
`
	assert.Equal(t, res.Assembly, want)
}

func TestRunFunctionEmitSources(t *testing.T) {
	tests := []struct {
		name     string
		emit     string
		contains string
	}{
		{"graph coloring", config.EmitGraphColoring, "li mr, 1"},
		{"linear scan", config.EmitLinearScan, "li mr, 1"},
		{"none", config.EmitNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := testContext(t)
			opts := testOptions(2)
			opts.Config.Emit = tt.emit
			res := RunFunction(ctx, irtest.Pressure(), opts)
			assert.NilError(t, res.Err)
			if tt.contains == "" {
				assert.Equal(t, res.Assembly, "")
				return
			}
			assert.Assert(t, is.Contains(res.Assembly, tt.contains))
		})
	}
}

func TestRunFunctionEmitsExtraRegisterCount(t *testing.T) {
	ctx, _ := testContext(t)
	opts := testOptions(2)
	opts.Config.EmitRegisters = 3
	res := RunFunction(ctx, irtest.Pressure(), opts)
	assert.NilError(t, res.Err)
	assert.Assert(t, is.Len(res.LinearScan, 1))
	assert.Assert(t, !strings.Contains(res.Assembly, "mr"))
}

func TestRunFunctionSSA(t *testing.T) {
	ctx, _ := testContext(t)
	opts := testOptions(4)
	opts.Config.SSA = true
	opts.Dumps = Dumps{SSA: true, Liveness: true, Interference: true, Graph: true, Trace: true}
	res := RunFunction(ctx, irtest.Diamond(), opts)
	assert.NilError(t, res.Err)

	assert.Equal(t, res.Phis, 1)
	assert.Assert(t, is.Contains(res.Dump, "  x.3 = phi x.1 .left x.2 .right;\n"))
	assert.Assert(t, is.Contains(res.Dump, "min registers:"))
	assert.Assert(t, is.Contains(res.Dump, "diamond interference:\n"))
	assert.Assert(t, is.Contains(res.Dump, "graph LR\n"))
	assert.Assert(t, is.Contains(res.Dump, "diamond linear scan trace, 4 registers:\n"))
	assert.Assert(t, is.Contains(res.Assembly, "\t# t0 = phi "))
}

func TestRunFunctionLogsUndefinedUses(t *testing.T) {
	ctx, hook := testContext(t)
	fn := irtest.Func("undef", nil, irtest.Effect("print", "ghost"), irtest.Ret())
	res := RunFunction(ctx, fn, testOptions(2))
	assert.NilError(t, res.Err)
	assert.DeepEqual(t, res.UndefinedUses, []string{"ghost in .start"})

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["var"] == "ghost" {
			warned = true
			assert.Equal(t, e.Data["function"], "undef")
		}
	}
	assert.Assert(t, warned, "expected a warning for ghost")
}

func TestRunContinuesPastFailingFunction(t *testing.T) {
	ctx, hook := testContext(t)
	prog := &ir.Program{Functions: []ir.Function{
		*irtest.Func("broken", nil, irtest.Ret(), irtest.Const("a", 1)),
		*irtest.Loop(),
	}}
	report, err := Run(ctx, prog, testOptions(5, 3))
	assert.NilError(t, err)
	assert.Assert(t, report.Failed())

	broken, loop := report.Functions[0], report.Functions[1]
	assert.ErrorIs(t, broken.Err, cfg.ErrMalformed)
	assert.Assert(t, is.Contains(broken.Error, "follows a terminator"))
	assert.NilError(t, loop.Err)
	assert.Assert(t, loop.Assembly != "")

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["function"] == "broken" {
			logged = true
		}
	}
	assert.Assert(t, logged)
}

func TestRunWithoutWorkerLimit(t *testing.T) {
	ctx, _ := testContext(t)
	opts := testOptions(3)
	opts.Config.Workers = 0
	prog := &ir.Program{Functions: []ir.Function{*irtest.Pressure(), *irtest.Diamond(), *irtest.Loop()}}

	report, err := Run(ctx, prog, opts)
	assert.NilError(t, err)
	assert.Assert(t, !report.Failed())
	var names []string
	for _, f := range report.Functions {
		names = append(names, f.Name)
	}
	assert.DeepEqual(t, names, []string{"pressure", "diamond", "loop"})
}

func TestReportWriteText(t *testing.T) {
	r := &Report{Functions: []*FunctionResult{{
		Name:          "main",
		LinearScan:    []AllocationStats{{Registers: 5, Spills: 1, RegistersUsed: 5, Seconds: 0.25}},
		GraphColoring: []AllocationStats{{Registers: 5, Spills: 0, RegistersUsed: 4, Seconds: 0.5}},
	}}}
	var buf bytes.Buffer
	r.WriteText(&buf)

	want := `main 5 Linear Scan Time Taken: 0.250000
main 5 Linear Scan Number of spills: 1
main 5 Linear Scan Maximum number of registers in use: 5

main 5 Graph Coloring Time Taken: 0.500000
main 5 Graph Coloring Number of spills: 0
main 5 Graph Coloring Number of registers in use: 4

`
	assert.Equal(t, buf.String(), want)
	assert.Assert(t, !r.Failed())
}

func TestReportWriteYAML(t *testing.T) {
	ctx, _ := testContext(t)
	report, err := Run(ctx, &ir.Program{Functions: []ir.Function{*irtest.Pressure()}}, testOptions(2))
	assert.NilError(t, err)

	var buf bytes.Buffer
	assert.NilError(t, report.WriteYAML(&buf))

	var decoded struct {
		Functions []struct {
			Name          string            `yaml:"name"`
			GraphColoring []AllocationStats `yaml:"graph_coloring"`
		} `yaml:"functions"`
	}
	assert.NilError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Assert(t, is.Len(decoded.Functions, 1))
	assert.Equal(t, decoded.Functions[0].Name, "pressure")
	assert.DeepEqual(t, decoded.Functions[0].GraphColoring[0].Spilled, []string{"a"})
}
