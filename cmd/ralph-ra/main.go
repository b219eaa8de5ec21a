package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raymyers/ralph-ra/pkg/config"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/pipeline"
)

var version = "0.1.0"

// Debug flags for dumping intermediate states
var (
	dCFG    bool
	dDom    bool
	dSSA    bool
	dLive   bool
	dInterf bool
	dGraph  bool
	dTrace  bool
	dReport bool // YAML report instead of plain text
)

var (
	configPath string
	outputPath string
	debug      bool
	quiet      bool
)

// ErrFailed indicates that at least one function could not be allocated.
var ErrFailed = errors.New("allocation failed")

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the dump flags that also accept the single-dash form.
var debugFlagNames = []string{"dcfg", "ddom", "dssa", "dlive", "dinterf", "dgraph", "dtrace", "dreport"}

// normalizeFlags converts single-dash dump flags like -dcfg to --dcfg
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	// Only the flag set is backed by this value; the effective settings are
	// rebuilt in RunE so the config file and environment sit underneath flags.
	flagConf := config.Default()

	rootCmd := &cobra.Command{
		Use:   "ralph-ra [file]",
		Short: "ralph-ra allocates registers for JSON IR programs",
		Long: `ralph-ra builds the control flow graph of every function in a JSON IR
program, optionally converts it to SSA form, and compares a linear-scan
allocator against a Chaitin-Briggs graph-coloring allocator over a range
of register counts. The chosen assignment is emitted as RISC-V style
assembly.`,
		Version:       version,
		Args:          reportArgErrors(cobra.ExactArgs(1), errOut),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd.Flags())
			if err != nil {
				fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
				return err
			}
			return doAllocate(cmd, args[0], conf, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
		return err
	})

	rootCmd.Flags().BoolVarP(&dCFG, "dcfg", "", false, "Dump control flow edges")
	rootCmd.Flags().BoolVarP(&dDom, "ddom", "", false, "Dump dominators and dominance frontiers")
	rootCmd.Flags().BoolVarP(&dSSA, "dssa", "", false, "Dump blocks after SSA conversion")
	rootCmd.Flags().BoolVarP(&dLive, "dlive", "", false, "Dump liveness and reaching definitions")
	rootCmd.Flags().BoolVarP(&dInterf, "dinterf", "", false, "Dump interference edges")
	rootCmd.Flags().BoolVarP(&dGraph, "dgraph", "", false, "Dump the colored interference graph as Mermaid")
	rootCmd.Flags().BoolVarP(&dTrace, "dtrace", "", false, "Dump the linear scan trace")
	rootCmd.Flags().BoolVarP(&dReport, "dreport", "", false, "Write the report as YAML")

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write assembly to this file instead of stdout")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Log every allocation")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Log errors only")
	flagConf.BindFlags(rootCmd.Flags())

	return rootCmd
}

// reportArgErrors wraps an argument validator so that, with cobra's own
// error printing silenced, usage mistakes still reach the error stream.
func reportArgErrors(validate cobra.PositionalArgs, errOut io.Writer) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
			return err
		}
		return nil
	}
}

// loadConfig layers defaults, the config file, the environment and the
// flags the user actually set.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	conf := config.Default()
	if configPath != "" {
		if err := conf.Load(configPath); err != nil {
			return conf, err
		}
	}
	if err := conf.ApplyEnv(); err != nil {
		return conf, err
	}

	overlay := pflag.NewFlagSet("overlay", pflag.ContinueOnError)
	conf.BindFlags(overlay)
	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		target := overlay.Lookup(f.Name)
		if target == nil || setErr != nil {
			return
		}
		if src, ok := f.Value.(pflag.SliceValue); ok {
			setErr = target.Value.(pflag.SliceValue).Replace(src.GetSlice())
			return
		}
		setErr = target.Value.Set(f.Value.String())
	})
	if setErr != nil {
		return conf, setErr
	}
	return conf, conf.Validate()
}

func newLogger(errOut io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(errOut)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case quiet:
		logger.SetLevel(logrus.ErrorLevel)
	case debug:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

// doAllocate runs the back end over a program file and writes dumps, the
// report and the assembly.
func doAllocate(cmd *cobra.Command, filename string, conf config.Config, out, errOut io.Writer) error {
	prog, err := ir.ReadProgramFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
		return err
	}

	ctx := log.WithLogger(cmd.Context(), logrus.NewEntry(newLogger(errOut)))
	report, err := pipeline.Run(ctx, prog, pipeline.Options{
		Config: conf,
		Dumps: pipeline.Dumps{
			CFG:          dCFG,
			Dominance:    dDom,
			SSA:          dSSA,
			Liveness:     dLive,
			Interference: dInterf,
			Graph:        dGraph,
			Trace:        dTrace,
		},
	})
	if err != nil {
		fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
		return err
	}

	for _, f := range report.Functions {
		fmt.Fprint(out, f.Dump)
	}
	if dReport {
		if err := report.WriteYAML(out); err != nil {
			fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
			return err
		}
	} else {
		report.WriteText(out)
	}

	if err := writeAssembly(report, out); err != nil {
		fmt.Fprintf(errOut, "ralph-ra: %v\n", err)
		return err
	}

	if report.Failed() {
		for _, f := range report.Functions {
			if f.Err != nil {
				fmt.Fprintf(errOut, "ralph-ra: %s: %v\n", f.Name, f.Err)
			}
		}
		return ErrFailed
	}
	return nil
}

func writeAssembly(report *pipeline.Report, out io.Writer) error {
	var asm bytes.Buffer
	for _, f := range report.Functions {
		asm.WriteString(f.Assembly)
	}
	if outputPath == "" {
		_, err := out.Write(asm.Bytes())
		return err
	}
	if err := os.WriteFile(outputPath, asm.Bytes(), 0644); err != nil {
		return fmt.Errorf("error creating %s: %w", outputPath, err)
	}
	return nil
}
