// Package config assembles the allocator settings from, in increasing order
// of precedence, built-in defaults, a YAML file, RALPH_RA_* environment
// variables and command-line flags.
package config

import (
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-ra/pkg/codegen"
	"github.com/raymyers/ralph-ra/pkg/regalloc"
)

// ErrInvalid reports a configuration value outside its accepted range.
var ErrInvalid = errors.New("invalid configuration")

// Emit sources for the assembly listing.
const (
	EmitGraphColoring = "graph-coloring"
	EmitLinearScan    = "linear-scan"
	EmitNone          = "none"
)

// Environment variables read by ApplyEnv.
const (
	EnvRegisters = "RALPH_RA_REGISTERS"
	EnvSpill     = "RALPH_RA_SPILL"
	EnvSeed      = "RALPH_RA_SEED"
	EnvWorkers   = "RALPH_RA_WORKERS"
)

// Config holds every setting of a run.
type Config struct {
	// Registers lists the register counts each allocator is run with.
	Registers   []int                `yaml:"registers"`
	SpillPolicy regalloc.SpillPolicy `yaml:"spill_policy"`
	Seed        int64                `yaml:"seed"`
	SSA         bool                 `yaml:"ssa"`
	// Emit names the allocator whose assignment feeds code generation.
	Emit string `yaml:"emit"`
	// EmitRegisters is the register count used for emission; 0 means the
	// last entry of Registers.
	EmitRegisters int                   `yaml:"emit_registers"`
	Workers       int                   `yaml:"workers"`
	RegisterSpecs codegen.RegisterSpecs `yaml:"register_specs"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Registers:     []int{10, 7, 5},
		SpillPolicy:   regalloc.LongestLiveRange,
		Seed:          1,
		Emit:          EmitGraphColoring,
		Workers:       4,
		RegisterSpecs: codegen.DefaultRegisterSpecs(),
	}
}

// Load overlays the YAML file at path onto c. Unknown keys are rejected.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return errors.Wrapf(err, "parsing config %s", path)
	}
	return nil
}

// ApplyEnv overlays the RALPH_RA_* environment variables onto c. The env
// cache is reloaded first so changes made since the last call are seen.
func (c *Config) ApplyEnv() error {
	env.Load()
	if env.Has(EnvRegisters) {
		regs, err := ParseRegisters(env.Str(EnvRegisters))
		if err != nil {
			return errors.Wrap(err, EnvRegisters)
		}
		c.Registers = regs
	}
	if env.Has(EnvSpill) {
		if err := c.SpillPolicy.Set(env.Str(EnvSpill)); err != nil {
			return errors.Wrap(err, EnvSpill)
		}
	}
	c.Seed = env.Int64(EnvSeed, c.Seed)
	c.Workers = env.Int(EnvWorkers, c.Workers)
	return nil
}

// BindFlags registers flags that write straight into c. Call it after Load
// and ApplyEnv so the flag defaults shown in help are the effective values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntSliceVarP(&c.Registers, "registers", "r", c.Registers, "register counts to allocate with")
	fs.Var(&c.SpillPolicy, "spill", "linear-scan spill policy (longest-live-range|random)")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "seed for the random spill policy")
	fs.BoolVar(&c.SSA, "ssa", c.SSA, "convert to SSA form before allocation")
	fs.StringVar(&c.Emit, "emit", c.Emit, "allocator whose assignment is emitted (graph-coloring|linear-scan|none)")
	fs.IntVar(&c.EmitRegisters, "emit-registers", c.EmitRegisters, "register count used for emission (default: last of --registers)")
	fs.IntVar(&c.Workers, "workers", c.Workers, "functions processed in parallel")
}

// Validate checks the settings against each other and normalizes the
// spill policy name.
func (c *Config) Validate() error {
	if len(c.Registers) == 0 {
		return errors.Wrap(ErrInvalid, "no register counts given")
	}
	for _, k := range c.Registers {
		if k < 1 {
			return errors.Wrapf(ErrInvalid, "register count %d is below 1", k)
		}
		if k > len(c.RegisterSpecs.GP) {
			return errors.Wrapf(ErrInvalid, "register count %d exceeds the %d named general-purpose registers", k, len(c.RegisterSpecs.GP))
		}
	}
	policy, err := regalloc.ParseSpillPolicy(c.SpillPolicy.String())
	if err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	c.SpillPolicy = policy
	switch c.Emit {
	case EmitGraphColoring, EmitLinearScan, EmitNone:
	default:
		return errors.Wrapf(ErrInvalid, "unknown emit source %q", c.Emit)
	}
	if c.EmitRegisters < 0 || c.EmitRegisters > len(c.RegisterSpecs.GP) {
		return errors.Wrapf(ErrInvalid, "emit register count %d out of range", c.EmitRegisters)
	}
	if c.Workers < 1 {
		return errors.Wrapf(ErrInvalid, "worker count %d is below 1", c.Workers)
	}
	return nil
}

// EmitK returns the register count whose assignment is emitted.
func (c *Config) EmitK() int {
	if c.EmitRegisters > 0 {
		return c.EmitRegisters
	}
	return c.Registers[len(c.Registers)-1]
}

// ParseRegisters parses a comma-separated list of register counts.
func ParseRegisters(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		k, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "register count %q", field)
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(ErrInvalid, "empty register list %q", s)
	}
	return out, nil
}
