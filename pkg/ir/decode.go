package ir

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

type rawProgram struct {
	Functions []rawFunction `json:"functions"`
}

type rawFunction struct {
	Name   string          `json:"name"`
	Args   []rawParam      `json:"args"`
	Type   json.RawMessage `json:"type,omitempty"`
	Instrs []rawInstr      `json:"instrs"`
}

type rawParam struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type rawInstr struct {
	Label  *string         `json:"label"`
	Op     string          `json:"op"`
	Dest   string          `json:"dest"`
	Type   json.RawMessage `json:"type"`
	Args   []string        `json:"args"`
	Funcs  []string        `json:"funcs"`
	Labels []string        `json:"labels"`
	Value  json.RawMessage `json:"value"`
	Base   string          `json:"base"`
}

// ReadProgramFile reads and decodes a JSON program from path.
func ReadProgramFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", path)
	}
	defer f.Close()
	prog, err := DecodeProgram(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return prog, nil
}

// DecodeProgram decodes a JSON program and converts every instruction into its variant.
func DecodeProgram(r io.Reader) (*Program, error) {
	var raw rawProgram
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "invalid program JSON")
	}
	prog := &Program{}
	for _, rf := range raw.Functions {
		fn, err := convertFunction(rf)
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, *fn)
	}
	return prog, nil
}

func convertFunction(rf rawFunction) (*Function, error) {
	fn := &Function{Name: rf.Name}
	for _, p := range rf.Args {
		fn.Params = append(fn.Params, Param{Name: p.Name, Type: typeText(p.Type)})
	}
	for idx, ri := range rf.Instrs {
		instr, err := convertInstr(ri)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s: instruction %d", rf.Name, idx)
		}
		fn.Instrs = append(fn.Instrs, instr)
	}
	return fn, nil
}

func convertInstr(ri rawInstr) (Instruction, error) {
	if ri.Label != nil {
		if ri.Op != "" {
			return nil, errors.Errorf("label %q also carries op %q", *ri.Label, ri.Op)
		}
		return Label{Name: *ri.Label}, nil
	}
	switch ri.Op {
	case "":
		return nil, errors.New("instruction has neither label nor op")
	case OpBr:
		if len(ri.Args) != 1 || len(ri.Labels) != 2 {
			return nil, errors.Errorf("br needs 1 argument and 2 labels, got %d and %d", len(ri.Args), len(ri.Labels))
		}
		return Branch{Cond: ri.Args[0], True: ri.Labels[0], False: ri.Labels[1]}, nil
	case OpJmp:
		if len(ri.Labels) != 1 {
			return nil, errors.Errorf("jmp needs 1 label, got %d", len(ri.Labels))
		}
		return Jump{Target: ri.Labels[0]}, nil
	case OpRet:
		if len(ri.Args) > 1 {
			return nil, errors.Errorf("ret takes at most 1 argument, got %d", len(ri.Args))
		}
		ret := Return{}
		if len(ri.Args) == 1 {
			ret.Arg = ri.Args[0]
		}
		return ret, nil
	case OpPhi:
		if ri.Dest == "" {
			return nil, errors.New("phi without dest")
		}
		if len(ri.Args) != len(ri.Labels) {
			return nil, errors.Errorf("phi %s has %d args but %d labels", ri.Dest, len(ri.Args), len(ri.Labels))
		}
		base := ri.Base
		if base == "" {
			base = ri.Dest
		}
		return Phi{
			Dest:   ri.Dest,
			Type:   typeText(ri.Type),
			Base:   base,
			Args:   append([]string(nil), ri.Args...),
			Labels: append([]string(nil), ri.Labels...),
		}, nil
	}
	if ri.Dest != "" {
		return ValueOp{
			Op:    ri.Op,
			Dest:  ri.Dest,
			Type:  typeText(ri.Type),
			Args:  ri.Args,
			Funcs: ri.Funcs,
			Value: literalText(ri.Value),
		}, nil
	}
	return EffectOp{Op: ri.Op, Args: ri.Args, Funcs: ri.Funcs}, nil
}

// typeText renders a JSON type annotation: plain strings are unquoted,
// parameterized types such as {"ptr":"int"} keep their compact JSON form.
func typeText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func literalText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}
