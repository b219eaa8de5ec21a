package regalloc

import (
	"errors"
	"testing"

	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/ir/irtest"
)

func TestColorGraphSpillsOneOfThree(t *testing.T) {
	g := BuildInterferenceGraph(analyzed(t, irtest.Pressure()))
	res, err := ColorGraph(g, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Spills() != 1 {
		t.Fatalf("expected 1 spill, got %d (%v)", res.Spills(), ir.Sorted(res.Assignment.Spilled))
	}
	if !res.Assignment.Spilled.Contains("a") {
		t.Errorf("expected a to spill, got %v", ir.Sorted(res.Assignment.Spilled))
	}
	if res.Passes != 2 {
		t.Errorf("expected 2 passes, got %d", res.Passes)
	}
	if err := Verify(g, res.Assignment); err != nil {
		t.Error(err)
	}
}

func TestColorGraphEnoughRegisters(t *testing.T) {
	tests := []struct {
		name string
		fn   *ir.Function
		k    int
	}{
		{"pressure", irtest.Pressure(), 3},
		{"diamond", irtest.Diamond(), 1},
		{"loop", irtest.Loop(), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BuildInterferenceGraph(analyzed(t, tt.fn))
			res, err := ColorGraph(g, tt.k)
			if err != nil {
				t.Fatal(err)
			}
			if res.Spills() != 0 {
				t.Errorf("expected no spills, got %v", ir.Sorted(res.Assignment.Spilled))
			}
			if res.Passes != 1 {
				t.Errorf("expected a single pass, got %d", res.Passes)
			}
			for _, v := range ir.Sorted(g.Nodes) {
				r, ok := res.Assignment.Register(v)
				if !ok {
					t.Errorf("%s has no register", v)
				}
				if r < 0 || r >= tt.k {
					t.Errorf("%s got register %d outside [0, %d)", v, r, tt.k)
				}
			}
			if err := Verify(g, res.Assignment); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestColorGraphPotentialSpillIsHighestDegree(t *testing.T) {
	g := BuildInterferenceGraph(analyzed(t, irtest.Loop()))
	res, err := ColorGraph(g, 4)
	if err != nil {
		t.Fatal(err)
	}
	// Every vertex has degree 4; the tie goes to the first name.
	if got := ir.Sorted(res.Assignment.Spilled); len(got) != 1 || got[0] != "cond" {
		t.Errorf("expected [cond] spilled, got %v", got)
	}
	if res.Assignment.RegistersUsed() != 4 {
		t.Errorf("expected 4 registers in use, got %d", res.Assignment.RegistersUsed())
	}
}

func TestColorGraphRejectsZeroRegisters(t *testing.T) {
	_, err := ColorGraph(NewInterferenceGraph(), 0)
	if !errors.Is(err, ErrNoRegisters) {
		t.Errorf("expected ErrNoRegisters, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	g := NewInterferenceGraph()
	g.AddEdge("a", "b")
	g.AddNode("c")

	tests := []struct {
		name    string
		regs    map[string]int
		spilled []string
		wantErr bool
	}{
		{"distinct registers", map[string]int{"a": 0, "b": 1, "c": 1}, nil, false},
		{"shared register on an edge", map[string]int{"a": 0, "b": 0}, nil, true},
		{"non-interfering share", map[string]int{"a": 0, "b": 1, "c": 0}, nil, false},
		{"spilled side never conflicts", map[string]int{"a": 0}, []string{"b"}, false},
		{"assigned and spilled", map[string]int{"a": 0, "b": 1}, []string{"b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(g, &Assignment{Regs: tt.regs, Spilled: ir.NewSet(tt.spilled...)})
			if tt.wantErr {
				if !errors.Is(err, ErrConflict) {
					t.Errorf("expected ErrConflict, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
