// Package irtest provides helpers for writing IR programs in tests and for
// generating random well-formed functions for property tests.
package irtest

import (
	"fmt"

	"pgregory.net/rapid"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// Label returns a label marker.
func Label(name string) ir.Instruction { return ir.Label{Name: name} }

// Const returns `dest: int = const value`.
func Const(dest string, value int) ir.Instruction {
	return ir.ValueOp{Op: "const", Dest: dest, Type: "int", Value: fmt.Sprint(value)}
}

// Op returns `dest: int = op args...`.
func Op(op, dest string, args ...string) ir.Instruction {
	return ir.ValueOp{Op: op, Dest: dest, Type: "int", Args: args}
}

// Effect returns `op args...` with no destination.
func Effect(op string, args ...string) ir.Instruction {
	return ir.EffectOp{Op: op, Args: args}
}

// Br returns a conditional branch.
func Br(cond, ifTrue, ifFalse string) ir.Instruction {
	return ir.Branch{Cond: cond, True: ifTrue, False: ifFalse}
}

// Jmp returns an unconditional jump.
func Jmp(target string) ir.Instruction { return ir.Jump{Target: target} }

// Ret returns a return, optionally with a value.
func Ret(arg ...string) ir.Instruction {
	if len(arg) > 0 {
		return ir.Return{Arg: arg[0]}
	}
	return ir.Return{}
}

// Func assembles a function from its instructions.
func Func(name string, params []string, instrs ...ir.Instruction) *ir.Function {
	fn := &ir.Function{Name: name, Instrs: instrs}
	for _, p := range params {
		fn.Params = append(fn.Params, ir.Param{Name: p, Type: "int"})
	}
	return fn
}

// Diamond is the classic if/else join: x is assigned differently on each arm
// and read at the join.
func Diamond() *ir.Function {
	return Func("diamond", []string{"c"},
		Br("c", "left", "right"),
		Label("left"),
		Const("x", 1),
		Jmp("join"),
		Label("right"),
		Const("x", 2),
		Jmp("join"),
		Label("join"),
		Effect("print", "x"),
		Ret(),
	)
}

// Loop counts i from 0 to n, accumulating into sum.
func Loop() *ir.Function {
	return Func("loop", []string{"n"},
		Const("i", 0),
		Const("sum", 0),
		Const("one", 1),
		Label("head"),
		Op("lt", "cond", "i", "n"),
		Br("cond", "body", "exit"),
		Label("body"),
		Op("add", "sum", "sum", "i"),
		Op("add", "i", "i", "one"),
		Jmp("head"),
		Label("exit"),
		Ret("sum"),
	)
}

// Pressure keeps three values live across a block boundary, then folds them
// into one result.
func Pressure() *ir.Function {
	return Func("pressure", nil,
		Const("a", 1),
		Const("b", 2),
		Const("c", 3),
		Jmp("l1"),
		Label("l1"),
		Op("add", "s", "b", "c"),
		Op("add", "t", "s", "a"),
		Ret("t"),
	)
}

// GenFunction draws a random well-formed function: a handful of labelled
// blocks, each holding value and effect operations over a small variable pool
// and ending in a branch, jump, return or fallthrough.
func GenFunction(t *rapid.T) *ir.Function {
	nBlocks := rapid.IntRange(1, 7).Draw(t, "blocks")
	nVars := rapid.IntRange(1, 6).Draw(t, "vars")
	nParams := rapid.IntRange(0, 2).Draw(t, "params")

	var params []string
	for i := 0; i < nParams; i++ {
		params = append(params, fmt.Sprintf("p%d", i))
	}
	pool := append([]string(nil), params...)
	for i := 0; i < nVars; i++ {
		pool = append(pool, fmt.Sprintf("v%d", i))
	}
	labels := make([]string, nBlocks)
	for i := range labels {
		labels[i] = fmt.Sprintf("b%d", i)
	}

	var instrs []ir.Instruction
	// Entry defines every variable once so most uses have a reaching definition.
	for i := 0; i < nVars; i++ {
		instrs = append(instrs, Const(fmt.Sprintf("v%d", i), i))
	}
	instrs = append(instrs, genTerminator(t, "entry", labels, pool, true)...)

	for i, l := range labels {
		instrs = append(instrs, Label(l))
		nOps := rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("ops%d", i))
		for j := 0; j < nOps; j++ {
			name := fmt.Sprintf("%d.%d", i, j)
			a := rapid.SampledFrom(pool).Draw(t, "a"+name)
			b := rapid.SampledFrom(pool).Draw(t, "b"+name)
			if rapid.IntRange(0, 3).Draw(t, "kind"+name) == 0 {
				instrs = append(instrs, Effect("print", a))
				continue
			}
			dest := rapid.SampledFrom(pool[nParams:]).Draw(t, "dest"+name)
			instrs = append(instrs, Op("add", dest, a, b))
		}
		instrs = append(instrs, genTerminator(t, l, labels, pool, i < nBlocks-1)...)
	}
	return Func("gen", params, instrs...)
}

func genTerminator(t *rapid.T, at string, labels, pool []string, canFall bool) []ir.Instruction {
	kinds := []string{"br", "jmp", "ret"}
	if canFall {
		kinds = append(kinds, "fall")
	}
	switch rapid.SampledFrom(kinds).Draw(t, "term."+at) {
	case "br":
		cond := rapid.SampledFrom(pool).Draw(t, "cond."+at)
		t1 := rapid.SampledFrom(labels).Draw(t, "true."+at)
		t2 := rapid.SampledFrom(labels).Draw(t, "false."+at)
		return []ir.Instruction{Br(cond, t1, t2)}
	case "jmp":
		return []ir.Instruction{Jmp(rapid.SampledFrom(labels).Draw(t, "target."+at))}
	case "ret":
		return []ir.Instruction{Ret(rapid.SampledFrom(pool).Draw(t, "ret."+at))}
	}
	return nil
}
