// Package compiler also hosts the program-level pass that wraps compileExpr
// over a whole internal/ast.Program: building the function table, emitting
// the error trampolines, and wrapping each function body (and the main
// expression) in a prologue/epilogue pair sized by internal/depth.
package compiler

import (
	"github.com/pkg/errors"

	"github.com/snek-lang/snekc/internal/asm"
	"github.com/snek-lang/snekc/internal/ast"
	"github.com/snek-lang/snekc/internal/depth"
	"github.com/snek-lang/snekc/internal/values"
)

// calleeSaved is the number of registers the prologue pushes explicitly
// (rbp, rbx) before carving out the local-variable area with sub rsp.
const calleeSaved = 2

// CompileProgram lowers a whole parsed program to NASM assembly text: the
// error trampolines, every user function, and the our_code_starts_here
// entry point that the runtime shim calls into.
//
// This is the program.output()-style top level the teacher's
// compiler.Compiler.Compile (github.com/skx/math-compiler/compiler) plays,
// generalized from one flat expression to a function table plus a main
// expression, the way original_source/src/compiler.rs's compile_program
// does.
func CompileProgram(prog ast.Program) (string, error) {
	funcs, err := buildFuncTable(prog.Defs)
	if err != nil {
		return "", err
	}

	var out []asm.Instr
	out = append(out, asm.Raw("section .text"))
	for _, sym := range []string{"snek_print", "snek_equals", "snek_error"} {
		out = append(out, asm.Raw("extern "+sym))
	}
	out = append(out, asm.Raw("global our_code_starts_here"))
	out = append(out, errorTrampolines()...)

	labels := newLabelCounter()
	for _, def := range prog.Defs {
		fnInstrs, err := compileDefinition(def, funcs, labels)
		if err != nil {
			return "", errors.Wrapf(err, "function %s", def.Name)
		}
		out = append(out, fnInstrs...)
	}

	mainInstrs, err := compileMain(prog.Main, funcs, labels)
	if err != nil {
		return "", errors.Wrap(err, "main expression")
	}
	out = append(out, mainInstrs...)

	return asm.Render(out), nil
}

// buildFuncTable validates definition names (no duplicates) and returns the
// name -> parameter-list table compileCall uses for arity checking.
func buildFuncTable(defs []ast.Definition) (map[string][]string, error) {
	funcs := make(map[string][]string, len(defs))
	for _, def := range defs {
		if _, dup := funcs[def.Name]; dup {
			return nil, errors.Errorf("Invalid: duplicate function definition %s", def.Name)
		}
		funcs[def.Name] = def.Params
	}
	return funcs, nil
}

// errorTrampolines emits one label per catalog entry: each loads its error
// code into rdi and calls snek_error, which does not return.
func errorTrampolines() []asm.Instr {
	var instrs []asm.Instr
	for _, kind := range values.AllErrorKinds() {
		instrs = append(instrs,
			asm.Label(kind.Label()),
			asm.Mov(rdi, asm.Imm(int64(kind))),
			asm.Call("snek_error"),
		)
	}
	return instrs
}

// compileDefinition compiles one function body. Parameters are bound to
// the positive rbp-relative offsets compileCall's push-based calling
// convention places them at: argument i lives at [rbp + 24 + 8*i], above
// the return address and the two callee-saved registers wrapInFrame pushes.
func compileDefinition(def ast.Definition, funcs map[string][]string, labels *int) ([]asm.Instr, error) {
	env := make(map[string]int64, len(def.Params))
	for i, p := range def.Params {
		env[p] = -(3*wordSize + int64(i)*wordSize)
	}

	c := Context{
		si:     0,
		env:    env,
		funcs:  funcs,
		labels: labels,
	}

	bodyInstrs, err := compileExpr(def.Body, c)
	if err != nil {
		return nil, err
	}

	frameWords := localSlotWords(depth.Of(def.Body))
	return wrapInFrame(funcLabel(def.Name), frameWords, bodyInstrs), nil
}

// compileMain compiles the program's main expression. Unlike a user
// function, it captures the incoming input value and heap arena bounds
// from the registers the runtime shim's our_code_starts_here call sets up,
// per the ABI documented in SPEC_FULL.md §5.7.
func compileMain(main ast.Expr, funcs map[string][]string, labels *int) ([]asm.Instr, error) {
	c := Context{
		si:            0,
		env:           map[string]int64{},
		funcs:         funcs,
		compilingMain: true,
		labels:        labels,
	}

	bodyInstrs, err := compileExpr(main, c)
	if err != nil {
		return nil, err
	}

	frameWords := localSlotWords(depth.Of(main))

	var instrs []asm.Instr
	instrs = append(instrs,
		asm.Mov(r13, rdi),
		asm.Mov(r15, rsi),
		asm.Mov(r14, rdx),
	)
	instrs = append(instrs, bodyInstrs...)
	return wrapInFrame("our_code_starts_here", frameWords, instrs), nil
}

// localSlotWords returns the number of words sub rsp must carve out for
// locals: depth.FrameSize accounts for the callee-saved registers too, but
// those are already reserved by wrapInFrame's explicit push instructions,
// so that part of its total is subtracted back out here.
func localSlotWords(locals int) int {
	return depth.FrameSize(locals, calleeSaved) - calleeSaved
}

// wrapInFrame wraps body in the standard prologue/epilogue: push the
// callee-saved registers, carve out frameWords local slots, run body, tear
// the frame back down, and return.
func wrapInFrame(label string, frameWords int, body []asm.Instr) []asm.Instr {
	var instrs []asm.Instr
	instrs = append(instrs,
		asm.Label(label),
		asm.Push(rbp),
		asm.Push(rbx),
		asm.Mov(rbp, rsp),
	)
	if frameWords > 0 {
		instrs = append(instrs, asm.Sub(rsp, asm.Imm(int64(frameWords)*wordSize)))
	}
	instrs = append(instrs, body...)
	if frameWords > 0 {
		instrs = append(instrs, asm.Add(rsp, asm.Imm(int64(frameWords)*wordSize)))
	}
	instrs = append(instrs,
		asm.Pop(rbx),
		asm.Pop(rbp),
		asm.Ret(),
	)
	return instrs
}

