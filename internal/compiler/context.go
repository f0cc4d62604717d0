// Package compiler is the compiler's central recursive translator: it
// walks an internal/ast.Expr tree and produces internal/asm instructions,
// together with the program-level passes (function table validation, error
// trampolines, prologues/epilogues) that wrap it into a full assembly unit.
//
// The recursive-descent shape - one function per AST case, each returning
// a growing instruction slice - mirrors the teacher's
// compiler.output()/genXxx() split (github.com/skx/math-compiler/compiler),
// generalized from a flat RPN instruction stream to a Context-threaded
// recursion over a real AST, the way original_source/src/compiler.rs's
// compile_expr is structured.
package compiler

import (
	"fmt"

	"github.com/snek-lang/snekc/internal/values"
)

// Register assignment used throughout the back end. Only rbx, r10, r11 and
// r12 are used as transient scratch within the translation of a single
// expression and are never kept alive across a `call` instruction (per the
// contract in spec.md §4.4). Of these, only rbx is saved in the function
// prologue (together with rbp); r10, r11 and r12 are not. r15, r13 and r14 carry state (the heap
// pointer, the captured `input` value, and the heap-arena end) across the
// entire run, including across nested Snek function calls; their mutations
// are meant to be visible to callers, so they are likewise not
// saved/restored per call - only rbx and rbp are, matching the prologue the
// program compiler emits.
const (
	wordSize = values.WordSize
)

// Context carries the state threaded through every recursive call to
// compileExpr: the stack discipline (si, env), the nearest enclosing loop's
// break target, the function signature table, and whether we're compiling
// the main expression (where `input` is legal).
//
// Context is passed by value and env is never mutated in place - extending
// it (in Let, or when binding parameters) always builds a new map - so that
// a child's bindings are never visible to a sibling that was compiled
// earlier from the same parent Context. This is the same immutable-context
// discipline original_source/src/compiler.rs gets from Rust's `im::HashMap`.
type Context struct {
	si            int64
	env           map[string]int64
	breakLabel    string
	funcs         map[string][]string
	compilingMain bool
	labels        *int
}

// newLabelCounter returns a fresh counter that CompileProgram shares with
// every function's and the main expression's root Context (and so with
// every Context derived from them via the with* methods), so labels stay
// unique across the whole program even as the env/si/breakLabel fields are
// copied and diverge.
func newLabelCounter() *int {
	n := 0
	return &n
}

// label returns a fresh, globally-unique label with the given prefix.
func (c Context) label(prefix string) string {
	*c.labels++
	return fmt.Sprintf("%s_%d", prefix, *c.labels)
}

// withEnv returns a copy of c with env replaced.
func (c Context) withEnv(env map[string]int64) Context {
	c.env = env
	return c
}

// withSI returns a copy of c with si replaced.
func (c Context) withSI(si int64) Context {
	c.si = si
	return c
}

// withBreakLabel returns a copy of c with breakLabel replaced.
func (c Context) withBreakLabel(label string) Context {
	c.breakLabel = label
	return c
}

// cloneEnv returns a shallow copy of env suitable for extending without
// mutating the original.
func cloneEnv(env map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(env)+1)
	for k, v := range env {
		out[k] = v
	}
	return out
}

// slotOffset converts a stack index (a word count from the base pointer)
// into the byte offset used by asm.RegOffset(RBP, ...). si=0 lands at
// [rbp-8], not [rbp]: wrapInFrame's prologue (push rbp; push rbx; mov
// rbp, rsp) leaves the saved rbx at [rbp], so the first local/spill slot
// has to start one word below it or it clobbers the callee-saved register
// the epilogue later restores.
func slotOffset(si int64) int64 {
	return (si + 1) * wordSize
}
