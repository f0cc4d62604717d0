package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snek-lang/snekc/internal/ast"
	"github.com/snek-lang/snekc/internal/sexpr"
)

func mustParse(t *testing.T, src string) ast.Program {
	t.Helper()
	prog, err := sexpr.Parse(src)
	require.NoError(t, err)
	return prog
}

func TestCompileProgramEmitsEntryPointAndTrampolines(t *testing.T) {
	prog := mustParse(t, "(+ 1 2)")
	out, err := CompileProgram(prog)
	require.NoError(t, err)

	assert.Contains(t, out, "our_code_starts_here:")
	assert.Contains(t, out, "snek_error_overflow:")
	assert.Contains(t, out, "snek_error_invalid_type:")
	assert.Contains(t, out, "extern snek_print")
	assert.Contains(t, out, "extern snek_equals")
	assert.Contains(t, out, "extern snek_error")
	assert.Contains(t, out, "global our_code_starts_here")
	assert.Contains(t, out, "\tmov rax, 2\n") // tagged literal 1
	assert.Contains(t, out, "jo snek_error_overflow")
}

func TestCompileProgramEmitsUserFunctions(t *testing.T) {
	prog := mustParse(t, `
		(fun (fact n) (if (<= n 1) 1 (* n (fact (- n 1)))))
		(fact input)
	`)
	out, err := CompileProgram(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "snek_fun_fact:")
	assert.Contains(t, out, "call snek_fun_fact")
}

func TestCompileProgramRejectsDuplicateFunctionNames(t *testing.T) {
	prog := mustParse(t, `
		(fun (f x) x)
		(fun (f y) y)
		(f 1)
	`)
	_, err := CompileProgram(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate function")
}

func TestCompileProgramRejectsWrongArity(t *testing.T) {
	prog := mustParse(t, `
		(fun (f x) x)
		(f 1 2)
	`)
	_, err := CompileProgram(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 1 argument")
}

func TestCompileProgramRejectsUnboundIdentifier(t *testing.T) {
	prog := mustParse(t, "x")
	_, err := CompileProgram(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unbound variable identifier x")
}

func TestCompileProgramRejectsOutOfRangeLiteral(t *testing.T) {
	prog := mustParse(t, "4611686018427387904") // I63Max + 1
	_, err := CompileProgram(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestCompileProgramRejectsInputOutsideMain(t *testing.T) {
	prog := mustParse(t, `
		(fun (f x) input)
		(f 1)
	`)
	_, err := CompileProgram(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input is only bound")
}

func TestCompileProgramRejectsBreakOutsideLoop(t *testing.T) {
	prog := mustParse(t, "(break 5)")
	_, err := CompileProgram(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "break used outside")
}

func TestCompileProgramVectorOperations(t *testing.T) {
	prog := mustParse(t, "(vec-get (make-vec 3 0) 1)")
	out, err := CompileProgram(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "snek_error_index_out_of_bounds:")
	assert.Contains(t, out, "snek_error_invalid_vector_size:")
	assert.True(t, strings.Contains(out, "call snek_equals") == false, "this program never calls ==, so snek_equals should not be called")
}

func TestCompileProgramStructuralEquality(t *testing.T) {
	prog := mustParse(t, "(== (vec 1 2) (vec 1 2))")
	out, err := CompileProgram(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "call snek_equals")
}

func TestCompileProgramLoopAndBreak(t *testing.T) {
	prog := mustParse(t, `
		(let ((i 0) (acc 0))
			(block
				(loop
					(if (>= i 10)
						(break acc)
						(block (set! acc (+ acc i)) (set! i (+ i 1)))))
				acc))
	`)
	out, err := CompileProgram(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "loop_start_")
	assert.Contains(t, out, "loop_end_")
}
