package sexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snek-lang/snekc/internal/ast"
)

func TestParseArithmeticExpression(t *testing.T) {
	prog, err := Parse("(+ 1 2)")
	require.NoError(t, err)
	assert.Equal(t, ast.BinOp{Op: ast.Plus, Left: ast.Number{Value: 1}, Right: ast.Number{Value: 2}}, prog.Main)
}

func TestParseLetAndSet(t *testing.T) {
	prog, err := Parse("(let ((x 5)) (block (set! x (+ x 1)) x))")
	require.NoError(t, err)

	let, ok := prog.Main.(ast.Let)
	require.True(t, ok, "expected a Let node")
	require.Len(t, let.Bindings, 1)
	assert.Equal(t, "x", let.Bindings[0].Name)
	assert.Equal(t, ast.Number{Value: 5}, let.Bindings[0].Value)

	block, ok := let.Body.(ast.Block)
	require.True(t, ok, "expected a Block body")
	require.Len(t, block.Exprs, 2)
}

func TestParseFunctionDefinitionsPrecedeMain(t *testing.T) {
	prog, err := Parse(`
		(fun (double x) (* x 2))
		(double 21)
	`)
	require.NoError(t, err)
	require.Len(t, prog.Defs, 1)
	assert.Equal(t, "double", prog.Defs[0].Name)
	assert.Equal(t, []string{"x"}, prog.Defs[0].Params)
	assert.Equal(t, ast.Call{Name: "double", Args: []ast.Expr{ast.Number{Value: 21}}}, prog.Main)
}

func TestParseVectorForms(t *testing.T) {
	prog, err := Parse("(vec-get (vec 1 2 3) 0)")
	require.NoError(t, err)
	get, ok := prog.Main.(ast.VecGet)
	require.True(t, ok)
	vec, ok := get.Vector.(ast.Vec)
	require.True(t, ok)
	assert.Len(t, vec.Elements, 3)
}

func TestParseRejectsDuplicateBinding(t *testing.T) {
	_, err := Parse("(let ((x 1) (x 2)) x)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate binding")
}

func TestParseRejectsDuplicateParameter(t *testing.T) {
	_, err := Parse("(fun (f x x) x) (f 1 2)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate parameter")
}

func TestParseRejectsMainBeforeLastDefinition(t *testing.T) {
	_, err := Parse(`
		(fun (f x) x)
		5
		(fun (g x) x)
	`)
	require.Error(t, err)
}

func TestParseRejectsEmptyLetBindings(t *testing.T) {
	_, err := Parse("(let () 5)")
	require.Error(t, err)
}

func TestParseRejectsUnterminatedList(t *testing.T) {
	_, err := Parse("(+ 1 2")
	require.Error(t, err)
}

func TestParseRejectsStrayCloseParen(t *testing.T) {
	_, err := Parse("(+ 1 2))")
	require.Error(t, err)
}

func TestParseRejectsReservedWordAsIdentifier(t *testing.T) {
	_, err := Parse("(let ((if 1)) if)")
	require.Error(t, err)
}

func TestParseNilAndInput(t *testing.T) {
	prog, err := Parse("(vec-set! (vec 1) 0 input)")
	require.NoError(t, err)
	set, ok := prog.Main.(ast.VecSet)
	require.True(t, ok)
	assert.Equal(t, ast.Input{}, set.Value)

	prog, err = Parse("nil")
	require.NoError(t, err)
	assert.Equal(t, ast.NilLit{}, prog.Main)
}

func TestParseNegativeNumberLiteral(t *testing.T) {
	prog, err := Parse("(+ -5 3)")
	require.NoError(t, err)
	bin := prog.Main.(ast.BinOp)
	assert.Equal(t, ast.Number{Value: -5}, bin.Left)
}

func TestParseComment(t *testing.T) {
	prog, err := Parse("; a comment\n(+ 1 2) ; trailing\n")
	require.NoError(t, err)
	assert.Equal(t, ast.BinOp{Op: ast.Plus, Left: ast.Number{Value: 1}, Right: ast.Number{Value: 2}}, prog.Main)
}
