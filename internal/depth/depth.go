// Package depth computes the worst-case number of stack slots an
// expression needs, so the program compiler can size each function's
// prologue allocation up front instead of growing the frame on the fly.
package depth

import "github.com/snek-lang/snekc/internal/ast"

// Of returns the minimum number of stack slots compiling e will consume,
// per the structural definition in spec.md §4.3.
func Of(e ast.Expr) int {
	switch n := e.(type) {
	case ast.Number, ast.Bool, ast.NilLit, ast.Input, ast.Id:
		return 0

	case ast.UnOp:
		return Of(n.Operand)
	case ast.Loop:
		return Of(n.Body)
	case ast.Break:
		return Of(n.Value)
	case ast.Set:
		return Of(n.Value)

	case ast.BinOp:
		return max(Of(n.Left), Of(n.Right)+1)

	case ast.If:
		return max(Of(n.Cond), max(Of(n.Then), Of(n.Else)))

	case ast.Block:
		m := 0
		for _, child := range n.Exprs {
			m = max(m, Of(child))
		}
		return m

	case ast.Let:
		m := 0
		for i, b := range n.Bindings {
			m = max(m, Of(b.Value)+i)
		}
		return max(m, Of(n.Body)+len(n.Bindings))

	case ast.Call:
		return argListDepth(n.Args)
	case ast.Vec:
		return argListDepth(n.Elements)

	case ast.VecGet:
		return max(Of(n.Vector), Of(n.Index)+1)
	case ast.VecLen:
		return Of(n.Vector)
	case ast.VecSet:
		return max(Of(n.Vector), max(Of(n.Index)+1, Of(n.Value)+2))
	case ast.MakeVec:
		return max(Of(n.Size), Of(n.Fill)+1)

	default:
		panic("depth: unhandled expression node")
	}
}

// argListDepth computes max(max_i(depth(arg_i)+i), n) for an n-argument
// call/vec-construction form, shared by Call and Vec.
func argListDepth(args []ast.Expr) int {
	m := 0
	for i, a := range args {
		m = max(m, Of(a)+i)
	}
	return max(m, len(args))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// FrameSize rounds locals+calleeSaved up so that, together with the return
// address pushed by `call`, the stack pointer is 16-byte aligned when
// control reaches the callee - i.e. locals+calleeSaved+1 is even.
func FrameSize(locals, calleeSaved int) int {
	total := locals + calleeSaved
	if (total+1)%2 != 0 {
		total++
	}
	return total
}
