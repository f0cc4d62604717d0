package compiler

import (
	"github.com/pkg/errors"

	"github.com/snek-lang/snekc/internal/asm"
	"github.com/snek-lang/snekc/internal/ast"
	"github.com/snek-lang/snekc/internal/values"
)

// compileExpr is the heart of the back end: one case per internal/ast.Expr
// variant, each returning the instructions that leave the expression's
// value in rax. It mirrors original_source/src/compiler.rs's compile_expr
// recursion, generalized from Rust's owned im::HashMap environment to
// Context's copy-on-extend map.
func compileExpr(e ast.Expr, c Context) ([]asm.Instr, error) {
	switch n := e.(type) {
	case ast.Number:
		return compileNumber(n)
	case ast.Bool:
		return []asm.Instr{asm.Mov(rax, asm.Imm(values.EncodeBool(n.Value)))}, nil
	case ast.NilLit:
		return []asm.Instr{asm.Mov(rax, asm.Imm(values.NilVal))}, nil
	case ast.Input:
		return compileInput(c)
	case ast.Id:
		return compileID(n, c)
	case ast.Let:
		return compileLet(n, c)
	case ast.UnOp:
		return compileUnOp(n, c)
	case ast.BinOp:
		return compileBinOp(n, c)
	case ast.If:
		return compileIf(n, c)
	case ast.Loop:
		return compileLoop(n, c)
	case ast.Break:
		return compileBreak(n, c)
	case ast.Set:
		return compileSet(n, c)
	case ast.Block:
		return compileBlock(n, c)
	case ast.Call:
		return compileCall(n, c)
	case ast.Vec:
		return compileVec(n, c)
	case ast.VecLen:
		return compileVecLen(n, c)
	case ast.VecGet:
		return compileVecGet(n, c)
	case ast.VecSet:
		return compileVecSet(n, c)
	case ast.MakeVec:
		return compileMakeVec(n, c)
	default:
		return nil, errors.Errorf("compiler: unhandled expression node %T", e)
	}
}

func compileNumber(n ast.Number) ([]asm.Instr, error) {
	if !values.InRange(n.Value) {
		return nil, errors.Errorf("Invalid: integer literal %d is out of range", n.Value)
	}
	return []asm.Instr{asm.Mov(rax, asm.Imm(values.EncodeNumber(n.Value)))}, nil
}

func compileInput(c Context) ([]asm.Instr, error) {
	if !c.compilingMain {
		return nil, errors.New("Invalid: input is only bound while compiling the main expression")
	}
	return []asm.Instr{asm.Mov(rax, r13)}, nil
}

func compileID(n ast.Id, c Context) ([]asm.Instr, error) {
	offset, ok := c.env[n.Name]
	if !ok {
		return nil, errors.Errorf("Invalid: Unbound variable identifier %s", n.Name)
	}
	return []asm.Instr{asm.Mov(rax, asm.RegOffset(asm.RBP, offset))}, nil
}

func compileLet(n ast.Let, c Context) ([]asm.Instr, error) {
	env := cloneEnv(c.env)
	si := c.si

	var instrs []asm.Instr
	for _, b := range n.Bindings {
		valInstrs, err := compileExpr(b.Value, c.withEnv(env).withSI(si))
		if err != nil {
			return nil, err
		}
		offset := slotOffset(si)
		instrs = append(instrs, valInstrs...)
		instrs = append(instrs, asm.Mov(asm.RegOffset(asm.RBP, offset), rax))
		env[b.Name] = offset
		si++
	}

	bodyInstrs, err := compileExpr(n.Body, c.withEnv(env).withSI(si))
	if err != nil {
		return nil, err
	}
	return append(instrs, bodyInstrs...), nil
}

func compileSet(n ast.Set, c Context) ([]asm.Instr, error) {
	offset, ok := c.env[n.Name]
	if !ok {
		return nil, errors.Errorf("Invalid: Unbound variable identifier %s", n.Name)
	}
	valInstrs, err := compileExpr(n.Value, c)
	if err != nil {
		return nil, err
	}
	instrs := append(append([]asm.Instr{}, valInstrs...), asm.Mov(asm.RegOffset(asm.RBP, offset), rax))
	return instrs, nil
}

func compileBlock(n ast.Block, c Context) ([]asm.Instr, error) {
	var instrs []asm.Instr
	for _, child := range n.Exprs {
		childInstrs, err := compileExpr(child, c)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, childInstrs...)
	}
	return instrs, nil
}

func compileIf(n ast.If, c Context) ([]asm.Instr, error) {
	condInstrs, err := compileExpr(n.Cond, c)
	if err != nil {
		return nil, err
	}
	thenInstrs, err := compileExpr(n.Then, c)
	if err != nil {
		return nil, err
	}
	elseInstrs, err := compileExpr(n.Else, c)
	if err != nil {
		return nil, err
	}

	elseLabel := c.label("if_else")
	endLabel := c.label("if_end")

	var instrs []asm.Instr
	instrs = append(instrs, condInstrs...)
	instrs = append(instrs, asm.Cmp(rax, asm.Imm(values.FalseVal)), asm.JumpEqual(elseLabel))
	instrs = append(instrs, thenInstrs...)
	instrs = append(instrs, asm.Jmp(endLabel), asm.Label(elseLabel))
	instrs = append(instrs, elseInstrs...)
	instrs = append(instrs, asm.Label(endLabel))
	return instrs, nil
}

func compileLoop(n ast.Loop, c Context) ([]asm.Instr, error) {
	startLabel := c.label("loop_start")
	endLabel := c.label("loop_end")

	bodyInstrs, err := compileExpr(n.Body, c.withBreakLabel(endLabel))
	if err != nil {
		return nil, err
	}

	var instrs []asm.Instr
	instrs = append(instrs, asm.Label(startLabel))
	instrs = append(instrs, bodyInstrs...)
	instrs = append(instrs, asm.Jmp(startLabel), asm.Label(endLabel))
	return instrs, nil
}

func compileBreak(n ast.Break, c Context) ([]asm.Instr, error) {
	if c.breakLabel == "" {
		return nil, errors.New("Invalid: break used outside of a loop")
	}
	valInstrs, err := compileExpr(n.Value, c)
	if err != nil {
		return nil, err
	}
	return append(append([]asm.Instr{}, valInstrs...), asm.Jmp(c.breakLabel)), nil
}

func compileUnOp(n ast.UnOp, c Context) ([]asm.Instr, error) {
	operandInstrs, err := compileExpr(n.Operand, c)
	if err != nil {
		return nil, err
	}
	instrs := append([]asm.Instr{}, operandInstrs...)

	switch n.Op {
	case ast.Add1:
		instrs = append(instrs, jumpUnlessNumber(values.ErrInvalidType.Label())...)
		instrs = append(instrs,
			asm.Add(rax, asm.Imm(values.EncodeNumber(1))),
			asm.JumpOverflow(values.ErrOverflow.Label()),
		)
	case ast.Sub1:
		instrs = append(instrs, jumpUnlessNumber(values.ErrInvalidType.Label())...)
		instrs = append(instrs,
			asm.Sub(rax, asm.Imm(values.EncodeNumber(1))),
			asm.JumpOverflow(values.ErrOverflow.Label()),
		)
	case ast.IsNumber:
		instrs = append(instrs, isNumberCC()...)
		instrs = append(instrs, boolFromCC()...)
	case ast.IsBoolean:
		instrs = append(instrs, isBooleanCC()...)
		instrs = append(instrs, boolFromCC()...)
	case ast.IsVector:
		instrs = append(instrs, isVectorPredicate(c)...)
	case ast.Print:
		instrs = append(instrs, asm.Mov(rdi, rax), asm.Call("snek_print"))
	default:
		return nil, errors.Errorf("compiler: unhandled unary operator %v", n.Op)
	}
	return instrs, nil
}

// boolFromCC turns the flags left by isNumberCC/isBooleanCC into a tagged
// boolean in rax, via a branch-free conditional move. mov does not touch
// flags, so the comparison set up by the CC helper survives these two movs.
func boolFromCC() []asm.Instr {
	return []asm.Instr{
		asm.Mov(rax, asm.Imm(values.FalseVal)),
		asm.Mov(r10, asm.Imm(values.TrueVal)),
		asm.CMovE(rax, r10),
	}
}

// isVectorPredicate computes the isvec? predicate: true iff rax is a heap
// pointer that is not the nil constant. Unlike requireVector, this never
// traps - it always produces a boolean.
func isVectorPredicate(c Context) []asm.Instr {
	falseLabel := c.label("isvec_false")
	endLabel := c.label("isvec_end")
	instrs := isVectorCC()
	instrs = append(instrs,
		asm.JumpNotEqual(falseLabel),
		asm.Cmp(rax, asm.Imm(values.NilVal)),
		asm.JumpEqual(falseLabel),
		asm.Cmp(rax, asm.Imm(values.TrueVal)),
		asm.JumpEqual(falseLabel),
		asm.Cmp(rax, asm.Imm(values.FalseVal)),
		asm.JumpEqual(falseLabel),
		asm.Mov(rax, asm.Imm(values.TrueVal)),
		asm.Jmp(endLabel),
		asm.Label(falseLabel),
		asm.Mov(rax, asm.Imm(values.FalseVal)),
		asm.Label(endLabel),
	)
	return instrs
}

// compileBinOp evaluates Left, spills it to the stack slot at c.si,
// evaluates Right into rax at si+1, then combines the two per Op.
// StructEqual is total over every representation and never traps; Equal
// requires a matching representation class, and every other operator
// (Plus/Minus/Times/the four orderings) requires numeric operands.
func compileBinOp(n ast.BinOp, c Context) ([]asm.Instr, error) {
	leftInstrs, err := compileExpr(n.Left, c)
	if err != nil {
		return nil, err
	}
	offset := slotOffset(c.si)

	var instrs []asm.Instr
	instrs = append(instrs, leftInstrs...)
	if requiresNumeric(n.Op) {
		instrs = append(instrs, jumpUnlessNumber(values.ErrInvalidType.Label())...)
	}
	instrs = append(instrs, asm.Mov(asm.RegOffset(asm.RBP, offset), rax))

	rightInstrs, err := compileExpr(n.Right, c.withSI(c.si+1))
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, rightInstrs...)
	if requiresNumeric(n.Op) {
		instrs = append(instrs, jumpUnlessNumber(values.ErrInvalidType.Label())...)
	}

	switch n.Op {
	case ast.Plus:
		instrs = append(instrs,
			asm.Add(rax, asm.RegOffset(asm.RBP, offset)),
			asm.JumpOverflow(values.ErrOverflow.Label()),
		)
	case ast.Minus:
		instrs = append(instrs,
			asm.Mov(rbx, asm.RegOffset(asm.RBP, offset)),
			asm.Sub(rbx, rax),
			asm.JumpOverflow(values.ErrOverflow.Label()),
			asm.Mov(rax, rbx),
		)
	case ast.Times:
		// Decoding one operand before imul keeps the tag bit correct: a*2
		// times (b*2 >> 1) == a*b*2, still tagged as a number.
		instrs = append(instrs,
			asm.Sar(rax, asm.Imm(1)),
			asm.IMul(rax, asm.RegOffset(asm.RBP, offset)),
			asm.JumpOverflow(values.ErrOverflow.Label()),
		)
	case ast.Greater, ast.GreaterEqual, ast.Less, ast.LessEqual:
		instrs = append(instrs, compareAndSet(n.Op, offset)...)
	case ast.Equal:
		instrs = append(instrs, sameRepresentationClass(offset, values.ErrInvalidType.Label())...)
		instrs = append(instrs, compareAndSet(ast.Equal, offset)...)
	case ast.StructEqual:
		instrs = append(instrs,
			asm.Mov(rsi, rax),
			asm.Mov(rdi, asm.RegOffset(asm.RBP, offset)),
			asm.Call("snek_equals"),
		)
	default:
		return nil, errors.Errorf("compiler: unhandled binary operator %v", n.Op)
	}
	return instrs, nil
}

func requiresNumeric(op ast.BinOpKind) bool {
	switch op {
	case ast.Plus, ast.Minus, ast.Times, ast.Greater, ast.GreaterEqual, ast.Less, ast.LessEqual:
		return true
	default:
		return false
	}
}

// compareAndSet compares the left operand (spilled at offset) against
// right (in rax) and leaves a tagged boolean in rax. Used for both the
// numeric orderings and for Equal's raw-word identity compare.
func compareAndSet(op ast.BinOpKind, offset int64) []asm.Instr {
	instrs := []asm.Instr{
		asm.Mov(rbx, asm.RegOffset(asm.RBP, offset)),
		asm.Cmp(rbx, rax),
		asm.Mov(rax, asm.Imm(values.FalseVal)),
		asm.Mov(r10, asm.Imm(values.TrueVal)),
	}
	switch op {
	case ast.Greater:
		instrs = append(instrs, asm.CMovG(rax, r10))
	case ast.GreaterEqual:
		instrs = append(instrs, asm.CMovGE(rax, r10))
	case ast.Less:
		instrs = append(instrs, asm.CMovL(rax, r10))
	case ast.LessEqual:
		instrs = append(instrs, asm.CMovLE(rax, r10))
	case ast.Equal:
		instrs = append(instrs, asm.CMovE(rax, r10))
	}
	return instrs
}

// compileCall evaluates each argument into its own stack slot starting at
// c.si (matching internal/depth's argListDepth budget), then pushes them in
// reverse order so the first argument ends up immediately above the return
// address - i.e. at a fixed [rbp + 24 + 8*i] in the callee's frame,
// regardless of which call site is calling it. A one-word pad is pushed
// first when the argument count is odd, to keep rsp 16-byte aligned at the
// call instruction; the pad sits below every real argument so it never
// shifts the callee's offsets. This is the stack-passed-arguments
// convention original_source/src/compiler.rs uses for user function calls.
func compileCall(n ast.Call, c Context) ([]asm.Instr, error) {
	params, ok := c.funcs[n.Name]
	if !ok {
		return nil, errors.Errorf("Invalid: called undefined function %s", n.Name)
	}
	if len(params) != len(n.Args) {
		return nil, errors.Errorf("Invalid: %s expects %d argument(s), got %d", n.Name, len(params), len(n.Args))
	}

	var instrs []asm.Instr
	for i, arg := range n.Args {
		argInstrs, err := compileExpr(arg, c.withSI(c.si+int64(i)))
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, argInstrs...)
		instrs = append(instrs, asm.Mov(asm.RegOffset(asm.RBP, slotOffset(c.si+int64(i))), rax))
	}

	pad := len(n.Args) % 2
	if pad == 1 {
		instrs = append(instrs, asm.Sub(rsp, asm.Imm(wordSize)))
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		instrs = append(instrs,
			asm.Mov(r10, asm.RegOffset(asm.RBP, slotOffset(c.si+int64(i)))),
			asm.Push(r10),
		)
	}

	instrs = append(instrs, asm.Call(funcLabel(n.Name)))

	popped := len(n.Args) + pad
	if popped > 0 {
		instrs = append(instrs, asm.Add(rsp, asm.Imm(int64(popped)*wordSize)))
	}
	return instrs, nil
}

// heapExhaustionCheck traps to the invalid-vector-size label (reused for
// heap exhaustion - see DESIGN.md) unless the arena has at least needed
// bytes left between the bump pointer r15 and the arena end r14.
func heapExhaustionCheck(needed asm.Val, errLabel string) []asm.Instr {
	return []asm.Instr{
		asm.Mov(rbx, r15),
		asm.Add(rbx, needed),
		asm.Cmp(r14, rbx),
		asm.JumpLess(errLabel),
	}
}

// compileVec evaluates each element into its own stack slot (same
// convention as compileCall/argListDepth), then writes a raw element count
// header followed by the elements, and leaves the tagged vector pointer in
// rax. Element i is stored at the fixed offset 8*(i+1) from r15, and r15
// is advanced past the whole vector once all elements are written.
func compileVec(n ast.Vec, c Context) ([]asm.Instr, error) {
	var instrs []asm.Instr
	for i, el := range n.Elements {
		elInstrs, err := compileExpr(el, c.withSI(c.si+int64(i)))
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, elInstrs...)
		instrs = append(instrs, asm.Mov(asm.RegOffset(asm.RBP, slotOffset(c.si+int64(i))), rax))
	}

	count := int64(len(n.Elements))
	needed := asm.Imm((count + 1) * wordSize)
	instrs = append(instrs, heapExhaustionCheck(needed, values.ErrInvalidVectorSize.Label())...)
	instrs = append(instrs, asm.Mov(asm.RegOffset(asm.R15, 0), asm.Imm(count)))

	for i := range n.Elements {
		instrs = append(instrs,
			asm.Mov(r10, asm.RegOffset(asm.RBP, slotOffset(c.si+int64(i)))),
			asm.Mov(asm.RegOffset(asm.R15, -int64(i+1)*wordSize), r10),
		)
	}

	instrs = append(instrs,
		asm.Mov(rax, r15),
		asm.Or(rax, asm.Imm(1)),
		asm.Add(r15, asm.Imm((count+1)*wordSize)),
	)
	return instrs, nil
}

func compileVecLen(n ast.VecLen, c Context) ([]asm.Instr, error) {
	vecInstrs, err := compileExpr(n.Vector, c)
	if err != nil {
		return nil, err
	}
	instrs := append([]asm.Instr{}, vecInstrs...)
	instrs = append(instrs, requireVector(values.ErrInvalidVectorAddr.Label())...)
	instrs = append(instrs,
		asm.Mov(rbx, rax),
		asm.Sub(rbx, asm.Imm(1)),
		asm.Mov(rax, asm.RegOffset(asm.RBX, 0)),
		asm.Shl(rax, asm.Imm(1)),
	)
	return instrs, nil
}

func compileVecGet(n ast.VecGet, c Context) ([]asm.Instr, error) {
	vecInstrs, err := compileExpr(n.Vector, c)
	if err != nil {
		return nil, err
	}
	instrs := append([]asm.Instr{}, vecInstrs...)
	instrs = append(instrs, requireVector(values.ErrInvalidVectorAddr.Label())...)
	instrs = append(instrs, asm.Mov(asm.RegOffset(asm.RBP, slotOffset(c.si)), rax))

	idxInstrs, err := compileExpr(n.Index, c.withSI(c.si+1))
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, idxInstrs...)
	instrs = append(instrs, jumpUnlessNumber(values.ErrInvalidVectorOffset.Label())...)

	instrs = append(instrs,
		asm.Mov(r10, rax),
		asm.Sar(r10, asm.Imm(1)),
		asm.Mov(rbx, asm.RegOffset(asm.RBP, slotOffset(c.si))),
		asm.Sub(rbx, asm.Imm(1)),
		asm.Mov(r11, asm.RegOffset(asm.RBX, 0)),
		asm.Cmp(r10, asm.Imm(0)),
		asm.JumpLess(values.ErrIndexOutOfBounds.Label()),
		asm.Cmp(r10, r11),
		asm.JumpGreaterEqual(values.ErrIndexOutOfBounds.Label()),
		asm.Mov(r12, r10),
		asm.Shl(r12, asm.Imm(values.WordSizeShift)),
		asm.Add(rbx, r12),
		asm.Mov(rax, asm.RegOffset(asm.RBX, -wordSize)),
	)
	return instrs, nil
}

func compileVecSet(n ast.VecSet, c Context) ([]asm.Instr, error) {
	vecInstrs, err := compileExpr(n.Vector, c)
	if err != nil {
		return nil, err
	}
	instrs := append([]asm.Instr{}, vecInstrs...)
	instrs = append(instrs, requireVector(values.ErrInvalidVectorAddr.Label())...)
	instrs = append(instrs, asm.Mov(asm.RegOffset(asm.RBP, slotOffset(c.si)), rax))

	idxInstrs, err := compileExpr(n.Index, c.withSI(c.si+1))
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, idxInstrs...)
	instrs = append(instrs, jumpUnlessNumber(values.ErrInvalidVectorOffset.Label())...)
	instrs = append(instrs, asm.Mov(asm.RegOffset(asm.RBP, slotOffset(c.si+1)), rax))

	valInstrs, err := compileExpr(n.Value, c.withSI(c.si+2))
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, valInstrs...)

	instrs = append(instrs,
		asm.Mov(r10, asm.RegOffset(asm.RBP, slotOffset(c.si+1))),
		asm.Sar(r10, asm.Imm(1)),
		asm.Mov(rbx, asm.RegOffset(asm.RBP, slotOffset(c.si))),
		asm.Sub(rbx, asm.Imm(1)),
		asm.Mov(r11, asm.RegOffset(asm.RBX, 0)),
		asm.Cmp(r10, asm.Imm(0)),
		asm.JumpLess(values.ErrIndexOutOfBounds.Label()),
		asm.Cmp(r10, r11),
		asm.JumpGreaterEqual(values.ErrIndexOutOfBounds.Label()),
		asm.Mov(r12, r10),
		asm.Shl(r12, asm.Imm(values.WordSizeShift)),
		asm.Add(rbx, r12),
		asm.Mov(asm.RegOffset(asm.RBX, -wordSize), rax),
		asm.Mov(rax, asm.RegOffset(asm.RBP, slotOffset(c.si))),
	)
	return instrs, nil
}

// compileMakeVec allocates a count-element vector filled with Fill. It
// spills only the allocation's base pointer to the single stack slot
// internal/depth budgets it (max(depth(Size), depth(Fill)+1)): the element
// count is written into the header before Fill is compiled and reloaded
// from there afterward, rather than kept alive in a second slot across
// Fill's own (unbounded) stack usage. The bump pointer r15 is advanced past
// the new vector before Fill is compiled, so any allocation Fill makes lands
// after it.
func compileMakeVec(n ast.MakeVec, c Context) ([]asm.Instr, error) {
	sizeInstrs, err := compileExpr(n.Size, c)
	if err != nil {
		return nil, err
	}
	instrs := append([]asm.Instr{}, sizeInstrs...)
	instrs = append(instrs, jumpUnlessNumber(values.ErrInvalidType.Label())...)
	instrs = append(instrs,
		asm.Mov(r10, rax),
		asm.Sar(r10, asm.Imm(1)),
		asm.Cmp(r10, asm.Imm(0)),
		asm.JumpLess(values.ErrInvalidVectorSize.Label()),
	)

	instrs = append(instrs,
		asm.Mov(r11, r10),
		asm.Add(r11, asm.Imm(1)),
		asm.Shl(r11, asm.Imm(values.WordSizeShift)),
	)
	instrs = append(instrs, heapExhaustionCheck(r11, values.ErrInvalidVectorSize.Label())...)
	instrs = append(instrs, asm.Mov(asm.RegOffset(asm.R15, 0), r10))
	instrs = append(instrs, asm.Mov(asm.RegOffset(asm.RBP, slotOffset(c.si)), r15))
	instrs = append(instrs, asm.Add(r15, r11))

	fillInstrs, err := compileExpr(n.Fill, c.withSI(c.si+1))
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, fillInstrs...)

	startLabel := c.label("makevec_fill")
	endLabel := c.label("makevec_fill_end")
	instrs = append(instrs,
		asm.Mov(rbx, asm.RegOffset(asm.RBP, slotOffset(c.si))),
		asm.Mov(r10, asm.RegOffset(asm.RBX, 0)),
		asm.Mov(r11, rbx),
		asm.Add(r11, asm.Imm(wordSize)),
		asm.Mov(r12, r10),
		asm.Shl(r12, asm.Imm(values.WordSizeShift)),
		asm.Add(r12, r11),
		asm.Label(startLabel),
		asm.Cmp(r11, r12),
		asm.JumpGreaterEqual(endLabel),
		asm.Mov(asm.RegOffset(asm.R11, 0), rax),
		asm.Add(r11, asm.Imm(wordSize)),
		asm.Jmp(startLabel),
		asm.Label(endLabel),
	)

	instrs = append(instrs,
		asm.Mov(rax, rbx),
		asm.Or(rax, asm.Imm(1)),
	)
	return instrs, nil
}
