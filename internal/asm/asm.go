// Package asm is our abstract model of the subset of x86-64 instructions
// the compiler's back end emits, plus a renderer that lowers them to NASM
// text.
//
// The shape of this package - a closed set of instruction types, a closed
// set of operand kinds, and a single pure rendering pass over a slice of
// instructions - follows the teacher's instructions-package split (see
// github.com/skx/math-compiler/instructions), generalized from its
// RPN-stack-machine opcodes to the register/memory operands a real x86-64
// back end needs.
package asm

import "fmt"

// Reg is one of the fixed set of registers the compiler's register
// assignment uses. See internal/compiler for what each one is reserved for.
type Reg int

// The registers touched by generated code.
const (
	RAX Reg = iota
	RBX
	RDI
	RSI
	RDX
	RSP
	RBP
	R10
	R11
	R12
	R13
	R14
	R15
	EDI
)

var regNames = map[Reg]string{
	RAX: "rax",
	RBX: "rbx",
	RDI: "rdi",
	RSI: "rsi",
	RDX: "rdx",
	RSP: "rsp",
	RBP: "rbp",
	R10: "r10",
	R11: "r11",
	R12: "r12",
	R13: "r13",
	R14: "r14",
	R15: "r15",
	EDI: "edi",
}

func (r Reg) String() string {
	if n, ok := regNames[r]; ok {
		return n
	}
	return fmt.Sprintf("reg(%d)", int(r))
}

// Val is an instruction operand: a register, an immediate, or a
// register-relative memory address.
type Val struct {
	kind   valKind
	reg    Reg
	imm    int64
	offset int64
}

type valKind int

const (
	valReg valKind = iota
	valImm
	valRegOff
)

// Register builds a bare-register operand.
func Register(r Reg) Val { return Val{kind: valReg, reg: r} }

// Imm builds an immediate operand.
func Imm(n int64) Val { return Val{kind: valImm, imm: n} }

// RegOffset builds a register-relative memory operand. By convention a
// positive offset is *subtracted* from the register - i.e. it addresses a
// lower address - and the renderer performs the sign flip to NASM's
// `[reg - n]` / `[reg + n]` text. This matches how the compiler's stack
// slots (positive, growing toward lower addresses from rbp) and its
// parameter slots (negative, above the frame) are expressed uniformly.
func RegOffset(r Reg, offset int64) Val { return Val{kind: valRegOff, reg: r, offset: offset} }

func (v Val) isImm() bool { return v.kind == valImm }

func (v Val) render() string {
	switch v.kind {
	case valReg:
		return v.reg.String()
	case valImm:
		return fmt.Sprintf("%d", v.imm)
	case valRegOff:
		switch {
		case v.offset > 0:
			return fmt.Sprintf("[%s - %d]", v.reg, v.offset)
		case v.offset < 0:
			return fmt.Sprintf("[%s + %d]", v.reg, -v.offset)
		default:
			return fmt.Sprintf("[%s]", v.reg)
		}
	default:
		panic("asm: unreachable Val kind")
	}
}

// Instr is one abstract x86-64 instruction.
type Instr interface {
	render() string
}

type twoOp struct {
	mnemonic string
	dst, src Val
}

func (i twoOp) render() string {
	if i.mnemonic == "mov" && i.dst.kind == valRegOff && i.src.isImm() {
		return fmt.Sprintf("\tmov qword %s, %s", i.dst.render(), i.src.render())
	}
	return fmt.Sprintf("\t%s %s, %s", i.mnemonic, i.dst.render(), i.src.render())
}

type oneOp struct {
	mnemonic string
	operand  Val
}

func (i oneOp) render() string {
	return fmt.Sprintf("\t%s %s", i.mnemonic, i.operand.render())
}

type labelRef struct {
	mnemonic string
	label    string
}

func (i labelRef) render() string {
	if i.mnemonic == "" {
		return i.label + ":"
	}
	return fmt.Sprintf("\t%s %s", i.mnemonic, i.label)
}

type bareInstr struct {
	mnemonic string
}

func (i bareInstr) render() string {
	return "\t" + i.mnemonic
}

// Mov emits `mov dst, src` (or `mov qword dst, src` for an immediate store
// to memory, which NASM requires to disambiguate operand size).
func Mov(dst, src Val) Instr { return twoOp{"mov", dst, src} }

// Add emits `add dst, src`.
func Add(dst, src Val) Instr { return twoOp{"add", dst, src} }

// Sub emits `sub dst, src`.
func Sub(dst, src Val) Instr { return twoOp{"sub", dst, src} }

// IMul emits `imul dst, src`.
func IMul(dst, src Val) Instr { return twoOp{"imul", dst, src} }

// Cmp emits `cmp a, b`.
func Cmp(a, b Val) Instr { return twoOp{"cmp", a, b} }

// Test emits `test a, b`.
func Test(a, b Val) Instr { return twoOp{"test", a, b} }

// CMovE/CMovG/CMovGE/CMovL/CMovLE emit the matching conditional move.
func CMovE(dst, src Val) Instr  { return twoOp{"cmove", dst, src} }
func CMovG(dst, src Val) Instr  { return twoOp{"cmovg", dst, src} }
func CMovGE(dst, src Val) Instr { return twoOp{"cmovge", dst, src} }
func CMovL(dst, src Val) Instr  { return twoOp{"cmovl", dst, src} }
func CMovLE(dst, src Val) Instr { return twoOp{"cmovle", dst, src} }

// Sar emits an arithmetic shift right; Shl a logical shift left.
func Sar(v, shift Val) Instr { return twoOp{"sar", v, shift} }
func Shl(v, shift Val) Instr { return twoOp{"shl", v, shift} }

// And, Or, Xor emit the matching bitwise instruction; Not is unary.
func And(dst, src Val) Instr { return twoOp{"and", dst, src} }
func Or(dst, src Val) Instr  { return twoOp{"or", dst, src} }
func Xor(dst, src Val) Instr { return twoOp{"xor", dst, src} }
func Not(v Val) Instr        { return oneOp{"not", v} }

// Label emits a flush-left `name:` line.
func Label(name string) Instr { return labelRef{"", name} }

// Jmp and the conditional jumps used by the back end.
func Jmp(label string) Instr              { return labelRef{"jmp", label} }
func JumpEqual(label string) Instr        { return labelRef{"je", label} }
func JumpNotEqual(label string) Instr     { return labelRef{"jne", label} }
func JumpNotZero(label string) Instr      { return labelRef{"jnz", label} }
func JumpGreaterEqual(label string) Instr { return labelRef{"jge", label} }
func JumpLess(label string) Instr         { return labelRef{"jl", label} }
func JumpOverflow(label string) Instr     { return labelRef{"jo", label} }

// Push and Pop manage the x86-64 stack directly.
func Push(v Val) Instr { return oneOp{"push qword", v} }
func Pop(v Val) Instr  { return oneOp{"pop", v} }

// Call emits `call label`.
func Call(label string) Instr { return labelRef{"call", label} }

// Ret emits `ret`.
func Ret() Instr { return bareInstr{"ret"} }

// Raw emits text verbatim, flush-left with no added indentation. Used for
// assembler directives (section, extern, global) that are not machine
// instructions and so fall outside the Instr constructors above.
func Raw(text string) Instr { return rawDirective(text) }

type rawDirective string

func (r rawDirective) render() string { return string(r) }

// Render lowers a sequence of instructions to NASM text, one instruction
// per line, tab-indented (labels flush-left with a trailing colon), with a
// trailing newline so call sites can concatenate blocks without tracking
// separators themselves.
func Render(instrs []Instr) string {
	out := make([]byte, 0, len(instrs)*16)
	for _, instr := range instrs {
		out = append(out, instr.render()...)
		out = append(out, '\n')
	}
	return string(out)
}
