package compiler

import (
	"github.com/snek-lang/snekc/internal/asm"
	"github.com/snek-lang/snekc/internal/values"
)

// Shared scratch registers. rbx is the primary shuffle register; r10/r11/r12
// are used where a second or third scratch is required (e.g. holding a
// witness value across a comparison, or walking the heap while filling a
// fresh vector). None of them are ever live across a call instruction.
var (
	rax = asm.Register(asm.RAX)
	rbx = asm.Register(asm.RBX)
	r10 = asm.Register(asm.R10)
	r11 = asm.Register(asm.R11)
	r12 = asm.Register(asm.R12)
	r13 = asm.Register(asm.R13)
	r14 = asm.Register(asm.R14)
	r15 = asm.Register(asm.R15)
	rdi = asm.Register(asm.RDI)
	rsi = asm.Register(asm.RSI)
	rdx = asm.Register(asm.RDX)
	rsp = asm.Register(asm.RSP)
	rbp = asm.Register(asm.RBP)
	edi = asm.Register(asm.EDI)
)

// isNumberCC sets condition codes (via a trailing cmp) such that "equal"
// holds iff rax currently classifies as a number. Uses rbx.
func isNumberCC() []asm.Instr {
	return []asm.Instr{
		asm.Mov(rbx, rax),
		asm.Not(rbx),
		asm.And(rbx, asm.Imm(1)),
		asm.Cmp(rbx, asm.Imm(1)),
	}
}

// jumpUnlessNumber appends a type-check jump to the given error trampoline
// label if rax is not currently a number.
func jumpUnlessNumber(label string) []asm.Instr {
	instrs := isNumberCC()
	return append(instrs, asm.JumpNotEqual(label))
}

// isBooleanCC sets condition codes such that "equal" holds iff rax
// currently classifies as a boolean. Uses rbx.
func isBooleanCC() []asm.Instr {
	return []asm.Instr{
		asm.Mov(rbx, rax),
		asm.And(rbx, asm.Imm(values.BooleanLSB)),
		asm.Cmp(rbx, asm.Imm(values.BooleanLSB)),
	}
}

// isVectorCC sets condition codes such that "equal" holds iff rax
// currently classifies as a (possibly nil) heap pointer by its low bit.
// Callers that must additionally reject nil do so with an explicit
// preceding compare against values.NilVal.
func isVectorCC() []asm.Instr {
	return []asm.Instr{
		asm.Mov(rbx, rax),
		asm.And(rbx, asm.Imm(1)),
		asm.Cmp(rbx, asm.Imm(1)),
	}
}

// requireVector emits the strict, non-nil vector check described in
// spec.md §4.4: rax must have its low bit set and must not be the nil
// constant, or we trap with invalid-vector-address.
func requireVector(errLabel string) []asm.Instr {
	var instrs []asm.Instr
	instrs = append(instrs,
		asm.Cmp(rax, asm.Imm(values.NilVal)),
		asm.JumpEqual(errLabel),
	)
	instrs = append(instrs, isVectorCC()...)
	instrs = append(instrs, asm.JumpNotEqual(errLabel))
	return instrs
}

// sameRepresentationClass emits the check from spec.md §4.4 "same type":
// given A in rax and B spilled at [rbp - stackOffset], traps to the
// invalid-type label unless A and B have the same representation class
// (both numbers, both booleans, or both pointers).
func sameRepresentationClass(stackOffset int64, errLabel string) []asm.Instr {
	return []asm.Instr{
		asm.Mov(rbx, rax),
		asm.Xor(rbx, asm.RegOffset(asm.RBP, stackOffset)),
		asm.Test(rbx, asm.Imm(1)),
		asm.JumpNotZero(errLabel),
		asm.Mov(r12, rax),
		asm.And(r12, asm.Imm(1)),
		asm.And(rbx, asm.Imm(values.BooleanLSB)),
		asm.Xor(r12, rbx),
		asm.Cmp(r12, asm.Imm(values.BooleanLSB)),
		asm.JumpEqual(errLabel),
	}
}
