package asm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRenderBasicInstructions(t *testing.T) {
	instrs := []Instr{
		Mov(Register(RAX), Imm(2)),
		Add(Register(RAX), RegOffset(RBP, 8)),
		Label("done"),
		Ret(),
	}
	got := Render(instrs)
	want := "\tmov rax, 2\n\tadd rax, [rbp - 8]\ndone:\n\tret\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRegOffsetSignConvention(t *testing.T) {
	cases := []struct {
		offset int64
		want   string
	}{
		{8, "[rbp - 8]"},
		{-16, "[rbp + 16]"},
		{0, "[rbp]"},
	}
	for _, c := range cases {
		v := RegOffset(RBP, c.offset)
		if got := v.render(); got != c.want {
			t.Errorf("RegOffset(RBP, %d).render() = %q, want %q", c.offset, got, c.want)
		}
	}
}

func TestMovImmToMemoryUsesQwordDirective(t *testing.T) {
	instr := Mov(RegOffset(RBP, 8), Imm(5))
	got := instr.render()
	if !strings.Contains(got, "qword") {
		t.Errorf("Mov to memory with an immediate source should emit a qword directive, got %q", got)
	}
}

func TestMovRegisterToMemoryOmitsQwordDirective(t *testing.T) {
	instr := Mov(RegOffset(RBP, 8), Register(RAX))
	got := instr.render()
	if strings.Contains(got, "qword") {
		t.Errorf("Mov to memory with a register source should not emit qword, got %q", got)
	}
}

func TestRenderFunctionPrologueLines(t *testing.T) {
	instrs := []Instr{
		Label("snek_fun_double"),
		Push(Register(RBP)),
		Push(Register(RBX)),
		Mov(Register(RBP), Register(RSP)),
		Sub(Register(RSP), Imm(8)),
	}
	got := strings.Split(Render(instrs), "\n")
	want := []string{
		"snek_fun_double:",
		"\tpush qword rbp",
		"\tpush qword rbx",
		"\tmov rbp, rsp",
		"\tsub rsp, 8",
		"",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}
