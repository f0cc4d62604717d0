package sexpr

import (
	"testing"

	"github.com/snek-lang/snekc/internal/token"
)

func TestLexerTokensBasicForm(t *testing.T) {
	l := newLexer("(+ 1 -2)")
	want := []token.Token{
		{Type: token.LPAREN, Literal: "("},
		{Type: token.SYMBOL, Literal: "+"},
		{Type: token.NUMBER, Literal: "1"},
		{Type: token.NUMBER, Literal: "-2"},
		{Type: token.RPAREN, Literal: ")"},
		{Type: token.EOF},
	}
	for i, w := range want {
		got := l.nextToken()
		if got != w {
			t.Fatalf("token %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestLexerSkipsComments(t *testing.T) {
	l := newLexer("; leading comment\nset! ; trailing\n")
	got := l.nextToken()
	if got.Type != token.SYMBOL || got.Literal != "set!" {
		t.Fatalf("got %+v, want SYMBOL set!", got)
	}
	if got = l.nextToken(); got.Type != token.EOF {
		t.Fatalf("got %+v, want EOF", got)
	}
}

func TestLexerMinusAsOperatorNotNegativeNumber(t *testing.T) {
	l := newLexer("(- 3 4)")
	l.nextToken() // (
	got := l.nextToken()
	if got.Type != token.SYMBOL || got.Literal != "-" {
		t.Fatalf("got %+v, want SYMBOL -", got)
	}
}

func TestLexerUnusualCharacterIsSymbol(t *testing.T) {
	l := newLexer("$")
	got := l.nextToken()
	if got.Type != token.SYMBOL || got.Literal != "$" {
		t.Fatalf("got %+v, want SYMBOL $", got)
	}
}
