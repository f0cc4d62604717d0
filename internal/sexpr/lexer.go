package sexpr

import (
	"github.com/snek-lang/snekc/internal/token"
)

// lexer holds our object-state, scanning an input string one rune at a
// time. The read/peek/skip-whitespace shape follows the teacher's
// lexer.Lexer (github.com/skx/math-compiler/lexer), adapted from a
// math-expression tokenizer to an S-expression one: parentheses become
// their own tokens and every other non-whitespace run is a single SYMBOL
// or NUMBER atom.
type lexer struct {
	position     int
	readPosition int
	ch           rune
	characters   []rune
}

func newLexer(input string) *lexer {
	l := &lexer{characters: []rune(input)}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPosition >= len(l.characters) {
		l.ch = rune(0)
	} else {
		l.ch = l.characters[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *lexer) peekChar() rune {
	if l.readPosition >= len(l.characters) {
		return rune(0)
	}
	return l.characters[l.readPosition]
}

// nextToken returns the next token, skipping whitespace and comments.
func (l *lexer) nextToken() token.Token {
	l.skipWhitespaceAndComments()

	switch l.ch {
	case rune(0):
		return token.Token{Type: token.EOF}
	case '(':
		l.readChar()
		return token.Token{Type: token.LPAREN, Literal: "("}
	case ')':
		l.readChar()
		return token.Token{Type: token.RPAREN, Literal: ")"}
	}

	// "-3" is a negative-number atom; "-" alone (e.g. in "(- 3 4)") is the
	// minus-operator symbol.
	if l.ch == '-' && isDigit(l.peekChar()) {
		return l.readAtom()
	}

	if isAtomChar(l.ch) {
		return l.readAtom()
	}

	lit := string(l.ch)
	l.readChar()
	return token.Token{Type: token.ERROR, Literal: "unexpected character " + lit}
}

// readAtom reads a maximal run of atom characters and classifies it as a
// NUMBER or a SYMBOL.
func (l *lexer) readAtom() token.Token {
	start := l.position
	for isAtomChar(l.ch) {
		l.readChar()
	}
	lit := string(l.characters[start:l.position])

	if isNumericLiteral(lit) {
		return token.Token{Type: token.NUMBER, Literal: lit}
	}
	return token.Token{Type: token.SYMBOL, Literal: lit}
}

func (l *lexer) skipWhitespaceAndComments() {
	for {
		for isWhitespace(l.ch) {
			l.readChar()
		}
		if l.ch == ';' {
			for l.ch != '\n' && l.ch != rune(0) {
				l.readChar()
			}
			continue
		}
		return
	}
}

func isWhitespace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// isAtomChar reports whether ch may appear inside a bare (unquoted) atom:
// anything but whitespace, parens, the end-of-input sentinel, or a comment
// starter. This is deliberately permissive so that operator symbols like
// `+`, `<=`, and `set!` lex as ordinary atoms.
func isAtomChar(ch rune) bool {
	switch ch {
	case rune(0), '(', ')', ';':
		return false
	}
	return !isWhitespace(ch)
}

// isNumericLiteral reports whether lit looks like an integer literal: an
// optional leading '-' followed by one or more digits.
func isNumericLiteral(lit string) bool {
	if lit == "" {
		return false
	}
	i := 0
	if lit[0] == '-' {
		i = 1
	}
	if i == len(lit) {
		return false
	}
	for ; i < len(lit); i++ {
		if lit[i] < '0' || lit[i] > '9' {
			return false
		}
	}
	return true
}
