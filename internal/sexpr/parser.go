// Package sexpr implements the S-expression lexer and recursive-descent
// parser that turn Snek source text into an internal/ast.Program.
//
// spec.md treats the lexer/parser as an external collaborator, specified
// only by the internal/ast.Program it produces; this package is still part
// of the repository because a complete, runnable CLI needs one. Its
// structure - a hand-rolled lexer feeding a recursive-descent parser over
// a small fixed grammar - mirrors the teacher's own lexer+token split
// (github.com/skx/math-compiler/lexer, .../token), generalized from a flat
// token stream to the nested list structure S-expressions need, the way
// original_source/src/parser.rs walks a generic Sexp tree.
package sexpr

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/snek-lang/snekc/internal/ast"
	"github.com/snek-lang/snekc/internal/token"
)

// reserved is the set of words that may never be used as an identifier,
// parameter, or function name - the reserved-word catalog from spec.md §6.
var reserved = map[string]bool{
	"true": true, "false": true, "input": true, "nil": true,
	"add1": true, "sub1": true, "isnum": true, "isbool": true, "isvec": true, "print": true,
	"let": true, "set!": true,
	"if": true, "block": true, "loop": true, "break": true,
	"fun": true,
	"vec": true, "vec-get": true, "vec-set!": true, "vec-len": true, "make-vec": true,
	"+": true, "-": true, "*": true,
	"<": true, "<=": true, ">": true, ">=": true, "=": true, "==": true,
}

// sexp is the untyped tree the lexer's tokens are first assembled into,
// before parseExpr gives it Snek meaning. Keeping this stage separate from
// the typed AST is what lets the same tree be matched first against
// "is this a function definition?" and then, if not, against the full
// expression grammar - exactly the shape of original_source/parser.rs's
// `is_definition` pre-check.
type sexp struct {
	atom     string
	isAtom   bool
	children []sexp
}

// Parse lexes and parses src into a Program.
func Parse(src string) (ast.Program, error) {
	l := newLexer(src)
	var toks []token.Token
	for {
		t := l.nextToken()
		if t.Type == token.ERROR {
			return ast.Program{}, errors.Errorf("Invalid: %s", t.Literal)
		}
		toks = append(toks, t)
		if t.Type == token.EOF {
			break
		}
	}

	p := &parser{toks: toks}
	var top []sexp
	for !p.atEOF() {
		s, err := p.parseSexp()
		if err != nil {
			return ast.Program{}, err
		}
		top = append(top, s)
	}
	if len(top) == 0 {
		return ast.Program{}, errors.New("Invalid: empty program")
	}

	return sexpsToProgram(top)
}

type parser struct {
	toks []token.Token
	pos  int
}

func (p *parser) atEOF() bool {
	return p.toks[p.pos].Type == token.EOF
}

func (p *parser) peek() token.Token {
	return p.toks[p.pos]
}

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if t.Type != token.EOF {
		p.pos++
	}
	return t
}

func (p *parser) parseSexp() (sexp, error) {
	t := p.peek()
	switch t.Type {
	case token.LPAREN:
		p.advance()
		var children []sexp
		for p.peek().Type != token.RPAREN {
			if p.peek().Type == token.EOF {
				return sexp{}, errors.New("Invalid: unterminated list, expected )")
			}
			c, err := p.parseSexp()
			if err != nil {
				return sexp{}, err
			}
			children = append(children, c)
		}
		p.advance() // consume )
		return sexp{children: children}, nil
	case token.RPAREN:
		return sexp{}, errors.New("Invalid: unexpected )")
	case token.NUMBER, token.SYMBOL:
		p.advance()
		return sexp{atom: t.Literal, isAtom: true}, nil
	default:
		return sexp{}, errors.New("Invalid: unexpected end of input")
	}
}

// sexpsToProgram mirrors original_source/parser.rs's parse_program: it
// walks the top-level forms, treating each `(fun ...)` form as a
// definition, and the first non-definition form as the main expression.
func sexpsToProgram(top []sexp) (ast.Program, error) {
	var defs []ast.Definition
	for i, s := range top {
		if isDefinition(s) {
			def, err := parseDefinition(s)
			if err != nil {
				return ast.Program{}, err
			}
			defs = append(defs, def)
			continue
		}
		main, err := parseExpr(s)
		if err != nil {
			return ast.Program{}, err
		}
		if i != len(top)-1 {
			return ast.Program{}, errors.New("Invalid: the main expression must be the last top-level form")
		}
		return ast.Program{Defs: defs, Main: main}, nil
	}
	return ast.Program{}, errors.New("Invalid: only found definitions, no main expression")
}

func isDefinition(s sexp) bool {
	if s.isAtom || len(s.children) < 3 {
		return false
	}
	head := s.children[0]
	return head.isAtom && head.atom == "fun" && !s.children[1].isAtom
}

func parseDefinition(s sexp) (ast.Definition, error) {
	// (fun (name param...) body)
	sig := s.children[1]
	if len(sig.children) == 0 || !sig.children[0].isAtom {
		return ast.Definition{}, errors.New("Invalid: malformed function definition")
	}
	name := sig.children[0].atom
	if reserved[name] {
		return ast.Definition{}, errors.Errorf("Invalid: reserved keyword %s", name)
	}

	seen := map[string]bool{}
	var params []string
	for _, ps := range sig.children[1:] {
		if !ps.isAtom {
			return ast.Definition{}, errors.New("Invalid: function parameter must be an identifier")
		}
		if reserved[ps.atom] {
			return ast.Definition{}, errors.Errorf("Invalid: reserved keyword %s", ps.atom)
		}
		if seen[ps.atom] {
			return ast.Definition{}, errors.Errorf("Invalid: Duplicate parameter %s", ps.atom)
		}
		seen[ps.atom] = true
		params = append(params, ps.atom)
	}

	body, err := parseExpr(s.children[2])
	if err != nil {
		return ast.Definition{}, err
	}
	return ast.Definition{Name: name, Params: params, Body: body}, nil
}

func parseExpr(s sexp) (ast.Expr, error) {
	if s.isAtom {
		return parseAtom(s.atom)
	}
	if len(s.children) == 0 {
		return nil, errors.New("Invalid: empty form ()")
	}

	head := s.children[0]
	args := s.children[1:]

	if head.isAtom {
		switch head.atom {
		case "add1":
			return parseUnary(ast.Add1, args)
		case "sub1":
			return parseUnary(ast.Sub1, args)
		case "isnum":
			return parseUnary(ast.IsNumber, args)
		case "isbool":
			return parseUnary(ast.IsBoolean, args)
		case "isvec":
			return parseUnary(ast.IsVector, args)
		case "print":
			return parseUnary(ast.Print, args)

		case "+":
			return parseBinary(ast.Plus, args)
		case "-":
			return parseBinary(ast.Minus, args)
		case "*":
			return parseBinary(ast.Times, args)
		case "=":
			return parseBinary(ast.Equal, args)
		case "==":
			return parseBinary(ast.StructEqual, args)
		case ">":
			return parseBinary(ast.Greater, args)
		case ">=":
			return parseBinary(ast.GreaterEqual, args)
		case "<":
			return parseBinary(ast.Less, args)
		case "<=":
			return parseBinary(ast.LessEqual, args)

		case "if":
			if len(args) != 3 {
				return nil, errors.New("Invalid: if requires a condition, then-branch and else-branch")
			}
			cond, err := parseExpr(args[0])
			if err != nil {
				return nil, err
			}
			thn, err := parseExpr(args[1])
			if err != nil {
				return nil, err
			}
			els, err := parseExpr(args[2])
			if err != nil {
				return nil, err
			}
			return ast.If{Cond: cond, Then: thn, Else: els}, nil

		case "let":
			if len(args) != 2 {
				return nil, errors.New("Invalid: let requires a binding list and a body")
			}
			bindings, err := parseBindings(args[0])
			if err != nil {
				return nil, err
			}
			if len(bindings) == 0 {
				return nil, errors.New("Invalid: let requires at least one binding")
			}
			body, err := parseExpr(args[1])
			if err != nil {
				return nil, err
			}
			return ast.Let{Bindings: bindings, Body: body}, nil

		case "set!":
			if len(args) != 2 || !args[0].isAtom {
				return nil, errors.New("Invalid: set! requires an identifier and a value expression")
			}
			if reserved[args[0].atom] {
				return nil, errors.New("Invalid: reserved keyword")
			}
			v, err := parseExpr(args[1])
			if err != nil {
				return nil, err
			}
			return ast.Set{Name: args[0].atom, Value: v}, nil

		case "block":
			if len(args) == 0 {
				return nil, errors.New("Invalid: block requires at least one expression")
			}
			exprs, err := parseExprList(args)
			if err != nil {
				return nil, err
			}
			return ast.Block{Exprs: exprs}, nil

		case "loop":
			if len(args) != 1 {
				return nil, errors.New("Invalid: loop requires exactly one expression")
			}
			body, err := parseExpr(args[0])
			if err != nil {
				return nil, err
			}
			return ast.Loop{Body: body}, nil

		case "break":
			if len(args) != 1 {
				return nil, errors.New("Invalid: break requires exactly one expression")
			}
			v, err := parseExpr(args[0])
			if err != nil {
				return nil, err
			}
			return ast.Break{Value: v}, nil

		case "vec":
			elems, err := parseExprList(args)
			if err != nil {
				return nil, err
			}
			return ast.Vec{Elements: elems}, nil

		case "vec-len":
			if len(args) != 1 {
				return nil, errors.New("Invalid: vec-len requires exactly one expression")
			}
			v, err := parseExpr(args[0])
			if err != nil {
				return nil, err
			}
			return ast.VecLen{Vector: v}, nil

		case "vec-get":
			if len(args) != 2 {
				return nil, errors.New("Invalid: vec-get requires a vector and an index")
			}
			v, err := parseExpr(args[0])
			if err != nil {
				return nil, err
			}
			i, err := parseExpr(args[1])
			if err != nil {
				return nil, err
			}
			return ast.VecGet{Vector: v, Index: i}, nil

		case "vec-set!":
			if len(args) != 3 {
				return nil, errors.New("Invalid: vec-set! requires a vector, an index and a value")
			}
			v, err := parseExpr(args[0])
			if err != nil {
				return nil, err
			}
			i, err := parseExpr(args[1])
			if err != nil {
				return nil, err
			}
			val, err := parseExpr(args[2])
			if err != nil {
				return nil, err
			}
			return ast.VecSet{Vector: v, Index: i, Value: val}, nil

		case "make-vec":
			if len(args) != 2 {
				return nil, errors.New("Invalid: make-vec requires a size and a fill expression")
			}
			size, err := parseExpr(args[0])
			if err != nil {
				return nil, err
			}
			fill, err := parseExpr(args[1])
			if err != nil {
				return nil, err
			}
			return ast.MakeVec{Size: size, Fill: fill}, nil

		case "fun":
			return nil, errors.New("Invalid: function definitions must precede the main expression")

		default:
			if reserved[head.atom] {
				return nil, errors.Errorf("Invalid: reserved keyword %s", head.atom)
			}
			callArgs, err := parseExprList(args)
			if err != nil {
				return nil, err
			}
			return ast.Call{Name: head.atom, Args: callArgs}, nil
		}
	}

	return nil, errors.New("Invalid: malformed expression")
}

func parseAtom(lit string) (ast.Expr, error) {
	switch lit {
	case "true":
		return ast.Bool{Value: true}, nil
	case "false":
		return ast.Bool{Value: false}, nil
	case "nil":
		return ast.NilLit{}, nil
	case "input":
		return ast.Input{}, nil
	}
	if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return ast.Number{Value: n}, nil
	}
	if reserved[lit] {
		return nil, errors.Errorf("Invalid: reserved keyword %s", lit)
	}
	return ast.Id{Name: lit}, nil
}

func parseUnary(op ast.UnOpKind, args []sexp) (ast.Expr, error) {
	if len(args) != 1 {
		return nil, errors.New("Invalid: unary operator requires exactly one operand")
	}
	operand, err := parseExpr(args[0])
	if err != nil {
		return nil, err
	}
	return ast.UnOp{Op: op, Operand: operand}, nil
}

func parseBinary(op ast.BinOpKind, args []sexp) (ast.Expr, error) {
	if len(args) != 2 {
		return nil, errors.New("Invalid: binary operator requires exactly two operands")
	}
	left, err := parseExpr(args[0])
	if err != nil {
		return nil, err
	}
	right, err := parseExpr(args[1])
	if err != nil {
		return nil, err
	}
	return ast.BinOp{Op: op, Left: left, Right: right}, nil
}

func parseExprList(ss []sexp) ([]ast.Expr, error) {
	exprs := make([]ast.Expr, 0, len(ss))
	for _, s := range ss {
		e, err := parseExpr(s)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func parseBindings(s sexp) ([]ast.Binding, error) {
	if s.isAtom {
		return nil, errors.New("Invalid: let bindings must be a list")
	}
	seen := map[string]bool{}
	bindings := make([]ast.Binding, 0, len(s.children))
	for _, b := range s.children {
		if b.isAtom || len(b.children) != 2 || !b.children[0].isAtom {
			return nil, errors.New("Invalid: each let binding must be (name expr)")
		}
		name := b.children[0].atom
		if reserved[name] {
			return nil, errors.Errorf("Invalid: reserved keyword %s", name)
		}
		if seen[name] {
			return nil, errors.Errorf("Invalid: Duplicate binding %s", name)
		}
		seen[name] = true
		value, err := parseExpr(b.children[1])
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.Binding{Name: name, Value: value})
	}
	return bindings, nil
}
