package strategy

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Small sandboxed arithmetic grammar for strategy metrics and calculations:
// + - * /, parentheses, float literals and named variables. Nothing else is
// evaluated, in particular no host-language expressions.
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = [ "-" ] atom
//	atom   = number | ident | "(" expr ")"

type exprNode interface {
	eval(vars VarResolver) (float64, bool)
	walkVars(fn func(name string))
}

// VarResolver binds a variable name to its current value. Returning false
// makes the whole expression unresolvable.
type VarResolver func(name string) (float64, bool)

type numNode float64

func (n numNode) eval(VarResolver) (float64, bool) { return float64(n), true }
func (n numNode) walkVars(func(string))            {}

type varNode string

func (n varNode) eval(vars VarResolver) (float64, bool) { return vars(string(n)) }
func (n varNode) walkVars(fn func(string))              { fn(string(n)) }

type binNode struct {
	op          byte
	left, right exprNode
}

func (n *binNode) eval(vars VarResolver) (float64, bool) {
	l, ok := n.left.eval(vars)
	if !ok {
		return 0, false
	}
	r, ok := n.right.eval(vars)
	if !ok {
		return 0, false
	}
	switch n.op {
	case '+':
		return l + r, true
	case '-':
		return l - r, true
	case '*':
		return l * r, true
	case '/':
		if r == 0 {
			return 0, false
		}
		return l / r, true
	}
	return 0, false
}

func (n *binNode) walkVars(fn func(string)) {
	n.left.walkVars(fn)
	n.right.walkVars(fn)
}

type negNode struct{ inner exprNode }

func (n *negNode) eval(vars VarResolver) (float64, bool) {
	v, ok := n.inner.eval(vars)
	return -v, ok
}
func (n *negNode) walkVars(fn func(string)) { n.inner.walkVars(fn) }

// Expr — a parsed arithmetic expression.
type Expr struct {
	src  string
	root exprNode
}

func (e *Expr) String() string { return e.src }

// Eval computes the expression. ok is false when any variable is missing or
// a division by zero occurs — the caller treats that as "no value".
func (e *Expr) Eval(vars VarResolver) (float64, bool) {
	if e == nil || e.root == nil {
		return 0, false
	}
	return e.root.eval(vars)
}

// Vars calls fn for every variable referenced by the expression.
func (e *Expr) Vars(fn func(name string)) {
	if e != nil && e.root != nil {
		e.root.walkVars(fn)
	}
}

// ParseExpr compiles src. Syntax errors are load-time errors: a strategy
// with a bad metric never reaches the hot path.
func ParseExpr(src string) (*Expr, error) {
	p := &exprParser{src: src}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, fmt.Errorf("unexpected %q at offset %d in %q", p.src[p.pos], p.pos, src)
	}
	return &Expr{src: src, root: root}, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) parseExpr() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binNode{op: op, left: left, right: right}
	}
}

func (p *exprParser) parseTerm() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binNode{op: op, left: left, right: right}
	}
}

func (p *exprParser) parseUnary() (exprNode, error) {
	if p.peek() == '-' {
		p.pos++
		inner, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return &negNode{inner: inner}, nil
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (exprNode, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing closing paren in %q", p.src)
		}
		p.pos++
		return inner, nil

	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return nil, fmt.Errorf("bad number in %q: %w", p.src, err)
		}
		return numNode(v), nil

	case isIdentStart(rune(c)):
		start := p.pos
		for p.pos < len(p.src) && isIdentPart(rune(p.src[p.pos])) {
			p.pos++
		}
		return varNode(strings.ToLower(p.src[start:p.pos])), nil
	}
	return nil, fmt.Errorf("unexpected character at offset %d in %q", p.pos, p.src)
}

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' }
func isIdentPart(r rune) bool  { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }
