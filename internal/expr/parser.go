package expr

import (
	"fmt"
	"strconv"

	"github.com/veraxhq/verax/internal/ir"
)

// node is the sealed AST node interface.
type node interface {
	exprNode()
}

type literalNode struct {
	value ir.Value
}

type fieldNode struct {
	path ir.Path
}

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op          string
	left, right node
}

type callNode struct {
	name string
	args []node
}

func (literalNode) exprNode() {}
func (fieldNode) exprNode()   {}
func (unaryNode) exprNode()   {}
func (binaryNode) exprNode()  {}
func (callNode) exprNode()    {}

// Compiled is a parsed expression ready for repeated evaluation.
// Compiled values are immutable and safe for concurrent use.
type Compiled struct {
	src  string
	root node
}

// Source returns the original expression text.
func (c *Compiled) Source() string {
	return c.src
}

// Parse compiles expression source text into an evaluable AST.
func Parse(src string) (*Compiled, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("parse %q: position %d: unexpected %q", src, p.peek().pos, p.peek().text)
	}
	return &Compiled{src: src, root: root}, nil
}

// parser is a recursive-descent parser with one token of lookahead.
type parser struct {
	tokens []token
	idx    int
}

func (p *parser) peek() token {
	return p.tokens[p.idx]
}

func (p *parser) next() token {
	t := p.tokens[p.idx]
	if p.idx < len(p.tokens)-1 {
		p.idx++
	}
	return t
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.next()
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "||", left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "&&", left: left, right: right}
	}
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	// Comparisons do not chain: "a < b < c" is a syntax error, caught by
	// the unexpected-token check in Parse.
	op, ok := p.acceptOp("==", "!=", "<", "<=", ">", ">=")
	if !ok {
		return left, nil
	}
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.acceptOp("-", "!"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("position %d: bad number %q", t.pos, t.text)
		}
		return literalNode{value: ir.Number(f)}, nil

	case tokString:
		p.next()
		return literalNode{value: ir.String(t.text)}, nil

	case tokIdent:
		return p.parseIdent()

	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("position %d: expected ')'", p.peek().pos)
		}
		p.next()
		return inner, nil

	default:
		return nil, fmt.Errorf("position %d: unexpected %q", t.pos, t.text)
	}
}

// parseIdent handles literals (true/false/null), function calls, and
// dotted field references.
func (p *parser) parseIdent() (node, error) {
	t := p.next()
	switch t.text {
	case "true":
		return literalNode{value: ir.Bool(true)}, nil
	case "false":
		return literalNode{value: ir.Bool(false)}, nil
	case "null":
		return literalNode{value: ir.Null{}}, nil
	}

	// Function call
	if p.peek().kind == tokLParen {
		p.next()
		var args []node
		if p.peek().kind != tokRParen {
			for {
				arg, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind == tokComma {
					p.next()
					continue
				}
				break
			}
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("position %d: expected ')' after arguments", p.peek().pos)
		}
		p.next()
		return callNode{name: t.text, args: args}, nil
	}

	// Dotted field reference
	path := ir.Path{t.text}
	for p.peek().kind == tokDot {
		p.next()
		seg := p.peek()
		if seg.kind != tokIdent {
			return nil, fmt.Errorf("position %d: expected field segment after '.'", seg.pos)
		}
		p.next()
		path = append(path, seg.text)
	}
	return fieldNode{path: path}, nil
}
