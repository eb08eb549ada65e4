// Package parser turns interface source text into the raw syntax tree.
package parser

import (
	"fmt"
	"strconv"

	"github.com/turingarena/turingarena-sub002/internal/idl/ast"
)

// SyntaxError is a hard parse failure. Compilation stops at the first one.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// Parse parses a complete interface source.
func Parse(src string) (*ast.Interface, error) {
	p := &parser{l: newLexer(src)}
	return p.parseInterface()
}

type parser struct {
	l   *lexer
	buf token
	has bool
}

func (p *parser) next() (token, error) {
	if p.has {
		p.has = false
		return p.buf, nil
	}
	return p.l.next()
}

func (p *parser) peek() (token, error) {
	if p.has {
		return p.buf, nil
	}
	tok, err := p.l.next()
	if err != nil {
		return tok, err
	}
	p.buf = tok
	p.has = true
	return tok, nil
}

func (p *parser) errorAt(tok token, format string, args ...interface{}) error {
	return &SyntaxError{Line: tok.Line, Column: tok.Col, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(t tokenType) (token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if tok.Type != t {
		return tok, p.errorAt(tok, "expected %s, found %s", t, tok.describe())
	}
	return tok, nil
}

func (p *parser) expectKeyword(kw string) (token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if tok.Type != tokKeyword || tok.Lit != kw {
		return tok, p.errorAt(tok, "expected %q, found %s", kw, tok.describe())
	}
	return tok, nil
}

// accept consumes the next token if it has type t.
func (p *parser) accept(t tokenType) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	if tok.Type != t {
		return false, nil
	}
	_, _ = p.next()
	return true, nil
}

func (p *parser) isKeyword(kw string) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	return tok.Type == tokKeyword && tok.Lit == kw, nil
}

func pos(tok token) ast.Pos {
	return ast.Pos{Line: tok.Line, Column: tok.Col}
}

func (p *parser) parseInterface() (*ast.Interface, error) {
	iface := &ast.Interface{}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == tokEOF {
			break
		}
		if tok.Type != tokKeyword {
			return nil, p.errorAt(tok, "expected declaration, found %s", tok.describe())
		}

		switch tok.Lit {
		case "const":
			c, err := p.parseConstant()
			if err != nil {
				return nil, err
			}
			iface.Constants = append(iface.Constants, c)
		case "function", "procedure":
			m, err := p.parseMethod(true)
			if err != nil {
				return nil, err
			}
			iface.Methods = append(iface.Methods, m)
		case "main":
			if iface.Main != nil {
				return nil, p.errorAt(tok, "main block declared twice")
			}
			_, _ = p.next()
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			iface.Main = body
		default:
			return nil, p.errorAt(tok, "expected declaration, found %s", tok.describe())
		}
	}

	if iface.Main == nil {
		return nil, &SyntaxError{Line: p.l.line, Column: p.l.col, Message: "missing main block"}
	}
	return iface, nil
}

func (p *parser) parseConstant() (*ast.Constant, error) {
	kw, err := p.expectKeyword("const")
	if err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokAssign); err != nil {
		return nil, err
	}
	value, err := p.parseIntLiteral()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemicolon); err != nil {
		return nil, err
	}
	return &ast.Constant{Pos: pos(kw), Name: name.Lit, Value: value}, nil
}

func (p *parser) parseIntLiteral() (int64, error) {
	negative, err := p.accept(tokMinus)
	if err != nil {
		return 0, err
	}
	tok, err := p.expect(tokInt)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(tok.Lit, 10, 64)
	if err != nil {
		return 0, p.errorAt(tok, "integer literal %s out of range", tok.Lit)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// parseSignature parses `function|procedure name(params)`.
func (p *parser) parseSignature() (token, bool, string, []*ast.Param, error) {
	kw, err := p.next()
	if err != nil {
		return kw, false, "", nil, err
	}
	if kw.Type != tokKeyword || (kw.Lit != "function" && kw.Lit != "procedure") {
		return kw, false, "", nil, p.errorAt(kw, "expected \"function\" or \"procedure\", found %s", kw.describe())
	}
	name, err := p.expect(tokIdent)
	if err != nil {
		return kw, false, "", nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return kw, false, "", nil, err
	}
	return kw, kw.Lit == "function", name.Lit, params, nil
}

func (p *parser) parseParams() ([]*ast.Param, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var params []*ast.Param
	if ok, err := p.accept(tokRParen); err != nil || ok {
		return params, err
	}
	for {
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		param := &ast.Param{Pos: pos(name), Name: name.Lit}
		for {
			ok, err := p.accept(tokLBracket)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			param.Dimensions++
		}
		params = append(params, param)

		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == tokRParen {
			return params, nil
		}
		if tok.Type != tokComma {
			return nil, p.errorAt(tok, "expected ',' or ')', found %s", tok.describe())
		}
	}
}

func (p *parser) parseMethod(allowCallbacks bool) (*ast.Method, error) {
	kw, isFunction, name, params, err := p.parseSignature()
	if err != nil {
		return nil, err
	}
	m := &ast.Method{Pos: pos(kw), Name: name, IsFunction: isFunction, Params: params}

	hasCallbacks, err := p.isKeyword("callbacks")
	if err != nil {
		return nil, err
	}
	if !hasCallbacks {
		_, err := p.expect(tokSemicolon)
		return m, err
	}

	cbTok, _ := p.next()
	if !allowCallbacks {
		return nil, p.errorAt(cbTok, "callback %s cannot declare callbacks", name)
	}
	m.HasCallbacks = true
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	for {
		ok, err := p.accept(tokRBrace)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		cb, err := p.parseMethod(false)
		if err != nil {
			return nil, err
		}
		m.Callbacks = append(m.Callbacks, cb)
	}
	if _, err := p.accept(tokSemicolon); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) parseBlock() (*ast.Block, error) {
	open, err := p.expect(tokLBrace)
	if err != nil {
		return nil, err
	}
	block := &ast.Block{Pos: pos(open)}
	for {
		ok, err := p.accept(tokRBrace)
		if err != nil {
			return nil, err
		}
		if ok {
			return block, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
	}
}

func (p *parser) parseStatement() (ast.Statement, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Type != tokKeyword {
		return nil, p.errorAt(tok, "expected statement, found %s", tok.describe())
	}
	at := pos(tok)

	switch tok.Lit {
	case "read":
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &ast.ReadStmt{Pos: at, Args: args}, p.endStatement()
	case "write":
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &ast.WriteStmt{Pos: at, Args: args}, p.endStatement()
	case "checkpoint":
		return &ast.CheckpointStmt{Pos: at}, p.endStatement()
	case "break":
		return &ast.BreakStmt{Pos: at}, p.endStatement()
	case "exit":
		return &ast.ExitStmt{Pos: at}, p.endStatement()
	case "return":
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Pos: at, Value: value}, p.endStatement()
	case "if":
		return p.parseIf(at)
	case "switch":
		return p.parseSwitch(at)
	case "for":
		index, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("to"); err != nil {
			return nil, err
		}
		rng, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.ForStmt{Pos: at, Index: index.Lit, IndexPos: pos(index), Range: rng, Body: body}, nil
	case "loop":
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.LoopStmt{Pos: at, Body: body}, nil
	case "call":
		return p.parseCall(at)
	}
	return nil, p.errorAt(tok, "expected statement, found %s", tok.describe())
}

func (p *parser) endStatement() error {
	_, err := p.expect(tokSemicolon)
	return err
}

func (p *parser) parseIf(at ast.Pos) (ast.Statement, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Pos: at, Cond: cond, Then: then}

	hasElse, err := p.isKeyword("else")
	if err != nil || !hasElse {
		return stmt, err
	}
	_, _ = p.next()

	chained, err := p.isKeyword("if")
	if err != nil {
		return nil, err
	}
	if chained {
		ifTok, _ := p.next()
		nested, err := p.parseIf(pos(ifTok))
		if err != nil {
			return nil, err
		}
		stmt.Else = &ast.Block{Pos: pos(ifTok), Statements: []ast.Statement{nested}}
		return stmt, nil
	}
	stmt.Else, err = p.parseBlock()
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseSwitch(at ast.Pos) (ast.Statement, error) {
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	stmt := &ast.SwitchStmt{Pos: at, Value: value}
	for {
		ok, err := p.accept(tokRBrace)
		if err != nil {
			return nil, err
		}
		if ok {
			return stmt, nil
		}
		caseTok, err := p.expectKeyword("case")
		if err != nil {
			return nil, err
		}
		labels, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Cases = append(stmt.Cases, &ast.Case{Pos: pos(caseTok), Labels: labels, Body: body})
	}
}

func (p *parser) parseCall(at ast.Pos) (ast.Statement, error) {
	stmt := &ast.CallStmt{Pos: at}

	first, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type == tokLParen {
		stmt.Name, stmt.NamePos = first.Lit, pos(first)
	} else {
		ret, err := p.parseSubscripts(&ast.Ident{Pos: pos(first), Name: first.Lit})
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokAssign); err != nil {
			return nil, err
		}
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		stmt.Return, stmt.Name, stmt.NamePos = ret, name.Lit, pos(name)
	}

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	if ok, err := p.accept(tokRParen); err != nil {
		return nil, err
	} else if !ok {
		stmt.Args, err = p.parseExprList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	}

	hasCallbacks, err := p.isKeyword("callbacks")
	if err != nil {
		return nil, err
	}
	if !hasCallbacks {
		return stmt, p.endStatement()
	}
	_, _ = p.next()
	stmt.HasCallbacks = true
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	for {
		ok, err := p.accept(tokRBrace)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		kw, isFunction, name, params, err := p.parseSignature()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Callbacks = append(stmt.Callbacks, &ast.CallbackImpl{
			Pos: pos(kw), Name: name, IsFunction: isFunction, Params: params, Body: body,
		})
	}
	if _, err := p.accept(tokSemicolon); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseExprList() ([]ast.Expr, error) {
	var list []ast.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		ok, err := p.accept(tokComma)
		if err != nil {
			return nil, err
		}
		if !ok {
			return list, nil
		}
	}
}

func (p *parser) parseExpr() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type != tokCompare {
		return left, nil
	}
	_, _ = p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &ast.Compare{Pos: left.Position(), Op: tok.Lit, Left: left, Right: right}, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case tokInt, tokMinus:
		v, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		return &ast.IntLit{Pos: pos(tok), Value: v}, nil
	case tokIdent:
		_, _ = p.next()
		return p.parseSubscripts(&ast.Ident{Pos: pos(tok), Name: tok.Lit})
	case tokLParen:
		_, _ = p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	}
	_, _ = p.next()
	return nil, p.errorAt(tok, "expected expression, found %s", tok.describe())
}

func (p *parser) parseSubscripts(base ast.Expr) (ast.Expr, error) {
	expr := base
	for {
		ok, err := p.accept(tokLBracket)
		if err != nil {
			return nil, err
		}
		if !ok {
			return expr, nil
		}
		index, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
		expr = &ast.Subscript{Pos: base.Position(), Array: expr, Index: index}
	}
}
