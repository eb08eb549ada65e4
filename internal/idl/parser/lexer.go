package parser

import (
	"fmt"
	"unicode"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokInt
	tokKeyword
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokSemicolon
	tokAssign
	tokMinus
	tokCompare
)

var tokenNames = map[tokenType]string{
	tokEOF:       "end of input",
	tokIdent:     "identifier",
	tokInt:       "integer",
	tokKeyword:   "keyword",
	tokLBrace:    "'{'",
	tokRBrace:    "'}'",
	tokLParen:    "'('",
	tokRParen:    "')'",
	tokLBracket:  "'['",
	tokRBracket:  "']'",
	tokComma:     "','",
	tokSemicolon: "';'",
	tokAssign:    "'='",
	tokMinus:     "'-'",
	tokCompare:   "comparison",
}

func (t tokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

var keywords = map[string]bool{
	"const": true, "function": true, "procedure": true, "callbacks": true, "main": true,
	"read": true, "write": true, "checkpoint": true, "break": true, "exit": true,
	"return": true, "if": true, "else": true, "switch": true, "case": true,
	"for": true, "to": true, "loop": true, "call": true,
}

type token struct {
	Type tokenType
	Lit  string
	Line int
	Col  int
}

func (t token) describe() string {
	switch t.Type {
	case tokEOF:
		return "end of input"
	case tokIdent, tokInt, tokKeyword:
		return fmt.Sprintf("%q", t.Lit)
	default:
		return t.Type.String()
	}
}

// lexer splits interface source into tokens. Line comments start with `//`.
type lexer struct {
	src  []rune
	off  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

func (l *lexer) cur() rune {
	if l.off >= len(l.src) {
		return 0
	}
	return l.src[l.off]
}

func (l *lexer) peekRune() rune {
	if l.off+1 >= len(l.src) {
		return 0
	}
	return l.src[l.off+1]
}

func (l *lexer) advance() {
	if l.off >= len(l.src) {
		return
	}
	if l.src[l.off] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.off++
}

func (l *lexer) skipSpaceAndComments() {
	for l.off < len(l.src) {
		ch := l.cur()
		if unicode.IsSpace(ch) {
			l.advance()
			continue
		}
		if ch == '/' && l.peekRune() == '/' {
			for l.off < len(l.src) && l.cur() != '\n' {
				l.advance()
			}
			continue
		}
		return
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	line, col := l.line, l.col
	tok := func(t tokenType, lit string) token {
		return token{Type: t, Lit: lit, Line: line, Col: col}
	}
	if l.off >= len(l.src) {
		return tok(tokEOF, ""), nil
	}

	ch := l.cur()
	switch {
	case isIdentStart(ch):
		start := l.off
		for l.off < len(l.src) && isIdentPart(l.cur()) {
			l.advance()
		}
		lit := string(l.src[start:l.off])
		if keywords[lit] {
			return tok(tokKeyword, lit), nil
		}
		return tok(tokIdent, lit), nil
	case unicode.IsDigit(ch):
		start := l.off
		for l.off < len(l.src) && unicode.IsDigit(l.cur()) {
			l.advance()
		}
		if isIdentStart(l.cur()) {
			return token{}, &SyntaxError{Line: l.line, Column: l.col, Message: "invalid character in integer literal"}
		}
		return tok(tokInt, string(l.src[start:l.off])), nil
	}

	single := map[rune]tokenType{
		'{': tokLBrace, '}': tokRBrace, '(': tokLParen, ')': tokRParen,
		'[': tokLBracket, ']': tokRBracket, ',': tokComma, ';': tokSemicolon, '-': tokMinus,
	}
	if t, ok := single[ch]; ok {
		l.advance()
		return tok(t, string(ch)), nil
	}

	switch ch {
	case '=', '!', '<', '>':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			return tok(tokCompare, string(ch)+"="), nil
		}
		switch ch {
		case '=':
			return tok(tokAssign, "="), nil
		case '<', '>':
			return tok(tokCompare, string(ch)), nil
		}
		return token{}, &SyntaxError{Line: line, Column: col, Message: "unexpected character '!'"}
	}

	return token{}, &SyntaxError{Line: line, Column: col, Message: fmt.Sprintf("unexpected character %q", ch)}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
