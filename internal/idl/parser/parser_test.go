package parser

import (
	"errors"
	"testing"

	"github.com/turingarena/turingarena-sub002/internal/idl/ast"
)

func TestParseFullInterface(t *testing.T) {
	src := `
// sum of an array
const MAX = 100;

function f(n, a[]);
procedure g(x) callbacks {
	function cb(y);
	procedure done();
}

main {
	read n;
	for i to n {
		read a[i];
	}
	call r = f(n, a);
	write r;
	call g(r) callbacks {
		function cb(y) {
			write y;
			read z;
			return z;
		}
	}
	if r == 0 {
		exit;
	} else if r < MAX {
		checkpoint;
	} else {
		loop { break; }
	}
	switch r {
		case 1, 2 { write 1; }
		case -3 { write (r); }
	}
}
`
	iface, err := Parse(src)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(iface.Constants) != 1 || iface.Constants[0].Name != "MAX" || iface.Constants[0].Value != 100 {
		t.Fatalf("unexpected constants: %+v", iface.Constants)
	}
	if len(iface.Methods) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(iface.Methods))
	}
	f := iface.Methods[0]
	if !f.IsFunction || len(f.Params) != 2 || f.Params[1].Dimensions != 1 {
		t.Fatalf("unexpected f: %+v", f)
	}
	g := iface.Methods[1]
	if g.IsFunction || !g.HasCallbacks || len(g.Callbacks) != 2 || !g.Callbacks[0].IsFunction {
		t.Fatalf("unexpected g: %+v", g)
	}

	stmts := iface.Main.Statements
	if len(stmts) != 7 {
		t.Fatalf("expected 7 statements, got %d", len(stmts))
	}
	call, ok := stmts[2].(*ast.CallStmt)
	if !ok || call.Name != "f" || call.Return == nil || len(call.Args) != 2 {
		t.Fatalf("unexpected call: %#v", stmts[2])
	}
	withCallbacks := stmts[4].(*ast.CallStmt)
	if !withCallbacks.HasCallbacks || len(withCallbacks.Callbacks) != 1 || len(withCallbacks.Callbacks[0].Body.Statements) != 3 {
		t.Fatalf("unexpected callback call: %#v", withCallbacks)
	}
	ifStmt := stmts[5].(*ast.IfStmt)
	if cmp, ok := ifStmt.Cond.(*ast.Compare); !ok || cmp.Op != "==" {
		t.Fatalf("expected comparison condition, got %#v", ifStmt.Cond)
	}
	if _, ok := ifStmt.Else.Statements[0].(*ast.IfStmt); !ok {
		t.Fatalf("expected else-if chain")
	}
	sw := stmts[6].(*ast.SwitchStmt)
	if len(sw.Cases) != 2 || len(sw.Cases[0].Labels) != 2 {
		t.Fatalf("unexpected switch: %#v", sw)
	}
	if lit := sw.Cases[1].Labels[0].(*ast.IntLit); lit.Value != -3 {
		t.Fatalf("expected negative label, got %d", lit.Value)
	}
}

func TestParseSubscriptsNest(t *testing.T) {
	iface, err := Parse("main { read m[i][j]; }")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	read := iface.Main.Statements[0].(*ast.ReadStmt)
	outer, ok := read.Args[0].(*ast.Subscript)
	if !ok {
		t.Fatalf("expected subscript, got %#v", read.Args[0])
	}
	inner, ok := outer.Array.(*ast.Subscript)
	if !ok || inner.Index.(*ast.Ident).Name != "i" || outer.Index.(*ast.Ident).Name != "j" {
		t.Fatalf("subscripts applied in wrong order: %#v", outer)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		col  int
	}{
		{name: "missing main", src: "procedure f();", line: 1, col: 15},
		{name: "missing semicolon", src: "main {\n  read a\n}", line: 3, col: 1},
		{name: "bad statement", src: "main { foo; }", line: 1, col: 8},
		{name: "bad character", src: "main { read a$; }", line: 1, col: 14},
		{name: "nested callbacks", src: "procedure f() callbacks { procedure g() callbacks {} }\nmain {}", line: 1, col: 41},
		{name: "duplicate main", src: "main {}\nmain {}", line: 2, col: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("expected syntax error, got %v", err)
			}
			if syntaxErr.Line != tt.line || syntaxErr.Column != tt.col {
				t.Fatalf("error at %d:%d, want %d:%d (%s)", syntaxErr.Line, syntaxErr.Column, tt.line, tt.col, syntaxErr.Message)
			}
		})
	}
}
