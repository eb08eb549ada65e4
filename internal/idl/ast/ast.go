// Package ast holds the raw syntax tree of an interface description, as
// produced by the parser and before any name resolution.
package ast

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

// Interface is the root of a parsed interface source.
type Interface struct {
	Constants []*Constant
	Methods   []*Method
	Main      *Block
}

// Constant is `const name = value;`.
type Constant struct {
	Pos   Pos
	Name  string
	Value int64
}

// Method declares a function or procedure, possibly with callbacks.
// Callback declarations reuse the same node with Callbacks left empty.
type Method struct {
	Pos          Pos
	Name         string
	IsFunction   bool
	Params       []*Param
	Callbacks    []*Method
	HasCallbacks bool
}

// Param is a formal parameter; Dimensions counts the trailing `[]`.
type Param struct {
	Pos        Pos
	Name       string
	Dimensions int
}

// Block is a braced statement list.
type Block struct {
	Pos        Pos
	Statements []Statement
}

// Statement is implemented by every statement node.
type Statement interface {
	Position() Pos
	statementNode()
}

type (
	// ReadStmt is `read a, b[i];`.
	ReadStmt struct {
		Pos  Pos
		Args []Expr
	}

	// WriteStmt is `write a, b[i];`.
	WriteStmt struct {
		Pos  Pos
		Args []Expr
	}

	CheckpointStmt struct{ Pos Pos }
	BreakStmt      struct{ Pos Pos }
	ExitStmt       struct{ Pos Pos }

	// ReturnStmt is only legal inside a callback body.
	ReturnStmt struct {
		Pos   Pos
		Value Expr
	}

	// IfStmt has a nil Else when the else branch is omitted. An `else if`
	// chain is represented as an Else block holding a single IfStmt.
	IfStmt struct {
		Pos  Pos
		Cond Expr
		Then *Block
		Else *Block
	}

	SwitchStmt struct {
		Pos   Pos
		Value Expr
		Cases []*Case
	}

	// ForStmt is `for i to n { ... }`; i ranges over [0, n).
	ForStmt struct {
		Pos      Pos
		Index    string
		IndexPos Pos
		Range    Expr
		Body     *Block
	}

	LoopStmt struct {
		Pos  Pos
		Body *Block
	}

	// CallStmt is `call [ret =] name(args) [callbacks { ... }];`.
	CallStmt struct {
		Pos          Pos
		Return       Expr
		Name         string
		NamePos      Pos
		Args         []Expr
		Callbacks    []*CallbackImpl
		HasCallbacks bool
	}
)

// Case is one `case l1, l2 { ... }` arm of a switch.
type Case struct {
	Pos    Pos
	Labels []Expr
	Body   *Block
}

// CallbackImpl is a callback body written at the call site.
type CallbackImpl struct {
	Pos        Pos
	Name       string
	IsFunction bool
	Params     []*Param
	Body       *Block
}

func (s *ReadStmt) Position() Pos       { return s.Pos }
func (s *WriteStmt) Position() Pos      { return s.Pos }
func (s *CheckpointStmt) Position() Pos { return s.Pos }
func (s *BreakStmt) Position() Pos      { return s.Pos }
func (s *ExitStmt) Position() Pos       { return s.Pos }
func (s *ReturnStmt) Position() Pos     { return s.Pos }
func (s *IfStmt) Position() Pos         { return s.Pos }
func (s *SwitchStmt) Position() Pos     { return s.Pos }
func (s *ForStmt) Position() Pos        { return s.Pos }
func (s *LoopStmt) Position() Pos       { return s.Pos }
func (s *CallStmt) Position() Pos       { return s.Pos }

func (*ReadStmt) statementNode()       {}
func (*WriteStmt) statementNode()      {}
func (*CheckpointStmt) statementNode() {}
func (*BreakStmt) statementNode()      {}
func (*ExitStmt) statementNode()       {}
func (*ReturnStmt) statementNode()     {}
func (*IfStmt) statementNode()         {}
func (*SwitchStmt) statementNode()     {}
func (*ForStmt) statementNode()        {}
func (*LoopStmt) statementNode()       {}
func (*CallStmt) statementNode()       {}

// Expr is implemented by every expression node.
type Expr interface {
	Position() Pos
	exprNode()
}

type (
	IntLit struct {
		Pos   Pos
		Value int64
	}

	Ident struct {
		Pos  Pos
		Name string
	}

	// Subscript is `Array[Index]`; nested subscripts chain through Array.
	Subscript struct {
		Pos   Pos
		Array Expr
		Index Expr
	}

	// Compare is a binary comparison; Op is one of == != < <= > >=.
	Compare struct {
		Pos   Pos
		Op    string
		Left  Expr
		Right Expr
	}
)

func (e *IntLit) Position() Pos    { return e.Pos }
func (e *Ident) Position() Pos     { return e.Pos }
func (e *Subscript) Position() Pos { return e.Pos }
func (e *Compare) Position() Pos   { return e.Pos }

func (*IntLit) exprNode()    {}
func (*Ident) exprNode()     {}
func (*Subscript) exprNode() {}
func (*Compare) exprNode()   {}
