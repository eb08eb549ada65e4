package idl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turingarena/turingarena-sub002/internal/idl/ast"
)

// Direction is the way a value travels through the driver.
type Direction uint8

const (
	// Downward values flow from the evaluator (or the global input) to the process.
	Downward Direction = 1 << iota
	// Upward values flow from the process back to the evaluator.
	Upward
)

func (d Direction) String() string {
	switch d {
	case Downward:
		return "downward"
	case Upward:
		return "upward"
	}
	return "none"
}

// DirectionSet is a bit set of directions.
type DirectionSet uint8

func (s DirectionSet) With(d Direction) DirectionSet     { return s | DirectionSet(d) }
func (s DirectionSet) Union(o DirectionSet) DirectionSet { return s | o }
func (s DirectionSet) Has(d Direction) bool              { return s&DirectionSet(d) != 0 }

// Len is the cardinality of the set.
func (s DirectionSet) Len() int {
	n := 0
	for _, d := range []Direction{Downward, Upward} {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Scope identifies one iteration scope: a for or loop body, or a callback
// body. A fresh binding scope is opened for each iteration or invocation.
type Scope struct {
	ID int
}

// Variable is a named binding slot. Dimensions is the array nesting depth.
type Variable struct {
	Name       string
	Dimensions int
	// Direction is zero for loop indices and synthetic variables.
	Direction Direction
	// IndexedBy lists the loop indices used to declare each subscript,
	// outermost first. len(IndexedBy) == Dimensions for variables declared
	// inside the interface body.
	IndexedBy []*Variable
	// Owner is the iteration scope holding the whole variable, nil at the
	// top of main.
	Owner   *Scope
	IsIndex bool
	Pos     ast.Pos
}

// Reference identifies the binding of Variable after IndexCount subscripts.
type Reference struct {
	Variable   *Variable
	IndexCount int
}

func (r Reference) String() string {
	if r.Variable == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s@%d", r.Variable.Name, r.IndexCount)
}

// ReferenceStatus tells whether an action introduces or consumes a value.
type ReferenceStatus int

const (
	Declared ReferenceStatus = iota + 1
	Resolved
)

func (s ReferenceStatus) String() string {
	if s == Declared {
		return "declared"
	}
	return "resolved"
}

// ReferenceAction records that a node declares or resolves a reference.
type ReferenceAction struct {
	Reference Reference
	Status    ReferenceStatus
	// LoopIndices are the loop indices used verbatim as subscripts.
	LoopIndices []*Variable
}

// Constant is a named integer.
type Constant struct {
	Name  string
	Value int64
	Pos   ast.Pos
}

// Expression is the closed set of compiled expressions.
type Expression interface {
	// Dimensions is the array depth of the expression value (0 for scalars).
	Dimensions() int
	expression()
}

// IntLiteral is an integer literal.
type IntLiteral struct {
	Value int64
}

// ConstantRef is a use of a named constant.
type ConstantRef struct {
	Constant *Constant
}

// ReferenceExpr is a variable, possibly subscripted.
type ReferenceExpr struct {
	Variable *Variable
	Indices  []Expression
	Pos      ast.Pos
}

// Comparison compares two scalars and yields 1 or 0.
type Comparison struct {
	Op    string
	Left  Expression
	Right Expression
}

func (*IntLiteral) Dimensions() int  { return 0 }
func (*ConstantRef) Dimensions() int { return 0 }
func (*Comparison) Dimensions() int  { return 0 }

func (e *ReferenceExpr) Dimensions() int {
	return e.Variable.Dimensions - len(e.Indices)
}

func (*IntLiteral) expression()    {}
func (*ConstantRef) expression()   {}
func (*ReferenceExpr) expression() {}
func (*Comparison) expression()    {}

// Reference is the binding this expression names.
func (e *ReferenceExpr) Reference() Reference {
	return Reference{Variable: e.Variable, IndexCount: len(e.Indices)}
}

// IsDirect reports whether every subscript is the loop index the variable was
// declared with, so the expression names the binding of the current iteration.
func (e *ReferenceExpr) IsDirect() bool {
	if len(e.Indices) > len(e.Variable.IndexedBy) {
		return false
	}
	for i, index := range e.Indices {
		ref, ok := index.(*ReferenceExpr)
		if !ok || len(ref.Indices) != 0 || ref.Variable != e.Variable.IndexedBy[i] {
			return false
		}
	}
	return true
}

func (e *ReferenceExpr) String() string {
	var b strings.Builder
	b.WriteString(e.Variable.Name)
	for _, index := range e.Indices {
		b.WriteString("[")
		b.WriteString(ExpressionString(index))
		b.WriteString("]")
	}
	return b.String()
}

// ExpressionString renders an expression back to source form.
func ExpressionString(e Expression) string {
	switch e := e.(type) {
	case *IntLiteral:
		return fmt.Sprint(e.Value)
	case *ConstantRef:
		return e.Constant.Name
	case *ReferenceExpr:
		return e.String()
	case *Comparison:
		return ExpressionString(e.Left) + " " + e.Op + " " + ExpressionString(e.Right)
	}
	return "?"
}

// References lists every variable reference occurring in e, subscripts included.
func References(e Expression) []*ReferenceExpr {
	var out []*ReferenceExpr
	var walk func(Expression)
	walk = func(e Expression) {
		switch e := e.(type) {
		case *ReferenceExpr:
			out = append(out, e)
			for _, index := range e.Indices {
				walk(index)
			}
		case *Comparison:
			walk(e.Left)
			walk(e.Right)
		}
	}
	walk(e)
	return out
}

// Statement is the closed set of compiled statements.
type Statement interface {
	Position() ast.Pos
	statement()
}

type (
	ReadStatement struct {
		Pos  ast.Pos
		Args []*ReferenceExpr
	}

	WriteStatement struct {
		Pos  ast.Pos
		Args []Expression
	}

	CheckpointStatement struct{ Pos ast.Pos }
	BreakStatement      struct{ Pos ast.Pos }
	ExitStatement       struct{ Pos ast.Pos }

	ReturnStatement struct {
		Pos   ast.Pos
		Value Expression
	}

	// IfStatement has a nil Else when the source omits it.
	IfStatement struct {
		Pos  ast.Pos
		Cond Expression
		Then *Block
		Else *Block
	}

	SwitchStatement struct {
		Pos   ast.Pos
		Value Expression
		Cases []*SwitchCase
	}

	ForStatement struct {
		Pos   ast.Pos
		Index *Variable
		Range Expression
		Body  *Block
		Scope *Scope
	}

	LoopStatement struct {
		Pos   ast.Pos
		Body  *Block
		Scope *Scope
	}

	// CallStatement invokes a method. Callbacks holds one implementation per
	// callback declared by the method, in declaration order.
	CallStatement struct {
		Pos       ast.Pos
		Method    *Method
		Args      []Expression
		Return    *ReferenceExpr
		Callbacks []*CallbackImplementation
		// Accepted holds the accepts_callbacks flag received with the call.
		Accepted *Variable
	}
)

// SwitchCase is one arm of a switch; labels are constant values.
type SwitchCase struct {
	Pos    ast.Pos
	Labels []int64
	Body   *Block
}

// Block is a compiled statement list.
type Block struct {
	Statements []Statement
}

func (s *ReadStatement) Position() ast.Pos       { return s.Pos }
func (s *WriteStatement) Position() ast.Pos      { return s.Pos }
func (s *CheckpointStatement) Position() ast.Pos { return s.Pos }
func (s *BreakStatement) Position() ast.Pos      { return s.Pos }
func (s *ExitStatement) Position() ast.Pos       { return s.Pos }
func (s *ReturnStatement) Position() ast.Pos     { return s.Pos }
func (s *IfStatement) Position() ast.Pos         { return s.Pos }
func (s *SwitchStatement) Position() ast.Pos     { return s.Pos }
func (s *ForStatement) Position() ast.Pos        { return s.Pos }
func (s *LoopStatement) Position() ast.Pos       { return s.Pos }
func (s *CallStatement) Position() ast.Pos       { return s.Pos }

func (*ReadStatement) statement()       {}
func (*WriteStatement) statement()      {}
func (*CheckpointStatement) statement() {}
func (*BreakStatement) statement()      {}
func (*ExitStatement) statement()       {}
func (*ReturnStatement) statement()     {}
func (*IfStatement) statement()         {}
func (*SwitchStatement) statement()     {}
func (*ForStatement) statement()        {}
func (*LoopStatement) statement()       {}
func (*CallStatement) statement()       {}

// Prototype is the signature shared by methods and callbacks.
type Prototype struct {
	Name           string
	Parameters     []*Variable
	HasReturnValue bool
	Pos            ast.Pos
}

// Signature renders the prototype as `function name(a, b[])`.
func (p *Prototype) Signature() string {
	kind := "procedure"
	if p.HasReturnValue {
		kind = "function"
	}
	params := make([]string, len(p.Parameters))
	for i, param := range p.Parameters {
		params[i] = param.Name + strings.Repeat("[]", param.Dimensions)
	}
	return fmt.Sprintf("%s %s(%s)", kind, p.Name, strings.Join(params, ", "))
}

// Method is a callable exposed to the evaluator.
type Method struct {
	Prototype
	Callbacks []*Callback
}

// HasCallbacks reports whether the method declares any callback.
func (m *Method) HasCallbacks() bool { return len(m.Callbacks) > 0 }

// Callback is a callable the process may invoke while a method runs.
// Index is the 1-based number used on the process wire.
type Callback struct {
	Prototype
	Index int
}

// CallbackImplementation is the body driven when the process invokes a
// callback during one call. Synthetic bodies are generated for callbacks the
// call site does not implement.
type CallbackImplementation struct {
	Callback   *Callback
	Parameters []*Variable
	Body       *Block
	Scope      *Scope
	Synthetic  bool
}

// RequestSet is a set of request identifiers: method names plus the
// markers below.
type RequestSet map[string]struct{}

const (
	// NoRequest means the node may complete without consuming a request,
	// falling through to whatever runs next.
	NoRequest = ""
	// BreakRequest means the node may leave the enclosing loop without
	// consuming a request.
	BreakRequest = "<break>"
	// CallbackReturnRequest identifies a callback_return request.
	CallbackReturnRequest = "<callback_return>"
	// MainEndRequest identifies the main_end request.
	MainEndRequest = "<main_end>"
)

func newRequestSet(ids ...string) RequestSet {
	s := make(RequestSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s RequestSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s RequestSet) union(o RequestSet) RequestSet {
	out := make(RequestSet, len(s)+len(o))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range o {
		out[k] = struct{}{}
	}
	return out
}

func (s RequestSet) without(ids ...string) RequestSet {
	out := make(RequestSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	for _, id := range ids {
		delete(out, id)
	}
	return out
}

// Sorted lists the identifiers in order, NoRequest rendered as "<none>".
func (s RequestSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		if k == NoRequest {
			k = "<none>"
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
