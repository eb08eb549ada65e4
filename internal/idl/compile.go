package idl

import (
	"fmt"
	"strings"

	"github.com/turingarena/turingarena-sub002/internal/idl/ast"
	"github.com/turingarena/turingarena-sub002/internal/idl/parser"
)

// Compile parses interface source and builds its typed, lowered form.
// A syntax failure is returned as *parser.SyntaxError; semantic problems do
// not fail compilation and are reported by Validate.
func Compile(text string) (*Interface, error) {
	tree, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		constants: make(map[string]*Constant),
		methods:   make(map[string]*Method),
	}
	iface := c.compileInterface(tree)
	lowerInterface(iface)
	return iface, nil
}

type frameKind int

const (
	frameMain frameKind = iota
	frameBlock
	frameFor
	frameLoop
	frameCallback
)

// frame is one level of the explicit scope stack.
type frame struct {
	kind  frameKind
	names map[string]*Variable
	index *Variable
	scope *Scope
}

type compiler struct {
	constants map[string]*Constant
	methods   map[string]*Method
	frames    []*frame

	// callback is set while compiling a callback body.
	callback  *Callback
	loops     int
	nextScope int

	globals     []*Variable
	diagnostics []Diagnostic
}

func (c *compiler) report(pos ast.Pos, code DiagnosticCode, args ...interface{}) {
	c.diagnostics = append(c.diagnostics, newDiagnostic(pos, code, args...))
}

func (c *compiler) newScope() *Scope {
	c.nextScope++
	return &Scope{ID: c.nextScope}
}

func (c *compiler) push(f *frame) {
	if f.names == nil {
		f.names = make(map[string]*Variable)
	}
	c.frames = append(c.frames, f)
}

func (c *compiler) pop() {
	c.frames = c.frames[:len(c.frames)-1]
}

// lookupVariable searches the scope stack. Callback bodies do not see the
// variables of main.
func (c *compiler) lookupVariable(name string) *Variable {
	for i := len(c.frames) - 1; i >= 0; i-- {
		f := c.frames[i]
		if v, ok := f.names[name]; ok {
			return v
		}
		if f.kind == frameCallback {
			break
		}
	}
	return nil
}

func (c *compiler) compileInterface(tree *ast.Interface) *Interface {
	iface := &Interface{methods: make(map[string]*Method)}

	for _, decl := range tree.Constants {
		if _, dup := c.constants[decl.Name]; dup {
			c.report(decl.Pos, NameRedeclared, decl.Name)
			continue
		}
		constant := &Constant{Name: decl.Name, Value: decl.Value, Pos: decl.Pos}
		c.constants[decl.Name] = constant
		iface.Constants = append(iface.Constants, constant)
	}

	for _, decl := range tree.Methods {
		_, isConstant := c.constants[decl.Name]
		if _, dup := c.methods[decl.Name]; dup || isConstant {
			c.report(decl.Pos, NameRedeclared, decl.Name)
			continue
		}
		method := c.compileMethod(decl)
		c.methods[decl.Name] = method
		iface.methods[decl.Name] = method
		iface.Methods = append(iface.Methods, method)
	}

	c.push(&frame{kind: frameMain})
	iface.Main = c.compileBlock(tree.Main.Statements)
	c.pop()

	iface.Globals = c.globals
	iface.diagnostics = c.diagnostics
	return iface
}

func (c *compiler) compilePrototype(decl *ast.Method) Prototype {
	proto := Prototype{Name: decl.Name, HasReturnValue: decl.IsFunction, Pos: decl.Pos}
	seen := make(map[string]bool)
	for _, param := range decl.Params {
		if seen[param.Name] {
			c.report(param.Pos, NameRedeclared, param.Name)
			continue
		}
		seen[param.Name] = true
		proto.Parameters = append(proto.Parameters, &Variable{
			Name:       param.Name,
			Dimensions: param.Dimensions,
			Pos:        param.Pos,
		})
	}
	return proto
}

func (c *compiler) compileMethod(decl *ast.Method) *Method {
	method := &Method{Prototype: c.compilePrototype(decl)}
	seen := make(map[string]bool)
	for _, cbDecl := range decl.Callbacks {
		if seen[cbDecl.Name] {
			c.report(cbDecl.Pos, NameRedeclared, cbDecl.Name)
			continue
		}
		seen[cbDecl.Name] = true
		for _, param := range cbDecl.Params {
			if param.Dimensions > 0 {
				c.report(param.Pos, CallbackParametersMustBeScalars, param.Name, cbDecl.Name)
			}
		}
		method.Callbacks = append(method.Callbacks, &Callback{
			Prototype: c.compilePrototype(cbDecl),
			Index:     len(method.Callbacks) + 1,
		})
	}
	return method
}

// compileBlock compiles statements into the current (already pushed) frame.
// Statements after a break, exit or return are reported and dropped.
func (c *compiler) compileBlock(stmts []ast.Statement) *Block {
	block := &Block{}
	terminated := false
	for _, stmt := range stmts {
		if terminated {
			c.report(stmt.Position(), UnreachableCode)
			break
		}
		switch stmt.(type) {
		case *ast.BreakStmt, *ast.ExitStmt, *ast.ReturnStmt:
			terminated = true
		}
		if compiled := c.compileStatement(stmt); compiled != nil {
			block.Statements = append(block.Statements, compiled)
		}
	}
	return block
}

func (c *compiler) compileNested(kind frameKind, stmts []ast.Statement) *Block {
	c.push(&frame{kind: kind})
	defer c.pop()
	return c.compileBlock(stmts)
}

func (c *compiler) compileStatement(stmt ast.Statement) Statement {
	switch s := stmt.(type) {
	case *ast.ReadStmt:
		out := &ReadStatement{Pos: s.Pos}
		for _, arg := range s.Args {
			if ref := c.declareReference(arg, Downward, true); ref != nil {
				out.Args = append(out.Args, ref)
			}
		}
		if len(out.Args) == 0 {
			return nil
		}
		return out

	case *ast.WriteStmt:
		out := &WriteStatement{Pos: s.Pos}
		for _, arg := range s.Args {
			if e := c.compileScalar(arg); e != nil {
				out.Args = append(out.Args, e)
			}
		}
		if len(out.Args) == 0 {
			return nil
		}
		return out

	case *ast.CheckpointStmt:
		return &CheckpointStatement{Pos: s.Pos}

	case *ast.ExitStmt:
		return &ExitStatement{Pos: s.Pos}

	case *ast.BreakStmt:
		if c.loops == 0 {
			c.report(s.Pos, BreakOutsideLoop)
			return nil
		}
		return &BreakStatement{Pos: s.Pos}

	case *ast.ReturnStmt:
		return c.compileReturn(s)

	case *ast.IfStmt:
		out := &IfStatement{Pos: s.Pos, Cond: c.compileScalar(s.Cond)}
		out.Then = c.compileNested(frameBlock, s.Then.Statements)
		if s.Else != nil {
			out.Else = c.compileNested(frameBlock, s.Else.Statements)
		}
		if out.Cond == nil {
			return nil
		}
		return out

	case *ast.SwitchStmt:
		return c.compileSwitch(s)

	case *ast.ForStmt:
		return c.compileFor(s)

	case *ast.LoopStmt:
		scope := c.newScope()
		c.loops++
		c.push(&frame{kind: frameLoop, scope: scope})
		body := c.compileBlock(s.Body.Statements)
		c.pop()
		c.loops--
		return &LoopStatement{Pos: s.Pos, Body: body, Scope: scope}

	case *ast.CallStmt:
		return c.compileCall(s)
	}
	panic(fmt.Sprintf("idl: unhandled statement %T", stmt))
}

func (c *compiler) compileReturn(s *ast.ReturnStmt) Statement {
	if c.callback == nil {
		c.report(s.Pos, ReturnOutsideCallback)
		return nil
	}
	if !c.callback.HasReturnValue {
		c.report(s.Pos, ReturnInProcedure, c.callback.Name)
		return nil
	}
	value := c.compileExpr(s.Value)
	if value == nil {
		return nil
	}
	if value.Dimensions() > 0 {
		c.report(s.Value.Position(), ReturnValueNotScalar, exprString(s.Value))
		return nil
	}
	return &ReturnStatement{Pos: s.Pos, Value: value}
}

func (c *compiler) compileSwitch(s *ast.SwitchStmt) Statement {
	value := c.compileScalar(s.Value)
	if len(s.Cases) == 0 {
		c.report(s.Pos, EmptySwitchBody, exprString(s.Value))
		return nil
	}

	out := &SwitchStatement{Pos: s.Pos, Value: value}
	seen := make(map[int64]bool)
	for _, cs := range s.Cases {
		compiled := &SwitchCase{Pos: cs.Pos}
		for _, label := range cs.Labels {
			v, ok := c.labelValue(label)
			if !ok {
				c.report(label.Position(), InvalidCaseLabel, exprString(label))
				continue
			}
			if seen[v] {
				c.report(label.Position(), DuplicatedCaseLabel, v)
				continue
			}
			seen[v] = true
			compiled.Labels = append(compiled.Labels, v)
		}
		compiled.Body = c.compileNested(frameBlock, cs.Body.Statements)
		if len(compiled.Labels) > 0 {
			out.Cases = append(out.Cases, compiled)
		}
	}
	if value == nil || len(out.Cases) == 0 {
		return nil
	}
	return out
}

func (c *compiler) labelValue(label ast.Expr) (int64, bool) {
	switch l := label.(type) {
	case *ast.IntLit:
		return l.Value, true
	case *ast.Ident:
		if constant, ok := c.constants[l.Name]; ok && c.lookupVariable(l.Name) == nil {
			return constant.Value, true
		}
	}
	return 0, false
}

func (c *compiler) compileFor(s *ast.ForStmt) Statement {
	rng := c.compileScalar(s.Range)

	if c.isNameTaken(s.Index) {
		c.report(s.IndexPos, VariableReused, s.Index)
	}
	scope := c.newScope()
	index := &Variable{Name: s.Index, IsIndex: true, Owner: scope, Pos: s.IndexPos}

	c.push(&frame{kind: frameFor, index: index, scope: scope})
	c.frames[len(c.frames)-1].names[s.Index] = index
	body := c.compileBlock(s.Body.Statements)
	c.pop()

	if rng == nil {
		return nil
	}
	return &ForStatement{Pos: s.Pos, Index: index, Range: rng, Body: body, Scope: scope}
}

func (c *compiler) compileCall(s *ast.CallStmt) Statement {
	method := c.methods[s.Name]
	args := make([]Expression, 0, len(s.Args))
	valid := true
	for _, arg := range s.Args {
		e := c.compileExpr(arg)
		if e == nil {
			valid = false
		}
		args = append(args, e)
	}

	if method == nil {
		c.report(s.NamePos, MethodNotDeclared, s.Name)
		return nil
	}
	if c.callback != nil {
		c.report(s.Pos, CallInsideCallback, s.Name)
		return nil
	}

	if len(args) != len(method.Parameters) {
		c.report(s.NamePos, CallWrongArgsNumber, s.Name, len(method.Parameters), len(args))
		valid = false
	} else {
		for i, arg := range args {
			if arg == nil {
				continue
			}
			if want, got := method.Parameters[i].Dimensions, arg.Dimensions(); want != got {
				c.report(s.Args[i].Position(), CallWrongArgsType, i+1, s.Name, want, got)
				valid = false
			}
		}
	}

	out := &CallStatement{Pos: s.Pos, Method: method, Args: args}
	switch {
	case method.HasReturnValue && s.Return == nil:
		c.report(s.Pos, CallNoReturnExpression, s.Name)
		valid = false
	case !method.HasReturnValue && s.Return != nil:
		c.report(s.Return.Position(), CallReturnExpression, s.Name)
		valid = false
	case s.Return != nil:
		out.Return = c.declareReference(s.Return, Upward, false)
		if out.Return == nil {
			valid = false
		}
	}

	if s.HasCallbacks && !method.HasCallbacks() {
		c.report(s.Pos, UnexpectedCallbacks, s.Name)
		valid = false
	}
	impls := make(map[string]*ast.CallbackImpl)
	for _, impl := range s.Callbacks {
		if _, dup := impls[impl.Name]; dup {
			c.report(impl.Pos, NameRedeclared, impl.Name)
			continue
		}
		impls[impl.Name] = impl
		if method.HasCallbacks() && findCallback(method, impl.Name) == nil {
			c.report(impl.Pos, CallbackNotDeclared, impl.Name, s.Name)
		}
	}
	for _, cb := range method.Callbacks {
		out.Callbacks = append(out.Callbacks, c.compileCallback(cb, impls[cb.Name]))
	}
	if method.HasCallbacks() {
		out.Accepted = &Variable{Name: "accepts_callbacks:" + method.Name, Pos: s.Pos}
	}

	if !valid {
		return nil
	}
	return out
}

func findCallback(m *Method, name string) *Callback {
	for _, cb := range m.Callbacks {
		if cb.Name == name {
			return cb
		}
	}
	return nil
}

// compileCallback compiles the body the driver runs when the process
// invokes cb. Without a call-site implementation, a function echoes the
// evaluator's return value and a procedure does nothing.
func (c *compiler) compileCallback(cb *Callback, impl *ast.CallbackImpl) *CallbackImplementation {
	scope := c.newScope()
	out := &CallbackImplementation{Callback: cb, Scope: scope}

	savedCallback, savedLoops := c.callback, c.loops
	c.callback, c.loops = cb, 0
	c.push(&frame{kind: frameCallback, scope: scope})
	defer func() {
		c.pop()
		c.callback, c.loops = savedCallback, savedLoops
	}()

	names := make([]string, len(cb.Parameters))
	positions := make([]ast.Pos, len(cb.Parameters))
	for i, param := range cb.Parameters {
		names[i], positions[i] = param.Name, param.Pos
	}
	if impl != nil {
		if len(impl.Params) != len(cb.Parameters) {
			c.report(impl.Pos, CallWrongArgsNumber, cb.Name, len(cb.Parameters), len(impl.Params))
		}
		for i := 0; i < len(names) && i < len(impl.Params); i++ {
			names[i], positions[i] = impl.Params[i].Name, impl.Params[i].Pos
		}
	}

	top := c.frames[len(c.frames)-1]
	for i, name := range names {
		if _, dup := top.names[name]; dup {
			c.report(positions[i], NameRedeclared, name)
		}
		param := &Variable{Name: name, Direction: Upward, Owner: scope, Pos: positions[i]}
		top.names[name] = param
		out.Parameters = append(out.Parameters, param)
	}

	if impl == nil {
		out.Synthetic = true
		out.Body = &Block{}
		if cb.HasReturnValue {
			ret := &Variable{Name: "ret", Direction: Downward, Owner: scope, Pos: cb.Pos}
			ref := &ReferenceExpr{Variable: ret, Pos: cb.Pos}
			out.Body.Statements = []Statement{
				&ReadStatement{Pos: cb.Pos, Args: []*ReferenceExpr{ref}},
				&ReturnStatement{Pos: cb.Pos, Value: ref},
			}
		}
		return out
	}

	out.Body = c.compileBlock(impl.Body.Statements)
	if cb.HasReturnValue && !endsWithReturn(out.Body) {
		c.report(impl.Pos, MissingReturn, cb.Name)
	}
	return out
}

func endsWithReturn(b *Block) bool {
	if b == nil || len(b.Statements) == 0 {
		return false
	}
	switch s := b.Statements[len(b.Statements)-1].(type) {
	case *ReturnStatement:
		return true
	case *IfStatement:
		return s.Else != nil && endsWithReturn(s.Then) && endsWithReturn(s.Else)
	case *SwitchStatement:
		for _, cs := range s.Cases {
			if !endsWithReturn(cs.Body) {
				return false
			}
		}
		return len(s.Cases) > 0
	}
	return false
}

func (c *compiler) isNameTaken(name string) bool {
	if c.lookupVariable(name) != nil {
		return true
	}
	_, isConstant := c.constants[name]
	return isConstant
}

// splitSubscripts returns the base identifier and the subscripts of e,
// outermost first.
func splitSubscripts(e ast.Expr) (*ast.Ident, []ast.Expr) {
	var indices []ast.Expr
	for {
		switch x := e.(type) {
		case *ast.Subscript:
			indices = append([]ast.Expr{x.Index}, indices...)
			e = x.Array
		case *ast.Ident:
			return x, indices
		default:
			return nil, indices
		}
	}
}

// declareReference introduces the variable named by e. Its subscripts must
// be the indices of the innermost enclosing for loops, outermost first.
func (c *compiler) declareReference(e ast.Expr, dir Direction, isRead bool) *ReferenceExpr {
	base, indices := splitSubscripts(e)
	if base == nil {
		c.report(e.Position(), ExpressionNotScalar, exprString(e))
		return nil
	}
	if c.isNameTaken(base.Name) {
		c.report(base.Pos, VariableReused, base.Name)
		return nil
	}

	k := len(indices)
	var fors []*frame
	var owner *Scope
	ownerFrame := len(c.frames) - 1
	onlyFors := true
walk:
	for i := len(c.frames) - 1; i >= 0; i-- {
		f := c.frames[i]
		switch f.kind {
		case frameFor:
			if len(fors) < k {
				fors = append(fors, f)
				ownerFrame = i - 1
				continue
			}
			owner = f.scope
			break walk
		case frameLoop, frameCallback:
			onlyFors = false
			owner = f.scope
			break walk
		case frameBlock:
			onlyFors = false
		case frameMain:
			break walk
		}
	}

	if len(fors) < k {
		c.report(indices[len(fors)].Position(), UnexpectedArrayIndex, exprString(indices[len(fors)]))
		return nil
	}

	v := &Variable{Name: base.Name, Dimensions: k, Direction: dir, Owner: owner, Pos: base.Pos}
	ref := &ReferenceExpr{Variable: v, Pos: e.Position()}
	for q, index := range indices {
		expected := fors[k-1-q].index
		ident, ok := index.(*ast.Ident)
		if !ok || ident.Name != expected.Name {
			c.report(index.Position(), WrongArrayIndex, exprString(index), expected.Name)
			return nil
		}
		v.IndexedBy = append(v.IndexedBy, expected)
		ref.Indices = append(ref.Indices, &ReferenceExpr{Variable: expected, Pos: ident.Pos})
	}

	if ownerFrame < 0 {
		ownerFrame = 0
	}
	c.frames[ownerFrame].names[base.Name] = v

	if isRead && c.callback == nil && owner == nil && onlyFors {
		c.globals = append(c.globals, v)
	}
	return ref
}

func (c *compiler) compileScalar(e ast.Expr) Expression {
	out := c.compileExpr(e)
	if out != nil && out.Dimensions() > 0 {
		c.report(e.Position(), ExpressionNotScalar, exprString(e))
		return nil
	}
	return out
}

func (c *compiler) compileExpr(e ast.Expr) Expression {
	switch x := e.(type) {
	case *ast.IntLit:
		return &IntLiteral{Value: x.Value}

	case *ast.Compare:
		left, right := c.compileScalar(x.Left), c.compileScalar(x.Right)
		if left == nil || right == nil {
			return nil
		}
		return &Comparison{Op: x.Op, Left: left, Right: right}

	case *ast.Ident, *ast.Subscript:
		base, indices := splitSubscripts(e)
		if base == nil {
			c.report(e.Position(), ExpressionNotScalar, exprString(e))
			return nil
		}
		v := c.lookupVariable(base.Name)
		if v == nil {
			if constant, ok := c.constants[base.Name]; ok {
				if len(indices) > 0 {
					c.report(indices[0].Position(), UnexpectedArrayIndex, exprString(indices[0]))
					return nil
				}
				return &ConstantRef{Constant: constant}
			}
			c.report(base.Pos, UndeclaredVariable, base.Name)
			return nil
		}
		if len(indices) > v.Dimensions {
			extra := indices[v.Dimensions]
			c.report(extra.Position(), UnexpectedArrayIndex, exprString(extra))
			return nil
		}
		ref := &ReferenceExpr{Variable: v, Pos: e.Position()}
		for _, index := range indices {
			compiled := c.compileScalar(index)
			if compiled == nil {
				return nil
			}
			ref.Indices = append(ref.Indices, compiled)
		}
		return ref
	}
	panic(fmt.Sprintf("idl: unhandled expression %T", e))
}

func exprString(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.IntLit:
		return fmt.Sprint(x.Value)
	case *ast.Ident:
		return x.Name
	case *ast.Subscript:
		return exprString(x.Array) + "[" + exprString(x.Index) + "]"
	case *ast.Compare:
		return strings.Join([]string{exprString(x.Left), x.Op, exprString(x.Right)}, " ")
	}
	return "?"
}
