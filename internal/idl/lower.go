package idl

import (
	"fmt"
	"strings"

	"github.com/turingarena/turingarena-sub002/internal/idl/ast"
)

// lowerer expands compiled statements into intermediate nodes and groups
// them into steps. resolved tracks the downward variables whose value the
// driver is sure to know at the current point.
type lowerer struct {
	resolved    map[*Variable]bool
	diagnostics []Diagnostic
	// resolutions maps each if/switch node preceded by a resolve node to
	// that resolution, settled once the whole tree is lowered.
	resolutions map[Node]*resolution
}

// resolution is a branch choice made from the pending request.
type resolution struct {
	pos     ast.Pos
	what    string
	resolve Node
}

func lowerInterface(iface *Interface) {
	l := &lowerer{
		resolved:    make(map[*Variable]bool),
		resolutions: make(map[Node]*resolution),
	}
	for _, g := range iface.Globals {
		l.resolved[g] = true
	}

	nodes := []Node{newStatementNode(&CheckpointStatement{})}
	nodes = append(nodes, l.lowerStatements(iface.Main.Statements)...)
	nodes = append(nodes, newStatementNode(&ExitStatement{}))
	iface.root = newBlockNode(nodes)
	l.settle(iface.root.Children, newRequestSet(MainEndRequest), RequestSet{})
	iface.diagnostics = append(iface.diagnostics, l.diagnostics...)
}

// intersectResolved keeps what every branch resolved.
func intersectResolved(branches []map[*Variable]bool) map[*Variable]bool {
	out := make(map[*Variable]bool)
	if len(branches) == 0 {
		return out
	}
	for v := range branches[0] {
		all := true
		for _, b := range branches[1:] {
			if !b[v] {
				all = false
				break
			}
		}
		if all {
			out[v] = true
		}
	}
	return out
}

// lowerBranch lowers a nested block from the resolution state before it and
// reports what it resolved.
func (l *lowerer) lowerBranch(before map[*Variable]bool, b *Block) (*BlockNode, map[*Variable]bool) {
	l.resolved = copyResolved(before)
	var stmts []Statement
	if b != nil {
		stmts = b.Statements
	}
	node := newBlockNode(l.lowerStatements(stmts))
	return node, l.resolved
}

func copyResolved(m map[*Variable]bool) map[*Variable]bool {
	out := make(map[*Variable]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// unresolved lists the downward variables in e the driver cannot know yet.
func (l *lowerer) unresolved(e Expression) []*ReferenceExpr {
	var out []*ReferenceExpr
	for _, ref := range References(e) {
		v := ref.Variable
		if v.IsIndex || v.Direction != Downward || l.resolved[v] {
			continue
		}
		out = append(out, ref)
	}
	return out
}

func (l *lowerer) report(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
}

func (l *lowerer) lowerStatements(stmts []Statement) []Node {
	var nodes []Node
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ReadStatement, *WriteStatement, *CheckpointStatement, *BreakStatement, *ExitStatement:
			nodes = append(nodes, newStatementNode(s))

		case *ReturnStatement:
			nodes = append(nodes, newStatementNode(s))
			if ref, ok := s.Value.(*ReferenceExpr); ok && ref.IsDirect() {
				l.resolved[ref.Variable] = true
			}

		case *CallStatement:
			nodes = append(nodes, l.lowerCall(s)...)

		case *IfStatement:
			nodes = l.lowerIf(nodes, s)

		case *SwitchStatement:
			nodes = l.lowerSwitch(nodes, s)

		case *ForStatement:
			before := copyResolved(l.resolved)
			body, _ := l.lowerBranch(before, s.Body)
			l.resolved = before
			node := newForNode(s, body)
			if len(l.unresolved(s.Range)) > 0 && body.info.ConsumesRequests {
				l.report(newDiagnostic(s.Pos, UnresolvableCondition, ExpressionString(s.Range)))
			}
			nodes = append(nodes, node)

		case *LoopStatement:
			before := copyResolved(l.resolved)
			body, _ := l.lowerBranch(before, s.Body)
			l.resolved = before
			nodes = append(nodes, newLoopNode(s, body))

		default:
			panic(fmt.Sprintf("idl: unhandled statement %T", stmt))
		}
	}
	return nodes
}

func (l *lowerer) lowerCall(s *CallStatement) []Node {
	nodes := []Node{newCallArgumentsNode(s)}
	for _, arg := range s.Args {
		if ref, ok := arg.(*ReferenceExpr); ok && ref.IsDirect() {
			l.resolved[ref.Variable] = true
		}
	}

	if s.Method.HasCallbacks() {
		bodies := make([]*BlockNode, len(s.Callbacks))
		saved := l.resolved
		for i, impl := range s.Callbacks {
			l.resolved = make(map[*Variable]bool)
			children := l.lowerStatements(impl.Body.Statements)
			if !impl.Callback.HasReturnValue {
				children = append(children, newCallbackEndNode())
			}
			bodies[i] = newBlockNode(children)
		}
		l.resolved = saved
		nodes = append(nodes,
			newCallCallbacksNode(s, bodies),
			newStatementNode(&WriteStatement{Pos: s.Pos, Args: []Expression{&IntLiteral{Value: 0}}}),
		)
	}

	if s.Method.HasReturnValue || s.Method.HasCallbacks() {
		nodes = append(nodes, newCallReturnNode(s))
	}
	return nodes
}

// hoist inserts the lookahead pair above the read declaring v, moving it
// past the nodes in between. A peek consumes nothing, so it may precede any
// node that neither consumes a request nor answers the evaluator. It
// reports false when such a node, or the start of the block, comes first.
func hoist(nodes []Node, v *Variable, pair ...Node) ([]Node, bool) {
	at := len(nodes)
	for {
		if at == 0 {
			return nodes, false
		}
		info := nodes[at-1].Info()
		if declares(info, v) {
			at--
			break
		}
		if info.ConsumesRequests || info.Responds {
			return nodes, false
		}
		at--
	}
	out := make([]Node, 0, len(nodes)+len(pair))
	out = append(out, nodes[:at]...)
	out = append(out, pair...)
	return append(out, nodes[at:]...), true
}

func declares(info *NodeInfo, v *Variable) bool {
	for _, a := range info.Actions {
		if a.Status == Declared && a.Reference.Variable == v && a.Reference.IndexCount == 0 {
			return true
		}
	}
	return false
}

// resolvable returns the condition as a reference the resolve node can
// assign, reporting when the condition needs resolving but cannot be.
func (l *lowerer) resolvable(cond Expression, diag Diagnostic) (*ReferenceExpr, bool) {
	if len(l.unresolved(cond)) == 0 {
		return nil, false
	}
	ref, ok := cond.(*ReferenceExpr)
	if !ok || !ref.IsDirect() || ref.Dimensions() != 0 {
		l.report(diag)
		return nil, false
	}
	return ref, true
}

// resolveBefore places the lookahead and resolve nodes for a branch on ref.
func (l *lowerer) resolveBefore(nodes []Node, ref *ReferenceExpr, resolve Node, diag Diagnostic) ([]Node, bool) {
	out, ok := hoist(nodes, ref.Variable, newLookaheadNode(), resolve)
	if !ok {
		l.report(diag)
	}
	return out, ok
}

func (l *lowerer) lowerIf(nodes []Node, s *IfStatement) []Node {
	unresolvable := newDiagnostic(s.Pos, UnresolvableCondition, ExpressionString(s.Cond))
	ref, needsResolve := l.resolvable(s.Cond, unresolvable)
	var resolve *ResolveIfNode
	if needsResolve {
		resolve = &ResolveIfNode{Cond: ref}
		resolve.info = controlInfo(ref)
		nodes, needsResolve = l.resolveBefore(nodes, ref, resolve, unresolvable)
		l.resolved[ref.Variable] = true
	}

	before := copyResolved(l.resolved)
	then, thenResolved := l.lowerBranch(before, s.Then)
	els, elseResolved := l.lowerBranch(before, s.Else)
	l.resolved = intersectResolved([]map[*Variable]bool{thenResolved, elseResolved})

	node := newIfNode(s, then, els)
	if needsResolve {
		l.resolutions[node] = &resolution{pos: s.Pos, what: ExpressionString(s.Cond), resolve: resolve}
	}
	return append(nodes, node)
}

func (l *lowerer) lowerSwitch(nodes []Node, s *SwitchStatement) []Node {
	unresolvable := newDiagnostic(s.Pos, UnresolvableCondition, ExpressionString(s.Value))
	ref, needsResolve := l.resolvable(s.Value, unresolvable)
	var resolve *ResolveSwitchNode
	if needsResolve {
		resolve = &ResolveSwitchNode{Value: ref}
		resolve.info = controlInfo(ref)
		for _, cs := range s.Cases {
			resolve.Cases = append(resolve.Cases, ResolveCase{Label: cs.Labels[0]})
		}
		nodes, needsResolve = l.resolveBefore(nodes, ref, resolve, unresolvable)
		l.resolved[ref.Variable] = true
	}

	before := copyResolved(l.resolved)
	cases := make([]*CaseNode, len(s.Cases))
	branchResolved := make([]map[*Variable]bool, len(s.Cases))
	for i, cs := range s.Cases {
		body, resolved := l.lowerBranch(before, cs.Body)
		cases[i] = &CaseNode{Labels: cs.Labels, Body: body}
		branchResolved[i] = resolved
	}
	l.resolved = intersectResolved(branchResolved)

	node := newSwitchNode(s, cases)
	if needsResolve {
		l.resolutions[node] = &resolution{pos: s.Pos, what: ExpressionString(s.Value), resolve: resolve}
	}
	return append(nodes, node)
}

// firstAfter is the set of requests consumed first by nodes when next is
// what the requests after them start with and brk what follows a break.
func firstAfter(nodes []Node, next, brk RequestSet) RequestSet {
	out := RequestSet{}
	for _, n := range nodes {
		set := n.Info().FirstRequests
		out = out.union(set.without(NoRequest, BreakRequest))
		if set.Has(BreakRequest) {
			out = out.union(brk)
		}
		if !set.Has(NoRequest) {
			return out
		}
	}
	return out.union(next)
}

// settle walks the lowered tree knowing what follows every node, fills the
// request sets of the resolve nodes and reports the branch choices one
// request cannot make.
func (l *lowerer) settle(nodes []Node, next, brk RequestSet) {
	for i, n := range nodes {
		after := firstAfter(nodes[i+1:], next, brk)
		switch n := n.(type) {
		case *Step:
			l.settle(n.Children, after, brk)
		case *BlockNode:
			l.settle(n.Children, after, brk)
		case *IfNode:
			l.settleBranches(n, []*BlockNode{n.Then, n.Else}, after, brk)
		case *SwitchNode:
			bodies := make([]*BlockNode, len(n.Cases))
			for j, cs := range n.Cases {
				bodies[j] = cs.Body
			}
			l.settleBranches(n, bodies, after, brk)
		case *ForNode:
			again := firstAfter(n.Body.Children, RequestSet{}, brk)
			l.settle(n.Body.Children, again.union(after), brk)
		case *LoopNode:
			again := firstAfter(n.Body.Children, RequestSet{}, after)
			l.settle(n.Body.Children, again, after)
		case *CallCallbacksNode:
			for _, body := range n.Bodies {
				l.settle(body.Children, newRequestSet(CallbackReturnRequest), RequestSet{})
			}
		}
	}
}

func (l *lowerer) settleBranches(n Node, bodies []*BlockNode, next, brk RequestSet) {
	sets := make([]RequestSet, len(bodies))
	for i, b := range bodies {
		l.settle(b.Children, next, brk)
		sets[i] = firstAfter(b.Children, next, brk)
	}
	r := l.resolutions[n]
	if r == nil {
		return
	}

	seen := RequestSet{}
	ambiguous := RequestSet{}
	for _, set := range sets {
		ambiguous = ambiguous.union(intersect(seen, set))
		seen = seen.union(set)
	}
	if len(ambiguous) > 0 {
		l.report(newDiagnostic(r.pos, AmbiguousBranchResolution, r.what, describeRequests(ambiguous)))
	}
	switch resolve := r.resolve.(type) {
	case *ResolveIfNode:
		resolve.Then, resolve.Else = sets[0], sets[1]
	case *ResolveSwitchNode:
		for i := range resolve.Cases {
			resolve.Cases[i].Requests = sets[i]
		}
	}
}

func intersect(a, b RequestSet) RequestSet {
	out := RequestSet{}
	for k := range a {
		if b.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

func describeRequests(s RequestSet) string {
	return strings.Join(s.Sorted(), ", ")
}
