package idl

// group batches adjacent groupable nodes into steps. A node joins the open
// step while the union of directions stays within one; ungroupable nodes
// close the open step and stand alone.
func group(nodes []Node) []Node {
	var out, open []Node
	var dirs DirectionSet
	flush := func() {
		if len(open) > 0 {
			out = append(out, newStep(open))
		}
		open, dirs = nil, 0
	}

	for _, n := range nodes {
		info := n.Info()
		if !info.Groupable || info.Directions.Len() > 1 {
			flush()
			out = append(out, n)
			continue
		}
		if dirs.Union(info.Directions).Len() > 1 {
			flush()
		}
		open = append(open, n)
		dirs = dirs.Union(info.Directions)
	}
	flush()
	return out
}

// sequenceRequests is the first-request set of nodes run in order.
func sequenceRequests(nodes []Node) RequestSet {
	out := RequestSet{}
	for _, n := range nodes {
		set := n.Info().FirstRequests
		out = out.union(set.without(NoRequest))
		if !set.Has(NoRequest) {
			return out
		}
	}
	out[NoRequest] = struct{}{}
	return out
}

// combine folds the properties of children into a container's info.
func combine(children []Node) NodeInfo {
	info := NodeInfo{Groupable: true}
	for _, c := range children {
		ci := c.Info()
		info.Actions = append(info.Actions, ci.Actions...)
		info.Directions = info.Directions.Union(ci.Directions)
		info.Groupable = info.Groupable && ci.Groupable
		info.ConsumesRequests = info.ConsumesRequests || ci.ConsumesRequests
		info.Responds = info.Responds || ci.Responds
	}
	info.FirstRequests = sequenceRequests(children)
	return info
}

func newStep(children []Node) *Step {
	s := &Step{Children: children}
	s.info = combine(children)
	return s
}

func newBlockNode(nodes []Node) *BlockNode {
	b := &BlockNode{Children: group(nodes)}
	b.info = combine(nodes)
	return b
}

func loopIndices(ref *ReferenceExpr) []*Variable {
	var out []*Variable
	for _, index := range ref.Indices {
		if r, ok := index.(*ReferenceExpr); ok && r.Variable.IsIndex && len(r.Indices) == 0 {
			out = append(out, r.Variable)
		}
	}
	return out
}

func resolvedActions(exprs ...Expression) []ReferenceAction {
	var out []ReferenceAction
	for _, e := range exprs {
		for _, ref := range References(e) {
			out = append(out, ReferenceAction{Reference: ref.Reference(), Status: Resolved, LoopIndices: loopIndices(ref)})
		}
	}
	return out
}

func declaredAction(ref *ReferenceExpr) ReferenceAction {
	return ReferenceAction{Reference: ref.Reference(), Status: Declared, LoopIndices: ref.Variable.IndexedBy}
}

func newStatementNode(stmt Statement) *StatementNode {
	n := &StatementNode{Statement: stmt}
	info := NodeInfo{Groupable: true, FirstRequests: newRequestSet(NoRequest)}
	switch s := stmt.(type) {
	case *ReadStatement:
		info.Directions = info.Directions.With(Downward)
		for _, arg := range s.Args {
			info.Actions = append(info.Actions, declaredAction(arg))
			info.Actions = append(info.Actions, resolvedActions(arg.Indices...)...)
			info.Directions = info.Directions.With(arg.Variable.Direction)
		}
	case *WriteStatement:
		info.Directions = info.Directions.With(Upward)
		info.Actions = resolvedActions(s.Args...)
	case *CheckpointStatement:
		info.Directions = info.Directions.With(Upward)
	case *BreakStatement:
		info.FirstRequests = newRequestSet(BreakRequest)
	case *ExitStatement:
		info.Groupable = false
		info.FirstRequests = newRequestSet(MainEndRequest)
		info.ConsumesRequests = true
	case *ReturnStatement:
		info.Directions = info.Directions.With(Downward)
		info.Actions = resolvedActions(s.Value)
		info.FirstRequests = newRequestSet(CallbackReturnRequest)
		info.ConsumesRequests = true
	}
	n.info = info
	return n
}

func newCallArgumentsNode(call *CallStatement) *CallArgumentsNode {
	n := &CallArgumentsNode{Call: call}
	n.info = NodeInfo{
		Actions:          resolvedActions(call.Args...),
		Directions:       DirectionSet(0).With(Downward),
		Groupable:        true,
		FirstRequests:    newRequestSet(call.Method.Name),
		ConsumesRequests: true,
	}
	return n
}

func newCallCallbacksNode(call *CallStatement, bodies []*BlockNode) *CallCallbacksNode {
	n := &CallCallbacksNode{Call: call, Bodies: bodies}
	n.info = NodeInfo{
		Directions:       DirectionSet(0).With(Downward).With(Upward),
		FirstRequests:    newRequestSet(NoRequest),
		ConsumesRequests: true,
		Responds:         true,
	}
	return n
}

func newCallReturnNode(call *CallStatement) *CallReturnNode {
	n := &CallReturnNode{Call: call}
	n.info = NodeInfo{
		Directions:    DirectionSet(0).With(Upward),
		Groupable:     true,
		FirstRequests: newRequestSet(NoRequest),
		Responds:      true,
	}
	if call.Return != nil {
		n.info.Actions = append([]ReferenceAction{declaredAction(call.Return)}, resolvedActions(call.Return.Indices...)...)
	}
	return n
}

func newCallbackEndNode() *CallbackEndNode {
	n := &CallbackEndNode{}
	n.info = NodeInfo{
		Directions:       DirectionSet(0).With(Downward),
		Groupable:        true,
		FirstRequests:    newRequestSet(CallbackReturnRequest),
		ConsumesRequests: true,
	}
	return n
}

func newLookaheadNode() *RequestLookaheadNode {
	n := &RequestLookaheadNode{}
	n.info = NodeInfo{FirstRequests: newRequestSet(NoRequest)}
	return n
}

func controlInfo(ref *ReferenceExpr) NodeInfo {
	return NodeInfo{
		Actions:       resolvedActions(ref),
		FirstRequests: newRequestSet(NoRequest),
	}
}

// branchInfo is the info of a node choosing one of bodies at run time.
func branchInfo(cond Expression, bodies []*BlockNode) NodeInfo {
	info := NodeInfo{Actions: resolvedActions(cond), Groupable: true, FirstRequests: RequestSet{}}
	for _, b := range bodies {
		info.Actions = append(info.Actions, b.info.Actions...)
		info.Directions = info.Directions.Union(b.info.Directions)
		info.Groupable = info.Groupable && b.info.Groupable
		info.ConsumesRequests = info.ConsumesRequests || b.info.ConsumesRequests
		info.Responds = info.Responds || b.info.Responds
		info.FirstRequests = info.FirstRequests.union(b.info.FirstRequests)
	}
	info.Groupable = info.Groupable && info.Directions.Len() <= 1
	return info
}

func newIfNode(s *IfStatement, then, els *BlockNode) *IfNode {
	n := &IfNode{Cond: s.Cond, Then: then, Else: els}
	n.info = branchInfo(s.Cond, []*BlockNode{then, els})
	return n
}

func newSwitchNode(s *SwitchStatement, cases []*CaseNode) *SwitchNode {
	n := &SwitchNode{Value: s.Value, Cases: cases}
	bodies := make([]*BlockNode, len(cases))
	for i, cs := range cases {
		bodies[i] = cs.Body
	}
	n.info = branchInfo(s.Value, bodies)
	return n
}

func containsVariable(vs []*Variable, v *Variable) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

// newForNode computes the arrays the loop fills and whether it is a pure
// fill: every action in the body is subscripted by the loop index, so the
// iterations share no scalar state and the loop can join a step.
func newForNode(s *ForStatement, body *BlockNode) *ForNode {
	n := &ForNode{Index: s.Index, Range: s.Range, Body: body, Scope: s.Scope}

	info := NodeInfo{
		Actions:          resolvedActions(s.Range),
		Directions:       body.info.Directions,
		ConsumesRequests: body.info.ConsumesRequests,
		Responds:         body.info.Responds,
		FirstRequests:    body.info.FirstRequests.union(newRequestSet(NoRequest)),
	}

	pure := true
	seen := make(map[Reference]bool)
	for _, a := range body.info.Actions {
		v, k := a.Reference.Variable, a.Reference.IndexCount
		if v.IsIndex {
			continue
		}
		if k == 0 || !containsVariable(a.LoopIndices, s.Index) {
			pure = false
		}
		if a.Status == Declared && k >= 1 && k <= len(v.IndexedBy) && v.IndexedBy[k-1] == s.Index {
			fill := Reference{Variable: v, IndexCount: k - 1}
			if !seen[fill] {
				seen[fill] = true
				n.Fills = append(n.Fills, fill)
				info.Actions = append(info.Actions, ReferenceAction{
					Reference:   fill,
					Status:      Declared,
					LoopIndices: v.IndexedBy[:k-1],
				})
				info.Directions = info.Directions.With(v.Direction)
			}
		}
	}
	info.Actions = append(info.Actions, body.info.Actions...)
	info.Groupable = body.info.Groupable && pure && info.Directions.Len() <= 1
	n.info = info
	return n
}

// newLoopNode turns the breaks of the body into the fall-through of the loop.
// A body completing without a request starts over, so NoRequest stays out.
func newLoopNode(s *LoopStatement, body *BlockNode) *LoopNode {
	n := &LoopNode{Body: body, Scope: s.Scope}
	first := body.info.FirstRequests.without(NoRequest, BreakRequest)
	if body.info.FirstRequests.Has(BreakRequest) {
		first[NoRequest] = struct{}{}
	}
	n.info = NodeInfo{
		Actions:          body.info.Actions,
		Directions:       body.info.Directions,
		ConsumesRequests: body.info.ConsumesRequests,
		Responds:         body.info.Responds,
		FirstRequests:    first,
	}
	return n
}
