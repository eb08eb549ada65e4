package driver

import (
	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// drive runs one node. Groupable nodes reached without a phase run as a
// batch of their own.
func (d *driver) drive(c execContext, n idl.Node) (ExecutionResult, error) {
	if c.phase == PhaseNone && n.Info().Groupable {
		if _, isBlock := n.(*idl.BlockNode); !isBlock {
			return d.driveBatch(c, n)
		}
	}

	switch n := n.(type) {
	case *idl.BlockNode:
		return d.driveSequence(c, n.Children)
	case *idl.Step:
		return d.driveSequence(c, n.Children)
	case *idl.StatementNode:
		return d.driveStatement(c, n.Statement)
	case *idl.CallArgumentsNode:
		return d.driveCallArguments(c, n)
	case *idl.CallCallbacksNode:
		return d.driveCallCallbacks(c, n)
	case *idl.CallReturnNode:
		return d.driveCallReturn(c, n)
	case *idl.CallbackEndNode:
		return d.driveCallbackEnd(c)
	case *idl.RequestLookaheadNode:
		return d.driveLookahead(c)
	case *idl.ResolveIfNode:
		return d.driveResolveIf(c, n)
	case *idl.ResolveSwitchNode:
		return d.driveResolveSwitch(c, n)
	case *idl.IfNode:
		return d.driveIf(c, n)
	case *idl.SwitchNode:
		return d.driveSwitch(c, n)
	case *idl.ForNode:
		return d.driveFor(c, n)
	case *idl.LoopNode:
		return d.driveLoop(c, n)
	}
	return ExecutionResult{}, errors.Newf(errors.InternalDriverError, "unhandled node %T", n)
}

// driveBatch runs n in the resolved phase, then again in the declared phase
// over the learned bindings. The second pass must not learn anything new.
func (d *driver) driveBatch(c execContext, n idl.Node) (ExecutionResult, error) {
	d.run.report.Steps++
	scope := c.bindings.Child()
	resolved, err := d.drive(c.withPhase(PhaseResolved).withBindings(scope), n)
	if err != nil {
		return ExecutionResult{}, err
	}
	scope.Apply(resolved.Assignments)

	declared, err := d.drive(c.withPhase(PhaseDeclared).withBindings(scope).withPending(resolved.Lookahead), n)
	if err != nil {
		return ExecutionResult{}, err
	}
	if len(declared.Assignments) > 0 {
		return ExecutionResult{}, errors.Newf(errors.InternalDriverError,
			"declared pass assigned %v", declared.Assignments)
	}
	return ExecutionResult{
		Assignments: resolved.Assignments,
		Lookahead:   declared.Lookahead,
		DoesBreak:   resolved.DoesBreak || declared.DoesBreak,
	}, nil
}

// driveSequence runs children in order, each seeing what the previous ones
// assigned, and stops after a break.
func (d *driver) driveSequence(c execContext, children []idl.Node) (ExecutionResult, error) {
	scope := c.bindings.Child()
	acc := c.result()
	for _, child := range children {
		if err := c.ctx.Err(); err != nil {
			return ExecutionResult{}, errors.Wrap(err, errors.Timeout)
		}
		r, err := d.drive(c.withBindings(scope).withPending(acc.Lookahead), child)
		if err != nil {
			return ExecutionResult{}, err
		}
		scope.Apply(r.Assignments)
		acc.Assignments = append(acc.Assignments, r.Assignments...)
		acc.Lookahead = r.Lookahead
		if r.DoesBreak {
			acc.DoesBreak = true
			break
		}
	}
	return acc, nil
}

// scalar evaluates a condition or range. In the resolved pass an unknown
// value means the node is skipped until the declared pass.
func (d *driver) scalar(c execContext, e idl.Expression) (value int64, skip bool, err error) {
	v, bound, err := c.evaluate(e)
	if err != nil {
		return 0, false, err
	}
	if !bound {
		if c.phase == PhaseResolved {
			return 0, true, nil
		}
		return 0, false, errors.Newf(errors.ValueNotDetermined, "value of %s is not determined", idl.ExpressionString(e))
	}
	if v.IsArray() {
		return 0, false, errors.Newf(errors.InternalDriverError, "%s is not a scalar", idl.ExpressionString(e))
	}
	return v.Int(), false, nil
}

type fill struct {
	values  []proxy.Value
	present int
}

func (d *driver) driveFor(c execContext, n *idl.ForNode) (ExecutionResult, error) {
	acc := c.result()
	count, skip, err := d.scalar(c, n.Range)
	if err != nil || skip {
		return acc, err
	}
	if count < 0 {
		return ExecutionResult{}, errors.Newf(errors.InvalidValue, "negative range %d for %s", count, n.Index.Name)
	}

	loopScope := c.bindings.Child()
	fills := make(map[idl.Reference]*fill)
	var order []idl.Reference
	for i := int64(0); i < count; i++ {
		iter := loopScope.Child()
		iter.set(idl.Reference{Variable: n.Index}, proxy.Scalar(i))
		r, err := d.drive(c.withBindings(iter).withPending(acc.Lookahead), n.Body)
		if err != nil {
			return ExecutionResult{}, err
		}
		for _, a := range r.Assignments {
			v, k := a.Reference.Variable, a.Reference.IndexCount
			switch {
			case k >= 1 && k <= len(v.IndexedBy) && v.IndexedBy[k-1] == n.Index:
				up := idl.Reference{Variable: v, IndexCount: k - 1}
				f := fills[up]
				if f == nil {
					f = &fill{values: make([]proxy.Value, count)}
					fills[up] = f
					order = append(order, up)
				}
				f.values[i] = a.Value
				f.present++
			case v.Owner == n.Scope:
			default:
				loopScope.set(a.Reference, a.Value)
				acc.Assignments = append(acc.Assignments, a)
			}
		}
		acc.Lookahead = r.Lookahead
		if r.DoesBreak {
			acc.DoesBreak = true
			return acc, nil
		}
	}

	for _, ref := range order {
		if f := fills[ref]; f.present == int(count) {
			acc.Assignments = append(acc.Assignments, Assignment{Reference: ref, Value: proxy.Array(f.values...)})
		}
	}
	return acc, nil
}

func (d *driver) driveLoop(c execContext, n *idl.LoopNode) (ExecutionResult, error) {
	acc := c.result()
	loopScope := c.bindings.Child()
	for {
		if err := c.ctx.Err(); err != nil {
			return ExecutionResult{}, errors.Wrap(err, errors.Timeout)
		}
		r, err := d.drive(c.withBindings(loopScope.Child()).withPending(acc.Lookahead), n.Body)
		if err != nil {
			return ExecutionResult{}, err
		}
		for _, a := range r.Assignments {
			if a.Reference.Variable.Owner == n.Scope {
				continue
			}
			loopScope.set(a.Reference, a.Value)
			acc.Assignments = append(acc.Assignments, a)
		}
		acc.Lookahead = r.Lookahead
		if r.DoesBreak {
			return acc, nil
		}
	}
}

func (d *driver) driveIf(c execContext, n *idl.IfNode) (ExecutionResult, error) {
	cond, skip, err := d.scalar(c, n.Cond)
	if err != nil || skip {
		return c.result(), err
	}
	if cond != 0 {
		return d.drive(c, n.Then)
	}
	return d.drive(c, n.Else)
}

func (d *driver) driveSwitch(c execContext, n *idl.SwitchNode) (ExecutionResult, error) {
	value, skip, err := d.scalar(c, n.Value)
	if err != nil || skip {
		return c.result(), err
	}
	for _, cs := range n.Cases {
		for _, label := range cs.Labels {
			if label == value {
				return d.drive(c, cs.Body)
			}
		}
	}
	return ExecutionResult{}, errors.Newf(errors.UnmatchedBranch, "no case of %s matches %d", idl.ExpressionString(n.Value), value)
}

func (d *driver) driveLookahead(c execContext) (ExecutionResult, error) {
	if c.pending != nil {
		return c.result(), nil
	}
	req, err := d.run.requests.Peek()
	if err != nil {
		return ExecutionResult{}, err
	}
	return ExecutionResult{Lookahead: req}, nil
}

// requestID names a request the way first-request sets do.
func requestID(req *proxy.Request) (string, error) {
	switch req.Kind {
	case proxy.FunctionCall:
		return req.Name, nil
	case proxy.CallbackReturn:
		return idl.CallbackReturnRequest, nil
	case proxy.MainEnd:
		return idl.MainEndRequest, nil
	}
	return "", errors.Newf(errors.UnexpectedRequest, "unexpected %s", req.Kind)
}

// chooseBranch returns the only candidate whose set contains the pending
// request. The sets already include what follows a branch that consumes
// nothing itself.
func chooseBranch(c execContext, what string, sets []idl.RequestSet) (int, error) {
	if c.pending == nil {
		return 0, errors.Newf(errors.InternalDriverError, "resolving %s without a pending request", what)
	}
	id, err := requestID(c.pending)
	if err != nil {
		return 0, err
	}
	match := -1
	for i, set := range sets {
		if !set.Has(id) {
			continue
		}
		if match >= 0 {
			return 0, errors.Newf(errors.AmbiguousBranch, "%s: more than one branch starts with %s", what, c.pending)
		}
		match = i
	}
	if match < 0 {
		return 0, errors.Newf(errors.UnmatchedBranch, "%s: no branch starts with %s", what, c.pending)
	}
	return match, nil
}

func (d *driver) driveResolveIf(c execContext, n *idl.ResolveIfNode) (ExecutionResult, error) {
	branch, err := chooseBranch(c, n.Cond.String(), []idl.RequestSet{n.Then, n.Else})
	if err != nil {
		return ExecutionResult{}, err
	}
	value := int64(1)
	if branch == 1 {
		value = 0
	}
	return ExecutionResult{Assignments: []Assignment{{Reference: n.Cond.Reference(), Value: proxy.Scalar(value)}}}, nil
}

func (d *driver) driveResolveSwitch(c execContext, n *idl.ResolveSwitchNode) (ExecutionResult, error) {
	sets := make([]idl.RequestSet, len(n.Cases))
	for i, cs := range n.Cases {
		sets[i] = cs.Requests
	}
	branch, err := chooseBranch(c, n.Value.String(), sets)
	if err != nil {
		return ExecutionResult{}, err
	}
	label := n.Cases[branch].Label
	return ExecutionResult{Assignments: []Assignment{{Reference: n.Value.Reference(), Value: proxy.Scalar(label)}}}, nil
}
