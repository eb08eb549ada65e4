package driver

import (
	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/logger"

	"go.uber.org/zap"
)

// driveCallArguments consumes the function_call and learns its arguments.
func (d *driver) driveCallArguments(c execContext, n *idl.CallArgumentsNode) (ExecutionResult, error) {
	if c.phase != PhaseResolved {
		return c.result(), nil
	}
	call := n.Call
	req, err := d.run.nextRequest()
	if err != nil {
		return ExecutionResult{}, err
	}
	if req.Kind != proxy.FunctionCall || req.Name != call.Method.Name {
		return ExecutionResult{}, errors.Newf(errors.UnexpectedRequest, "expected call to %s, got %s", call.Method.Name, req)
	}
	if len(req.Args) != len(call.Args) {
		return ExecutionResult{}, errors.Newf(errors.ArgumentMismatch,
			"%s takes %d arguments, %d given", call.Method.Name, len(call.Args), len(req.Args))
	}
	d.run.report.Calls++
	logger.Debug(c.ctx, "function call", zap.String("method", call.Method.Name), zap.Int("args", len(req.Args)))

	var r ExecutionResult
	for i, arg := range call.Args {
		param := call.Method.Parameters[i]
		if !fitsDimensions(req.Args[i], param.Dimensions) {
			return ExecutionResult{}, errors.Newf(errors.ArgumentMismatch,
				"argument %s of %s should have %d dimensions", param.Name, call.Method.Name, param.Dimensions)
		}
		assigned, err := c.withBindings(withAssignments(c.bindings, r.Assignments)).bindOrCheck(arg, req.Args[i], errors.ArgumentMismatch)
		if err != nil {
			return ExecutionResult{}, err
		}
		r.Assignments = append(r.Assignments, assigned...)
	}
	if call.Accepted != nil {
		accepted := int64(0)
		if req.AcceptsCallbacks {
			accepted = 1
		}
		r.Assignments = append(r.Assignments, Assignment{Reference: idl.Reference{Variable: call.Accepted}, Value: proxy.Scalar(accepted)})
	}
	return r, nil
}

// withAssignments layers assignments over b without touching b.
func withAssignments(b *Bindings, assignments []Assignment) *Bindings {
	if len(assignments) == 0 {
		return b
	}
	child := b.Child()
	child.Apply(assignments)
	return child
}

func (d *driver) accepted(c execContext, call *idl.CallStatement) bool {
	if call.Accepted == nil {
		return false
	}
	v, ok := c.bindings.Lookup(idl.Reference{Variable: call.Accepted})
	return ok && v.Int() == 1
}

// driveCallCallbacks serves callback records written by the process until
// it writes the sentinel 0, which is left for the following write 0.
func (d *driver) driveCallCallbacks(c execContext, n *idl.CallCallbacksNode) (ExecutionResult, error) {
	acc := c.result()
	if !d.accepted(c, n.Call) {
		return acc, nil
	}
	for {
		line, err := d.run.process.PeekLine()
		if err != nil {
			return ExecutionResult{}, err
		}
		values, err := parseInts(line, -1)
		if err != nil {
			return ExecutionResult{}, err
		}
		if len(values) == 1 && values[0] == 0 {
			return acc, nil
		}
		if _, err := d.run.readLine(); err != nil {
			return ExecutionResult{}, err
		}

		if len(values) == 0 || values[0] < 1 || values[0] > int64(len(n.Call.Callbacks)) {
			return ExecutionResult{}, errors.Newf(errors.SandboxOutputInvalid, "invalid callback record %q", line)
		}
		index := values[0] - 1
		impl := n.Call.Callbacks[index]
		args := values[1:]
		if len(args) != len(impl.Parameters) {
			return ExecutionResult{}, errors.Newf(errors.SandboxOutputInvalid,
				"callback %s takes %d arguments, got %q", impl.Callback.Name, len(impl.Parameters), line)
		}

		r, err := d.invokeCallback(c.withPending(acc.Lookahead), impl, n.Bodies[index], args)
		if err != nil {
			return ExecutionResult{}, err
		}
		acc.Lookahead = r.Lookahead
	}
}

func (d *driver) invokeCallback(c execContext, impl *idl.CallbackImplementation, body *idl.BlockNode, args []int64) (ExecutionResult, error) {
	d.run.report.CallbackCalls++
	resp := &proxy.Response{Kind: proxy.CallbackCall, Name: impl.Callback.Name, Args: make([]proxy.Value, len(args))}
	scope := NewBindings()
	for i, param := range impl.Parameters {
		resp.Args[i] = proxy.Scalar(args[i])
		scope.set(idl.Reference{Variable: param}, resp.Args[i])
	}
	logger.Debug(c.ctx, "callback call", zap.String("callback", impl.Callback.Name))
	if err := d.run.send(resp); err != nil {
		return ExecutionResult{}, err
	}

	r, err := d.drive(c.withPhase(PhaseNone).withBindings(scope), body)
	if err != nil {
		return ExecutionResult{}, err
	}
	if r.DoesBreak {
		return ExecutionResult{}, errors.Newf(errors.InternalDriverError, "break escaped callback %s", impl.Callback.Name)
	}
	// Callback bindings die with the invocation.
	return ExecutionResult{Lookahead: r.Lookahead}, nil
}

func (d *driver) driveCallReturn(c execContext, n *idl.CallReturnNode) (ExecutionResult, error) {
	call := n.Call
	switch c.phase {
	case PhaseResolved:
		if !call.Method.HasReturnValue {
			return c.result(), nil
		}
		values, err := d.readInts(1)
		if err != nil {
			return ExecutionResult{}, err
		}
		r := c.result()
		assigned, err := c.bindOrCheck(call.Return, proxy.Scalar(values[0]), errors.SandboxOutputInvalid)
		if err != nil {
			return ExecutionResult{}, err
		}
		r.Assignments = assigned
		return r, nil

	case PhaseDeclared:
		if !call.Method.HasReturnValue && !d.accepted(c, call) {
			return c.result(), nil
		}
		resp := &proxy.Response{Kind: proxy.FunctionReturn}
		if call.Method.HasReturnValue {
			v, bound, err := c.evaluate(call.Return)
			if err != nil {
				return ExecutionResult{}, err
			}
			if !bound {
				return ExecutionResult{}, errors.Newf(errors.ValueNotDetermined, "return value of %s is not determined", call.Method.Name)
			}
			resp.HasValue, resp.Value = true, v
		}
		return c.result(), d.run.send(resp)
	}
	return c.result(), nil
}

func (d *driver) driveCallbackEnd(c execContext) (ExecutionResult, error) {
	if c.phase != PhaseResolved {
		return c.result(), nil
	}
	req, err := d.run.nextRequest()
	if err != nil {
		return ExecutionResult{}, err
	}
	if req.Kind != proxy.CallbackReturn || req.HasValue {
		return ExecutionResult{}, errors.Newf(errors.UnexpectedRequest, "expected callback_return without a value, got %s", req)
	}
	return ExecutionResult{}, nil
}
