package driver

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// errMainExit unwinds the run once main_end has been consumed.
var errMainExit = stderrors.New("main exit")

func (d *driver) driveStatement(c execContext, stmt idl.Statement) (ExecutionResult, error) {
	switch s := stmt.(type) {
	case *idl.ReadStatement:
		if c.phase != PhaseDeclared {
			return c.result(), nil
		}
		values := make([]int64, len(s.Args))
		for i, arg := range s.Args {
			v, bound, err := c.evaluate(arg)
			if err != nil {
				return ExecutionResult{}, err
			}
			if !bound {
				return ExecutionResult{}, errors.Newf(errors.ValueNotDetermined, "value of %s is not determined", idl.ExpressionString(arg))
			}
			values[i] = v.Int()
		}
		return c.result(), d.run.writeLine(formatLine(values))

	case *idl.WriteStatement:
		if c.phase != PhaseResolved {
			return c.result(), nil
		}
		values, err := d.readInts(len(s.Args))
		if err != nil {
			return ExecutionResult{}, err
		}
		r := c.result()
		for i, arg := range s.Args {
			assigned, err := c.bindOrCheck(arg, proxy.Scalar(values[i]), errors.SandboxOutputInvalid)
			if err != nil {
				return ExecutionResult{}, err
			}
			r.Assignments = append(r.Assignments, assigned...)
		}
		return r, nil

	case *idl.CheckpointStatement:
		if c.phase != PhaseResolved {
			return c.result(), nil
		}
		values, err := d.readInts(1)
		if err != nil {
			return ExecutionResult{}, err
		}
		if values[0] != 0 {
			return ExecutionResult{}, errors.Newf(errors.SandboxOutputInvalid, "expected checkpoint 0, got %d", values[0])
		}
		return c.result(), nil

	case *idl.BreakStatement:
		r := c.result()
		r.DoesBreak = true
		return r, nil

	case *idl.ExitStatement:
		req, err := d.run.nextRequest()
		if err != nil {
			return ExecutionResult{}, err
		}
		if req.Kind != proxy.MainEnd {
			return ExecutionResult{}, errors.Newf(errors.UnexpectedRequest, "expected main_end, got %s", req)
		}
		return ExecutionResult{}, errMainExit

	case *idl.ReturnStatement:
		if c.phase != PhaseResolved {
			return c.result(), nil
		}
		req, err := d.run.nextRequest()
		if err != nil {
			return ExecutionResult{}, err
		}
		if req.Kind != proxy.CallbackReturn || !req.HasValue {
			return ExecutionResult{}, errors.Newf(errors.UnexpectedRequest, "expected callback_return with a value, got %s", req)
		}
		assigned, err := c.bindOrCheck(s.Value, req.Value, errors.ArgumentMismatch)
		if err != nil {
			return ExecutionResult{}, err
		}
		return ExecutionResult{Assignments: assigned}, nil
	}
	return ExecutionResult{}, errors.Newf(errors.InternalDriverError, "unhandled statement %T", stmt)
}

func formatLine(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, " ")
}

// parseInts splits an upward line into exactly want integers.
func parseInts(line string, want int) ([]int64, error) {
	fields := strings.Fields(line)
	if want >= 0 && len(fields) != want {
		return nil, errors.Newf(errors.SandboxOutputInvalid, "expected %d values, got line %q", want, line)
	}
	out := make([]int64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, errors.SandboxOutputInvalid, "invalid integer %q", f)
		}
		out[i] = n
	}
	return out, nil
}

func (d *driver) readInts(want int) ([]int64, error) {
	line, err := d.run.readLine()
	if err != nil {
		return nil, err
	}
	return parseInts(line, want)
}
