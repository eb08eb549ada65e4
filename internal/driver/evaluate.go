package driver

import (
	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// evaluate computes e from the current bindings. bound is false when some
// reference in e has no value yet.
func (c execContext) evaluate(e idl.Expression) (v proxy.Value, bound bool, err error) {
	switch e := e.(type) {
	case *idl.IntLiteral:
		return proxy.Scalar(e.Value), true, nil
	case *idl.ConstantRef:
		return proxy.Scalar(e.Constant.Value), true, nil
	case *idl.Comparison:
		left, ok, err := c.evaluate(e.Left)
		if err != nil || !ok {
			return proxy.Value{}, false, err
		}
		right, ok, err := c.evaluate(e.Right)
		if err != nil || !ok {
			return proxy.Value{}, false, err
		}
		if compare(e.Op, left.Int(), right.Int()) {
			return proxy.Scalar(1), true, nil
		}
		return proxy.Scalar(0), true, nil
	case *idl.ReferenceExpr:
		return c.evaluateReference(e)
	}
	return proxy.Value{}, false, errors.Newf(errors.InternalDriverError, "unhandled expression %T", e)
}

func compare(op string, a, b int64) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// evaluateReference looks for the deepest binding the subscripts of e can
// use directly, then indexes into it with the remaining subscripts.
func (c execContext) evaluateReference(e *idl.ReferenceExpr) (proxy.Value, bool, error) {
	v := e.Variable
	direct := 0
	for direct < len(e.Indices) && direct < len(v.IndexedBy) && isIndex(e.Indices[direct], v.IndexedBy[direct]) {
		direct++
	}

	for j := direct; j >= 0; j-- {
		base, ok := c.bindings.Lookup(idl.Reference{Variable: v, IndexCount: j})
		if !ok {
			continue
		}
		for _, index := range e.Indices[j:] {
			i, ok, err := c.evaluate(index)
			if err != nil || !ok {
				return proxy.Value{}, false, err
			}
			if !base.IsArray() || i.Int() < 0 || i.Int() >= int64(base.Len()) {
				return proxy.Value{}, false, errors.Newf(errors.ArgumentMismatch,
					"index %d out of range for %s", i.Int(), e.String())
			}
			base = base.Items()[i.Int()]
		}
		return base, true, nil
	}
	return proxy.Value{}, false, nil
}

func isIndex(e idl.Expression, index *idl.Variable) bool {
	ref, ok := e.(*idl.ReferenceExpr)
	return ok && len(ref.Indices) == 0 && ref.Variable == index
}

// fitsDimensions reports whether v can be bound to a reference of dims
// dimensions. Empty arrays fit any array reference.
func fitsDimensions(v proxy.Value, dims int) bool {
	if v.IsArray() && v.Len() == 0 {
		return dims >= 1
	}
	return v.Dimensions() == dims
}

// bindOrCheck compares got with the value of e, or binds e to got when e
// is not known yet.
func (c execContext) bindOrCheck(e idl.Expression, got proxy.Value, code errors.ErrorCode) ([]Assignment, error) {
	want, bound, err := c.evaluate(e)
	if err != nil {
		return nil, err
	}
	if bound {
		if !want.Equal(got) {
			return nil, errors.Newf(code, "%s: expected %s, got %s", idl.ExpressionString(e), want, got)
		}
		return nil, nil
	}
	ref, ok := e.(*idl.ReferenceExpr)
	if !ok || !ref.IsDirect() {
		return nil, errors.Newf(errors.ValueNotDetermined, "cannot bind %s", idl.ExpressionString(e))
	}
	return []Assignment{{Reference: ref.Reference(), Value: got}}, nil
}
