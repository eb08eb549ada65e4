package proxy

import (
	"strconv"
	"strings"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// Value is an integer or a (possibly nested) array of values.
type Value struct {
	array bool
	n     int64
	items []Value
}

// Scalar returns an integer value.
func Scalar(n int64) Value {
	return Value{n: n}
}

// Array returns an array value holding items.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{array: true, items: items}
}

// Ints is a shorthand for a one-dimensional array.
func Ints(ns ...int64) Value {
	items := make([]Value, len(ns))
	for i, n := range ns {
		items[i] = Scalar(n)
	}
	return Array(items...)
}

func (v Value) IsArray() bool { return v.array }

// Int returns the integer of a scalar value, zero for arrays.
func (v Value) Int() int64 { return v.n }

func (v Value) Items() []Value { return v.items }

func (v Value) Len() int { return len(v.items) }

// Dimensions is the nesting depth of the value. An empty array counts as one
// dimension whatever its declared type.
func (v Value) Dimensions() int {
	if !v.array {
		return 0
	}
	if len(v.items) == 0 {
		return 1
	}
	return 1 + v.items[0].Dimensions()
}

// Equal reports whether both values have the same shape and integers.
func (v Value) Equal(o Value) bool {
	if v.array != o.array {
		return false
	}
	if !v.array {
		return v.n == o.n
	}
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(o.items[i]) {
			return false
		}
	}
	return true
}

// String renders scalars as decimals and arrays as [a,b,c].
func (v Value) String() string {
	if !v.array {
		return strconv.FormatInt(v.n, 10)
	}
	parts := make([]string, len(v.items))
	for i, item := range v.items {
		parts[i] = item.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseValue reads the String form back, e.g. "7" or "[[1,2],[3]]".
func ParseValue(text string) (Value, error) {
	p := valueParser{text: strings.TrimSpace(text)}
	v, err := p.parse()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.text) {
		return Value{}, errors.Newf(errors.InvalidFormat, "unexpected %q after value", p.text[p.pos:])
	}
	return v, nil
}

type valueParser struct {
	text string
	pos  int
}

func (p *valueParser) skipSpace() {
	for p.pos < len(p.text) && p.text[p.pos] == ' ' {
		p.pos++
	}
}

func (p *valueParser) parse() (Value, error) {
	p.skipSpace()
	if p.pos >= len(p.text) {
		return Value{}, errors.Newf(errors.InvalidFormat, "missing value")
	}
	if p.text[p.pos] != '[' {
		start := p.pos
		if p.text[p.pos] == '-' {
			p.pos++
		}
		for p.pos < len(p.text) && p.text[p.pos] >= '0' && p.text[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.ParseInt(p.text[start:p.pos], 10, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, errors.InvalidFormat, "invalid integer %q", p.text[start:p.pos])
		}
		return Scalar(n), nil
	}

	p.pos++
	items := []Value{}
	p.skipSpace()
	if p.pos < len(p.text) && p.text[p.pos] == ']' {
		p.pos++
		return Array(items...), nil
	}
	for {
		item, err := p.parse()
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
		p.skipSpace()
		if p.pos >= len(p.text) {
			return Value{}, errors.Newf(errors.InvalidFormat, "unterminated array")
		}
		switch p.text[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return Array(items...), nil
		default:
			return Value{}, errors.Newf(errors.InvalidFormat, "unexpected %q in array", p.text[p.pos])
		}
	}
}
