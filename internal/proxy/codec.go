package proxy

import (
	"bufio"
	stderrors "errors"
	"io"
	"strconv"
	"strings"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// maxArrayLen bounds decoded array lengths so a corrupt length line cannot
// allocate unbounded memory.
const maxArrayLen = 1 << 24

// Decoder reads line-oriented messages.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	if br, ok := r.(*bufio.Reader); ok {
		return &Decoder{r: br}
	}
	return &Decoder{r: bufio.NewReader(r)}
}

func (d *Decoder) line() (string, error) {
	s, err := d.r.ReadString('\n')
	// A final line without newline is still a line.
	if err != nil && (!stderrors.Is(err, io.EOF) || s == "") {
		return "", errors.Wrapf(err, errors.ProxyStreamClosed, "read message")
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (d *Decoder) int() (int64, error) {
	s, err := d.line()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, errors.MalformedMessage, "invalid integer line %q", s)
	}
	return n, nil
}

func (d *Decoder) flag() (bool, error) {
	n, err := d.int()
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.Newf(errors.MalformedMessage, "invalid flag %d", n)
}

func (d *Decoder) value() (Value, error) {
	isArray, err := d.flag()
	if err != nil {
		return Value{}, err
	}
	if !isArray {
		n, err := d.int()
		if err != nil {
			return Value{}, err
		}
		return Scalar(n), nil
	}
	length, err := d.int()
	if err != nil {
		return Value{}, err
	}
	if length < 0 || length > maxArrayLen {
		return Value{}, errors.Newf(errors.MalformedMessage, "invalid array length %d", length)
	}
	items := make([]Value, length)
	for i := range items {
		if items[i], err = d.value(); err != nil {
			return Value{}, err
		}
	}
	return Array(items...), nil
}

func (d *Decoder) values() ([]Value, error) {
	count, err := d.int()
	if err != nil {
		return nil, err
	}
	if count < 0 || count > maxArrayLen {
		return nil, errors.Newf(errors.MalformedMessage, "invalid value count %d", count)
	}
	out := make([]Value, count)
	for i := range out {
		if out[i], err = d.value(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadRequest decodes the next request.
func (d *Decoder) ReadRequest() (*Request, error) {
	tag, err := d.line()
	if err != nil {
		return nil, err
	}
	req := &Request{}
	switch tag {
	case "main_begin":
		req.Kind = MainBegin
		req.Globals, err = d.values()
	case "function_call":
		req.Kind = FunctionCall
		if req.Name, err = d.line(); err != nil {
			return nil, err
		}
		if req.Args, err = d.values(); err != nil {
			return nil, err
		}
		req.AcceptsCallbacks, err = d.flag()
	case "callback_return":
		req.Kind = CallbackReturn
		if req.HasValue, err = d.flag(); err != nil {
			return nil, err
		}
		if req.HasValue {
			req.Value, err = d.value()
		}
	case "main_end":
		req.Kind = MainEnd
	default:
		return nil, errors.Newf(errors.MalformedMessage, "unknown request tag %q", tag)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ReadResponse decodes the next response.
func (d *Decoder) ReadResponse() (*Response, error) {
	tag, err := d.line()
	if err != nil {
		return nil, err
	}
	resp := &Response{}
	switch tag {
	case "function_return":
		resp.Kind = FunctionReturn
		if resp.HasValue, err = d.flag(); err != nil {
			return nil, err
		}
		if resp.HasValue {
			resp.Value, err = d.value()
		}
	case "callback_call":
		resp.Kind = CallbackCall
		if resp.Name, err = d.line(); err != nil {
			return nil, err
		}
		resp.Args, err = d.values()
	default:
		return nil, errors.Newf(errors.MalformedMessage, "unknown response tag %q", tag)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Encoder writes line-oriented messages. Every message is flushed as a
// whole so the peer never waits on buffered output.
type Encoder struct {
	w *bufio.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

func (e *Encoder) line(s string) {
	e.w.WriteString(s)
	e.w.WriteByte('\n')
}

func (e *Encoder) int(n int64) {
	e.line(strconv.FormatInt(n, 10))
}

func (e *Encoder) flag(b bool) {
	if b {
		e.int(1)
		return
	}
	e.int(0)
}

func (e *Encoder) value(v Value) {
	if !v.IsArray() {
		e.int(0)
		e.int(v.Int())
		return
	}
	e.int(1)
	e.int(int64(v.Len()))
	for _, item := range v.Items() {
		e.value(item)
	}
}

func (e *Encoder) values(vs []Value) {
	e.int(int64(len(vs)))
	for _, v := range vs {
		e.value(v)
	}
}

func (e *Encoder) flush() error {
	if err := e.w.Flush(); err != nil {
		return errors.Wrapf(err, errors.ProxyStreamClosed, "write message")
	}
	return nil
}

// WriteRequest encodes and flushes req.
func (e *Encoder) WriteRequest(req *Request) error {
	tag, ok := requestTags[req.Kind]
	if !ok {
		return errors.Newf(errors.MalformedMessage, "unknown request kind %d", int(req.Kind))
	}
	e.line(tag)
	switch req.Kind {
	case MainBegin:
		e.values(req.Globals)
	case FunctionCall:
		e.line(req.Name)
		e.values(req.Args)
		e.flag(req.AcceptsCallbacks)
	case CallbackReturn:
		e.flag(req.HasValue)
		if req.HasValue {
			e.value(req.Value)
		}
	}
	return e.flush()
}

// WriteResponse encodes and flushes resp.
func (e *Encoder) WriteResponse(resp *Response) error {
	tag, ok := responseTags[resp.Kind]
	if !ok {
		return errors.Newf(errors.MalformedMessage, "unknown response kind %d", int(resp.Kind))
	}
	e.line(tag)
	switch resp.Kind {
	case FunctionReturn:
		e.flag(resp.HasValue)
		if resp.HasValue {
			e.value(resp.Value)
		}
	case CallbackCall:
		e.line(resp.Name)
		e.values(resp.Args)
	}
	return e.flush()
}
