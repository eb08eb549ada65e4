package proxy

import (
	"io"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// CallbackHandler answers a callback_call. Procedure callbacks return
// hasValue false.
type CallbackHandler func(name string, args []Value) (result Value, hasValue bool, err error)

// Client is the evaluator's end of a proxy session.
type Client struct {
	dec    *Decoder
	enc    *Encoder
	closer io.Closer
}

func NewClient(rw io.ReadWriter) *Client {
	c := &Client{dec: NewDecoder(rw), enc: NewEncoder(rw)}
	if closer, ok := rw.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// Begin sends main_begin with the global values.
func (c *Client) Begin(globals ...Value) error {
	return c.enc.WriteRequest(&Request{Kind: MainBegin, Globals: globals})
}

// End sends main_end.
func (c *Client) End() error {
	return c.enc.WriteRequest(&Request{Kind: MainEnd})
}

// Invoke sends a call that gets no answer: a procedure without callbacks,
// or one whose callbacks are declined.
func (c *Client) Invoke(name string, args []Value) error {
	return c.enc.WriteRequest(&Request{Kind: FunctionCall, Name: name, Args: args})
}

// Call invokes a function, or a procedure whose callbacks handler serves,
// and waits for its function_return. A nil handler declines callbacks.
func (c *Client) Call(name string, args []Value, handler CallbackHandler) (*Response, error) {
	req := &Request{Kind: FunctionCall, Name: name, Args: args, AcceptsCallbacks: handler != nil}
	if err := c.enc.WriteRequest(req); err != nil {
		return nil, err
	}
	for {
		resp, err := c.dec.ReadResponse()
		if err != nil {
			return nil, err
		}
		switch resp.Kind {
		case FunctionReturn:
			return resp, nil
		case CallbackCall:
			if handler == nil {
				return nil, errors.Newf(errors.ProtocolViolation, "callback %s invoked after declining callbacks", resp.Name)
			}
			value, hasValue, err := handler(resp.Name, resp.Args)
			if err != nil {
				return nil, err
			}
			ret := &Request{Kind: CallbackReturn, HasValue: hasValue, Value: value}
			if err := c.enc.WriteRequest(ret); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Newf(errors.ProtocolViolation, "unexpected response %s", resp.Kind)
		}
	}
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
