package proxy

import (
	"io"
	"sync"
)

// Conn is the driver's end of a proxy session: requests are read with one
// request of lookahead, responses are written immediately.
type Conn struct {
	dec     *Decoder
	enc     *Encoder
	closer  io.Closer
	pending *Request

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a bidirectional stream. If rw is an io.Closer it is closed
// by Close.
func NewConn(rw io.ReadWriter) *Conn {
	c := &Conn{dec: NewDecoder(rw), enc: NewEncoder(rw)}
	if closer, ok := rw.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// NewPipeConn builds a Conn from separate read and write halves, such as
// stdin and stdout.
func NewPipeConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{dec: NewDecoder(r), enc: NewEncoder(w)}
}

// Peek returns the next request without consuming it.
func (c *Conn) Peek() (*Request, error) {
	if c.pending != nil {
		return c.pending, nil
	}
	req, err := c.dec.ReadRequest()
	if err != nil {
		return nil, err
	}
	c.pending = req
	return req, nil
}

// Next consumes the next request.
func (c *Conn) Next() (*Request, error) {
	req, err := c.Peek()
	if err != nil {
		return nil, err
	}
	c.pending = nil
	return req, nil
}

// Send writes resp and flushes it.
func (c *Conn) Send(resp *Response) error {
	return c.enc.WriteResponse(resp)
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.closer != nil {
			c.closeErr = c.closer.Close()
		}
	})
	return c.closeErr
}
