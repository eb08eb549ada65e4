package sandbox

import (
	"bufio"
	stderrors "errors"
	"io"
	"strings"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// Observer sees every line exchanged with the process.
type Observer interface {
	Downward(line string)
	Upward(line string)
}

// LineConn reads upward lines (child stdout) with one line of lookahead and
// writes downward lines (child stdin), flushing each one.
type LineConn struct {
	r      *bufio.Reader
	w      *bufio.Writer
	closer io.Closer

	peeked   string
	hasPeek  bool
	observer Observer
}

// NewLineConn wraps the child's stdout and stdin. If w is an io.Closer it
// is closed by CloseWrite.
func NewLineConn(r io.Reader, w io.Writer) *LineConn {
	c := &LineConn{r: bufio.NewReader(r), w: bufio.NewWriter(w)}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// Observe attaches o to the connection. Peeked lines are reported once
// they are consumed.
func (c *LineConn) Observe(o Observer) {
	c.observer = o
}

// PeekLine returns the next upward line without consuming it.
func (c *LineConn) PeekLine() (string, error) {
	if c.hasPeek {
		return c.peeked, nil
	}
	s, err := c.r.ReadString('\n')
	if err != nil && (!stderrors.Is(err, io.EOF) || s == "") {
		return "", errors.Wrapf(err, errors.SandboxStreamClosed, "read process output")
	}
	c.peeked, c.hasPeek = strings.TrimRight(s, "\r\n"), true
	return c.peeked, nil
}

// ReadLine consumes the next upward line.
func (c *LineConn) ReadLine() (string, error) {
	line, err := c.PeekLine()
	if err != nil {
		return "", err
	}
	c.hasPeek = false
	if c.observer != nil {
		c.observer.Upward(line)
	}
	return line, nil
}

// WriteLine sends one downward line.
func (c *LineConn) WriteLine(line string) error {
	if c.observer != nil {
		c.observer.Downward(line)
	}
	c.w.WriteString(line)
	c.w.WriteByte('\n')
	if err := c.w.Flush(); err != nil {
		return errors.Wrapf(err, errors.SandboxStreamClosed, "write process input")
	}
	return nil
}

// CloseWrite closes the child's stdin.
func (c *LineConn) CloseWrite() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
