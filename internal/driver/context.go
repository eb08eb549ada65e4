package driver

import (
	"context"

	"github.com/turingarena/turingarena-sub002/internal/proxy"
)

// RequestStream is the driver's view of the evaluator connection.
type RequestStream interface {
	Peek() (*proxy.Request, error)
	Next() (*proxy.Request, error)
	Send(resp *proxy.Response) error
}

// ProcessStream is the driver's view of the sandboxed process stdio.
type ProcessStream interface {
	PeekLine() (string, error)
	ReadLine() (string, error)
	WriteLine(line string) error
}

// execContext is passed by value; each node derives the contexts of its
// children from its own.
type execContext struct {
	ctx      context.Context
	run      *runState
	phase    Phase
	bindings *Bindings
	pending  *proxy.Request
}

func (c execContext) withPhase(p Phase) execContext {
	c.phase = p
	return c
}

func (c execContext) withBindings(b *Bindings) execContext {
	c.bindings = b
	return c
}

func (c execContext) withPending(req *proxy.Request) execContext {
	c.pending = req
	return c
}

// result is the empty result of a node that leaves the pending request alone.
func (c execContext) result() ExecutionResult {
	return ExecutionResult{Lookahead: c.pending}
}

// runState holds what one run owns exclusively.
type runState struct {
	requests RequestStream
	process  ProcessStream
	report   *RunReport
}

func (r *runState) nextRequest() (*proxy.Request, error) {
	return r.requests.Next()
}

func (r *runState) send(resp *proxy.Response) error {
	return r.requests.Send(resp)
}

func (r *runState) readLine() (string, error) {
	line, err := r.process.ReadLine()
	if err == nil {
		r.report.LinesUp++
	}
	return line, err
}

func (r *runState) writeLine(line string) error {
	if err := r.process.WriteLine(line); err != nil {
		return err
	}
	r.report.LinesDown++
	return nil
}
