package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

func TestWebSocketSession(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type accepted struct {
		conn *Conn
		err  error
	}
	connCh := make(chan accepted, 1)
	go func() {
		conn, err := acceptWebSocket(ctx, ln)
		connCh <- accepted{conn, err}
	}()

	client, err := dialWebSocket(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()
	got := <-connCh
	if got.err != nil {
		t.Fatalf("accept failed: %v", got.err)
	}
	conn := got.conn
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		begin, err := conn.Next()
		if err != nil {
			done <- err
			return
		}
		if begin.Kind != MainBegin || len(begin.Globals) != 1 || len(begin.Globals[0].Items()) != 3 {
			done <- errors.Newf(errors.UnexpectedRequest, "unexpected %v", begin)
			return
		}
		call, err := conn.Next()
		if err != nil {
			done <- err
			return
		}
		if call.Name != "f" {
			done <- errors.Newf(errors.UnexpectedRequest, "unexpected %v", call)
			return
		}
		done <- conn.Send(&Response{Kind: FunctionReturn, HasValue: true, Value: Scalar(7)})
	}()

	if err := client.Begin(Ints(1, 2, 3)); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	resp, err := client.Call("f", []Value{Scalar(2)}, nil)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("driver side failed: %v", err)
	}
	if !resp.HasValue || resp.Value.Int() != 7 {
		t.Fatalf("unexpected return %v", resp)
	}
}

func TestWebSocketAcceptHonoursContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := acceptWebSocket(ctx, ln); !errors.Is(err, errors.Timeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
