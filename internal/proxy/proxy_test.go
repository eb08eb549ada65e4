package proxy

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

func TestValueWireFormat(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.WriteRequest(&Request{
		Kind:    MainBegin,
		Globals: []Value{Scalar(3), Array(Ints(1, 2), Ints())},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	want := strings.Join([]string{
		"main_begin",
		"2",
		"0", "3",
		"1", "2",
		"1", "2", "0", "1", "0", "2",
		"1", "0",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Fatalf("unexpected encoding:\n%q\nwant\n%q", buf.String(), want)
	}

	req, err := NewDecoder(&buf).ReadRequest()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(req.Globals) != 2 || !req.Globals[1].Equal(Array(Ints(1, 2), Ints())) {
		t.Fatalf("unexpected globals %v", req.Globals)
	}
	if req.Globals[1].Dimensions() != 2 {
		t.Fatalf("expected 2 dimensions, got %d", req.Globals[1].Dimensions())
	}
}

func TestDecoderRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  errors.ErrorCode
	}{
		{"unknown tag", "hello\n", errors.MalformedMessage},
		{"bad integer", "main_begin\nx\n", errors.MalformedMessage},
		{"bad flag", "function_call\nf\n0\n7\n", errors.MalformedMessage},
		{"negative length", "main_begin\n1\n1\n-1\n", errors.MalformedMessage},
		{"empty stream", "", errors.ProxyStreamClosed},
		{"truncated", "function_call\nf\n1\n", errors.ProxyStreamClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(strings.NewReader(tt.input)).ReadRequest()
			if !errors.Is(err, tt.code) {
				t.Fatalf("expected %v, got %v", tt.code, err)
			}
		})
	}
}

func TestConnPeekDoesNotConsume(t *testing.T) {
	input := "function_call\nf\n1\n0\n5\n0\nmain_end\n"
	conn := NewPipeConn(strings.NewReader(input), &bytes.Buffer{})

	first, err := conn.Peek()
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	again, _ := conn.Peek()
	if first != again {
		t.Fatal("second peek returned a different request")
	}
	next, err := conn.Next()
	if err != nil || next != first {
		t.Fatalf("next should return the peeked request, got %v %v", next, err)
	}
	if next.Name != "f" || len(next.Args) != 1 || next.Args[0].Int() != 5 || next.AcceptsCallbacks {
		t.Fatalf("unexpected call %v", next)
	}
	end, err := conn.Next()
	if err != nil || end.Kind != MainEnd {
		t.Fatalf("expected main_end, got %v %v", end, err)
	}
	if _, err := conn.Next(); !errors.Is(err, errors.ProxyStreamClosed) {
		t.Fatalf("expected closed stream, got %v", err)
	}
}

func TestClientServesCallbacks(t *testing.T) {
	driverSide, evaluatorSide := net.Pipe()
	defer driverSide.Close()

	done := make(chan error, 1)
	go func() {
		conn := NewConn(driverSide)
		req, err := conn.Next()
		if err != nil {
			done <- err
			return
		}
		if req.Name != "solve" || !req.AcceptsCallbacks {
			done <- errors.Newf(errors.UnexpectedRequest, "unexpected %v", req)
			return
		}
		if err := conn.Send(&Response{Kind: CallbackCall, Name: "ask", Args: []Value{Scalar(4)}}); err != nil {
			done <- err
			return
		}
		ret, err := conn.Next()
		if err != nil {
			done <- err
			return
		}
		if ret.Kind != CallbackReturn || !ret.HasValue || ret.Value.Int() != 16 {
			done <- errors.Newf(errors.UnexpectedRequest, "unexpected %v", ret)
			return
		}
		done <- conn.Send(&Response{Kind: FunctionReturn, HasValue: true, Value: Scalar(99)})
	}()

	client := NewClient(evaluatorSide)
	defer client.Close()
	var asked []int64
	resp, err := client.Call("solve", []Value{Scalar(1)}, func(name string, args []Value) (Value, bool, error) {
		asked = append(asked, args[0].Int())
		return Scalar(args[0].Int() * args[0].Int()), true, nil
	})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("driver side failed: %v", err)
	}
	if !resp.HasValue || resp.Value.Int() != 99 {
		t.Fatalf("unexpected return %v", resp)
	}
	if len(asked) != 1 || asked[0] != 4 {
		t.Fatalf("unexpected callbacks %v", asked)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		text    string
		want    Value
		wantErr bool
	}{
		{text: "7", want: Scalar(7)},
		{text: "-12", want: Scalar(-12)},
		{text: "[]", want: Array()},
		{text: "[1, 2,3]", want: Ints(1, 2, 3)},
		{text: "[[1,2],[3]]", want: Array(Ints(1, 2), Ints(3))},
		{text: "[1,", wantErr: true},
		{text: "abc", wantErr: true},
		{text: "1 2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseValue(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got.String() != tt.want.String() {
				t.Fatalf("string form %q differs from %q", got.String(), tt.want.String())
			}
		})
	}
}
