// Package console is an interactive evaluator: it speaks the proxy
// protocol to a driver, one typed command per request.
package console

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/pkg/errors"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const defaultPrompt = "proxy> "

// LineReader is the input side of the console; *readline.Instance
// satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Session holds console state.
type Session struct {
	client *proxy.Client
	in     LineReader
	out    io.Writer
	began  bool
	ended  bool
}

func New(client *proxy.Client, in LineReader, out io.Writer) *Session {
	return &Session{client: client, in: in, out: out}
}

// Run reads commands until exit, end of input or main_end.
func (s *Session) Run() error {
	for !s.ended {
		s.in.SetPrompt(defaultPrompt)
		line, err := s.in.Readline()
		if stderrors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return nil
		}
		if err := s.handleCommand(line); err != nil {
			s.printLine("error: %v", err)
			if isStreamError(err) {
				return err
			}
		}
	}
	return nil
}

func isStreamError(err error) bool {
	return errors.Is(err, errors.ProxyStreamClosed) || errors.Is(err, errors.MalformedMessage) ||
		errors.Is(err, errors.ProtocolViolation)
}

func (s *Session) handleCommand(line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return errors.Wrapf(err, errors.InvalidFormat, "parse command")
	}
	if len(tokens) == 0 {
		return nil
	}

	switch cmd, args := tokens[0], tokens[1:]; cmd {
	case "help":
		s.printHelp()
		return nil
	case "begin":
		if s.began {
			return errors.BadRequest("main already began")
		}
		values, err := parseValues(args)
		if err != nil {
			return err
		}
		if err := s.client.Begin(values...); err != nil {
			return err
		}
		s.began = true
		return nil
	case "end":
		if err := s.requireBegan(); err != nil {
			return err
		}
		if err := s.client.End(); err != nil {
			return err
		}
		s.ended = true
		s.printLine("main ended")
		return nil
	case "invoke":
		name, values, err := s.callArgs(args)
		if err != nil {
			return err
		}
		return s.client.Invoke(name, values)
	case "call":
		withCallbacks := len(args) > 0 && (args[0] == "-c" || args[0] == "--callbacks")
		if withCallbacks {
			args = args[1:]
		}
		name, values, err := s.callArgs(args)
		if err != nil {
			return err
		}
		var handler proxy.CallbackHandler
		if withCallbacks {
			handler = s.answerCallback
		}
		resp, err := s.client.Call(name, values, handler)
		if err != nil {
			return err
		}
		if resp.HasValue {
			s.printLine("%s returned %s", name, resp.Value)
		} else {
			s.printLine("%s returned", name)
		}
		return nil
	}
	return errors.Newf(errors.InvalidParams, "unknown command %q, try help", tokens[0])
}

func (s *Session) requireBegan() error {
	if !s.began {
		return errors.BadRequest("use begin first")
	}
	return nil
}

func (s *Session) callArgs(args []string) (string, []proxy.Value, error) {
	if err := s.requireBegan(); err != nil {
		return "", nil, err
	}
	if len(args) == 0 {
		return "", nil, errors.BadRequest("missing method name")
	}
	values, err := parseValues(args[1:])
	if err != nil {
		return "", nil, err
	}
	return args[0], values, nil
}

// answerCallback asks the user for the result of one callback. An empty
// answer returns no value, as procedures do.
func (s *Session) answerCallback(name string, args []proxy.Value) (proxy.Value, bool, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	s.in.SetPrompt(fmt.Sprintf("  %s(%s) = ", name, strings.Join(parts, ", ")))
	for {
		line, err := s.in.Readline()
		if err != nil {
			return proxy.Value{}, false, errors.Wrapf(err, errors.ProxyStreamClosed, "read callback result")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return proxy.Value{}, false, nil
		}
		v, err := proxy.ParseValue(line)
		if err != nil {
			s.printLine("error: %v", err)
			continue
		}
		return v, true, nil
	}
}

func parseValues(tokens []string) ([]proxy.Value, error) {
	values := make([]proxy.Value, len(tokens))
	for i, tok := range tokens {
		v, err := proxy.ParseValue(tok)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (s *Session) printHelp() {
	s.printLine("commands:")
	s.printLine("  begin [globals...]            send main_begin")
	s.printLine("  call [-c] <name> [args...]    call and wait for the return; -c serves callbacks")
	s.printLine("  invoke <name> [args...]       call a procedure without waiting")
	s.printLine("  end                           send main_end")
	s.printLine("  help | exit")
	s.printLine("values are integers or arrays such as [1,2,3] or \"[[1], [2, 3]]\"")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
