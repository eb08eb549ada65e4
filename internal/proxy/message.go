package proxy

import "fmt"

// RequestKind enumerates what the evaluator can send.
type RequestKind int

const (
	MainBegin RequestKind = iota + 1
	FunctionCall
	CallbackReturn
	MainEnd
)

var requestTags = map[RequestKind]string{
	MainBegin:      "main_begin",
	FunctionCall:   "function_call",
	CallbackReturn: "callback_return",
	MainEnd:        "main_end",
}

func (k RequestKind) String() string {
	if tag, ok := requestTags[k]; ok {
		return tag
	}
	return fmt.Sprintf("request(%d)", int(k))
}

// Request is one message from the evaluator. Only the fields of its kind
// are meaningful.
type Request struct {
	Kind RequestKind

	// MainBegin
	Globals []Value

	// FunctionCall
	Name             string
	Args             []Value
	AcceptsCallbacks bool

	// CallbackReturn
	HasValue bool
	Value    Value
}

func (r *Request) String() string {
	switch r.Kind {
	case MainBegin:
		return fmt.Sprintf("main_begin%v", r.Globals)
	case FunctionCall:
		return fmt.Sprintf("function_call %s%v accepts=%t", r.Name, r.Args, r.AcceptsCallbacks)
	case CallbackReturn:
		if r.HasValue {
			return "callback_return " + r.Value.String()
		}
		return "callback_return"
	}
	return r.Kind.String()
}

// ResponseKind enumerates what the driver sends back.
type ResponseKind int

const (
	FunctionReturn ResponseKind = iota + 1
	CallbackCall
)

var responseTags = map[ResponseKind]string{
	FunctionReturn: "function_return",
	CallbackCall:   "callback_call",
}

func (k ResponseKind) String() string {
	if tag, ok := responseTags[k]; ok {
		return tag
	}
	return fmt.Sprintf("response(%d)", int(k))
}

// Response is one message to the evaluator.
type Response struct {
	Kind ResponseKind

	// FunctionReturn
	HasValue bool
	Value    Value

	// CallbackCall
	Name string
	Args []Value
}

func (r *Response) String() string {
	switch r.Kind {
	case FunctionReturn:
		if r.HasValue {
			return "function_return " + r.Value.String()
		}
		return "function_return"
	case CallbackCall:
		return fmt.Sprintf("callback_call %s%v", r.Name, r.Args)
	}
	return r.Kind.String()
}
