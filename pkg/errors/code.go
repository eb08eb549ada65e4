package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Interface compilation errors
// 21000-21999: Driver protocol errors
// 22000-22999: Sandbox & resource errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheMiss      ErrorCode = 10201
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300
	InvalidFormat    ErrorCode = 10301
	InvalidValue     ErrorCode = 10302

	// Archive errors (10400-10499)
	StorageError       ErrorCode = 10400
	EventPublishFailed ErrorCode = 10401

	// ========== Interface Compilation Errors (20000-20999) ==========

	InterfaceSyntaxError  ErrorCode = 20000
	InterfaceInvalid      ErrorCode = 20001
	InterfaceTooLarge     ErrorCode = 20002
	InterfaceNotCompiled  ErrorCode = 20003
	InterfaceReadFailed   ErrorCode = 20004
	GlobalVariableMissing ErrorCode = 20102

	// ========== Driver Protocol Errors (21000-21999) ==========

	// Proxy side (21000-21099)
	ProtocolViolation  ErrorCode = 21000
	UnexpectedRequest  ErrorCode = 21001
	MalformedMessage   ErrorCode = 21002
	ProxyStreamClosed  ErrorCode = 21003
	ArgumentMismatch   ErrorCode = 21004
	UnmatchedBranch    ErrorCode = 21005
	AmbiguousBranch    ErrorCode = 21006
	ValueNotDetermined ErrorCode = 21007

	// Engine internals (21100-21199)
	InternalDriverError ErrorCode = 21100

	// ========== Sandbox & Resource Errors (22000-22999) ==========

	SandboxStartFailed   ErrorCode = 22000
	SandboxStreamClosed  ErrorCode = 22001
	SandboxOutputInvalid ErrorCode = 22002
	RuntimeError         ErrorCode = 22100
	TimeLimitExceeded    ErrorCode = 22101
	MemoryLimitExceeded  ErrorCode = 22102
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Cache
	CacheError:     "Cache operation failed",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",

	// Validation
	ValidationFailed: "Validation failed",
	InvalidFormat:    "Invalid format",
	InvalidValue:     "Invalid value",

	// Archive
	StorageError:       "Object storage operation failed",
	EventPublishFailed: "Failed to publish event",

	// Interface compilation
	InterfaceSyntaxError:  "Interface syntax error",
	InterfaceInvalid:      "Interface has errors",
	InterfaceTooLarge:     "Interface source is too large",
	InterfaceNotCompiled:  "Interface is not compiled",
	InterfaceReadFailed:   "Failed to read interface source",
	GlobalVariableMissing: "Global variable value missing",

	// Driver protocol
	ProtocolViolation:   "Protocol violation",
	UnexpectedRequest:   "Unexpected request from evaluator",
	MalformedMessage:    "Malformed protocol message",
	ProxyStreamClosed:   "Evaluator connection closed",
	ArgumentMismatch:    "Argument does not match interface",
	UnmatchedBranch:     "No branch matches",
	AmbiguousBranch:     "More than one branch matches",
	ValueNotDetermined:  "Value not determined by evaluator",
	InternalDriverError: "Internal driver error",

	// Sandbox
	SandboxStartFailed:   "Failed to start process",
	SandboxStreamClosed:  "Process output closed",
	SandboxOutputInvalid: "Invalid process output",
	RuntimeError:         "Runtime error",
	TimeLimitExceeded:    "Time limit exceeded",
	MemoryLimitExceeded:  "Memory limit exceeded",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound:
		return 404
	case c == ServiceUnavailable:
		return 503
	case c == TooManyRequests:
		return 429
	case c == InterfaceTooLarge:
		return 413
	case c >= 20000 && c < 20100: // Interface compilation
		return 422
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}

// IsResourceLimit reports whether the code is a resource violation rather than a wrong answer.
func (c ErrorCode) IsResourceLimit() bool {
	return c == TimeLimitExceeded || c == MemoryLimitExceeded
}

// Category groups codes by where a run went wrong.
type Category string

const (
	CategoryNone     Category = ""
	CategorySystem   Category = "system"
	CategoryCompile  Category = "compile"
	CategoryProtocol Category = "protocol"
	CategorySandbox  Category = "sandbox"
	CategoryResource Category = "resource"
)

// Category reports the range the code belongs to. Resource limits are split
// out of the sandbox range.
func (c ErrorCode) Category() Category {
	switch {
	case c == Success:
		return CategoryNone
	case c.IsResourceLimit():
		return CategoryResource
	case c >= 20000 && c < 21000:
		return CategoryCompile
	case c >= 21000 && c < 22000:
		return CategoryProtocol
	case c >= 22000 && c < 23000:
		return CategorySandbox
	default:
		return CategorySystem
	}
}
