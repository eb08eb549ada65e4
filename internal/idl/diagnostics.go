package idl

import (
	"fmt"

	"github.com/turingarena/turingarena-sub002/internal/idl/ast"
)

// DiagnosticCode identifies a kind of semantic problem in an interface.
type DiagnosticCode string

const (
	UndeclaredVariable              DiagnosticCode = "UNDECLARED_VARIABLE"
	VariableReused                  DiagnosticCode = "VARIABLE_REUSED"
	WrongArrayIndex                 DiagnosticCode = "WRONG_ARRAY_INDEX"
	UnexpectedArrayIndex            DiagnosticCode = "UNEXPECTED_ARRAY_INDEX"
	MethodNotDeclared               DiagnosticCode = "METHOD_NOT_DECLARED"
	CallWrongArgsNumber             DiagnosticCode = "CALL_WRONG_ARGS_NUMBER"
	CallWrongArgsType               DiagnosticCode = "CALL_WRONG_ARGS_TYPE"
	CallNoReturnExpression          DiagnosticCode = "CALL_NO_RETURN_EXPRESSION"
	CallReturnExpression            DiagnosticCode = "CALL_RETURN_EXPRESSION"
	CallbackParametersMustBeScalars DiagnosticCode = "CALLBACK_PARAMETERS_MUST_BE_SCALARS"
	ReturnValueNotScalar            DiagnosticCode = "RETURN_VALUE_NOT_SCALAR"
	ExpressionNotScalar             DiagnosticCode = "EXPRESSION_NOT_SCALAR"
	InvalidCaseLabel                DiagnosticCode = "INVALID_CASE_LABEL"
	DuplicatedCaseLabel             DiagnosticCode = "DUPLICATED_CASE_LABEL"
	EmptySwitchBody                 DiagnosticCode = "EMPTY_SWITCH_BODY"
	BreakOutsideLoop                DiagnosticCode = "BREAK_OUTSIDE_LOOP"
	ReturnOutsideCallback           DiagnosticCode = "RETURN_OUTSIDE_CALLBACK"
	ReturnInProcedure               DiagnosticCode = "RETURN_IN_PROCEDURE"
	UnreachableCode                 DiagnosticCode = "UNREACHABLE_CODE"
	NameRedeclared                  DiagnosticCode = "NAME_REDECLARED"
	CallbackNotDeclared             DiagnosticCode = "CALLBACK_NOT_DECLARED"
	UnexpectedCallbacks             DiagnosticCode = "UNEXPECTED_CALLBACKS"
	CallInsideCallback              DiagnosticCode = "CALL_INSIDE_CALLBACK"
	MissingReturn                   DiagnosticCode = "MISSING_RETURN"
	UnresolvableCondition           DiagnosticCode = "UNRESOLVABLE_CONDITION"
	AmbiguousBranchResolution       DiagnosticCode = "AMBIGUOUS_BRANCH_RESOLUTION"
)

var diagnosticMessages = map[DiagnosticCode]string{
	UndeclaredVariable:              "variable %s is not declared",
	VariableReused:                  "variable %s is already declared",
	WrongArrayIndex:                 "wrong array index %s, expected %s",
	UnexpectedArrayIndex:            "unexpected array index %s",
	MethodNotDeclared:               "method %s is not declared",
	CallWrongArgsNumber:             "%s takes %d arguments, %d given",
	CallWrongArgsType:               "argument %d of %s should have %d dimensions, found %d",
	CallNoReturnExpression:          "function %s returns a value, but it is not assigned",
	CallReturnExpression:            "procedure %s does not return a value",
	CallbackParametersMustBeScalars: "parameter %s of callback %s must be a scalar",
	ReturnValueNotScalar:            "return value %s is not a scalar",
	ExpressionNotScalar:             "expression %s is not a scalar",
	InvalidCaseLabel:                "case label %s is not an integer constant",
	DuplicatedCaseLabel:             "duplicated case label %d",
	EmptySwitchBody:                 "switch on %s has no cases",
	BreakOutsideLoop:                "break outside of a loop",
	ReturnOutsideCallback:           "return outside of a callback",
	ReturnInProcedure:               "procedure callback %s cannot return a value",
	UnreachableCode:                 "unreachable code",
	NameRedeclared:                  "%s is already declared",
	CallbackNotDeclared:             "callback %s is not declared by %s",
	UnexpectedCallbacks:             "%s does not declare callbacks",
	CallInsideCallback:              "call to %s inside a callback",
	MissingReturn:                   "function callback %s does not end with a return",
	UnresolvableCondition:           "cannot determine %s before it is needed",
	AmbiguousBranchResolution:       "cannot choose a branch of %s: %s may start more than one branch",
}

// Diagnostic is a non-fatal semantic problem found in an interface.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	Message string         `json:"message"`
	Line    int            `json:"line"`
	Column  int            `json:"column"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s (%s)", d.Line, d.Column, d.Message, d.Code)
}

func newDiagnostic(pos ast.Pos, code DiagnosticCode, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: fmt.Sprintf(diagnosticMessages[code], args...),
		Line:    pos.Line,
		Column:  pos.Column,
	}
}
