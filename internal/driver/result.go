package driver

import (
	"fmt"

	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
)

// Phase selects what a node does when driven.
type Phase int

const (
	// PhaseNone runs a batch fully: a resolved pass, then a declared pass.
	PhaseNone Phase = iota
	// PhaseResolved consumes requests and reads upward lines.
	PhaseResolved
	// PhaseDeclared sends downward lines and responses.
	PhaseDeclared
)

func (p Phase) String() string {
	switch p {
	case PhaseResolved:
		return "resolved"
	case PhaseDeclared:
		return "declared"
	}
	return "none"
}

// Assignment binds a value to a reference.
type Assignment struct {
	Reference idl.Reference
	Value     proxy.Value
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s=%s", a.Reference, a.Value)
}

// ExecutionResult is what driving a node produced.
type ExecutionResult struct {
	Assignments []Assignment
	// Lookahead is the request peeked but not consumed yet.
	Lookahead *proxy.Request
	DoesBreak bool
}

// Merge appends o after r. The later lookahead and break state win.
func (r ExecutionResult) Merge(o ExecutionResult) ExecutionResult {
	out := ExecutionResult{
		Assignments: make([]Assignment, 0, len(r.Assignments)+len(o.Assignments)),
		Lookahead:   o.Lookahead,
		DoesBreak:   o.DoesBreak,
	}
	out.Assignments = append(out.Assignments, r.Assignments...)
	out.Assignments = append(out.Assignments, o.Assignments...)
	return out
}
