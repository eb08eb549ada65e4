// Package idl compiles interface descriptions into the intermediate node
// tree interpreted by the driver.
package idl

import "sort"

// Interface is a compiled interface. It is immutable after Compile and may
// be shared by concurrent runs.
type Interface struct {
	Constants []*Constant
	Methods   []*Method
	Main      *Block
	// Globals are the variables main_begin supplies, in declaration order.
	Globals []*Variable

	methods     map[string]*Method
	root        *BlockNode
	diagnostics []Diagnostic
}

// Method looks up a method by name.
func (i *Interface) Method(name string) (*Method, bool) {
	m, ok := i.methods[name]
	return m, ok
}

// Root is the lowered main block, wrapped with its implicit checkpoint and exit.
func (i *Interface) Root() *BlockNode {
	return i.root
}

// Validate returns the semantic diagnostics of the interface, ordered by position.
func (i *Interface) Validate() []Diagnostic {
	out := make([]Diagnostic, len(i.diagnostics))
	copy(out, i.diagnostics)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Line != out[b].Line {
			return out[a].Line < out[b].Line
		}
		return out[a].Column < out[b].Column
	})
	return out
}
