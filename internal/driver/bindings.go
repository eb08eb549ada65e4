package driver

import (
	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
)

// Bindings maps references to values. A child scope sees the bindings of
// its parents; writes always go to the innermost scope.
type Bindings struct {
	parent *Bindings
	values map[idl.Reference]proxy.Value
}

// NewBindings returns an empty root scope.
func NewBindings() *Bindings {
	return &Bindings{values: make(map[idl.Reference]proxy.Value)}
}

// Child opens a nested scope.
func (b *Bindings) Child() *Bindings {
	return &Bindings{parent: b, values: make(map[idl.Reference]proxy.Value)}
}

// Lookup finds ref in this scope or its parents.
func (b *Bindings) Lookup(ref idl.Reference) (proxy.Value, bool) {
	for s := b; s != nil; s = s.parent {
		if v, ok := s.values[ref]; ok {
			return v, true
		}
	}
	return proxy.Value{}, false
}

func (b *Bindings) set(ref idl.Reference, v proxy.Value) {
	b.values[ref] = v
}

// Apply records assignments in this scope.
func (b *Bindings) Apply(assignments []Assignment) {
	for _, a := range assignments {
		b.values[a.Reference] = a.Value
	}
}
