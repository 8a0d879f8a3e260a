package extension

import (
	"github.com/google/uuid"
)

// Entry is one named element of an extension chain.
type Entry[T any] struct {
	Name  string
	Value T
}

// Chain is an append-only ordered sequence of named extensions. Insertion
// order is preserved and significant: it is the execution order of the
// pipeline assembled by the engine. Names are not deduplicated; callers that
// omit a name get a generated process-unique token.
type Chain[T any] struct {
	entries []Entry[T]
}

// Append adds an extension to the end of the chain. An empty name is
// replaced with a generated unique token.
func (c *Chain[T]) Append(name string, value T) {
	if name == "" {
		name = GenerateName()
	}
	c.entries = append(c.entries, Entry[T]{Name: name, Value: value})
}

// Len returns the number of entries in the chain.
func (c *Chain[T]) Len() int {
	return len(c.entries)
}

// Snapshot returns a copy of the chain's entries in insertion order.
// Mutating the chain afterwards does not affect the returned slice.
func (c *Chain[T]) Snapshot() []Entry[T] {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]Entry[T], len(c.entries))
	copy(out, c.entries)
	return out
}

// GenerateName returns a process-unique token for unnamed extensions.
// Uniqueness avoids accidental collisions between auto-named entries; it is
// not a security primitive.
func GenerateName() string {
	return "extension-" + uuid.NewString()
}
