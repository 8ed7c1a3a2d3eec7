// Package arena implements the Message type exchanged between Source,
// Comm, and the broker: a fixed-shape vector of string components plus an
// optional binary payload, released as a single unit.
//
// In the original C implementation every Message owned an arena allocator
// that components were strdup'd/sprintf'd into, so a single free() call
// could release every string at once. Go is garbage collected, so Arena
// does not manage memory; it exists to preserve the same ownership
// contract (a message and its components are acquired and released
// together) and to let Message reuse its backing slice via a sync.Pool
// instead of allocating a fresh one per send.
package arena

import (
	"fmt"
	"sync"
)

// Arena interns strings for a single Message's lifetime. It carries no
// state of its own beyond being a marker that a string was allocated
// through this message's scope.
type Arena struct{}

// Strdup interns s. Go strings are immutable and already owned by the
// caller's memory, so this is an identity operation kept to mirror
// SVR_Arena_strdup's call sites in lib/source.c one for one.
func (a *Arena) Strdup(s string) string { return s }

// Sprintf formats and interns a string, mirroring SVR_Arena_sprintf.
func (a *Arena) Sprintf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// Message is the wire-level unit exchanged by Comm: an ordered vector of
// string components (command name, source name, parameters, ...) plus an
// optional binary payload. Components[0] is always the command/status
// token; remaining components are its arguments.
type Message struct {
	Alloc      *Arena
	Components []string

	// Payload is borrowed, not owned: for Data messages it points into the
	// sending Source's payload buffer and must not be retained past the
	// call to Conn.SendMessage that transmits it.
	Payload []byte
}

var messagePool = sync.Pool{
	New: func() any { return &Message{Alloc: &Arena{}} },
}

// New returns a Message with room for n components, reusing a pooled
// instance when possible. Components are initially empty strings.
func New(n int) *Message {
	m := messagePool.Get().(*Message)
	if cap(m.Components) >= n {
		m.Components = m.Components[:n]
		for i := range m.Components {
			m.Components[i] = ""
		}
	} else {
		m.Components = make([]string, n)
	}
	m.Payload = nil
	return m
}

// NewFrom builds a Message directly from components, a convenience for
// call sites that already know their full component vector (mirrors the
// common `Message.new(n); components[i] = ...` pattern condensed to one
// call).
func NewFrom(components ...string) *Message {
	m := New(len(components))
	copy(m.Components, components)
	return m
}

// Count returns the number of components.
func (m *Message) Count() int {
	if m == nil {
		return 0
	}
	return len(m.Components)
}

// Component returns the i'th component, or "" if out of range.
func (m *Message) Component(i int) string {
	if m == nil || i < 0 || i >= len(m.Components) {
		return ""
	}
	return m.Components[i]
}

// Release returns the Message (and its component slice) to the pool. It
// must not be used after Release; the payload bytes themselves are never
// touched here since Message never owned them.
func (m *Message) Release() {
	if m == nil {
		return
	}
	m.Payload = nil
	for i := range m.Components {
		m.Components[i] = ""
	}
	messagePool.Put(m)
}
