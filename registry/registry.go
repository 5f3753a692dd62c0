package registry

// Package registry implements the process-wide handle table. Handles are
// opaque uint64 capabilities handed to foreign callers; every live resource
// of every kind draws from one shared counter, so a handle value can never
// identify two live resources at once, even across kinds. Mis-kinded and
// stale lookups are reportable errors, never panics -- this table is the
// defensive boundary against a misbehaving caller.

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidHandle is returned for unknown, released, or mis-kinded
// handles.
var ErrInvalidHandle = errors.New("invalid handle")

// Kind labels the resource category a handle refers to.
type Kind int

const (
	KindConnection Kind = iota + 1
	KindStatement
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindStatement:
		return "statement"
	case KindStream:
		return "stream"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type entry struct {
	kind     Kind
	resource interface{}
	lastUsed time.Time
}

// Table maps handles to live resources. The zero value is not usable; call
// New. The lock only guards map and counter operations -- engine work always
// happens outside it, so unrelated handles never serialize on the table.
type Table struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]*entry
}

// New returns an empty handle table. Handles start at 1 so 0 stays reserved
// as the failure sentinel of the boundary convention.
func New() *Table {
	return &Table{next: 1, entries: make(map[uint64]*entry)}
}

// Allocate registers resource under a fresh handle and returns it.
func (t *Table) Allocate(kind Kind, resource interface{}) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle := t.next
	t.next++
	t.entries[handle] = &entry{kind: kind, resource: resource, lastUsed: time.Now()}
	return handle
}

// Resolve returns the resource registered under handle, failing with
// ErrInvalidHandle when the handle is unknown or registered under a
// different kind.
func (t *Table) Resolve(handle uint64, kind Kind) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[handle]
	if !ok || e.kind != kind {
		return nil, fmt.Errorf("%s handle %d not found: %w", kind, handle, ErrInvalidHandle)
	}
	e.lastUsed = time.Now()
	return e.resource, nil
}

// Release removes the mapping and returns the resource so the caller can
// tear it down. After a successful Release the handle is permanently
// invalid; the value may eventually be reused for a new resource.
func (t *Table) Release(handle uint64, kind Kind) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[handle]
	if !ok || e.kind != kind {
		return nil, fmt.Errorf("%s handle %d not found: %w", kind, handle, ErrInvalidHandle)
	}
	delete(t.entries, handle)
	return e.resource, nil
}

// Len reports the number of live handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Handles returns the live handles of one kind, in no particular order.
func (t *Table) Handles(kind Kind) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var handles []uint64
	for h, e := range t.entries {
		if e.kind == kind {
			handles = append(handles, h)
		}
	}
	return handles
}
