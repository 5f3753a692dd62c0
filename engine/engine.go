package engine

// Package engine defines the capability boundary between the session layer
// and the SQL execution engine. The session layer only depends on the
// Engine interface; the SQLite implementation in sqlite.go is the
// production binding. Engines are not assumed reentrant -- callers serialize
// access to one Engine themselves.

import (
	"errors"

	"github.com/tomyedwab/bridgedb/types"
)

var (
	// ErrBadKey marks failures caused by a missing, malformed or wrong
	// encryption key.
	ErrBadKey = errors.New("bad encryption key")

	// ErrIO marks filesystem failures during export or import.
	ErrIO = errors.New("i/o failure")

	// ErrTxState marks transaction calls made in the wrong state.
	ErrTxState = errors.New("invalid transaction state")
)

// RowIter yields rows of one query execution, in engine order.
type RowIter interface {
	// Columns returns the result column names.
	Columns() []string

	// Next returns the next row. ok is false once the result set is
	// exhausted; err is set when iteration failed mid-stream.
	Next() (row types.Row, ok bool, err error)

	// Close releases engine-side iteration state. Idempotent.
	Close() error
}

// Statement is a query compiled against one engine session.
type Statement interface {
	// Exec binds args and runs the compiled query.
	Exec(args []interface{}) (*types.QueryResult, error)

	// Close releases the compiled plan. Idempotent.
	Close() error
}

// Engine is one open engine session. Transaction calls move the session's
// own transaction state; Exec, Stream and Prepare route through the active
// transaction when there is one.
type Engine interface {
	Exec(sql string, args []interface{}) (*types.QueryResult, error)
	Prepare(sql string) (Statement, error)
	Stream(sql string) (RowIter, error)

	Begin() error
	Commit() error
	Rollback() error

	// Rekey re-encrypts storage under a new key.
	Rekey(key string) error

	// Export serializes the full database to path, replacing any existing
	// file there.
	Export(path string) error

	// Import replaces the database's user tables with those found in the
	// database file at path.
	Import(path string) error

	Close() error
}

// Config carries engine open options. The zero value plus a Name is a
// usable plain-text configuration.
type Config struct {
	// Name is the database path, or ":memory:" for a throwaway database.
	Name string

	// Key is the encryption key; empty means plain text.
	Key string

	// JournalMode selects the SQLite journal ("WAL", "DELETE", "MEMORY").
	// Empty leaves the engine default.
	JournalMode string

	// BusyTimeoutMS bounds lock waits. Zero leaves the engine default.
	BusyTimeoutMS int

	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool
}

// Opener produces an engine session for a configuration. The session layer
// takes an Opener so tests can substitute a fake engine.
type Opener func(cfg Config) (Engine, error)
