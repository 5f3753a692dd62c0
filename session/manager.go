package session

// Package session implements the handle-mediated resource layer between the
// bridge surface and the SQL engine: connection sessions, prepared
// statements, stream cursors, the transaction state machine, and cascading
// teardown. All engine access for one connection (including its statements
// and cursors) is serialized on the connection's mutex, since the engine is
// not assumed reentrant; operations on unrelated connections never contend.

import (
	"fmt"
	"log"
	"time"

	"github.com/tomyedwab/bridgedb/engine"
	"github.com/tomyedwab/bridgedb/registry"
)

// Config controls a Manager. The zero value is usable: it opens real SQLite
// databases and runs no idle reaper.
type Config struct {
	// Opener produces engine sessions. Defaults to engine.OpenSQLite.
	Opener engine.Opener

	// JournalMode, BusyTimeoutMS and ForeignKeys are applied to every
	// connection this manager opens.
	JournalMode   string
	BusyTimeoutMS int
	ForeignKeys   bool

	// IdleTimeout, when positive, starts a reaper that force-closes
	// handles unused for that long. ReapInterval defaults to one minute.
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

// Manager owns the handle table and the lifecycle of every session
// resource. One Manager backs the whole bridge surface for the life of the
// process.
type Manager struct {
	table      *registry.Table
	cfg        Config
	stopReaper func()
}

// NewManager creates a Manager from cfg, starting the idle reaper if
// configured.
func NewManager(cfg Config) *Manager {
	if cfg.Opener == nil {
		cfg.Opener = engine.OpenSQLite
	}
	m := &Manager{table: registry.New(), cfg: cfg}

	if cfg.IdleTimeout > 0 {
		interval := cfg.ReapInterval
		if interval <= 0 {
			interval = time.Minute
		}
		m.stopReaper = m.table.StartReaper(cfg.IdleTimeout, interval, m.onExpire)
	}
	return m
}

// onExpire tears down resources the reaper evicted from the table.
func (m *Manager) onExpire(handle uint64, kind registry.Kind, resource interface{}) {
	switch kind {
	case registry.KindConnection:
		m.teardownConnection(resource.(*connection))
	case registry.KindStatement:
		st := resource.(*statement)
		st.conn.removeChild(handle)
		st.conn.mu.Lock()
		_ = st.stmt.Close()
		st.conn.mu.Unlock()
	case registry.KindStream:
		cur := resource.(*cursor)
		cur.conn.removeChild(handle)
		cur.conn.mu.Lock()
		cur.state = cursorClosed
		_ = cur.iter.Close()
		cur.conn.mu.Unlock()
	}
}

// Shutdown force-closes every live connection and stops the reaper. Used at
// process teardown; handles do not survive the process anyway.
func (m *Manager) Shutdown() {
	if m.stopReaper != nil {
		m.stopReaper()
	}
	for _, h := range m.table.Handles(registry.KindConnection) {
		_ = m.Close(h)
	}
}

// Open opens or creates the database identified by name and returns a fresh
// connection handle.
func (m *Manager) Open(name string) (uint64, error) {
	return m.open(name, "")
}

// OpenEncrypted opens or creates an encrypted database. The key must be at
// least MinKeyLen characters.
func (m *Manager) OpenEncrypted(name, key string) (uint64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	return m.open(name, key)
}

// MinKeyLen is the minimum accepted encryption key length.
const MinKeyLen = 8

func validateKey(key string) error {
	if len(key) < MinKeyLen {
		return NewBadKeyError(fmt.Sprintf("encryption key must be at least %d characters", MinKeyLen))
	}
	return nil
}

func (m *Manager) open(name, key string) (uint64, error) {
	if name == "" {
		return 0, NewInvalidArgumentError("database name cannot be empty")
	}

	eng, err := m.cfg.Opener(engine.Config{
		Name:          name,
		Key:           key,
		JournalMode:   m.cfg.JournalMode,
		BusyTimeoutMS: m.cfg.BusyTimeoutMS,
		ForeignKeys:   m.cfg.ForeignKeys,
	})
	if err != nil {
		if IsBadKey(err) {
			return 0, err
		}
		return 0, classifyOpenError(name, err)
	}

	conn := newConnection(name, key != "", eng)
	handle := m.table.Allocate(registry.KindConnection, conn)
	log.Printf("session: opened database %q as connection %s (handle %d)", name, conn.id, handle)
	return handle, nil
}

// Close releases the connection handle and cascades teardown to every live
// child statement and cursor. Closing an unknown handle is a silent no-op
// so caller cleanup paths stay simple.
func (m *Manager) Close(handle uint64) error {
	resource, err := m.table.Release(handle, registry.KindConnection)
	if err != nil {
		return nil
	}
	conn := resource.(*connection)

	// Children come out of the table first so their handles go stale
	// before any engine state is torn down.
	conn.mu.Lock()
	children := conn.childHandles()
	conn.mu.Unlock()
	for h, k := range children {
		_, _ = m.table.Release(h, k)
	}

	m.teardownConnection(conn)
	log.Printf("session: closed connection %s (handle %d)", conn.id, handle)
	return nil
}

// teardownConnection closes child resources depth-first, then the engine.
// Callers must already have removed the connection and its children from
// the handle table.
func (m *Manager) teardownConnection(conn *connection) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return
	}
	conn.closed = true

	for _, cur := range conn.cursors {
		cur.state = cursorClosed
		_ = cur.iter.Close()
	}
	conn.cursors = nil
	for _, st := range conn.statements {
		_ = st.stmt.Close()
	}
	conn.statements = nil

	if err := conn.eng.Close(); err != nil {
		log.Printf("session: error closing engine for connection %s: %v", conn.id, err)
	}
}

func (m *Manager) resolveConnection(handle uint64) (*connection, error) {
	resource, err := m.table.Resolve(handle, registry.KindConnection)
	if err != nil {
		return nil, wrapResolveError(err)
	}
	return resource.(*connection), nil
}

func (m *Manager) resolveStatement(handle uint64) (*statement, error) {
	resource, err := m.table.Resolve(handle, registry.KindStatement)
	if err != nil {
		return nil, wrapResolveError(err)
	}
	return resource.(*statement), nil
}

func (m *Manager) resolveCursor(handle uint64) (*cursor, error) {
	resource, err := m.table.Resolve(handle, registry.KindStream)
	if err != nil {
		return nil, wrapResolveError(err)
	}
	return resource.(*cursor), nil
}

// classifyOpenError distinguishes key failures from plain open failures.
func classifyOpenError(name string, err error) error {
	wrapped := wrapEngineError(fmt.Sprintf("failed to open database %q", name), err)
	if IsBadKey(wrapped) {
		return wrapped
	}
	return NewOpenFailedError(fmt.Sprintf("failed to open database %q", name), err)
}
