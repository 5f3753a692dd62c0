package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tomyedwab/bridgedb/engine"
	"github.com/tomyedwab/bridgedb/registry"
	"github.com/tomyedwab/bridgedb/types"
)

// connection wraps one engine session together with its transaction state
// and the child resources it has spawned. The mutex serializes all engine
// access for the connection and its children.
type connection struct {
	mu sync.Mutex

	// id correlates log lines for one connection across its lifetime.
	id        string
	name      string
	encrypted bool
	eng       engine.Engine

	txActive bool
	closed   bool

	statements map[uint64]*statement
	cursors    map[uint64]*cursor
}

func newConnection(name string, encrypted bool, eng engine.Engine) *connection {
	return &connection{
		id:         uuid.NewString(),
		name:       name,
		encrypted:  encrypted,
		eng:        eng,
		statements: make(map[uint64]*statement),
		cursors:    make(map[uint64]*cursor),
	}
}

// childHandles returns the live child handles with their kinds. Caller must
// hold conn.mu.
func (conn *connection) childHandles() map[uint64]registry.Kind {
	children := make(map[uint64]registry.Kind, len(conn.statements)+len(conn.cursors))
	for h := range conn.cursors {
		children[h] = registry.KindStream
	}
	for h := range conn.statements {
		children[h] = registry.KindStatement
	}
	return children
}

func (conn *connection) removeChild(handle uint64) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	delete(conn.statements, handle)
	delete(conn.cursors, handle)
}

// Execute runs one parameterless statement on the connection, materializing
// any result rows. Large results belong on the streaming path.
func (m *Manager) Execute(handle uint64, sql string) (*types.QueryResult, error) {
	return m.ExecuteArgs(handle, sql, nil)
}

// ExecuteWithParams runs one statement with a parameter payload in the
// interchange format.
func (m *Manager) ExecuteWithParams(handle uint64, sql, paramsPayload string) (*types.QueryResult, error) {
	args, err := decodeArgs(paramsPayload)
	if err != nil {
		return nil, err
	}
	return m.ExecuteArgs(handle, sql, args)
}

// ExecuteArgs runs one statement with already-decoded arguments. Go-side
// callers can skip the interchange codec entirely.
func (m *Manager) ExecuteArgs(handle uint64, sql string, args []interface{}) (*types.QueryResult, error) {
	conn, err := m.resolveConnection(handle)
	if err != nil {
		return nil, err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return nil, NewInvalidHandleError("connection is closed", nil)
	}

	result, err := conn.eng.Exec(sql, args)
	if err != nil {
		return nil, NewSQLError(fmt.Sprintf("SQL execution failed for connection %s", conn.id), err)
	}
	return result, nil
}

// ExecuteBatch executes statements in order, stopping at the first failure.
// Statements already executed stay applied unless the caller wrapped the
// batch in an explicit transaction.
func (m *Manager) ExecuteBatch(handle uint64, statements []string) error {
	conn, err := m.resolveConnection(handle)
	if err != nil {
		return err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return NewInvalidHandleError("connection is closed", nil)
	}

	for i, sql := range statements {
		if _, err := conn.eng.Exec(sql, nil); err != nil {
			return NewSQLError(fmt.Sprintf("batch statement %d failed", i), err)
		}
	}
	return nil
}

// BeginTransaction moves the connection from None to Active.
func (m *Manager) BeginTransaction(handle uint64) error {
	conn, err := m.resolveConnection(handle)
	if err != nil {
		return err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return NewInvalidHandleError("connection is closed", nil)
	}
	if conn.txActive {
		return NewTransactionStateError("transaction already active")
	}
	if err := conn.eng.Begin(); err != nil {
		return wrapEngineError("failed to begin transaction", err)
	}
	conn.txActive = true
	return nil
}

// Commit moves the connection from Active to None, committing.
func (m *Manager) Commit(handle uint64) error {
	return m.endTransaction(handle, true)
}

// Rollback moves the connection from Active to None, discarding.
func (m *Manager) Rollback(handle uint64) error {
	return m.endTransaction(handle, false)
}

func (m *Manager) endTransaction(handle uint64, commit bool) error {
	conn, err := m.resolveConnection(handle)
	if err != nil {
		return err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return NewInvalidHandleError("connection is closed", nil)
	}
	if !conn.txActive {
		return NewTransactionStateError("no active transaction")
	}

	if commit {
		err = conn.eng.Commit()
	} else {
		err = conn.eng.Rollback()
	}
	// The engine's transaction is finished either way.
	conn.txActive = false
	if err != nil {
		return wrapEngineError("failed to end transaction", err)
	}
	return nil
}

// Rekey re-encrypts the database under a new key. Refused while a
// transaction is active; the current key stays valid on any failure.
func (m *Manager) Rekey(handle uint64, newKey string) error {
	if err := validateKey(newKey); err != nil {
		return err
	}

	conn, err := m.resolveConnection(handle)
	if err != nil {
		return err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return NewInvalidHandleError("connection is closed", nil)
	}
	if conn.txActive {
		return NewTransactionStateError("cannot rekey while a transaction is active")
	}
	if err := conn.eng.Rekey(newKey); err != nil {
		return wrapEngineError("rekey failed", err)
	}
	conn.encrypted = true
	return nil
}

// Export serializes the full database to path.
func (m *Manager) Export(handle uint64, path string) error {
	conn, err := m.resolveConnection(handle)
	if err != nil {
		return err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return NewInvalidHandleError("connection is closed", nil)
	}
	if err := conn.eng.Export(path); err != nil {
		return wrapEngineError(fmt.Sprintf("export to %q failed", path), err)
	}
	return nil
}

// Import restores user tables from the database file at path.
func (m *Manager) Import(handle uint64, path string) error {
	conn, err := m.resolveConnection(handle)
	if err != nil {
		return err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return NewInvalidHandleError("connection is closed", nil)
	}
	if err := conn.eng.Import(path); err != nil {
		return wrapEngineError(fmt.Sprintf("import from %q failed", path), err)
	}
	return nil
}

// decodeArgs converts an interchange parameter payload into engine
// arguments.
func decodeArgs(payload string) ([]interface{}, error) {
	params, err := types.DecodeParams(payload)
	if err != nil {
		return nil, NewParamDecodeError("failed to decode parameters", err)
	}
	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = p.Arg()
	}
	return args, nil
}
