package session

import (
	"fmt"
	"log"

	"github.com/tomyedwab/bridgedb/engine"
	"github.com/tomyedwab/bridgedb/registry"
	"github.com/tomyedwab/bridgedb/types"
)

// statement is a compiled query bound to exactly one connection. It cannot
// outlive the connection: closing the connection releases its handle and
// closes the compiled plan.
type statement struct {
	conn *connection
	stmt engine.Statement
	sql  string
}

// Prepare compiles sql against the connection and returns a statement
// handle reusable across parameter bindings.
func (m *Manager) Prepare(connHandle uint64, sql string) (uint64, error) {
	conn, err := m.resolveConnection(connHandle)
	if err != nil {
		return 0, err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return 0, NewInvalidHandleError("connection is closed", nil)
	}

	compiled, err := conn.eng.Prepare(sql)
	if err != nil {
		return 0, NewSQLError(fmt.Sprintf("failed to prepare statement on connection %s", conn.id), err)
	}

	st := &statement{conn: conn, stmt: compiled, sql: sql}
	handle := m.table.Allocate(registry.KindStatement, st)
	conn.statements[handle] = st
	return handle, nil
}

// ExecuteStatement binds a parameter payload and runs the prepared
// statement. May be called repeatedly with different payloads.
func (m *Manager) ExecuteStatement(stmtHandle uint64, paramsPayload string) (*types.QueryResult, error) {
	args, err := decodeArgs(paramsPayload)
	if err != nil {
		return nil, err
	}
	return m.ExecuteStatementArgs(stmtHandle, args)
}

// ExecuteStatementArgs runs the prepared statement with already-decoded
// arguments.
func (m *Manager) ExecuteStatementArgs(stmtHandle uint64, args []interface{}) (*types.QueryResult, error) {
	st, err := m.resolveStatement(stmtHandle)
	if err != nil {
		return nil, err
	}

	st.conn.mu.Lock()
	defer st.conn.mu.Unlock()
	if st.conn.closed {
		return nil, NewInvalidHandleError("owning connection is closed", nil)
	}

	result, err := st.stmt.Exec(args)
	if err != nil {
		return nil, NewSQLError("prepared statement execution failed", err)
	}
	return result, nil
}

// Finalize releases the prepared statement. Finalizing an unknown or
// already-finalized handle is a silent no-op.
func (m *Manager) Finalize(stmtHandle uint64) error {
	resource, err := m.table.Release(stmtHandle, registry.KindStatement)
	if err != nil {
		return nil
	}
	st := resource.(*statement)

	st.conn.mu.Lock()
	defer st.conn.mu.Unlock()
	delete(st.conn.statements, stmtHandle)
	if err := st.stmt.Close(); err != nil {
		log.Printf("session: error finalizing statement %d: %v", stmtHandle, err)
	}
	return nil
}
