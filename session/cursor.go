package session

import (
	"fmt"
	"log"

	"github.com/tomyedwab/bridgedb/engine"
	"github.com/tomyedwab/bridgedb/registry"
	"github.com/tomyedwab/bridgedb/types"
)

type cursorState int

const (
	cursorOpen cursorState = iota
	cursorExhausted
	cursorClosed
)

// cursor iterates one logical query execution in bounded batches. Bounded
// batches cap the peak payload size crossing the boundary and let the
// caller apply backpressure through its fetch cadence.
type cursor struct {
	conn  *connection
	iter  engine.RowIter
	state cursorState
}

// PrepareStream compiles and begins executing sql, returning a stream
// handle whose cursor starts at the first row.
func (m *Manager) PrepareStream(connHandle uint64, sql string) (uint64, error) {
	conn, err := m.resolveConnection(connHandle)
	if err != nil {
		return 0, err
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return 0, NewInvalidHandleError("connection is closed", nil)
	}

	iter, err := conn.eng.Stream(sql)
	if err != nil {
		return 0, NewSQLError(fmt.Sprintf("failed to start stream on connection %s", conn.id), err)
	}

	cur := &cursor{conn: conn, iter: iter}
	handle := m.table.Allocate(registry.KindStream, cur)
	conn.cursors[handle] = cur
	return handle, nil
}

// FetchNext returns up to batchSize rows in engine order. The first empty
// batch marks exhaustion; every call after it also returns an empty batch,
// so callers can loop without special-casing the terminal fetch.
func (m *Manager) FetchNext(streamHandle uint64, batchSize int) ([]types.Row, error) {
	if batchSize <= 0 {
		return nil, NewInvalidArgumentError(fmt.Sprintf("batch size must be positive, got %d", batchSize))
	}

	cur, err := m.resolveCursor(streamHandle)
	if err != nil {
		return nil, err
	}

	cur.conn.mu.Lock()
	defer cur.conn.mu.Unlock()
	if cur.conn.closed {
		return nil, NewInvalidHandleError("owning connection is closed", nil)
	}
	if cur.state != cursorOpen {
		return []types.Row{}, nil
	}

	rows := make([]types.Row, 0, batchSize)
	for len(rows) < batchSize {
		row, ok, err := cur.iter.Next()
		if err != nil {
			return nil, NewSQLError("stream fetch failed", err)
		}
		if !ok {
			// Engine-side iteration state is released eagerly; the
			// handle stays valid for idempotent fetches and close.
			cur.state = cursorExhausted
			_ = cur.iter.Close()
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CloseStream releases the cursor's engine-side iteration state. Closing an
// unknown, exhausted or already-closed stream is a silent no-op. The handle
// itself stays registered until the owning connection closes, so that late
// fetches on a closed cursor see an empty batch instead of a stale-handle
// error.
func (m *Manager) CloseStream(streamHandle uint64) error {
	resource, err := m.table.Resolve(streamHandle, registry.KindStream)
	if err != nil {
		return nil
	}
	cur := resource.(*cursor)

	cur.conn.mu.Lock()
	defer cur.conn.mu.Unlock()
	cur.state = cursorClosed
	if err := cur.iter.Close(); err != nil {
		log.Printf("session: error closing stream %d: %v", streamHandle, err)
	}
	return nil
}
