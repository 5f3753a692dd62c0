package bridge

import (
	"github.com/tomyedwab/bridgedb/session"
	"github.com/tomyedwab/bridgedb/types"
)

// Status codes returned by operations that carry no payload.
const (
	StatusOK    int32 = 0
	StatusError int32 = -1
)

var manager = session.NewManager(session.Config{})

// Configure replaces the process-wide manager. Call once at startup, before
// any handles exist; existing handles are force-closed.
func Configure(cfg session.Config) {
	manager.Shutdown()
	manager = session.NewManager(cfg)
}

// Shutdown force-closes every live handle. All outstanding handles become
// invalid.
func Shutdown() {
	manager.Shutdown()
}

// Open opens or creates the database identified by name. Returns a
// connection handle, or 0 on failure.
func Open(name string) uint64 {
	clearLastError()
	handle, err := manager.Open(name)
	if err != nil {
		setLastError(err.Error())
		return 0
	}
	return handle
}

// OpenEncrypted opens or creates an encrypted database. Returns a
// connection handle, or 0 on failure.
func OpenEncrypted(name, key string) uint64 {
	clearLastError()
	handle, err := manager.OpenEncrypted(name, key)
	if err != nil {
		setLastError(err.Error())
		return 0
	}
	return handle
}

// Execute runs one parameterless statement and returns the encoded result,
// or nil on failure. Release the payload with FreeText.
func Execute(handle uint64, sql string) []byte {
	clearLastError()
	result, err := manager.Execute(handle, sql)
	if err != nil {
		setLastError(err.Error())
		return nil
	}
	return encodeResultPayload(result)
}

// ExecuteWithParams runs one statement with an interchange-format parameter
// payload. Returns the encoded result, or nil on failure.
func ExecuteWithParams(handle uint64, sql, params string) []byte {
	clearLastError()
	result, err := manager.ExecuteWithParams(handle, sql, params)
	if err != nil {
		setLastError(err.Error())
		return nil
	}
	return encodeResultPayload(result)
}

// ExecuteBatch runs an ordered JSON array of SQL statements, stopping at
// the first failure.
func ExecuteBatch(handle uint64, batch string) int32 {
	clearLastError()
	statements, err := types.DecodeBatch(batch)
	if err != nil {
		setLastError(err.Error())
		return StatusError
	}
	if err := manager.ExecuteBatch(handle, statements); err != nil {
		setLastError(err.Error())
		return StatusError
	}
	return StatusOK
}

// BeginTransaction starts a transaction on the connection.
func BeginTransaction(handle uint64) int32 {
	return status(manager.BeginTransaction(handle))
}

// Commit commits the connection's active transaction.
func Commit(handle uint64) int32 {
	return status(manager.Commit(handle))
}

// Rollback discards the connection's active transaction.
func Rollback(handle uint64) int32 {
	return status(manager.Rollback(handle))
}

// Prepare compiles sql against the connection. Returns a statement handle,
// or 0 on failure.
func Prepare(connHandle uint64, sql string) uint64 {
	clearLastError()
	handle, err := manager.Prepare(connHandle, sql)
	if err != nil {
		setLastError(err.Error())
		return 0
	}
	return handle
}

// StmtExecute binds an interchange-format parameter payload and runs the
// prepared statement. Returns the encoded result, or nil on failure.
func StmtExecute(stmtHandle uint64, params string) []byte {
	clearLastError()
	result, err := manager.ExecuteStatement(stmtHandle, params)
	if err != nil {
		setLastError(err.Error())
		return nil
	}
	return encodeResultPayload(result)
}

// StmtFinalize releases the prepared statement. Idempotent.
func StmtFinalize(stmtHandle uint64) int32 {
	return status(manager.Finalize(stmtHandle))
}

// PrepareStream compiles and begins executing sql as a stream. Returns a
// stream handle, or 0 on failure.
func PrepareStream(connHandle uint64, sql string) uint64 {
	clearLastError()
	handle, err := manager.PrepareStream(connHandle, sql)
	if err != nil {
		setLastError(err.Error())
		return 0
	}
	return handle
}

// FetchNext returns the next batch of rows as an encoded JSON array, "[]"
// once the stream is exhausted or closed, or nil on failure. Release the
// payload with FreeText.
func FetchNext(streamHandle uint64, batchSize int32) []byte {
	clearLastError()
	rows, err := manager.FetchNext(streamHandle, int(batchSize))
	if err != nil {
		setLastError(err.Error())
		return nil
	}
	payload, err := types.EncodeRows(rows)
	if err != nil {
		setLastError(err.Error())
		return nil
	}
	return leaseText(payload)
}

// StreamClose releases the stream's engine-side state. Idempotent.
func StreamClose(streamHandle uint64) int32 {
	return status(manager.CloseStream(streamHandle))
}

// Rekey re-encrypts the database under a new key. Refused while a
// transaction is active.
func Rekey(handle uint64, newKey string) int32 {
	return status(manager.Rekey(handle, newKey))
}

// Export serializes the full database to path.
func Export(handle uint64, path string) int32 {
	return status(manager.Export(handle, path))
}

// Import restores user tables from the database file at path.
func Import(handle uint64, path string) int32 {
	return status(manager.Import(handle, path))
}

// Close releases the connection and every prepared statement and stream
// cursor it spawned. Idempotent.
func Close(handle uint64) int32 {
	return status(manager.Close(handle))
}

func status(err error) int32 {
	clearLastError()
	if err != nil {
		setLastError(err.Error())
		return StatusError
	}
	return StatusOK
}

func encodeResultPayload(result *types.QueryResult) []byte {
	payload, err := types.EncodeResult(result)
	if err != nil {
		setLastError(err.Error())
		return nil
	}
	return leaseText(payload)
}
