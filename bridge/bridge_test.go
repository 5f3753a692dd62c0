package bridge

import (
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/tomyedwab/bridgedb/types"
)

func openTestDB(t *testing.T) uint64 {
	t.Helper()
	conn := Open(path.Join(t.TempDir(), "bridge.db"))
	if conn == 0 {
		t.Fatalf("Open failed: %s", LastError())
	}
	t.Cleanup(func() { Close(conn) })
	return conn
}

func TestOpenFailureSentinel(t *testing.T) {
	if handle := Open(""); handle != 0 {
		t.Fatalf("Open(\"\") = %d, want 0", handle)
	}
	if LastError() == "" {
		t.Fatal("LastError is empty after a failed open")
	}

	if handle := OpenEncrypted(path.Join(t.TempDir(), "x.db"), "short"); handle != 0 {
		t.Fatalf("OpenEncrypted with short key = %d, want 0", handle)
	}
	if !strings.Contains(LastError(), "key") {
		t.Fatalf("LastError = %q, want key complaint", LastError())
	}
}

func TestExecutePayloadRoundTrip(t *testing.T) {
	conn := openTestDB(t)

	payload := Execute(conn, "CREATE TABLE t (id INT, name TEXT)")
	if payload == nil {
		t.Fatalf("create failed: %s", LastError())
	}
	FreeText(payload)

	status := ExecuteBatch(conn, `["INSERT INTO t VALUES (1, 'a')", "INSERT INTO t VALUES (2, 'b')"]`)
	if status != StatusOK {
		t.Fatalf("batch failed: %s", LastError())
	}

	payload = ExecuteWithParams(conn, "SELECT name FROM t WHERE id = ?", `[2]`)
	if payload == nil {
		t.Fatalf("select failed: %s", LastError())
	}
	result, err := types.DecodeResult(string(payload))
	FreeText(payload)
	if err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if len(result.Rows) != 1 || !result.Rows[0].Values[0].Equal(types.Text("b")) {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestFailureSentinelsAndLastError(t *testing.T) {
	conn := openTestDB(t)

	if payload := Execute(conn, "BROKEN SQL"); payload != nil {
		t.Fatalf("Execute of broken SQL returned payload %q", payload)
	}
	if LastError() == "" {
		t.Fatal("LastError is empty after failed execute")
	}

	// A subsequent success does not fabricate stale errors into failures;
	// the next failure overwrites the message.
	payload := Execute(conn, "SELECT 1")
	if payload == nil {
		t.Fatalf("SELECT 1 failed: %s", LastError())
	}
	FreeText(payload)

	if status := Commit(conn); status != StatusError {
		t.Fatalf("Commit with no tx = %d, want %d", status, StatusError)
	}
	if !strings.Contains(LastError(), "transaction") {
		t.Fatalf("LastError = %q, want transaction complaint", LastError())
	}
}

func TestTransactionStatusCodes(t *testing.T) {
	conn := openTestDB(t)

	if status := BeginTransaction(conn); status != StatusOK {
		t.Fatalf("BeginTransaction = %d: %s", status, LastError())
	}
	if status := BeginTransaction(conn); status != StatusError {
		t.Fatalf("nested BeginTransaction = %d, want error", status)
	}
	if status := Rollback(conn); status != StatusOK {
		t.Fatalf("Rollback = %d: %s", status, LastError())
	}
}

func TestPreparedStatementOverBridge(t *testing.T) {
	conn := openTestDB(t)
	FreeText(Execute(conn, "CREATE TABLE t (id INT)"))

	stmt := Prepare(conn, "INSERT INTO t VALUES (?)")
	if stmt == 0 {
		t.Fatalf("Prepare failed: %s", LastError())
	}
	for i := 1; i <= 2; i++ {
		payload := StmtExecute(stmt, `[{"type": "integer", "value": 5}]`)
		if payload == nil {
			t.Fatalf("StmtExecute failed: %s", LastError())
		}
		FreeText(payload)
	}
	if status := StmtFinalize(stmt); status != StatusOK {
		t.Fatalf("StmtFinalize = %d", status)
	}
	if payload := StmtExecute(stmt, "[]"); payload != nil {
		t.Fatal("StmtExecute after finalize returned a payload")
	}
}

func TestStreamingOverBridge(t *testing.T) {
	conn := openTestDB(t)
	FreeText(Execute(conn, "CREATE TABLE t (id INT)"))
	if status := ExecuteBatch(conn, `["INSERT INTO t VALUES (1)", "INSERT INTO t VALUES (2)", "INSERT INTO t VALUES (3)"]`); status != StatusOK {
		t.Fatalf("seed batch failed: %s", LastError())
	}

	stream := PrepareStream(conn, "SELECT id FROM t ORDER BY id")
	if stream == 0 {
		t.Fatalf("PrepareStream failed: %s", LastError())
	}

	if payload := FetchNext(stream, 0); payload != nil {
		t.Fatal("FetchNext(0) returned a payload, want sentinel")
	}

	var total int
	for {
		payload := FetchNext(stream, 2)
		if payload == nil {
			t.Fatalf("FetchNext failed: %s", LastError())
		}
		rows, err := types.DecodeRows(string(payload))
		FreeText(payload)
		if err != nil {
			t.Fatalf("batch payload did not decode: %v", err)
		}
		if len(rows) == 0 {
			break
		}
		total += len(rows)
	}
	if total != 3 {
		t.Fatalf("streamed %d rows, want 3", total)
	}

	if status := StreamClose(stream); status != StatusOK {
		t.Fatalf("StreamClose = %d", status)
	}
}

func TestLastErrorIsGoroutineScoped(t *testing.T) {
	conn := openTestDB(t)

	// Fail on this goroutine.
	if payload := Execute(conn, "NOPE"); payload != nil {
		t.Fatal("expected failure")
	}
	mine := LastError()
	if mine == "" {
		t.Fatal("LastError is empty after failure")
	}

	// A failure on another goroutine must not disturb this goroutine's
	// message, and vice versa.
	var wg sync.WaitGroup
	wg.Add(1)
	var theirs string
	go func() {
		defer wg.Done()
		Execute(conn, "ALSO NOT SQL")
		theirs = LastError()
	}()
	wg.Wait()

	if theirs == "" {
		t.Fatal("other goroutine saw no error after its own failure")
	}
	if got := LastError(); got != mine {
		t.Fatalf("this goroutine's LastError changed from %q to %q", mine, got)
	}
}

func TestFreeTextNilIsNoOp(t *testing.T) {
	FreeText(nil)
}
