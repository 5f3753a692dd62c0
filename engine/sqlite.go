package engine

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/tomyedwab/bridgedb/types"
)

// SQLite is the production Engine implementation, backed by go-sqlite3
// through sqlx. Encryption uses the SQLCipher pragma surface: PRAGMA key on
// every pooled connection and PRAGMA rekey for key rotation, which take
// effect when the driver is built against SQLCipher and are inert no-ops
// otherwise.
type SQLite struct {
	db  *sqlx.DB
	tx  *sqlx.Tx
	key *keyBox
	cfg Config
}

// keyBox holds the current encryption key where the driver's connect hook
// can read it, so connections opened after a rekey use the new key.
type keyBox struct {
	mu  sync.Mutex
	key string
}

func (k *keyBox) get() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.key
}

func (k *keyBox) set(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = key
}

// OpenSQLite opens (or creates) the database described by cfg. It is the
// default Opener used by the session layer.
//
// Keyed databases register a one-off driver whose connect hook applies
// PRAGMA key, so every connection the pool opens -- including ones created
// after the initial open -- can read the database.
func OpenSQLite(cfg Config) (Engine, error) {
	driverName := "sqlite3"
	key := &keyBox{key: cfg.Key}
	if cfg.Key != "" {
		driverName = "sqlite3_keyed_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				stmt := fmt.Sprintf("PRAGMA key = '%s'", escapeSQLString(key.get()))
				_, err := conn.Exec(stmt, nil)
				return err
			},
		})
	}

	db, err := sqlx.Connect(driverName, buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", cfg.Name, err)
	}

	e := &SQLite{db: db, key: key, cfg: cfg}
	if cfg.Key != "" {
		if err := e.verifyKey(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return e, nil
}

func buildDSN(cfg Config) string {
	opts := url.Values{}
	if cfg.JournalMode != "" {
		opts.Set("_journal_mode", cfg.JournalMode)
	}
	if cfg.BusyTimeoutMS > 0 {
		opts.Set("_busy_timeout", fmt.Sprintf("%d", cfg.BusyTimeoutMS))
	}
	if cfg.ForeignKeys {
		opts.Set("_foreign_keys", "on")
	}
	if len(opts) == 0 {
		return cfg.Name
	}
	return fmt.Sprintf("file:%s?%s", cfg.Name, opts.Encode())
}

// verifyKey probes the schema to confirm the configured key can actually
// read the database.
func (e *SQLite) verifyKey() error {
	var n int
	if err := e.db.Get(&n, "SELECT count(*) FROM sqlite_master"); err != nil {
		return fmt.Errorf("key does not unlock database: %w: %v", ErrBadKey, err)
	}
	return nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (e *SQLite) Exec(query string, args []interface{}) (*types.QueryResult, error) {
	if returnsRows(query) {
		return e.queryRows(query, args)
	}

	var res sql.Result
	var err error
	if e.tx != nil {
		res, err = e.tx.Exec(query, args...)
	} else {
		res, err = e.db.Exec(query, args...)
	}
	if err != nil {
		return nil, err
	}
	return execResult(res), nil
}

func (e *SQLite) queryRows(query string, args []interface{}) (*types.QueryResult, error) {
	var rows *sqlx.Rows
	var err error
	if e.tx != nil {
		rows, err = e.tx.Queryx(query, args...)
	} else {
		rows, err = e.db.Queryx(query, args...)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

func collectRows(rows *sqlx.Rows) (*types.QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	blobs := blobColumns(rows)

	result := &types.QueryResult{Columns: columns, Rows: []types.Row{}}
	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row, err := convertRow(raw, blobs)
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// blobColumns flags which columns are declared BLOB. The driver hands both
// TEXT and BLOB cells to Scan as []byte, so the declared type is the only
// way to keep text text on the wire; expression columns with no declared
// type default to text.
func blobColumns(rows *sqlx.Rows) []bool {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil
	}
	blobs := make([]bool, len(columnTypes))
	for i, ct := range columnTypes {
		blobs[i] = strings.Contains(strings.ToUpper(ct.DatabaseTypeName()), "BLOB")
	}
	return blobs
}

func convertRow(raw []interface{}, blobs []bool) (types.Row, error) {
	row := types.Row{Values: make([]types.ColumnValue, len(raw))}
	for i, cell := range raw {
		if b, ok := cell.([]byte); ok && (blobs == nil || i >= len(blobs) || !blobs[i]) {
			row.Values[i] = types.Text(string(b))
			continue
		}
		v, err := types.FromScan(cell)
		if err != nil {
			return types.Row{}, fmt.Errorf("column %d: %w", i, err)
		}
		row.Values[i] = v
	}
	return row, nil
}

// returnsRows classifies a statement by its leading keyword. Statements that
// produce a result set go through the query path; everything else goes
// through Exec so rows-affected and last-insert-id are available.
func returnsRows(query string) bool {
	s := strings.ToLower(strings.TrimSpace(query))
	for _, prefix := range []string{"select", "values", "with", "pragma", "explain"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func (e *SQLite) Prepare(query string) (Statement, error) {
	stmt, err := e.db.Preparex(query)
	if err != nil {
		return nil, err
	}
	return &sqliteStmt{engine: e, stmt: stmt, sql: query}, nil
}

func (e *SQLite) Stream(query string) (RowIter, error) {
	var rows *sqlx.Rows
	var err error
	if e.tx != nil {
		rows, err = e.tx.Queryx(query)
	} else {
		rows, err = e.db.Queryx(query)
	}
	if err != nil {
		return nil, err
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	return &sqliteIter{rows: rows, columns: columns, blobs: blobColumns(rows)}, nil
}

func (e *SQLite) Begin() error {
	if e.tx != nil {
		return fmt.Errorf("transaction already active: %w", ErrTxState)
	}
	tx, err := e.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	e.tx = tx
	return nil
}

func (e *SQLite) Commit() error {
	if e.tx == nil {
		return fmt.Errorf("no active transaction: %w", ErrTxState)
	}
	err := e.tx.Commit()
	e.tx = nil
	return err
}

func (e *SQLite) Rollback() error {
	if e.tx == nil {
		return fmt.Errorf("no active transaction: %w", ErrTxState)
	}
	err := e.tx.Rollback()
	e.tx = nil
	return err
}

func (e *SQLite) Rekey(key string) error {
	if e.tx != nil {
		return fmt.Errorf("cannot rekey inside a transaction: %w", ErrTxState)
	}
	if _, err := e.db.Exec(fmt.Sprintf("PRAGMA rekey = '%s'", escapeSQLString(key))); err != nil {
		return fmt.Errorf("rekey failed: %w: %v", ErrBadKey, err)
	}
	// Connections opened from here on must key with the new value.
	e.key.set(key)
	return nil
}

func (e *SQLite) Export(path string) error {
	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot replace export target %q: %w: %v", path, ErrIO, err)
	}
	if _, err := e.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", escapeSQLString(path))); err != nil {
		return fmt.Errorf("export to %q failed: %w: %v", path, ErrIO, err)
	}
	log.Printf("engine: exported database %q to %q", e.cfg.Name, path)
	return nil
}

func (e *SQLite) Import(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot read import source %q: %w: %v", path, ErrIO, err)
	}

	// Attach under a unique alias so concurrent imports into different
	// sessions never collide on the schema name.
	alias := "import_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := e.db.Exec(fmt.Sprintf("ATTACH DATABASE '%s' AS %s", escapeSQLString(path), alias)); err != nil {
		return fmt.Errorf("failed to attach import source: %w", err)
	}
	defer e.db.Exec(fmt.Sprintf("DETACH DATABASE %s", alias))

	var tables []string
	query := fmt.Sprintf(
		"SELECT name FROM %s.sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%%'", alias)
	if err := e.db.Select(&tables, query); err != nil {
		return fmt.Errorf("failed to list tables in import source: %w", err)
	}

	for _, table := range tables {
		ident := quoteIdent(table)
		if _, err := e.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS main.%s", ident)); err != nil {
			return fmt.Errorf("failed to replace table %s: %w", table, err)
		}
		stmt := fmt.Sprintf("CREATE TABLE main.%s AS SELECT * FROM %s.%s", ident, alias, ident)
		if _, err := e.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to import table %s: %w", table, err)
		}
		log.Printf("engine: imported table %s from %q", table, path)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (e *SQLite) Close() error {
	if e.tx != nil {
		_ = e.tx.Rollback()
		e.tx = nil
	}
	return e.db.Close()
}

type sqliteStmt struct {
	engine *SQLite
	stmt   *sqlx.Stmt
	sql    string
	closed bool
}

func (s *sqliteStmt) Exec(args []interface{}) (*types.QueryResult, error) {
	if s.closed {
		return nil, fmt.Errorf("statement is finalized")
	}

	stmt := s.stmt
	if tx := s.engine.tx; tx != nil {
		// Rebind onto the active transaction, the way sql.Tx.Stmt does.
		txStmt := tx.Stmtx(s.stmt)
		defer txStmt.Close()
		stmt = txStmt
	}

	if returnsRows(s.sql) {
		rows, err := stmt.Queryx(args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return collectRows(rows)
	}

	res, err := stmt.Exec(args...)
	if err != nil {
		return nil, err
	}
	return execResult(res), nil
}

func (s *sqliteStmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stmt.Close()
}

func execResult(res sql.Result) *types.QueryResult {
	result := &types.QueryResult{Columns: []string{}, Rows: []types.Row{}}
	if n, err := res.RowsAffected(); err == nil {
		result.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		result.LastInsertID = id
	}
	return result
}

type sqliteIter struct {
	rows    *sqlx.Rows
	columns []string
	blobs   []bool
	closed  bool
}

func (it *sqliteIter) Columns() []string { return it.columns }

func (it *sqliteIter) Next() (types.Row, bool, error) {
	if it.closed {
		return types.Row{}, false, nil
	}
	if !it.rows.Next() {
		err := it.rows.Err()
		it.Close()
		return types.Row{}, false, err
	}
	raw, err := it.rows.SliceScan()
	if err != nil {
		return types.Row{}, false, fmt.Errorf("failed to scan row: %w", err)
	}
	row, err := convertRow(raw, it.blobs)
	if err != nil {
		return types.Row{}, false, err
	}
	return row, true, nil
}

func (it *sqliteIter) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.rows.Close()
}
