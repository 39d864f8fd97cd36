// Package engine is the leader side of sqliterelay: it owns the single
// *sql.DB handle against the embedded SQLite database and answers requests
// forwarded by followers, maintaining the statement and cursor handle
// tables.
//
// The embedded SQLite library itself (prepare/step/column_*) is out of
// scope here; it is the modernc.org/sqlite driver, used only from this
// package.
package engine

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	u "github.com/araddon/gou"

	"github.com/dataux/sqliterelay/protocol"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// Position is a reader cursor's row state.
type Position int

const (
	BeforeFirst Position = iota
	OnRow
	AfterLast
)

// PeerID identifies the follower connection that owns a handle, so that
// disconnection can finalize every handle that peer created, in the order
// they were created.
type PeerID uint64

// Error kinds the engine returns; the request dispatcher (Handler) reports
// them to the follower as the request's protocol exception kind.
var (
	ErrInvalidOperation = fmt.Errorf("engine: invalid operation")
	ErrUnknownHandle    = fmt.Errorf("engine: unknown handle")
)

type cursor struct {
	rows     *sql.Rows
	cols     []protocol.ColumnDescriptor
	position Position
	current  []interface{}
}

type statement struct {
	sqlText string
	stmt    *sql.Stmt
	peer    PeerID
	created time.Time
	seq     uint64
	cursor  *cursor
}

// Engine is the single-threaded executor owning the SQLite handle. All
// public methods acquire the same mutex: request handling is non-blocking
// apart from the SQLite call itself, and every handle-table mutation is
// serialized.
type Engine struct {
	db *sql.DB

	mu         sync.Mutex
	statements map[protocol.Handle]*statement
	peerOrder  map[PeerID][]protocol.Handle
	seq        uint64
}

// Open opens the embedded SQLite database at path and returns a ready
// Engine. path is forwarded verbatim to the driver, the same way
// connection-string options other than DefaultTimeout are forwarded
// verbatim to the underlying SQLite connection.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("engine: open %q: %w", path, err)
	}
	// SQLite's single-writer discipline: the leader's executor is the only
	// thing that should ever hold the handle, so we pin the pool to one
	// connection rather than let database/sql fan out writes.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: ping %q: %w", path, err)
	}
	u.Infof("engine: opened %q", path)
	return &Engine{
		db:         db,
		statements: make(map[protocol.Handle]*statement),
		peerOrder:  make(map[PeerID][]protocol.Handle),
	}, nil
}

// Close finalizes every live statement/cursor and closes the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for h, s := range e.statements {
		e.finalizeLocked(h, s)
	}
	return e.db.Close()
}

// CreateCommand prepares sqlText and returns a freshly allocated handle
// owned by peer. Empty/whitespace SQL is InvalidOperation.
func (e *Engine) CreateCommand(peer PeerID, sqlText string) (protocol.Handle, error) {
	if isBlank(sqlText) {
		return protocol.ZeroHandle, ErrInvalidOperation
	}

	stmt, err := e.db.Prepare(sqlText)
	if err != nil {
		return protocol.ZeroHandle, err // surfaced as CreateCommandException
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h := protocol.NewHandle()
	for {
		if _, exists := e.statements[h]; !exists {
			break
		}
		// Handle collisions are impossible in practice; this loop documents
		// and asserts that rather than trusting it blindly.
		h = protocol.NewHandle()
	}
	e.seq++
	e.statements[h] = &statement{sqlText: sqlText, stmt: stmt, peer: peer, created: time.Now(), seq: e.seq}
	e.peerOrder[peer] = append(e.peerOrder[peer], h)
	u.Debugf("engine: peer %d created statement %s: %s", peer, h, sqlText)
	return h, nil
}

// DisposeCommand finalizes the statement and its cursor, if any. Absent
// handles are silently ignored, making DisposeCommand idempotent.
func (e *Engine) DisposeCommand(h protocol.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.statements[h]
	if !ok {
		return
	}
	e.finalizeLocked(h, s)
}

func (e *Engine) finalizeLocked(h protocol.Handle, s *statement) {
	if s.cursor != nil && s.cursor.rows != nil {
		s.cursor.rows.Close()
	}
	s.stmt.Close()
	delete(e.statements, h)
	order := e.peerOrder[s.peer]
	for i, oh := range order {
		if oh == h {
			e.peerOrder[s.peer] = append(order[:i], order[i+1:]...)
			break
		}
	}
}

// DisposePeer finalizes every handle owned by peer, in the order they were
// created, on disconnection.
func (e *Engine) DisposePeer(peer PeerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	handles := append([]protocol.Handle(nil), e.peerOrder[peer]...)
	sort.Slice(handles, func(i, j int) bool {
		return e.statements[handles[i]].seq < e.statements[handles[j]].seq
	})
	if len(handles) > 0 {
		u.Debugf("engine: peer %d disconnected, finalizing %d handles", peer, len(handles))
	}
	for _, h := range handles {
		if s, ok := e.statements[h]; ok {
			e.finalizeLocked(h, s)
		}
	}
	delete(e.peerOrder, peer)
}

// ExecuteNonQuery steps the statement to completion and returns the number
// of rows changed.
func (e *Engine) ExecuteNonQuery(h protocol.Handle) (int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.statements[h]
	if !ok {
		return 0, ErrUnknownHandle
	}
	res, err := s.stmt.Exec()
	if err != nil {
		// If the statement unexpectedly produced rows, modernc's driver
		// returns this specific error from Exec; fall back to draining it
		// as a query so a SELECT run via ExecuteNonQuery still succeeds.
		rows, qerr := s.stmt.Query()
		if qerr != nil {
			return 0, err
		}
		for rows.Next() {
		}
		closeErr := rows.Err()
		rows.Close()
		if closeErr != nil {
			return 0, closeErr
		}
		var changes int64
		if scanErr := e.db.QueryRow("SELECT changes()").Scan(&changes); scanErr != nil {
			return 0, scanErr
		}
		return int32(changes), nil
	}
	changes, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int32(changes), nil
}

// ExecuteReader initializes a cursor over the statement's results and
// returns its column descriptors.
func (e *Engine) ExecuteReader(h protocol.Handle) ([]protocol.ColumnDescriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.statements[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	if s.cursor != nil && s.cursor.rows != nil {
		s.cursor.rows.Close()
	}
	rows, err := s.stmt.Query()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, err
	}
	cols := make([]protocol.ColumnDescriptor, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = protocol.ColumnDescriptor{Name: ct.Name(), SQLiteType: declaredType(ct.DatabaseTypeName())}
	}
	s.cursor = &cursor{rows: rows, cols: cols, position: BeforeFirst}
	return cols, nil
}

// ExecuteReaderRead steps the cursor one row.
func (e *Engine) ExecuteReaderRead(h protocol.Handle) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.statements[h]
	if !ok {
		return false, ErrUnknownHandle
	}
	if s.cursor == nil {
		return false, ErrInvalidOperation
	}
	dest := make([]interface{}, len(s.cursor.cols))
	ptrs := make([]interface{}, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if !s.cursor.rows.Next() {
		if err := s.cursor.rows.Err(); err != nil {
			return false, err
		}
		s.cursor.position = AfterLast
		s.cursor.current = nil
		return false, nil
	}
	if err := s.cursor.rows.Scan(ptrs...); err != nil {
		return false, err
	}
	s.cursor.position = OnRow
	s.cursor.current = dest
	return true, nil
}

// ExecuteReaderGetOrdinal returns the (case-insensitive) ordinal of name,
// or -1 if no column matches.
func (e *Engine) ExecuteReaderGetOrdinal(h protocol.Handle, name string) (int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.statements[h]
	if !ok {
		return 0, ErrUnknownHandle
	}
	if s.cursor == nil {
		return 0, ErrInvalidOperation
	}
	for i, c := range s.cursor.cols {
		if equalFold(c.Name, name) {
			return int32(i), nil
		}
	}
	return -1, nil
}

func (e *Engine) currentValue(h protocol.Handle, ordinal uint16) (interface{}, protocol.SQLiteType, error) {
	s, ok := e.statements[h]
	if !ok {
		return nil, 0, ErrUnknownHandle
	}
	if s.cursor == nil || s.cursor.position != OnRow {
		return nil, 0, ErrInvalidOperation
	}
	if int(ordinal) >= len(s.cursor.current) {
		return nil, 0, ErrInvalidOperation
	}
	v := s.cursor.current[ordinal]
	return v, runtimeType(v), nil
}

// GetString returns the current row's value at ordinal, converted to
// string the way the source database driver would for a text accessor.
func (e *Engine) GetString(h protocol.Handle, ordinal uint16) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, _, err := e.currentValue(h, ordinal)
	if err != nil {
		return "", err
	}
	return stringOf(v), nil
}

// GetInt16 returns the current row's value at ordinal as an int16.
func (e *Engine) GetInt16(h protocol.Handle, ordinal uint16) (int16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, _, err := e.currentValue(h, ordinal)
	if err != nil {
		return 0, err
	}
	return int16(int64Of(v)), nil
}

// GetInt32 returns the current row's value at ordinal as an int32.
func (e *Engine) GetInt32(h protocol.Handle, ordinal uint16) (int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, _, err := e.currentValue(h, ordinal)
	if err != nil {
		return 0, err
	}
	return int32(int64Of(v)), nil
}

// GetInt64 returns the current row's value at ordinal.
func (e *Engine) GetInt64(h protocol.Handle, ordinal uint16) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, _, err := e.currentValue(h, ordinal)
	if err != nil {
		return 0, err
	}
	return int64Of(v), nil
}

// GetFieldType returns the SQLite type code of the current row's value at
// ordinal (the value's own dynamic type, not the column's declared type,
// since SQLite columns are dynamically typed per row).
func (e *Engine) GetFieldType(h protocol.Handle, ordinal uint16) (protocol.SQLiteType, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, t, err := e.currentValue(h, ordinal)
	if err != nil {
		return 0, err
	}
	return t, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func declaredType(dbType string) protocol.SQLiteType {
	up := make([]byte, len(dbType))
	for i := 0; i < len(dbType); i++ {
		c := dbType[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		up[i] = c
	}
	s := string(up)
	switch {
	case containsAny(s, "INT"):
		return protocol.TypeInteger
	case containsAny(s, "REAL", "FLOA", "DOUB"):
		return protocol.TypeReal
	case containsAny(s, "CHAR", "CLOB", "TEXT"):
		return protocol.TypeText
	case containsAny(s, "BLOB") || s == "":
		return protocol.TypeBlob
	default:
		return protocol.TypeText
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(sub) == 0 || len(s) < len(sub) {
			continue
		}
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
	}
	return false
}

func runtimeType(v interface{}) protocol.SQLiteType {
	switch v.(type) {
	case nil:
		return protocol.TypeNull
	case int64:
		return protocol.TypeInteger
	case float64:
		return protocol.TypeReal
	case []byte:
		return protocol.TypeBlob
	case string:
		return protocol.TypeText
	default:
		return protocol.TypeText
	}
}

func stringOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func int64Of(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	case []byte:
		var n int64
		fmt.Sscanf(string(t), "%d", &n)
		return n
	case string:
		var n int64
		fmt.Sscanf(t, "%d", &n)
		return n
	default:
		return 0
	}
}

