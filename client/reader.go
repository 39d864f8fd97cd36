package client

import (
	"sync"
	"time"

	"github.com/dataux/sqliterelay/protocol"
)

// position tracks a Reader's cursor state (before-first/on-row/after-last),
// enforcing that column access is only valid on-row.
type position int

const (
	positionBeforeFirst position = iota
	positionOnRow
	positionAfterLast
)

// Reader is the client facade's cursor object, born from
// Command.ExecuteReader.
type Reader struct {
	worker  readerWorker
	timeout time.Duration

	mu       sync.Mutex
	state    position
	disposed bool
}

// Columns returns the reader's column descriptors, valid at any cursor
// position until disposed.
func (r *Reader) Columns() ([]protocol.ColumnDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nil, newError(KindObjectDisposed, "reader is disposed")
	}
	return r.worker.Columns(), nil
}

// Read advances the cursor. Once it returns false the reader has reached
// after-last and every subsequent Read also returns false without error:
// reaching after-last is terminal.
func (r *Reader) Read() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return false, newError(KindObjectDisposed, "reader is disposed")
	}
	if r.state == positionAfterLast {
		return false, nil
	}
	hasRow, err := r.worker.Read(r.timeout)
	if err != nil {
		return false, classify(err)
	}
	if hasRow {
		r.state = positionOnRow
	} else {
		r.state = positionAfterLast
	}
	return hasRow, nil
}

// GetOrdinal resolves a column name to its index; -1 if no column matches,
// not an error.
func (r *Reader) GetOrdinal(name string) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return 0, newError(KindObjectDisposed, "reader is disposed")
	}
	ord, err := r.worker.GetOrdinal(r.timeout, name)
	return ord, classify(err)
}

// onRow validates the cursor is positioned on a row before a Get* call:
// column access is only valid on-row.
func (r *Reader) onRow() error {
	if r.disposed {
		return newError(KindObjectDisposed, "reader is disposed")
	}
	if r.state != positionOnRow {
		return newError(KindInvalidOperation, "reader is not positioned on a row")
	}
	return nil
}

// GetString returns the column at ordinal as a string.
func (r *Reader) GetString(ordinal uint16) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onRow(); err != nil {
		return "", err
	}
	v, err := r.worker.GetString(r.timeout, ordinal)
	return v, classify(err)
}

// GetInt16 returns the column at ordinal as an int16.
func (r *Reader) GetInt16(ordinal uint16) (int16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onRow(); err != nil {
		return 0, err
	}
	v, err := r.worker.GetInt16(r.timeout, ordinal)
	return v, classify(err)
}

// GetInt32 returns the column at ordinal as an int32.
func (r *Reader) GetInt32(ordinal uint16) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onRow(); err != nil {
		return 0, err
	}
	v, err := r.worker.GetInt32(r.timeout, ordinal)
	return v, classify(err)
}

// GetInt64 returns the column at ordinal as an int64.
func (r *Reader) GetInt64(ordinal uint16) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onRow(); err != nil {
		return 0, err
	}
	v, err := r.worker.GetInt64(r.timeout, ordinal)
	return v, classify(err)
}

// GetFieldType returns the column at ordinal's runtime SQLite storage class.
func (r *Reader) GetFieldType(ordinal uint16) (protocol.SQLiteType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.onRow(); err != nil {
		return 0, err
	}
	v, err := r.worker.GetFieldType(r.timeout, ordinal)
	return v, classify(err)
}

// Dispose finalizes the reader. Idempotent.
func (r *Reader) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.disposed = true
	r.worker.Dispose(r.timeout)
}
