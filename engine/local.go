package engine

import (
	"time"

	"github.com/dataux/sqliterelay/protocol"
)

// LocalCommand is the in-process counterpart to worker.Command: when the
// connection controller is in the Leader role, the client facade talks
// directly to the Engine instead of round-tripping through a transport. Its
// method set mirrors worker.Command's so the client facade can bind to
// either behind one adapter.
type LocalCommand struct {
	e      *Engine
	handle protocol.Handle
}

// CreateLocalCommand prepares sqlText against e and returns a LocalCommand
// bound to the resulting handle, owned by peer (typically a sentinel local
// PeerID since there is no real network peer to disconnect).
func CreateLocalCommand(e *Engine, peer PeerID, sqlText string) (*LocalCommand, error) {
	h, err := e.CreateCommand(peer, sqlText)
	if err != nil {
		return nil, err
	}
	return &LocalCommand{e: e, handle: h}, nil
}

// Handle returns the statement handle this command owns.
func (c *LocalCommand) Handle() protocol.Handle { return c.handle }

// ExecuteNonQuery steps the statement to completion. timeout is accepted
// only for signature parity with worker.Command.ExecuteNonQuery; a local
// call cannot time out independently of the SQLite call itself.
func (c *LocalCommand) ExecuteNonQuery(timeout time.Duration) (int32, error) {
	return c.e.ExecuteNonQuery(c.handle)
}

// ExecuteReader initializes a cursor and returns a LocalReader over it.
func (c *LocalCommand) ExecuteReader(timeout time.Duration, behavior uint32) (*LocalReader, error) {
	cols, err := c.e.ExecuteReader(c.handle)
	if err != nil {
		return nil, err
	}
	return &LocalReader{e: c.e, handle: c.handle, cols: cols}, nil
}

// Dispose finalizes the statement. Idempotent.
func (c *LocalCommand) Dispose(timeout time.Duration) {
	c.e.DisposeCommand(c.handle)
}

// LocalReader is the in-process counterpart to worker.Reader.
type LocalReader struct {
	e      *Engine
	handle protocol.Handle
	cols   []protocol.ColumnDescriptor
}

func (r *LocalReader) Columns() []protocol.ColumnDescriptor { return r.cols }

func (r *LocalReader) Read(timeout time.Duration) (bool, error) {
	return r.e.ExecuteReaderRead(r.handle)
}

func (r *LocalReader) GetOrdinal(timeout time.Duration, name string) (int32, error) {
	return r.e.ExecuteReaderGetOrdinal(r.handle, name)
}

func (r *LocalReader) GetString(timeout time.Duration, ordinal uint16) (string, error) {
	return r.e.GetString(r.handle, ordinal)
}

func (r *LocalReader) GetInt16(timeout time.Duration, ordinal uint16) (int16, error) {
	return r.e.GetInt16(r.handle, ordinal)
}

func (r *LocalReader) GetInt32(timeout time.Duration, ordinal uint16) (int32, error) {
	return r.e.GetInt32(r.handle, ordinal)
}

func (r *LocalReader) GetInt64(timeout time.Duration, ordinal uint16) (int64, error) {
	return r.e.GetInt64(r.handle, ordinal)
}

func (r *LocalReader) GetFieldType(timeout time.Duration, ordinal uint16) (protocol.SQLiteType, error) {
	return r.e.GetFieldType(r.handle, ordinal)
}

// Dispose finalizes the statement (shared with the parent command's
// handle). Idempotent.
func (r *LocalReader) Dispose(timeout time.Duration) {
	r.e.DisposeCommand(r.handle)
}
