package client

import (
	"time"

	"github.com/dataux/sqliterelay/conn"
	"github.com/dataux/sqliterelay/engine"
	"github.com/dataux/sqliterelay/protocol"
	"github.com/dataux/sqliterelay/worker"
)

// commandWorker is the narrow surface Command needs from whichever concrete
// worker backs it. *worker.Command and *engine.LocalCommand already agree on
// every method except ExecuteReader's return type (*worker.Reader vs
// *engine.LocalReader), so a one-line adapter per flavor is enough to unify
// them; readerWorker below needs no such adapter since Reader and
// LocalReader's method sets are identical.
type commandWorker interface {
	ExecuteNonQuery(timeout time.Duration) (int32, error)
	ExecuteReader(timeout time.Duration, behavior uint32) (readerWorker, error)
	Dispose(timeout time.Duration)
}

// readerWorker is the narrow surface Reader needs. *worker.Reader and
// *engine.LocalReader both satisfy it directly.
type readerWorker interface {
	Columns() []protocol.ColumnDescriptor
	Read(timeout time.Duration) (bool, error)
	GetOrdinal(timeout time.Duration, name string) (int32, error)
	GetString(timeout time.Duration, ordinal uint16) (string, error)
	GetInt16(timeout time.Duration, ordinal uint16) (int16, error)
	GetInt32(timeout time.Duration, ordinal uint16) (int32, error)
	GetInt64(timeout time.Duration, ordinal uint16) (int64, error)
	GetFieldType(timeout time.Duration, ordinal uint16) (protocol.SQLiteType, error)
	Dispose(timeout time.Duration)
}

type remoteCommandAdapter struct{ c *worker.Command }

func (a remoteCommandAdapter) ExecuteNonQuery(timeout time.Duration) (int32, error) {
	return a.c.ExecuteNonQuery(timeout)
}

func (a remoteCommandAdapter) ExecuteReader(timeout time.Duration, behavior uint32) (readerWorker, error) {
	r, err := a.c.ExecuteReader(timeout, behavior)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (a remoteCommandAdapter) Dispose(timeout time.Duration) { a.c.Dispose(timeout) }

type localCommandAdapter struct{ c *engine.LocalCommand }

func (a localCommandAdapter) ExecuteNonQuery(timeout time.Duration) (int32, error) {
	return a.c.ExecuteNonQuery(timeout)
}

func (a localCommandAdapter) ExecuteReader(timeout time.Duration, behavior uint32) (readerWorker, error) {
	r, err := a.c.ExecuteReader(timeout, behavior)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (a localCommandAdapter) Dispose(timeout time.Duration) { a.c.Dispose(timeout) }

// adaptCommandHandle wraps a conn.CommandHandle's one populated side behind
// the commandWorker interface.
func adaptCommandHandle(h conn.CommandHandle) commandWorker {
	if h.Local != nil {
		return localCommandAdapter{c: h.Local}
	}
	return remoteCommandAdapter{c: h.Remote}
}
