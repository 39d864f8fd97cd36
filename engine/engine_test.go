package engine

import (
	"testing"

	u "github.com/araddon/gou"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataux/sqliterelay/protocol"
)

func init() {
	u.SetupLogging("debug")
	u.SetColorIfTerminal()
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestCreateCommandRejectsBlankSQL(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateCommand(PeerID(1), "   \n\t")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestExecuteNonQueryCreateAndInsert(t *testing.T) {
	e := newTestEngine(t)
	peer := PeerID(1)

	h, err := e.CreateCommand(peer, "create table t (id integer, name text)")
	require.NoError(t, err)
	_, err = e.ExecuteNonQuery(h)
	require.NoError(t, err)
	e.DisposeCommand(h)

	h, err = e.CreateCommand(peer, "insert into t (id, name) values (1, 'a')")
	require.NoError(t, err)
	changes, err := e.ExecuteNonQuery(h)
	require.NoError(t, err)
	assert.Equal(t, int32(1), changes)
	e.DisposeCommand(h)
}

func TestExecuteReaderReadsOneRow(t *testing.T) {
	e := newTestEngine(t)
	peer := PeerID(1)

	mustExec(t, e, peer, "create table t (id integer, name text)")
	mustExec(t, e, peer, "insert into t (id, name) values (1, 'aaron')")

	h, err := e.CreateCommand(peer, "select id, name from t")
	require.NoError(t, err)
	defer e.DisposeCommand(h)

	cols, err := e.ExecuteReader(h)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "name", cols[1].Name)

	hasRow, err := e.ExecuteReaderRead(h)
	require.NoError(t, err)
	assert.True(t, hasRow)

	name, err := e.GetString(h, 1)
	require.NoError(t, err)
	assert.Equal(t, "aaron", name)

	id, err := e.GetInt64(h, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	hasRow, err = e.ExecuteReaderRead(h)
	require.NoError(t, err)
	assert.False(t, hasRow)
}

func TestExecuteReaderGetOrdinalUnknownColumn(t *testing.T) {
	e := newTestEngine(t)
	peer := PeerID(1)
	mustExec(t, e, peer, "create table t (id integer)")

	h, err := e.CreateCommand(peer, "select id from t")
	require.NoError(t, err)
	defer e.DisposeCommand(h)
	_, err = e.ExecuteReader(h)
	require.NoError(t, err)

	ord, err := e.ExecuteReaderGetOrdinal(h, "nope")
	require.NoError(t, err)
	assert.Equal(t, int32(-1), ord)

	ord, err = e.ExecuteReaderGetOrdinal(h, "ID")
	require.NoError(t, err)
	assert.Equal(t, int32(0), ord)
}

func TestGetBeforeReadIsInvalidOperation(t *testing.T) {
	e := newTestEngine(t)
	peer := PeerID(1)
	mustExec(t, e, peer, "create table t (id integer)")

	h, err := e.CreateCommand(peer, "select id from t")
	require.NoError(t, err)
	defer e.DisposeCommand(h)
	_, err = e.ExecuteReader(h)
	require.NoError(t, err)

	_, err = e.GetInt64(h, 0)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestUnknownHandleIsError(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ExecuteNonQuery(protocol.NewHandle())
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestDisposeCommandIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	peer := PeerID(1)
	h, err := e.CreateCommand(peer, "create table t (id integer)")
	require.NoError(t, err)
	e.DisposeCommand(h)
	assert.NotPanics(t, func() { e.DisposeCommand(h) })
}

func TestDisposePeerFinalizesAllOwnedHandles(t *testing.T) {
	e := newTestEngine(t)
	peer := PeerID(7)
	mustExec(t, e, peer, "create table t (id integer)")

	h1, err := e.CreateCommand(peer, "select id from t")
	require.NoError(t, err)
	h2, err := e.CreateCommand(peer, "select id from t")
	require.NoError(t, err)

	e.DisposePeer(peer)

	_, err = e.ExecuteNonQuery(h1)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	_, err = e.ExecuteNonQuery(h2)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func mustExec(t *testing.T, e *Engine, peer PeerID, sql string) {
	t.Helper()
	h, err := e.CreateCommand(peer, sql)
	require.NoError(t, err)
	_, err = e.ExecuteNonQuery(h)
	require.NoError(t, err)
	e.DisposeCommand(h)
}
