package worker

import (
	"net"
	"testing"
	"time"

	u "github.com/araddon/gou"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataux/sqliterelay/engine"
	"github.com/dataux/sqliterelay/protocol"
	"github.com/dataux/sqliterelay/transport"
)

func init() {
	u.SetupLogging("debug")
	u.SetColorIfTerminal()
}

// newLeaderPair starts a real Engine behind a transport.Transport, wired
// exactly as conn.Controller's acceptLoop wires one, and returns the
// follower-side Transport to drive a worker.Command/Reader against it.
func newLeaderPair(t *testing.T) *transport.Transport {
	t.Helper()
	eng, err := engine.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	leaderConn, followerConn := net.Pipe()
	leaderTr := transport.New(leaderConn)
	leaderTr.Serve(eng.Handler(engine.PeerID(1), leaderTr))

	followerTr := transport.New(followerConn)
	followerTr.Serve(func(protocol.Message) {})
	t.Cleanup(func() { followerTr.Close() })
	return followerTr
}

func TestCreateCommandAndExecuteNonQuery(t *testing.T) {
	tr := newLeaderPair(t)

	cmd, err := CreateCommand(tr, "create table t (id integer, name text)", time.Second)
	require.NoError(t, err)
	_, err = cmd.ExecuteNonQuery(time.Second)
	require.NoError(t, err)
	cmd.Dispose(time.Second)

	cmd, err = CreateCommand(tr, "insert into t (id, name) values (1, 'a')", time.Second)
	require.NoError(t, err)
	changes, err := cmd.ExecuteNonQuery(time.Second)
	require.NoError(t, err)
	assert.Equal(t, int32(1), changes)
	cmd.Dispose(time.Second)
}

func TestCreateCommandBadSQLIsServerError(t *testing.T) {
	tr := newLeaderPair(t)
	_, err := CreateCommand(tr, "not valid sql at all", time.Second)
	require.Error(t, err)
	var serverErr *ServerError
	assert.ErrorAs(t, err, &serverErr)
}

func TestExecuteReaderEndToEnd(t *testing.T) {
	tr := newLeaderPair(t)

	setup, err := CreateCommand(tr, "create table t (id integer, name text)", time.Second)
	require.NoError(t, err)
	_, err = setup.ExecuteNonQuery(time.Second)
	require.NoError(t, err)
	setup.Dispose(time.Second)

	insert, err := CreateCommand(tr, "insert into t (id, name) values (1, 'aaron')", time.Second)
	require.NoError(t, err)
	_, err = insert.ExecuteNonQuery(time.Second)
	require.NoError(t, err)
	insert.Dispose(time.Second)

	cmd, err := CreateCommand(tr, "select id, name from t", time.Second)
	require.NoError(t, err)
	defer cmd.Dispose(time.Second)

	reader, err := cmd.ExecuteReader(time.Second, 0)
	require.NoError(t, err)
	require.Len(t, reader.Columns(), 2)

	hasRow, err := reader.Read(time.Second)
	require.NoError(t, err)
	require.True(t, hasRow)

	ord, err := reader.GetOrdinal(time.Second, "name")
	require.NoError(t, err)
	assert.Equal(t, int32(1), ord)

	name, err := reader.GetString(time.Second, uint16(ord))
	require.NoError(t, err)
	assert.Equal(t, "aaron", name)

	id, err := reader.GetInt32(time.Second, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)

	hasRow, err = reader.Read(time.Second)
	require.NoError(t, err)
	assert.False(t, hasRow)

	reader.Dispose(time.Second)
}

func TestDisposeIsBestEffortAfterDisconnect(t *testing.T) {
	tr := newLeaderPair(t)
	cmd, err := CreateCommand(tr, "create table t (id integer)", time.Second)
	require.NoError(t, err)
	tr.Close()
	assert.NotPanics(t, func() { cmd.Dispose(time.Second) })
}
