package transport

import (
	"net"
	"testing"
	"time"

	u "github.com/araddon/gou"
	"github.com/stretchr/testify/assert"

	"github.com/dataux/sqliterelay/protocol"
)

func init() {
	u.SetupLogging("debug")
	u.SetColorIfTerminal()
}

func newPipePair(t *testing.T) (*Transport, *Transport) {
	t.Helper()
	a, b := net.Pipe()
	ta := New(a)
	tb := New(b)
	ta.Serve(func(protocol.Message) {})
	return ta, tb
}

func TestSendAndWaitRoundTrip(t *testing.T) {
	client, server := newPipePair(t)
	defer client.Close()
	defer server.Close()

	server.Serve(func(msg protocol.Message) {
		assert.Equal(t, protocol.ExecuteNonQueryRequest, msg.Kind)
		server.Reply(msg.Correlation, protocol.ExecuteNonQueryResponse, protocol.EncodeExecuteNonQueryResponse(5))
	})

	reply, err := client.SendAndWait(protocol.ExecuteNonQueryRequest, nil, time.Second)
	assert.NoError(t, err)
	assert.Equal(t, protocol.ExecuteNonQueryResponse, reply.Kind)
	n, err := protocol.DecodeExecuteNonQueryResponse(reply.Body)
	assert.NoError(t, err)
	assert.Equal(t, int32(5), n)
}

func TestSendAndWaitTimesOut(t *testing.T) {
	client, server := newPipePair(t)
	defer client.Close()
	defer server.Close()

	server.Serve(func(protocol.Message) {
		// never replies
	})

	_, err := client.SendAndWait(protocol.ExecuteNonQueryRequest, nil, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSendAndWaitAfterCloseReturnsDisconnected(t *testing.T) {
	client, server := newPipePair(t)
	defer server.Close()

	client.Close()
	_, err := client.SendAndWait(protocol.ExecuteNonQueryRequest, nil, time.Second)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestPendingSendAndWaitFailsOnDisconnect(t *testing.T) {
	client, server := newPipePair(t)
	defer client.Close()

	server.Serve(func(protocol.Message) {})

	errCh := make(chan error, 1)
	go func() {
		_, err := client.SendAndWait(protocol.ExecuteNonQueryRequest, nil, 2*time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	server.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("SendAndWait did not unblock after peer close")
	}
}

func TestConcurrentCorrelationsDoNotCrossTalk(t *testing.T) {
	client, server := newPipePair(t)
	defer client.Close()
	defer server.Close()

	server.Serve(func(msg protocol.Message) {
		// Echo the request's first body byte back as the rows-changed count,
		// so each reply is distinguishable from the others.
		server.Reply(msg.Correlation, protocol.ExecuteNonQueryResponse, protocol.EncodeExecuteNonQueryResponse(int32(msg.Body[0])))
	})

	const n = 20
	results := make(chan int32, n)
	for i := 0; i < n; i++ {
		go func(i byte) {
			reply, err := client.SendAndWait(protocol.ExecuteNonQueryRequest, []byte{i}, time.Second)
			assert.NoError(t, err)
			got, err := protocol.DecodeExecuteNonQueryResponse(reply.Body)
			assert.NoError(t, err)
			results <- got
		}(byte(i))
	}
	seen := make(map[int32]bool)
	for i := 0; i < n; i++ {
		v := <-results
		seen[v] = true
	}
	assert.Len(t, seen, n)
}
