// Package transport implements the framed, correlation-multiplexed duplex
// transport that carries protocol messages between a sqliterelay leader and
// one follower.
//
// A caller hands over a payload and a timeout and blocks until either a
// correlated reply shows up or the timeout fires, while a single background
// goroutine owns the socket and demultiplexes replies by correlation id.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	u "github.com/araddon/gou"

	"github.com/dataux/sqliterelay/protocol"
)

// Sentinel errors identifying the transport-level failure kinds callers
// need to distinguish.
var (
	ErrDisconnected = errors.New("transport: disconnected")
	ErrTimeout      = errors.New("transport: timed out waiting for reply")
	ErrProtocol     = errors.New("transport: protocol error")
)

// ReceiveHandler is invoked for every inbound frame that is not a
// correlated reply to an outstanding SendAndWait.
type ReceiveHandler func(protocol.Message)

// Transport is a framed duplex connection multiplexing concurrent
// SendAndWait calls over one net.Conn.
type Transport struct {
	conn net.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint64]chan protocol.Message

	nextCorrelation uint64 // atomic

	handler ReceiveHandler

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// New wraps conn. The read loop does not start until Serve is called, so
// callers can finish wiring up a receive handler that itself references the
// Transport (as the leader engine's dispatcher does) before frames start
// arriving.
func New(conn net.Conn) *Transport {
	return &Transport{
		conn:    conn,
		pending: make(map[uint64]chan protocol.Message),
		closed:  make(chan struct{}),
	}
}

// Serve installs handler, called for every inbound frame that is not a
// correlated reply, and starts the read loop. handler runs on the
// read-loop goroutine and must not block.
func (t *Transport) Serve(handler ReceiveHandler) {
	t.handler = handler
	go t.readLoop()
}

// LocalAddr/RemoteAddr expose the underlying connection's endpoints, useful
// for logging peer hostnames alongside transport errors.
func (t *Transport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *Transport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *Transport) readLoop() {
	defer t.fail(ErrDisconnected)
	for {
		payload, err := protocol.ReadNonKeepAliveFrame(t.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				u.Debugf("transport: read loop for %v ending: %v", t.RemoteAddr(), err)
			}
			return
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			u.Errorf("transport: %v: %v", ErrProtocol, err)
			return
		}
		if !msg.Kind.Valid() {
			u.Errorf("transport: %v: unknown kind %d", ErrProtocol, msg.Kind)
			return
		}

		if msg.Correlation != 0 {
			t.pendingMu.Lock()
			ch, ok := t.pending[msg.Correlation]
			if ok {
				delete(t.pending, msg.Correlation)
			}
			t.pendingMu.Unlock()
			if ok {
				ch <- msg
				continue
			}
		}

		if t.handler != nil {
			t.handler(msg)
		}
	}
}

// fail releases every outstanding waiter with err and marks the transport
// closed. Safe to call multiple times; only the first call has effect.
func (t *Transport) fail(err error) {
	t.closeOnce.Do(func() {
		t.closeErr = err
		close(t.closed)
		t.pendingMu.Lock()
		pending := t.pending
		t.pending = nil
		t.pendingMu.Unlock()
		for _, ch := range pending {
			close(ch)
		}
	})
}

// SendAndWait writes a request frame with a freshly allocated correlation
// id and blocks until the correlated reply arrives, the timeout elapses, or
// the transport disconnects. A timeout of zero means no timeout.
func (t *Transport) SendAndWait(kind protocol.Kind, body []byte, timeout time.Duration) (protocol.Message, error) {
	select {
	case <-t.closed:
		return protocol.Message{}, ErrDisconnected
	default:
	}

	correlation := atomic.AddUint64(&t.nextCorrelation, 1)
	ch := make(chan protocol.Message, 1)

	t.pendingMu.Lock()
	if t.pending == nil {
		t.pendingMu.Unlock()
		return protocol.Message{}, ErrDisconnected
	}
	t.pending[correlation] = ch
	t.pendingMu.Unlock()

	cleanup := func() {
		t.pendingMu.Lock()
		if t.pending != nil {
			delete(t.pending, correlation)
		}
		t.pendingMu.Unlock()
	}

	if err := t.writeFrame(kind, correlation, body); err != nil {
		cleanup()
		return protocol.Message{}, fmt.Errorf("transport: %w: %v", ErrDisconnected, err)
	}

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return protocol.Message{}, ErrDisconnected
		}
		return msg, nil
	case <-timeoutCh:
		cleanup()
		return protocol.Message{}, ErrTimeout
	case <-t.closed:
		cleanup()
		return protocol.Message{}, ErrDisconnected
	}
}

// Send writes a fire-and-forget frame with correlation 0.
func (t *Transport) Send(kind protocol.Kind, body []byte) error {
	return t.writeFrame(kind, 0, body)
}

// Reply writes a response frame carrying a correlation id the caller
// received on an inbound request (used by the leader engine to answer a
// follower's SendAndWait).
func (t *Transport) Reply(correlation uint64, kind protocol.Kind, body []byte) error {
	return t.writeFrame(kind, correlation, body)
}

func (t *Transport) writeFrame(kind protocol.Kind, correlation uint64, body []byte) error {
	select {
	case <-t.closed:
		return ErrDisconnected
	default:
	}
	payload := protocol.Encode(protocol.Message{Kind: kind, Correlation: correlation, Body: body})
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := protocol.WriteFrame(t.conn, payload); err != nil {
		go t.fail(ErrDisconnected)
		return ErrDisconnected
	}
	return nil
}

// Close shuts down the underlying connection and releases every pending
// waiter with ErrDisconnected.
func (t *Transport) Close() error {
	t.fail(ErrDisconnected)
	return t.conn.Close()
}

// Done returns a channel closed once the transport has disconnected.
func (t *Transport) Done() <-chan struct{} {
	return t.closed
}
