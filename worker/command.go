// Package worker is the follower side of sqliterelay: it turns client API
// calls into protocol requests over a transport.Transport and owns the
// remote handle's lifetime.
package worker

import (
	"errors"
	"time"

	"github.com/dataux/sqliterelay/protocol"
	"github.com/dataux/sqliterelay/transport"
)

// Sentinel errors mirroring the ServerException/Disconnected/Timeout
// kinds as seen from the follower worker.
var (
	ErrDisconnected = transport.ErrDisconnected
	ErrTimeout      = transport.ErrTimeout
)

// ServerError wraps a leader-reported message verbatim: a ServerException
// carries the leader's message text unmodified.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// Command is a command worker: born when CreateCommandRequest succeeds, it
// holds the returned statement handle for the lifetime of the client-side
// command.
type Command struct {
	t      *transport.Transport
	handle protocol.Handle
}

// CreateCommand issues CreateCommandRequest and, on success, returns a
// Command worker bound to t and the returned handle.
func CreateCommand(t *transport.Transport, sqlText string, timeout time.Duration) (*Command, error) {
	reply, err := t.SendAndWait(protocol.CreateCommandRequest, protocol.EncodeCreateCommandRequest(sqlText), timeout)
	if err != nil {
		return nil, err
	}
	switch reply.Kind {
	case protocol.CreateCommandResponse:
		h, err := protocol.DecodeCreateCommandResponse(reply.Body)
		if err != nil {
			return nil, err
		}
		return &Command{t: t, handle: h}, nil
	case protocol.CreateCommandException:
		msg, err := protocol.DecodeExceptionMessage(reply.Body)
		if err != nil {
			return nil, err
		}
		return nil, &ServerError{Message: msg}
	default:
		return nil, errors.New("worker: unexpected response kind for CreateCommandRequest")
	}
}

// Handle returns the remote statement handle this worker owns.
func (c *Command) Handle() protocol.Handle { return c.handle }

// ExecuteNonQuery sends ExecuteNonQueryRequest and returns the rows-changed
// count, or a *ServerError on a leader-reported failure.
func (c *Command) ExecuteNonQuery(timeout time.Duration) (int32, error) {
	reply, err := c.t.SendAndWait(protocol.ExecuteNonQueryRequest, protocol.EncodeHandleOnly(c.handle), timeout)
	if err != nil {
		return 0, err
	}
	switch reply.Kind {
	case protocol.ExecuteNonQueryResponse:
		return protocol.DecodeExecuteNonQueryResponse(reply.Body)
	case protocol.ExecuteNonQueryException:
		msg, err := protocol.DecodeExceptionMessage(reply.Body)
		if err != nil {
			return 0, err
		}
		return 0, &ServerError{Message: msg}
	default:
		return 0, errors.New("worker: unexpected response kind for ExecuteNonQueryRequest")
	}
}

// ExecuteReader sends ExecuteReaderRequest and, on success, returns a
// Reader worker sharing this command's handle.
func (c *Command) ExecuteReader(timeout time.Duration, behavior uint32) (*Reader, error) {
	reply, err := c.t.SendAndWait(protocol.ExecuteReaderRequest, protocol.EncodeExecuteReaderRequest(c.handle, behavior), timeout)
	if err != nil {
		return nil, err
	}
	switch reply.Kind {
	case protocol.ExecuteReaderResponse:
		cols, err := protocol.DecodeExecuteReaderColumns(reply.Body)
		if err != nil {
			return nil, err
		}
		return &Reader{t: c.t, handle: c.handle, cols: cols}, nil
	case protocol.ExecuteReaderException:
		msg, err := protocol.DecodeExceptionMessage(reply.Body)
		if err != nil {
			return nil, err
		}
		return nil, &ServerError{Message: msg}
	default:
		return nil, errors.New("worker: unexpected response kind for ExecuteReaderRequest")
	}
}

// Dispose sends DisposeCommand and swallows any error: disposal is
// best-effort and idempotent.
func (c *Command) Dispose(timeout time.Duration) {
	_ = c.t.Send(protocol.DisposeCommand, protocol.EncodeHandleOnly(c.handle))
}
