// Package client is the thin, user-facing API surface of sqliterelay:
// Connection, Command, and Reader, mirroring the normal embedded-database
// client surface so callers cannot tell whether the database is being
// driven locally or remotely.
package client

import (
	"errors"
	"fmt"

	"github.com/dataux/sqliterelay/engine"
	"github.com/dataux/sqliterelay/transport"
	"github.com/dataux/sqliterelay/worker"
)

// Kind categorizes why a client facade call failed.
type Kind int

const (
	KindInvalidOperation Kind = iota
	KindObjectDisposed
	KindServerException
	KindProtocolError
	KindDisconnected
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindObjectDisposed:
		return "ObjectDisposed"
	case KindServerException:
		return "ServerException"
	case KindProtocolError:
		return "ProtocolError"
	case KindDisconnected:
		return "Disconnected"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error is the one error type the client facade returns.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// classify turns an error from the worker/engine layer into the
// client.Error kind it should surface as. Synchronous wrappers unwrap a
// single inner cause; since every worker call here already returns a
// single error (Go has no aggregate-exception concept), there is nothing
// further to unwrap.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var alreadyClassified *Error
	if errors.As(err, &alreadyClassified) {
		return err
	}
	switch {
	case errors.Is(err, engine.ErrInvalidOperation):
		return newError(KindInvalidOperation, err.Error())
	case errors.Is(err, transport.ErrDisconnected):
		return newError(KindDisconnected, err.Error())
	case errors.Is(err, transport.ErrTimeout):
		return newError(KindTimeout, err.Error())
	}
	var serverErr *worker.ServerError
	if errors.As(err, &serverErr) {
		return newError(KindServerException, serverErr.Message)
	}
	// Anything else reaching this boundary is reported as ServerException
	// with its text verbatim: a SQLite error surfaced through the local
	// engine path, a malformed or unexpected reply, and also controller
	// errors such as conn.ErrCancelled, conn.ErrClosed or a failed etcd dial.
	return newError(KindServerException, err.Error())
}
