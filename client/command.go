package client

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Command is the client facade's statement object: CommandText set up
// front, bound to a concrete worker lazily on first Execute* call so that
// construction alone never touches the network.
type Command struct {
	conn           *Connection
	CommandText    string
	CommandTimeout time.Duration // zero: use conn.DefaultTimeout()

	mu       sync.Mutex
	worker   commandWorker
	disposed bool
}

// NewCommand returns a Command bound to conn with no text yet set.
func NewCommand(conn *Connection) *Command {
	return &Command{conn: conn}
}

func (c *Command) timeout() time.Duration {
	if c.CommandTimeout != 0 {
		return c.CommandTimeout
	}
	return c.conn.DefaultTimeout()
}

// bind validates preconditions (not disposed, CommandText non-blank, a
// Connection present) and lazily creates the backing worker.
func (c *Command) bind(ctx context.Context) (commandWorker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil, newError(KindObjectDisposed, "command is disposed")
	}
	if c.conn == nil {
		return nil, newError(KindInvalidOperation, "command has no connection")
	}
	if strings.TrimSpace(c.CommandText) == "" {
		return nil, newError(KindInvalidOperation, "command text is empty")
	}
	if c.worker != nil {
		return c.worker, nil
	}
	w, err := c.conn.createCommandWorker(ctx, c.CommandText, c.timeout())
	if err != nil {
		return nil, err
	}
	c.worker = w
	return w, nil
}

// ExecuteNonQuery prepares (on first call) and runs CommandText to
// completion, returning the number of rows changed.
func (c *Command) ExecuteNonQuery() (int32, error) {
	return c.ExecuteNonQueryContext(context.Background())
}

// ExecuteNonQueryContext is ExecuteNonQuery with a context bounding the wait
// for a settled connection role; it is the realization of the source's
// ExecuteNonQueryAsync (see DESIGN.md): sqliterelay's worker calls already
// block on a channel receive under the hood, so a separate async entry
// point would just be this method run in a goroutine by the caller.
func (c *Command) ExecuteNonQueryContext(ctx context.Context) (int32, error) {
	w, err := c.bind(ctx)
	if err != nil {
		return 0, err
	}
	n, err := w.ExecuteNonQuery(c.timeout())
	return n, classify(err)
}

// ExecuteReader prepares (on first call) CommandText and opens a cursor
// over it, returning a Reader.
func (c *Command) ExecuteReader() (*Reader, error) {
	return c.ExecuteReaderContext(context.Background())
}

// ExecuteReaderContext is ExecuteReader with a context bounding the wait for
// a settled connection role.
func (c *Command) ExecuteReaderContext(ctx context.Context) (*Reader, error) {
	w, err := c.bind(ctx)
	if err != nil {
		return nil, err
	}
	rw, err := w.ExecuteReader(c.timeout(), 0)
	if err != nil {
		return nil, classify(err)
	}
	return &Reader{worker: rw, timeout: c.timeout(), state: positionBeforeFirst}, nil
}

// Dispose finalizes the backing worker, if one was ever bound. Idempotent.
func (c *Command) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	if c.worker != nil {
		c.worker.Dispose(c.timeout())
		c.worker = nil
	}
}
