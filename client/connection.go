package client

import (
	"context"
	"time"

	"github.com/dataux/sqliterelay/config"
	"github.com/dataux/sqliterelay/conn"
)

// Connection is the entry point of the client facade: it owns the
// connection controller and is the factory every Command binds through.
type Connection struct {
	ctrl *conn.Controller
	opts config.Options

	disposed bool
}

// Open parses connStr and starts a Controller against cfg, returning once
// the background election/reconnection loop has begun. It does not block
// for a role to settle; call WaitIfConnecting for that.
func Open(connStr string, cfg conn.Config) (*Connection, error) {
	opts, err := config.ParseOptions(connStr)
	if err != nil {
		return nil, err
	}
	if opts.DefaultTimeout != 0 {
		cfg.DefaultTimeout = opts.DefaultTimeout
	}
	ctrl, err := conn.New(cfg)
	if err != nil {
		return nil, classify(err)
	}
	ctrl.Start()
	return &Connection{ctrl: ctrl, opts: opts}, nil
}

// DefaultTimeout is the command timeout new Commands are born with unless
// CommandTimeout is set explicitly. Zero means no timeout.
func (c *Connection) DefaultTimeout() time.Duration {
	return c.opts.DefaultTimeout
}

// WaitIfConnecting blocks until this connection's role has settled to
// Leader or Follower, or ctx is cancelled first.
func (c *Connection) WaitIfConnecting(ctx context.Context) error {
	if c.disposed {
		return newError(KindObjectDisposed, "connection is disposed")
	}
	return classify(c.ctrl.WaitIfConnecting(ctx))
}

// createCommandWorker binds a new command worker appropriate to the
// connection's current role, waiting through any in-flight leadership
// transition first.
func (c *Connection) createCommandWorker(ctx context.Context, sqlText string, timeout time.Duration) (commandWorker, error) {
	if c.disposed {
		return nil, newError(KindObjectDisposed, "connection is disposed")
	}
	if err := c.ctrl.WaitIfConnecting(ctx); err != nil {
		return nil, classify(err)
	}
	h, err := c.ctrl.CreateCommand(sqlText, timeout)
	if err != nil {
		return nil, classify(err)
	}
	return adaptCommandHandle(h), nil
}

// Close disposes the connection, releasing any held leadership and closing
// any follower transport. Idempotent.
func (c *Connection) Close() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.ctrl.Close()
}
