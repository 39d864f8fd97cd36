package conn

import (
	"context"
	"testing"
	"time"

	u "github.com/araddon/gou"
	"github.com/stretchr/testify/assert"
)

func init() {
	u.SetupLogging("debug")
	u.SetColorIfTerminal()
}

func newTestController() *Controller {
	return &Controller{
		role:   RoleDisconnected,
		roleCh: make(chan struct{}),
	}
}

func TestWaitIfConnectingReturnsImmediatelyOnceSettled(t *testing.T) {
	c := newTestController()
	c.setRole(RoleLeader)
	assert.NoError(t, c.WaitIfConnecting(context.Background()))
}

func TestWaitIfConnectingBlocksUntilRoleSettles(t *testing.T) {
	c := newTestController()

	done := make(chan error, 1)
	go func() {
		done <- c.WaitIfConnecting(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("WaitIfConnecting returned before the role settled")
	case <-time.After(20 * time.Millisecond):
	}

	c.setRole(RoleFollower)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitIfConnecting did not unblock after role settled")
	}
}

func TestWaitIfConnectingRespectsCancellation(t *testing.T) {
	c := newTestController()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.WaitIfConnecting(ctx), ErrCancelled)
}

func TestWaitIfConnectingReturnsClosedOnceClosed(t *testing.T) {
	c := newTestController()
	c.setRole(RoleClosed)
	assert.ErrorIs(t, c.WaitIfConnecting(context.Background()), ErrClosed)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "leader", RoleLeader.String())
	assert.Equal(t, "follower", RoleFollower.String())
	assert.Equal(t, "connecting", RoleConnecting.String())
	assert.Equal(t, "disconnected", RoleDisconnected.String())
	assert.Equal(t, "closed", RoleClosed.String())
}

func TestCreateCommandWhenDisconnectedFails(t *testing.T) {
	c := newTestController()
	_, err := c.CreateCommand("select 1", time.Second)
	assert.Error(t, err)
}
