// Package conn implements the connection controller: leader election,
// reconnection, and the wait-if-connecting gate that lets callers block
// through a leadership transition instead of failing.
//
// States and transitions are built on a finite-state-machine library
// (github.com/lytics/dfa), with letters and states modeling election and
// transport loss rather than a task's run-to-completion lifecycle.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	u "github.com/araddon/gou"
	"github.com/lytics/dfa"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/dataux/sqliterelay/engine"
	"github.com/dataux/sqliterelay/protocol"
	"github.com/dataux/sqliterelay/transport"
	"github.com/dataux/sqliterelay/worker"
)

// Role is a connection's current relationship to the cluster: whether it
// is still electing, or has settled as leader or follower.
type Role int

const (
	RoleDisconnected Role = iota
	RoleConnecting
	RoleLeader
	RoleFollower
	RoleClosed
)

func (r Role) String() string {
	switch r {
	case RoleDisconnected:
		return "disconnected"
	case RoleConnecting:
		return "connecting"
	case RoleLeader:
		return "leader"
	case RoleFollower:
		return "follower"
	case RoleClosed:
		return "closed"
	default:
		return "role(?)"
	}
}

// ErrCancelled is returned by WaitIfConnecting when the caller's
// cancellation fires first.
var ErrCancelled = errors.New("conn: wait cancelled")

// ErrClosed is returned by WaitIfConnecting once the controller has closed.
var ErrClosed = errors.New("conn: controller closed")

// Config configures one Controller instance.
type Config struct {
	// SelfAddr is this process's follower-listen address, the value it
	// publishes to etcd when it wins the election.
	SelfAddr string
	// ListenAddr is the address this process binds when it becomes leader.
	ListenAddr string
	// SQLitePath is the embedded database file the leader opens.
	SQLitePath string
	// ElectionKey namespaces the etcd election to one logical database.
	ElectionKey string
	// EtcdEndpoints are the etcd cluster member addresses.
	EtcdEndpoints []string
	// DefaultTimeout is carried for callers that read it; the controller
	// itself does not use it (its etcd and leader dials use a fixed
	// 5-second timeout).
	DefaultTimeout time.Duration
}

// dfa states and letters for the election/reconnection lifecycle.
const (
	stateConnecting = dfa.State("connecting")
	stateLeader     = dfa.State("leader")
	stateFollower   = dfa.State("follower")
	stateClosed     = dfa.State("closed")

	letterElected       = dfa.Letter("elected")
	letterLostElection  = dfa.Letter("lost-election")
	letterRetry         = dfa.Letter("retry")
	letterTransportLost = dfa.Letter("transport-lost")
	letterClose         = dfa.Letter("close")
)

// Controller is the connection controller: it owns election, reconnection,
// and the wait gate, and hands out command workers appropriate to the
// current role.
type Controller struct {
	cfg Config

	etcd *clientv3.Client

	mu              sync.Mutex
	role            Role
	roleCh          chan struct{} // closed and replaced on every role transition
	tr              *transport.Transport
	eng             *engine.Engine
	listener        net.Listener
	electionSession *concurrency.Session
	election        *concurrency.Election

	peerSeq uint64 // atomic

	closeCh chan struct{}
	closed  sync.Once
}

// New dials etcd and returns a Controller that has not yet started electing
// (call Start to begin).
func New(cfg Config) (*Controller, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.EtcdEndpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("conn: dial etcd: %w", err)
	}
	c := &Controller{
		cfg:     cfg,
		etcd:    cli,
		roleCh:  make(chan struct{}),
		closeCh: make(chan struct{}),
	}
	return c, nil
}

// Start begins the election/reconnection lifecycle in the background.
func (c *Controller) Start() {
	go c.run()
}

func (c *Controller) run() {
	d := dfa.New()
	d.SetStartState(stateConnecting)
	d.SetTerminalStates(stateClosed)
	d.SetTransitionLogger(func(s dfa.State) {
		u.Infof("conn: controller switched to state %v", s)
	})

	d.SetTransition(stateConnecting, letterElected, stateLeader, c.runLeader)
	d.SetTransition(stateConnecting, letterLostElection, stateFollower, c.runFollower)
	d.SetTransition(stateConnecting, letterRetry, stateConnecting, c.runConnecting)
	d.SetTransition(stateConnecting, letterClose, stateClosed, c.onClosed)

	d.SetTransition(stateLeader, letterTransportLost, stateConnecting, c.runConnecting)
	d.SetTransition(stateLeader, letterClose, stateClosed, c.onClosed)

	d.SetTransition(stateFollower, letterTransportLost, stateConnecting, c.runConnecting)
	d.SetTransition(stateFollower, letterClose, stateClosed, c.onClosed)

	final, _ := d.Run(c.runConnecting)
	u.Infof("conn: controller stopped in state %v", final)
}

func (c *Controller) setRole(role Role) {
	c.mu.Lock()
	c.role = role
	old := c.roleCh
	c.roleCh = make(chan struct{})
	c.mu.Unlock()
	close(old)
}

// Role returns the controller's current role.
func (c *Controller) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// WaitIfConnecting blocks until the controller's role is Leader or
// Follower, or ctx is cancelled first.
func (c *Controller) WaitIfConnecting(ctx context.Context) error {
	for {
		c.mu.Lock()
		role := c.role
		ch := c.roleCh
		c.mu.Unlock()

		switch role {
		case RoleLeader, RoleFollower:
			return nil
		case RoleClosed:
			return ErrClosed
		}

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return ErrCancelled
		}
	}
}

// --- election / reconnection state functions ---

func (c *Controller) runConnecting() dfa.Letter {
	c.setRole(RoleConnecting)

	select {
	case <-c.closeCh:
		return letterClose
	default:
	}

	session, err := concurrency.NewSession(c.etcd, concurrency.WithTTL(10))
	if err != nil {
		u.Warnf("conn: etcd session: %v", err)
		return c.backoffRetry()
	}
	election := concurrency.NewElection(session, c.cfg.ElectionKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.closeCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Look for an already-elected leader before trying to become one
	// ourselves; this is the common case once the cluster is up.
	observeCtx, observeCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer observeCancel()
	select {
	case resp, ok := <-election.Observe(observeCtx):
		if ok && len(resp.Kvs) > 0 {
			session.Close()
			return c.becomeFollower(string(resp.Kvs[0].Value))
		}
	case <-ctx.Done():
		session.Close()
		return letterClose
	case <-observeCtx.Done():
		// No leader observed within the window; fall through to campaign.
	}

	campaignErr := election.Campaign(ctx, c.cfg.SelfAddr)
	if campaignErr != nil {
		session.Close()
		if ctx.Err() != nil {
			return letterClose
		}
		u.Warnf("conn: campaign: %v", campaignErr)
		return c.backoffRetry()
	}

	c.mu.Lock()
	c.electionSession = session
	c.election = election
	c.mu.Unlock()
	return letterElected
}

func (c *Controller) backoffRetry() dfa.Letter {
	select {
	case <-time.After(time.Second):
	case <-c.closeCh:
		return letterClose
	}
	return letterRetry
}

func (c *Controller) becomeFollower(leaderAddr string) dfa.Letter {
	conn, err := net.DialTimeout("tcp", leaderAddr, 5*time.Second)
	if err != nil {
		u.Warnf("conn: dial leader %s: %v", leaderAddr, err)
		return c.backoffRetry()
	}
	tr := transport.New(conn)
	tr.Serve(func(protocol.Message) {
		// Followers receive no unsolicited messages in this protocol
		// beyond replies, which Transport already routes by correlation.
	})
	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()
	return letterLostElection
}

func (c *Controller) runFollower() dfa.Letter {
	c.setRole(RoleFollower)
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()

	select {
	case <-tr.Done():
		return letterTransportLost
	case <-c.closeCh:
		tr.Close()
		return letterClose
	}
}

func (c *Controller) runLeader() dfa.Letter {
	eng, err := engine.Open(c.cfg.SQLitePath)
	if err != nil {
		u.Errorf("conn: open engine: %v", err)
		return c.backoffRetry()
	}
	ln, err := net.Listen("tcp", c.cfg.ListenAddr)
	if err != nil {
		u.Errorf("conn: listen %s: %v", c.cfg.ListenAddr, err)
		eng.Close()
		return c.backoffRetry()
	}

	c.mu.Lock()
	c.eng = eng
	c.listener = ln
	session := c.electionSession
	c.mu.Unlock()

	c.setRole(RoleLeader)
	u.Infof("conn: elected leader, listening on %s", c.cfg.ListenAddr)

	lost := make(chan struct{})
	if session != nil {
		go func() {
			<-session.Done()
			close(lost)
		}()
	}

	go c.acceptLoop(ln, eng)

	select {
	case <-lost:
		u.Warnf("conn: lost leadership (etcd session ended)")
	case <-c.closeCh:
		u.Infof("conn: closing leader")
	}

	ln.Close()
	eng.Close()
	c.mu.Lock()
	c.eng = nil
	c.listener = nil
	c.mu.Unlock()

	select {
	case <-c.closeCh:
		return letterClose
	default:
		return letterTransportLost
	}
}

func (c *Controller) acceptLoop(ln net.Listener, eng *engine.Engine) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		peer := engine.PeerID(atomic.AddUint64(&c.peerSeq, 1))
		tr := transport.New(nc)
		tr.Serve(eng.Handler(peer, tr))
		go func() {
			<-tr.Done()
			eng.DisposePeer(peer)
		}()
	}
}

func (c *Controller) onClosed() {
	c.mu.Lock()
	election := c.election
	session := c.electionSession
	c.mu.Unlock()
	if election != nil && session != nil {
		resignCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := election.Resign(resignCtx); err != nil {
			u.Warnf("conn: resign leadership: %v", err)
		}
		cancel()
		session.Close()
	}
	c.setRole(RoleClosed)
	if c.etcd != nil {
		c.etcd.Close()
	}
}

// Close stops the controller, releasing any held leadership and closing
// any follower transport.
func (c *Controller) Close() {
	c.closed.Do(func() {
		close(c.closeCh)
	})
}

// CommandHandle discriminates the two worker flavors create_command can
// produce: exactly one of Local or Remote is set.
type CommandHandle struct {
	Local  *engine.LocalCommand
	Remote *worker.Command
}

// CreateCommand hands back a local command worker when Leader, a remote
// one bound to the follower transport otherwise. It returns
// transport.ErrDisconnected if the controller is not currently Leader or
// Follower; callers should WaitIfConnecting first.
func (c *Controller) CreateCommand(sqlText string, timeout time.Duration) (CommandHandle, error) {
	c.mu.Lock()
	role := c.role
	eng := c.eng
	tr := c.tr
	c.mu.Unlock()

	switch role {
	case RoleLeader:
		local, err := engine.CreateLocalCommand(eng, localPeerID, sqlText)
		if err != nil {
			return CommandHandle{}, err
		}
		return CommandHandle{Local: local}, nil
	case RoleFollower:
		remote, err := worker.CreateCommand(tr, sqlText, timeout)
		if err != nil {
			return CommandHandle{}, err
		}
		return CommandHandle{Remote: remote}, nil
	default:
		return CommandHandle{}, transport.ErrDisconnected
	}
}

// localPeerID is the synthetic PeerID used for commands created directly
// against the leader's own Engine (there is no network peer to track).
const localPeerID = engine.PeerID(0)
