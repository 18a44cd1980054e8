/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package client is the Go port of ClientBase: it dials one or more
// sessions against a remote server and runs their receive loops, routing
// completed packets through a Reactor directly to handlers instead of a
// NetworkSection (the client side has no sharding to do).
package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/reactor"
	"github.com/ridgeway-labs/sessioncore/network/session"
)

// SessionFactory builds a Session for a connection this Client just
// dialed, installing whatever protocol handlers the application needs.
type SessionFactory func(conn net.Conn, sink session.Sink, log logging.Logger) *session.Session

// Config bundles the client-side reactor tunables.
type Config struct {
	ReactorWorkers    int
	ReactorQueueDepth int
}

// selfOwner is the Connected() back-reference every client-dialed
// Session points at: the client itself has no section to shard into, so
// it answers liveness for its own sessions directly.
type selfOwner struct{}

func (o *selfOwner) Connected() bool { return true }

// Client is the Go port of ClientBase: dial, track, and service multiple
// outbound sessions against one or more remote endpoints.
type Client struct {
	log     logging.Logger
	factory SessionFactory
	rtr     *reactor.Reactor
	owner   *selfOwner

	mu       sync.Mutex
	sessions map[uint32]*session.Session

	running atomic.Bool
}

// New builds a Client. Completed receives are dispatched directly to
// session.ExecutePacket on a reactor worker goroutine (no section
// indirection on the client side).
func New(cfg Config, factory SessionFactory, log logging.Logger) *Client {
	if cfg.ReactorWorkers < 1 {
		cfg.ReactorWorkers = 1
	}

	c := &Client{
		log:      log,
		factory:  factory,
		sessions: make(map[uint32]*session.Session),
		owner:    &selfOwner{},
	}
	c.rtr = reactor.New(log, cfg.ReactorQueueDepth, cfg.ReactorWorkers, c.dispatch)
	c.running.Store(true)
	return c
}

func (c *Client) dispatch(r session.Received) {
	r.Session.ExecutePacket(r.ProtocolNo, r.Body)
}

// Connect dials address, builds a session via the factory, and starts
// its receive loop on a new goroutine. The returned Session is already
// in StateConnected.
func (c *Client) Connect(ctx context.Context, network, address string) (*session.Session, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	sess := c.factory(conn, c.rtr, c.log)
	sess.Connecting()
	sess.SetOwner(c.owner)
	sess.Connected()

	c.mu.Lock()
	c.sessions[sess.ID()] = sess
	c.mu.Unlock()

	go sess.RunRecvLoop()

	return sess, nil
}

// Session returns the tracked session for id, if any.
func (c *Client) Session(id uint32) (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// SessionCount reports how many sessions this client currently tracks.
func (c *Client) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close disconnects every tracked session and stops the reactor.
func (c *Client) Close() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.mu.Lock()
	sessions := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect()
	}

	c.rtr.Stop()
}
