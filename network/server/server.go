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

// Package server is the Go port of ServerBase: a listening socket, a
// pool of NetworkSections sessions are sharded across, and a bounded
// pool of "hard task" workers for CPU/IO-heavy callback work that
// shouldn't run on a section's own goroutine (spec §4.7).
package server

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/reactor"
	"github.com/ridgeway-labs/sessioncore/network/section"
	"github.com/ridgeway-labs/sessioncore/network/session"
	"golang.org/x/sync/semaphore"
)

// SessionFactory builds the Session for a freshly accepted connection,
// installing whatever protocol handlers the application needs before the
// session is entered into a section.
type SessionFactory func(conn net.Conn, sink session.Sink, log logging.Logger) *session.Session

// Config bundles the tunables ServerBase::init took as constructor
// arguments in the original source.
type Config struct {
	SectionCount      int
	ReactorWorkers    int
	ReactorQueueDepth int
	HardTaskWorkers   int
}

// Server is the Go port of ServerBase: it owns the listening socket, a
// fixed ring of Sections sessions are sharded across, a Reactor that
// dispatches completed receives onto the owning section, and a bounded
// hard-task pool for callback work a section thread shouldn't block on.
type Server struct {
	log     logging.Logger
	cfg     Config
	factory SessionFactory

	listener net.Listener
	sections []*section.Section
	nextSec  atomic.Uint64

	rtr *reactor.Reactor
	sem *semaphore.Weighted

	acceptCount atomic.Uint64
	running     atomic.Bool
}

// New builds a Server around cfg; sessions are constructed by factory.
func New(cfg Config, factory SessionFactory, log logging.Logger) *Server {
	if cfg.SectionCount < 1 {
		cfg.SectionCount = 1
	}
	if cfg.ReactorWorkers < 1 {
		cfg.ReactorWorkers = 1
	}
	if cfg.HardTaskWorkers < 1 {
		cfg.HardTaskWorkers = 1
	}

	s := &Server{
		log:     log,
		cfg:     cfg,
		factory: factory,
		sem:     semaphore.NewWeighted(int64(cfg.HardTaskWorkers)),
	}

	s.sections = make([]*section.Section, cfg.SectionCount)
	for i := range s.sections {
		s.sections[i] = section.New(log)
	}

	s.rtr = reactor.New(log, cfg.ReactorQueueDepth, cfg.ReactorWorkers, s.dispatch)

	return s
}

// dispatch routes one completed receive onto the section that owns its
// session (the Go port of central_thread_work's packet-to-section
// routing): the section's own worker goroutine then runs the handler via
// a Task so handler execution never competes with the section's recv
// processing.
func (s *Server) dispatch(r session.Received) {
	owner, ok := r.Session.Owner().(*section.Section)
	if !ok || owner == nil {
		s.log.Error("server: received packet for session with no section owner")
		return
	}

	owner.IncrementRecv()
	owner.PushTask(section.NewTask(0, func() {
		r.Session.ExecutePacket(r.ProtocolNo, r.Body)
	}))
}

// selectSection implements select_first_section: a simple round-robin
// choice across the fixed section ring (spec §4.7 leaves the exact
// policy open; round-robin keeps sections evenly loaded without needing
// per-session affinity state).
func (s *Server) selectSection() *section.Section {
	idx := s.nextSec.Add(1) % uint64(len(s.sections))
	return s.sections[idx]
}

// Listen starts every section's worker goroutine, binds the listener,
// and runs the accept loop until ctx is canceled or Close is called.
func (s *Server) Listen(ctx context.Context, network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running.Store(true)

	for _, sec := range s.sections {
		go sec.Run()
	}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s.acceptLoop()
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			s.log.CheckError(logging.ErrorLevel, logging.InfoLevel, "server: accept failed", err)
			return err
		}

		s.acceptCount.Add(1)
		sess := s.factory(conn, s.rtr, s.log)
		sess.Accepted()

		sec := s.selectSection()
		sec.EnterSection(sess)

		go sess.RunRecvLoop()
	}
}

// PushHardTask submits work to the bounded hard-task pool (spec §4.7),
// the Go port of push_hard_task: if every worker slot is busy, the
// caller blocks until one frees up rather than growing the pool
// unboundedly.
func (s *Server) PushHardTask(ctx context.Context, work func()) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer s.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				s.log.WithFields(logging.Fields{"panic": r}).Error("server: hard task panicked")
			}
		}()
		work()
	}()
	return nil
}

// AcceptCount returns the total number of accepted connections since
// start, the Go counterpart of increment_accept_count_for_tps's running
// total.
func (s *Server) AcceptCount() uint64 {
	return s.acceptCount.Load()
}

// SectionCount reports how many sections sessions are sharded across.
func (s *Server) SectionCount() int {
	return len(s.sections)
}

// Sections returns the fixed ring of sections sessions are sharded
// across, so a metrics poller can pull each one's Snapshot without the
// Server needing to know anything about Prometheus.
func (s *Server) Sections() []*section.Section {
	return s.sections
}

// Addr returns the listener's bound address. Only meaningful after Listen
// has successfully bound the socket; callers that need the ephemeral port
// picked for a ":0" address (tests, mostly) read it from here.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the accept loop, every section worker, and the reactor.
func (s *Server) Close() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	for _, sec := range s.sections {
		sec.Stop()
	}
	s.rtr.Stop()

	return err
}
