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

package section

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/packet"
	"github.com/ridgeway-labs/sessioncore/network/session"
)

var nextSectionID atomic.Uint32

// NextID returns a fresh, process-global section id, mirroring
// NetworkSection::generate_section_id in the original source.
func NextID() uint32 {
	return nextSectionID.Add(1)
}

// Section owns a disjoint subset of sessions and runs one dedicated
// worker goroutine that drains a min-heap of delayed tasks (spec §4.6).
// A session belongs to at most one Section at a time.
type Section struct {
	id  uint32
	log logging.Logger

	mu       sync.Mutex
	sessions map[uint32]*session.Session
	tasks    taskHeap
	wake     chan struct{}

	running atomic.Bool
	done    chan struct{}

	stats Stats
}

// New creates an idle Section; call Run to start its worker goroutine.
func New(log logging.Logger) *Section {
	s := &Section{
		id:       NextID(),
		log:      log,
		sessions: make(map[uint32]*session.Session),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	heap.Init(&s.tasks)
	return s
}

// ID returns this section's id.
func (s *Section) ID() uint32 { return s.id }

// Connected implements session.Owner: a Section always reports itself
// live once running, so async DB callbacks can check session ownership
// without caring whether the *server* as a whole is shutting down (that
// is a coarser-grained concern the server itself enforces).
func (s *Section) Connected() bool {
	return s.running.Load()
}

// EnterSection adds sess to this section, setting sess as sess's owner.
// A session id already present is a duplicate entry (spec §4.6 invariant)
// and is disconnected rather than replacing the existing entry.
func (s *Section) EnterSection(sess *session.Session) {
	s.mu.Lock()
	_, dup := s.sessions[sess.ID()]
	if !dup {
		s.sessions[sess.ID()] = sess
	}
	s.mu.Unlock()

	if dup {
		sess.Disconnect()
		return
	}

	sess.SetOwner(s)
}

// ExitSection removes the session with the given id and clears its owner
// back-reference.
func (s *Section) ExitSection(id uint32) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.SetOwner(nil)
	}
}

// Find returns the session with the given id, if owned by this section.
func (s *Section) Find(id uint32) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// SessionCount returns the number of sessions currently owned.
func (s *Section) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// PushTask schedules t on this section's worker.
func (s *Section) PushTask(t *Task) {
	s.mu.Lock()
	heap.Push(&s.tasks, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Broadcast sends p to every owned session, optionally skipping one by
// id. The same *packet.Packet handle is shared across every session's
// MultiSender (spec §4.6).
func (s *Section) Broadcast(p *packet.Packet, except uint32) {
	s.mu.Lock()
	targets := make([]*session.Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if id == except {
			continue
		}
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	for _, sess := range targets {
		sess.Send(p)
	}
}

// Run executes the section's task loop until ctx-like Stop is called. It
// is meant to be launched with `go sec.Run()`.
func (s *Section) Run() {
	s.running.Store(true)
	defer s.running.Store(false)
	defer close(s.done)

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	// poll re-checks the heap head every millisecond so a delayed task runs
	// close to its ExecuteAt even when nothing else wakes the loop.
	poll := time.NewTicker(time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-s.wake:
		case <-poll.C:
		case <-tick.C:
			s.stats.tick()
		}

		if !s.running.Load() {
			return
		}

		s.stats.incFrame()
		s.drainDue()
	}
}

// drainDue pops and executes every task whose ExecuteAt has elapsed,
// re-queuing repeat tasks with a new ExecuteAt (spec §4.6 steps 3-5).
func (s *Section) drainDue() {
	for {
		s.mu.Lock()
		if s.tasks.Len() == 0 {
			s.mu.Unlock()
			return
		}

		t := s.tasks[0]
		now := time.Now()
		if now.Before(t.ExecuteAt) {
			s.mu.Unlock()
			return
		}

		heap.Pop(&s.tasks)
		s.mu.Unlock()

		s.runTask(t)

		if t.Repeat {
			t.ExecuteAt = now.Add(t.Delay)
			s.mu.Lock()
			heap.Push(&s.tasks, t)
			s.mu.Unlock()
		}
	}
}

// runTask executes one task's work (and optional post-processing) to
// completion on this goroutine: section workers never preempt a running
// task (spec §4.6). A panicking task is logged and does not kill the
// section (spec §7).
func (s *Section) runTask(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logging.Fields{"panic": r}).Error("section: task panicked")
		}
	}()

	t.Work()
	if t.After != nil {
		t.After()
	}
}

// Stop signals the worker goroutine to exit after its current wake cycle
// and waits for it to do so.
func (s *Section) Stop() {
	s.running.Store(false)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.done
}

// Snapshot returns the current FPS/TPS counters (spec §C.3 / §4.12).
func (s *Section) Snapshot() StatsSnapshot {
	return s.stats.snapshot()
}

// IncrementRecv records one received packet for the recv-TPS counter.
func (s *Section) IncrementRecv() { s.stats.incRecv() }

// IncrementSend records one sent packet for the send-TPS counter.
func (s *Section) IncrementSend() { s.stats.incSend() }
