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

// Package reactor is the Go port of NetworkCore: the original's IOCP
// handle plus its iocp_thread_work pool and concurrent_queue<Packet*>
// become a buffered Go channel drained by a small pool of dispatcher
// goroutines, since the net package gives every connection its own
// blocking-read goroutine instead of a completion port (spec §9's
// "IOCP → goroutine-per-connection" redesign note).
package reactor

import (
	"sync"
	"sync/atomic"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/session"
)

// Dispatch routes one completed receive to wherever it should run:
// directly (client side) or onto the owning section's worker (server
// side). Implementations must not block for long, since they run on a
// dispatcher goroutine shared by every session.
type Dispatch func(r session.Received)

// Reactor owns the global packet queue (NetworkCore::m_packet_queue) and
// a small pool of dispatcher goroutines draining it (the Go analogue of
// iocp_thread_count IOCP worker threads).
type Reactor struct {
	log      logging.Logger
	dispatch Dispatch

	queue chan session.Received
	quit  chan struct{}

	running atomic.Bool
	wg      sync.WaitGroup
}

// New builds a Reactor with the given queue depth and worker count.
// dispatch is invoked once per Received, from one of workerCount
// goroutines.
func New(log logging.Logger, queueDepth, workerCount int, dispatch Dispatch) *Reactor {
	if workerCount < 1 {
		workerCount = 1
	}
	r := &Reactor{
		log:      log,
		dispatch: dispatch,
		queue:    make(chan session.Received, queueDepth),
		quit:     make(chan struct{}),
	}
	r.startWorkers(workerCount)
	return r
}

func (r *Reactor) startWorkers(n int) {
	r.running.Store(true)
	r.wg.Add(n)
	for i := 0; i < n; i++ {
		go r.workerLoop()
	}
}

func (r *Reactor) workerLoop() {
	defer r.wg.Done()
	for {
		select {
		case rcv := <-r.queue:
			r.runOne(rcv)
		case <-r.quit:
			return
		}
	}
}

func (r *Reactor) runOne(rcv session.Received) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(logging.Fields{"panic": p}).Error("reactor: dispatch panicked")
		}
	}()
	r.dispatch(rcv)
}

// Enqueue implements session.Sink: every Session's receive loop pushes
// its completed frames here (spec §4.3 step 2, §4.5).
func (r *Reactor) Enqueue(rcv session.Received) {
	if !r.running.Load() {
		return
	}
	r.queue <- rcv
}

// QueueDepth reports how many completed receives are currently waiting
// on a dispatcher goroutine, for metrics/diagnostics.
func (r *Reactor) QueueDepth() int {
	return len(r.queue)
}

// Stop signals every dispatcher goroutine to exit and waits for them to
// do so. Callers should stop feeding new sessions into this reactor
// before calling Stop; any Received still sitting in the queue when a
// worker exits is dropped.
func (r *Reactor) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	close(r.quit)
	r.wg.Wait()
}
