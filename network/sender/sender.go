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

// Package sender implements the per-session coalescing outbound pipeline
// described in spec §4.4, ported from NetworkLibrary/MultiSender.{h,cpp}.
// It enforces the single-flight send invariant: at most one scatter-gather
// send is ever outstanding for a given session.
package sender

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/ridgeway-labs/sessioncore/network/packet"
)

// Writer performs the actual scatter-gather send. *net.TCPConn satisfies
// this via net.Buffers.WriteTo, but the seam lets tests substitute a fake.
type Writer interface {
	Write(b net.Buffers) (int64, error)
}

// MultiSender serializes any number of concurrently registered packets
// into single-flight scatter-gather sends for one session.
//
// Invariants (spec §4.4):
//   - at most one send is ever in flight;
//   - every packet handed to Register is eventually either sent or dropped
//     by Clear;
//   - sendingFlag == false implies inFlight is empty.
type MultiSender struct {
	w Writer

	mu      sync.Mutex
	pending []*packet.Packet

	sendingFlag atomic.Bool
	inFlight    []*packet.Packet
}

// New returns a MultiSender that writes completed batches to w.
func New(w Writer) *MultiSender {
	return &MultiSender{w: w}
}

// Register enqueues p for sending. If no send is currently in flight it
// takes ownership of the single-flight slot and sends immediately;
// otherwise p waits for the in-flight send's completion to pick it up.
func (s *MultiSender) Register(p *packet.Packet) {
	s.mu.Lock()
	s.pending = append(s.pending, p)
	s.mu.Unlock()

	if s.sendingFlag.CompareAndSwap(false, true) {
		s.send()
	}
}

// send drains pending into inFlight and issues one scatter-gather write.
// Only the goroutine that won the CAS in Register, or the one running
// onSendCompletion, ever calls this — both paths hold the single-flight
// slot when they do, so inFlight is never touched concurrently.
func (s *MultiSender) send() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		s.onSendCompletion()
		return
	}

	s.inFlight = batch

	bufs := make(net.Buffers, len(batch))
	for i, p := range batch {
		bufs[i] = p.Bytes()
	}

	_, _ = s.w.Write(bufs)
	s.onSendCompletion()
}

// onSendCompletion clears the in-flight batch and either drains the next
// pending batch or releases the single-flight slot.
func (s *MultiSender) onSendCompletion() {
	s.inFlight = nil

	s.mu.Lock()
	more := len(s.pending) > 0
	s.mu.Unlock()

	if more {
		s.send()
		return
	}

	s.sendingFlag.Store(false)

	// A Register that appended after the check above lost its CAS while
	// the flag was still set; reclaim the slot so its packet still goes out.
	s.mu.Lock()
	more = len(s.pending) > 0
	s.mu.Unlock()
	if more && s.sendingFlag.CompareAndSwap(false, true) {
		s.send()
	}
}

// Clear drops every pending and in-flight packet without sending them,
// used when a session is disconnecting.
func (s *MultiSender) Clear() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	s.inFlight = nil
	s.sendingFlag.Store(false)
}

// PendingLen reports the current depth of the pending queue, for tests and
// diagnostics.
func (s *MultiSender) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Sending reports whether a send is currently in flight.
func (s *MultiSender) Sending() bool {
	return s.sendingFlag.Load()
}
