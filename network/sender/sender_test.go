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

package sender_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ridgeway-labs/sessioncore/network/packet"
	"github.com/ridgeway-labs/sessioncore/network/sender"
)

// recordingWriter is a fake sender.Writer that captures every batch
// handed to Write and can optionally block, so tests can observe the
// single-flight invariant directly.
type recordingWriter struct {
	mu      sync.Mutex
	batches [][]byte
	block   chan struct{}
}

func (w *recordingWriter) Write(b net.Buffers) (int64, error) {
	if w.block != nil {
		<-w.block
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var flat []byte
	for _, buf := range b {
		flat = append(flat, buf...)
	}
	w.batches = append(w.batches, flat)
	return int64(len(flat)), nil
}

func (w *recordingWriter) batchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batches)
}

func TestRegisterSendsImmediatelyWhenIdle(t *testing.T) {
	w := &recordingWriter{}
	s := sender.New(w)

	s.Register(packet.FromBody(1, []byte("a")))

	if w.batchCount() != 1 {
		t.Fatalf("batchCount() = %d, want 1", w.batchCount())
	}
	if s.Sending() {
		t.Fatalf("Sending() = true after synchronous completion, want false")
	}
}

func TestRegisterCoalescesWhileSendInFlight(t *testing.T) {
	w := &recordingWriter{block: make(chan struct{})}
	s := sender.New(w)

	// Register blocks its caller until Write returns (no internal
	// goroutine hop), so the first, blocking send runs on its own
	// goroutine here.
	go s.Register(packet.FromBody(1, []byte("a")))

	deadline := time.Now().Add(time.Second)
	for !s.Sending() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	s.Register(packet.FromBody(1, []byte("b")))
	s.Register(packet.FromBody(1, []byte("c")))

	if got := s.PendingLen(); got != 2 {
		t.Fatalf("PendingLen() = %d, want 2 (coalesced behind in-flight send)", got)
	}

	close(w.block)

	deadline = time.Now().Add(time.Second)
	for s.Sending() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if s.Sending() {
		t.Fatalf("Sending() still true after all batches drained")
	}
	if w.batchCount() != 2 {
		t.Fatalf("batchCount() = %d, want 2 (one in-flight send, one coalesced batch)", w.batchCount())
	}
}

func TestClearDropsPendingWithoutSending(t *testing.T) {
	w := &recordingWriter{block: make(chan struct{})}
	s := sender.New(w)

	go s.Register(packet.FromBody(1, []byte("a")))

	deadline := time.Now().Add(time.Second)
	for !s.Sending() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	s.Register(packet.FromBody(1, []byte("b")))

	s.Clear()

	if got := s.PendingLen(); got != 0 {
		t.Fatalf("PendingLen() = %d after Clear(), want 0", got)
	}

	close(w.block)
}
