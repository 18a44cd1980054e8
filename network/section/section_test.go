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

package section_test

import (
	"bufio"
	"io"
	"net"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/packet"
	"github.com/ridgeway-labs/sessioncore/network/section"
	"github.com/ridgeway-labs/sessioncore/network/session"
)

type nopSink struct{}

func (nopSink) Enqueue(session.Received) {}

func newTestLogger() logging.Logger {
	return logging.New(io.Discard, logging.PanicLevel)
}

// newSession builds a real session.Session backed by a net.Pipe, handing
// back the peer end so tests can observe what the session writes.
func newSession() (*session.Session, net.Conn) {
	serverConn, clientConn := net.Pipe()
	sess := session.New(serverConn, newTestLogger(), nopSink{})
	sess.Accepted()
	return sess, clientConn
}

// readOnePacket reads exactly one framed packet off peer, draining the
// header before the body like the real Session.drainFrames does.
func readOnePacket(peer io.Reader) (uint16, []byte, error) {
	r := bufio.NewReader(peer)
	header := make([]byte, packet.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	size, protocolNo := packet.ParseHeader(header)
	body := make([]byte, int(size)-packet.HeaderSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return protocolNo, body, nil
}

var _ = Describe("Section", func() {
	var sec *section.Section

	BeforeEach(func() {
		sec = section.New(newTestLogger())
	})

	Describe("membership", func() {
		It("owns a session entered into it", func() {
			sess, peer := newSession()
			defer peer.Close()

			sec.EnterSection(sess)
			Expect(sec.SessionCount()).To(Equal(1))

			found, ok := sec.Find(sess.ID())
			Expect(ok).To(BeTrue())
			Expect(found).To(Equal(sess))
			Expect(sess.Owner()).To(Equal(session.Owner(sec)))
		})

		It("disconnects a session entered under an id already owned", func() {
			sess, peer := newSession()
			defer peer.Close()
			sec.EnterSection(sess)

			// Entering the same *session.Session a second time hits the
			// same id-already-present path EnterSection guards against.
			sec.EnterSection(sess)

			Expect(sec.SessionCount()).To(Equal(1))
			Eventually(func() session.State { return sess.State() }, time.Second).Should(Equal(session.StateClosed))
		})

		It("clears ownership on exit", func() {
			sess, peer := newSession()
			defer peer.Close()

			sec.EnterSection(sess)
			sec.ExitSection(sess.ID())

			Expect(sec.SessionCount()).To(Equal(0))
			Expect(sess.Owner()).To(BeNil())
		})
	})

	Describe("broadcast", func() {
		It("delivers to every member except the excluded id", func() {
			a, peerA := newSession()
			defer peerA.Close()
			b, peerB := newSession()
			defer peerB.Close()

			sec.EnterSection(a)
			sec.EnterSection(b)

			// Send.Register writes synchronously on the caller's goroutine
			// (no internal hop), so Broadcast must run concurrently with
			// the peer reads below or the pipe write blocks forever.
			go sec.Broadcast(packet.FromBody(5, []byte("hi")), a.ID())

			protocolNo, body, err := readOnePacket(peerB)
			Expect(err).ToNot(HaveOccurred())
			Expect(protocolNo).To(Equal(uint16(5)))
			Expect(body).To(Equal([]byte("hi")))

			// a was excluded: nothing should arrive on its peer within a
			// short window.
			done := make(chan struct{})
			go func() {
				_, _, _ = readOnePacket(peerA)
				close(done)
			}()
			Consistently(done, 100*time.Millisecond).ShouldNot(BeClosed())
		})
	})

	Describe("task scheduling", func() {
		It("runs a one-shot task once the section is started", func() {
			go sec.Run()
			defer sec.Stop()

			fired := make(chan struct{}, 1)
			sec.PushTask(section.NewTask(0, func() { fired <- struct{}{} }))

			Eventually(fired, time.Second).Should(Receive())
		})

		It("re-schedules a repeating task", func() {
			go sec.Run()
			defer sec.Stop()

			var count atomic.Int32
			sec.PushTask(section.NewRepeatingTask(10*time.Millisecond, func() {
				count.Add(1)
			}))

			Eventually(func() int32 { return count.Load() }, time.Second).Should(BeNumerically(">=", 2))
		})
	})

	Describe("lifecycle", func() {
		It("reports Connected only while running", func() {
			Expect(sec.Connected()).To(BeFalse())

			go sec.Run()
			Eventually(sec.Connected, time.Second).Should(BeTrue())

			sec.Stop()
			Expect(sec.Connected()).To(BeFalse())
		})
	})
})
