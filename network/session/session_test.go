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

package session_test

import (
	"io"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/packet"
	"github.com/ridgeway-labs/sessioncore/network/session"
)

type fakeSink struct {
	mu       sync.Mutex
	received []session.Received
}

func (s *fakeSink) Enqueue(r session.Received) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, r)
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func newTestLogger() logging.Logger {
	return logging.New(io.Discard, logging.PanicLevel)
}

var _ = Describe("Session", func() {
	var (
		serverConn, clientConn net.Conn
		sink                   *fakeSink
		sess                   *session.Session
	)

	BeforeEach(func() {
		serverConn, clientConn = net.Pipe()
		sink = &fakeSink{}
		sess = session.New(serverConn, newTestLogger(), sink)
	})

	AfterEach(func() {
		sess.Disconnect()
		_ = clientConn.Close()
	})

	Describe("lifecycle", func() {
		It("starts in the New state", func() {
			Expect(sess.State()).To(Equal(session.StateNew))
		})

		It("transitions to Connected on Accepted", func() {
			sess.Accepted()
			Expect(sess.IsConnected()).To(BeTrue())
		})

		It("disconnect is idempotent", func() {
			sess.Accepted()
			sess.Disconnect()
			Expect(func() { sess.Disconnect() }).ToNot(Panic())
			Expect(sess.State()).To(Equal(session.StateClosed))
		})
	})

	Describe("receive loop", func() {
		It("delivers a complete frame to the sink", func() {
			sess.Accepted()
			go sess.RunRecvLoop()

			p := packet.FromBody(7, []byte("hello"))
			_, err := clientConn.Write(p.Bytes())
			Expect(err).ToNot(HaveOccurred())

			Eventually(sink.count, time.Second).Should(Equal(1))
			Expect(sink.received[0].ProtocolNo).To(Equal(uint16(7)))
			Expect(sink.received[0].Body).To(Equal([]byte("hello")))
		})

		It("reassembles two frames delivered in a single write", func() {
			sess.Accepted()
			go sess.RunRecvLoop()

			first := packet.FromBody(1, []byte("one"))
			second := packet.FromBody(2, []byte("two"))
			_, err := clientConn.Write(append(first.Bytes(), second.Bytes()...))
			Expect(err).ToNot(HaveOccurred())

			Eventually(sink.count, time.Second).Should(Equal(2))
			Expect(sink.received[0].ProtocolNo).To(Equal(uint16(1)))
			Expect(sink.received[1].ProtocolNo).To(Equal(uint16(2)))
		})

		It("disconnects when the peer closes the connection", func() {
			sess.Accepted()
			go sess.RunRecvLoop()

			Expect(clientConn.Close()).To(Succeed())

			Eventually(func() session.State { return sess.State() }, time.Second).Should(Equal(session.StateClosed))
		})
	})

	Describe("dispatch", func() {
		It("drops an unregistered protocol without disconnecting", func() {
			sess.Accepted()
			sess.ExecutePacket(99, []byte("x"))
			Expect(sess.IsConnected()).To(BeTrue())
		})

		It("invokes the registered handler", func() {
			var got []byte
			sess.RegisterHandler(3, func(s *session.Session, protocolNo uint16, body []byte) {
				got = body
			})
			sess.Accepted()

			sess.ExecutePacket(3, []byte("payload"))
			Expect(got).To(Equal([]byte("payload")))
		})
	})
})
