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

package client_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/client"
	"github.com/ridgeway-labs/sessioncore/network/packet"
	"github.com/ridgeway-labs/sessioncore/network/server"
	"github.com/ridgeway-labs/sessioncore/network/session"
)

const protocolEcho uint16 = 0

func newTestLogger() logging.Logger {
	return logging.New(io.Discard, logging.PanicLevel)
}

func echoFactory(conn net.Conn, sink session.Sink, log logging.Logger) *session.Session {
	sess := session.New(conn, log, sink)
	sess.RegisterHandler(protocolEcho, func(s *session.Session, protocolNo uint16, body []byte) {
		s.Send(packet.FromBody(protocolNo, body))
	})
	return sess
}

func startEchoServer(t *testing.T) (addr string, stop func()) {
	t.Helper()

	srv := server.New(server.Config{
		SectionCount:      1,
		ReactorWorkers:    1,
		ReactorQueueDepth: 16,
		HardTaskWorkers:   1,
	}, echoFactory, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(ctx, "tcp", "127.0.0.1:0") }()

	deadline := time.Now().Add(time.Second)
	for srv.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if srv.Addr() == nil {
		t.Fatalf("server never bound a listen address")
	}

	return srv.Addr().String(), func() {
		cancel()
		<-errCh
	}
}

func TestClientConnectAndRoundTrip(t *testing.T) {
	addr, stopServer := startEchoServer(t)
	defer stopServer()

	received := make(chan []byte, 1)
	c := client.New(client.Config{ReactorWorkers: 1, ReactorQueueDepth: 16}, func(conn net.Conn, sink session.Sink, log logging.Logger) *session.Session {
		sess := session.New(conn, log, sink)
		sess.RegisterHandler(protocolEcho, func(s *session.Session, protocolNo uint16, body []byte) {
			received <- body
		})
		return sess
	}, newTestLogger())
	defer c.Close()

	sess, err := c.Connect(context.Background(), "tcp", addr)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !sess.IsConnected() {
		t.Fatalf("session not connected after Connect()")
	}
	if c.SessionCount() != 1 {
		t.Fatalf("SessionCount() = %d, want 1", c.SessionCount())
	}

	got, ok := c.Session(sess.ID())
	if !ok || got != sess {
		t.Fatalf("Session(%d) = (%v, %v), want the connected session", sess.ID(), got, ok)
	}

	sess.Send(packet.FromBody(protocolEcho, []byte("hello")))

	select {
	case body := <-received:
		if string(body) != "hello" {
			t.Fatalf("echoed body = %q, want %q", body, "hello")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for echo reply")
	}
}

func TestClientCloseDisconnectsSessions(t *testing.T) {
	addr, stopServer := startEchoServer(t)
	defer stopServer()

	c := client.New(client.Config{ReactorWorkers: 1, ReactorQueueDepth: 16}, func(conn net.Conn, sink session.Sink, log logging.Logger) *session.Session {
		return session.New(conn, log, sink)
	}, newTestLogger())

	sess, err := c.Connect(context.Background(), "tcp", addr)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	c.Close()

	deadline := time.Now().Add(time.Second)
	for sess.State() != session.StateClosed && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sess.State() != session.StateClosed {
		t.Fatalf("session state = %v after Close(), want Closed", sess.State())
	}
}
