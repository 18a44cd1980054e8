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

package server_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
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

func startServer(t *testing.T) (*server.Server, func()) {
	t.Helper()

	srv := server.New(server.Config{
		SectionCount:      2,
		ReactorWorkers:    2,
		ReactorQueueDepth: 16,
		HardTaskWorkers:   2,
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

	return srv, func() {
		cancel()
		<-errCh
	}
}

func TestServerEchoesRegisteredProtocol(t *testing.T) {
	srv, stop := startServer(t)
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	p := packet.FromBody(protocolEcho, []byte("ping"))
	if _, err := conn.Write(p.Bytes()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	header := make([]byte, packet.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		t.Fatalf("reading header: %v", err)
	}
	size, protocolNo := packet.ParseHeader(header)
	if protocolNo != protocolEcho {
		t.Fatalf("protocolNo = %d, want %d", protocolNo, protocolEcho)
	}

	body := make([]byte, int(size)-packet.HeaderSize)
	if _, err := io.ReadFull(conn, body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "ping" {
		t.Fatalf("body = %q, want %q", body, "ping")
	}

	if got := srv.AcceptCount(); got != 1 {
		t.Fatalf("AcceptCount() = %d, want 1", got)
	}
}

func TestServerAcceptsMultipleConnections(t *testing.T) {
	srv, stop := startServer(t)
	defer stop()

	const conns = 6
	opened := make([]net.Conn, 0, conns)
	defer func() {
		for _, c := range opened {
			c.Close()
		}
	}()

	for i := 0; i < conns; i++ {
		c, err := net.Dial("tcp", srv.Addr().String())
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		opened = append(opened, c)
	}

	deadline := time.Now().Add(time.Second)
	for srv.AcceptCount() < conns && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := srv.AcceptCount(); got != conns {
		t.Fatalf("AcceptCount() = %d, want %d", got, conns)
	}
}
