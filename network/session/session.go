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

package session

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/ridgeway-labs/sessioncore/internal/apperror"
	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/buffer"
	"github.com/ridgeway-labs/sessioncore/network/packet"
	"github.com/ridgeway-labs/sessioncore/network/sender"
)

const (
	ErrorFrameTooLarge apperror.CodeError = iota + apperror.MinPkgSession
	ErrorNoOwner
)

func init() {
	if apperror.ExistInMapMessage(apperror.MinPkgSession) {
		panic("error code collision in package session")
	}
	apperror.RegisterIdFctMessage(apperror.MinPkgSession, func(c apperror.CodeError) string {
		switch c {
		case ErrorFrameTooLarge:
			return "session: frame exceeds receive buffer capacity"
		case ErrorNoOwner:
			return "session: no owning section/reactor"
		}
		return "session: error"
	})
}

var nextID atomic.Uint32

// NextID returns a fresh, process-global, monotonically increasing session
// id, mirroring Session::generate_session_id() in the original source.
func NextID() uint32 {
	return nextID.Add(1)
}

// Received is one fully-framed packet handed off from a Session's receive
// loop to the reactor's global packet queue (spec §4.3 step 2).
type Received struct {
	Session    *Session
	ProtocolNo uint16
	Body       []byte
}

// Sink is the reactor's global packet queue, the single seam a Session's
// receive loop pushes completed frames through.
type Sink interface {
	Enqueue(r Received)
}

// HandlerFunc handles one decoded packet body for protocolNo on s.
type HandlerFunc func(s *Session, protocolNo uint16, body []byte)

// Owner is the back-reference a Session holds to whatever owns it: a
// NetworkSection on the server side, or the Client's own selfOwner on the
// client side. It is a non-owning handle (spec §9: avoid a true cycle) so a
// Session never keeps its owner alive and never reaches into owner
// internals beyond this interface.
type Owner interface {
	// Connected reports whether the owner considers itself live; used by
	// async DB callbacks to check before touching session state (spec
	// §4.10).
	Connected() bool
}

// Session is one established connection and its framing/dispatch state.
// Fields other than RecvBuffer and the MultiSender internals are only
// ever touched from the single goroutine that owns this session (the
// section worker on the server side, the job-thread goroutine on the
// client side) — see spec §5 shared-resource policy.
type Session struct {
	id    uint32
	conn  net.Conn
	log   logging.Logger
	sink  Sink
	owner atomic.Value // Owner

	state atomic.Int32

	recv   *buffer.Buffer
	send   *sender.MultiSender
	closeO sync.Once

	handlersMu sync.RWMutex
	handlers   map[uint16]HandlerFunc

	maxFrame int
}

// New creates a Session wrapping conn. Handlers must be installed via
// RegisterHandler before the session is handed to Connected(); the map is
// immutable after that point (spec §3 invariant).
func New(conn net.Conn, log logging.Logger, sink Sink) *Session {
	s := &Session{
		id:       NextID(),
		conn:     conn,
		log:      log,
		sink:     sink,
		recv:     buffer.New(buffer.DefaultCapacity),
		handlers: make(map[uint16]HandlerFunc),
		maxFrame: buffer.DefaultCapacity,
	}
	s.send = sender.New(&connWriter{conn: conn})
	s.state.Store(int32(StateNew))
	return s
}

type connWriter struct{ conn net.Conn }

func (w *connWriter) Write(b net.Buffers) (int64, error) {
	return b.WriteTo(w.conn)
}

// ID returns this session's process-global monotonic identifier.
func (s *Session) ID() uint32 { return s.id }

// RemoteAddr returns the peer address recorded at accept/connect time.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Conn exposes the underlying connection for transport-level operations
// (TLS introspection, deadlines) that sit outside this package's scope.
func (s *Session) Conn() net.Conn { return s.conn }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// IsConnected reports State() == StateConnected. "connected=true" iff the
// socket is usable per spec §3.
func (s *Session) IsConnected() bool { return s.State() == StateConnected }

// RegisterHandler installs the handler for protocolNo. Must be called
// before Connected(); calling it afterward is a programming error the
// caller is responsible for avoiding (spec §3 invariant: handlers are
// registered before Connected, then immutable).
func (s *Session) RegisterHandler(protocolNo uint16, h HandlerFunc) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[protocolNo] = h
}

// SetOwner attaches the non-owning back-reference to the section (server)
// or client (client side) that now owns this session.
func (s *Session) SetOwner(o Owner) {
	s.owner.Store(o)
}

// Owner returns the current back-reference, or nil if none has been set.
func (s *Session) Owner() Owner {
	if v := s.owner.Load(); v != nil {
		if o, ok := v.(Owner); ok {
			return o
		}
	}
	return nil
}

// Accepted transitions New/Init -> Accepted -> Connected and arms the
// first implicit recv (the caller's accept-loop goroutine then calls
// RunRecvLoop).
func (s *Session) Accepted() {
	s.setState(StateAccepted)
	s.setState(StateConnected)
}

// Connecting transitions New/Init -> Connecting (client-side, before the
// dial completes).
func (s *Session) Connecting() {
	s.setState(StateConnecting)
}

// Connected transitions Connecting -> Connected once a client-side dial
// completes.
func (s *Session) Connected() {
	s.setState(StateConnected)
}

// Send hands p to this session's MultiSender for coalesced delivery.
// Safe to call from any goroutine.
func (s *Session) Send(p *packet.Packet) {
	if !s.IsConnected() {
		return
	}
	s.send.Register(p)
}

// RunRecvLoop owns the session's socket until it is told to stop: it
// performs blocking reads, reassembles frames per spec §4.3's receive
// loop, pushes each to the Sink, and disconnects on EOF/error/framing
// violation/missing Sink. Exactly one goroutine may run this for a given
// Session (the single in-flight-recv invariant of spec §3).
func (s *Session) RunRecvLoop() {
	for {
		n, err := s.conn.Read(s.recv.WritePtr())
		if err != nil || n == 0 {
			s.Disconnect()
			return
		}

		if !s.recv.OnWrite(n) {
			s.log.Error("session: recv buffer overflow")
			s.Disconnect()
			return
		}

		if !s.drainFrames() {
			return
		}
	}
}

// drainFrames parses as many whole frames as the buffer currently holds,
// enqueuing each onto the Sink, then advances/compacts the read cursor.
// Returns false if the session disconnected mid-parse (framing violation
// or missing Sink), in which case the caller's loop must stop.
func (s *Session) drainFrames() bool {
	parsed := 0
	for {
		live := s.recv.ReadPtr()[parsed:]
		if len(live) < packet.HeaderSize {
			break
		}

		size, protocolNo := packet.ParseHeader(live)
		if int(size) < packet.HeaderSize || int(size) > s.maxFrame {
			s.log.Error("session: frame size shorter than the header or larger than the receive buffer")
			s.Disconnect()
			return false
		}
		if len(live) < int(size) {
			break
		}

		if s.sink == nil {
			s.log.Error("session: no packet sink, dropping partially parsed packet")
			s.Disconnect()
			return false
		}

		body := make([]byte, int(size)-packet.HeaderSize)
		copy(body, live[packet.HeaderSize:size])
		s.sink.Enqueue(Received{Session: s, ProtocolNo: protocolNo, Body: body})

		parsed += int(size)
	}

	s.recv.OnRead(parsed)
	return true
}

// ExecutePacket looks up the handler registered for protocolNo and invokes
// it. An unregistered protocol number is logged and silently dropped per
// spec §4.3 ("no disconnect in the source").
func (s *Session) ExecutePacket(protocolNo uint16, body []byte) {
	s.handlersMu.RLock()
	h, ok := s.handlers[protocolNo]
	s.handlersMu.RUnlock()

	if !ok {
		s.log.WithFields(logging.Fields{"protocol_no": protocolNo}).Warn("session: unregistered protocol, dropping packet")
		return
	}

	h(s, protocolNo, body)
}

// Disconnect moves the session Connected -> Closing -> Closed, idempotent
// past the first call (spec testable property 5).
func (s *Session) Disconnect() {
	s.closeO.Do(func() {
		s.setState(StateClosing)
		s.send.Clear()
		_ = s.conn.Close()
		s.setState(StateClosed)
	})
}
