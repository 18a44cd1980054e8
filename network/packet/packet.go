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

// Package packet implements the length-prefixed framing layer described in
// spec §4.1, ported from NetworkLibrary/Packet.{h,cpp}. The header is fixed
// at 4 bytes: a little-endian uint16 total size (header included) and a
// little-endian uint16 protocol number. The original C++ wrote the header
// with a native-order memcpy (spec §9 open question); this port fixes the
// wire order to little-endian for cross-platform interoperability.
package packet

import (
	"encoding/binary"

	"github.com/ridgeway-labs/sessioncore/internal/apperror"
)

// HeaderSize is the number of bytes occupied by {packet_size, protocol_no}.
const HeaderSize = 4

const (
	ErrorFrameTooLarge apperror.CodeError = iota + apperror.MinPkgPacket
	ErrorFrameTruncated
	ErrorUnknownProtocol
)

func init() {
	if apperror.ExistInMapMessage(apperror.MinPkgPacket) {
		panic("error code collision in package packet")
	}
	apperror.RegisterIdFctMessage(apperror.MinPkgPacket, func(c apperror.CodeError) string {
		switch c {
		case ErrorFrameTooLarge:
			return "packet: frame exceeds receive buffer capacity"
		case ErrorFrameTruncated:
			return "packet: truncated frame"
		case ErrorUnknownProtocol:
			return "packet: unregistered protocol number"
		}
		return "packet: error"
	})
}

// Packet is a single framed message: a 4-byte header followed by the
// serialized message body. Packets are reference-counted by usage in
// practice (a broadcast hands the same *Packet to many sessions' senders)
// so callers must treat the Bytes() slice as read-only once Finalize has
// run.
type Packet struct {
	buf []byte
}

// New allocates a Packet for protocolNo and reserves room for the header;
// Push calls append the body after it.
func New(protocolNo uint16) *Packet {
	p := &Packet{buf: make([]byte, HeaderSize, HeaderSize+64)}
	binary.LittleEndian.PutUint16(p.buf[2:4], protocolNo)
	return p
}

// FromBody wraps an already-serialized body (as produced by a MessageCodec)
// behind a fresh header for protocolNo.
func FromBody(protocolNo uint16, body []byte) *Packet {
	p := New(protocolNo)
	p.buf = append(p.buf, body...)
	p.Finalize()
	return p
}

// Push appends raw bytes to the body.
func (p *Packet) Push(b []byte) {
	p.buf = append(p.buf, b...)
}

// Finalize writes the total frame size into the header. Must be called
// once the body is complete and before the packet is handed to a sender.
func (p *Packet) Finalize() {
	binary.LittleEndian.PutUint16(p.buf[0:2], uint16(len(p.buf)))
}

// Size returns the total framed size, header included.
func (p *Packet) Size() uint16 {
	return binary.LittleEndian.Uint16(p.buf[0:2])
}

// ProtocolNo returns the registered message-type id this packet carries.
func (p *Packet) ProtocolNo() uint16 {
	return binary.LittleEndian.Uint16(p.buf[2:4])
}

// Body returns the serialized message payload, header stripped.
func (p *Packet) Body() []byte {
	return p.buf[HeaderSize:]
}

// Bytes returns the full framed wire representation, header included.
func (p *Packet) Bytes() []byte {
	return p.buf
}

// ParseHeader decodes the 4-byte header at the front of buf. It does not
// validate that buf is at least HeaderSize long; callers check DataSize
// first (see network/session).
func ParseHeader(buf []byte) (size, protocolNo uint16) {
	return binary.LittleEndian.Uint16(buf[0:2]), binary.LittleEndian.Uint16(buf[2:4])
}
