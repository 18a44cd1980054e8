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

package packet

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by Reader.Pop* calls when fewer bytes remain
// than the primitive being decoded requires.
var ErrShortBuffer = errors.New("packet: short buffer")

// Writer accumulates push()-style primitives the way the original Packet's
// templated push<T> did: fixed-width integers in little-endian order, a
// length-prefixed string, and an opaque byte blob for an already-serialized
// message.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer ready to accept pushes.
func NewWriter() *Writer { return &Writer{} }

func (w *Writer) PushUint8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) PushInt32(v int32)   { w.pushUint32(uint32(v)) }
func (w *Writer) PushUint32(v uint32) { w.pushUint32(v) }
func (w *Writer) PushInt64(v int64)   { w.pushUint64(uint64(v)) }
func (w *Writer) PushUint64(v uint64) { w.pushUint64(v) }

func (w *Writer) pushUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) pushUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PushString pushes a uint32 byte-length prefix followed by the UTF-8
// bytes, matching the "length-prefixed wide/UTF-8 strings" rule of §4.1.
func (w *Writer) PushString(s string) {
	w.pushUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// PushBytes pushes a uint32 byte-length prefix followed by the raw bytes.
func (w *Writer) PushBytes(b []byte) {
	w.pushUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Bytes returns the accumulated body.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader pops primitives out of a body in the same order a Writer pushed
// them, mirroring the original Packet's templated pop<T>.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps body (typically Packet.Body()) for sequential reads.
func NewReader(body []byte) *Reader { return &Reader{buf: body} }

func (r *Reader) remaining() int { return len(r.buf) - r.pos }

func (r *Reader) PopUint8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrShortBuffer
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) PopUint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) PopInt32() (int32, error) {
	v, err := r.PopUint32()
	return int32(v), err
}

func (r *Reader) PopUint64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *Reader) PopInt64() (int64, error) {
	v, err := r.PopUint64()
	return int64(v), err
}

func (r *Reader) PopString() (string, error) {
	n, err := r.PopUint32()
	if err != nil {
		return "", err
	}
	if r.remaining() < int(n) {
		return "", ErrShortBuffer
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *Reader) PopBytes() ([]byte, error) {
	n, err := r.PopUint32()
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(n) {
		return nil, ErrShortBuffer
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

// Message is any application message a Codec knows how to serialize.
// The concrete wire schema (the message registry mentioned in spec §1) is
// an external collaborator; this interface is the seam it plugs into.
type Message interface {
	// ProtocolNo returns the numeric protocol id this message type is
	// registered under.
	ProtocolNo() uint16
}

// Codec maps a protocol number to a Message type and serializes/
// deserializes message bodies, standing in for spec §1's "opaque
// MessageCodec".
type Codec interface {
	// Encode serializes msg into a packet body.
	Encode(msg Message) ([]byte, error)
	// Decode deserializes body for the given protocol number into a
	// Message. Returns ErrorUnknownProtocol (via apperror) when protocolNo
	// has no registered type.
	Decode(protocolNo uint16, body []byte) (Message, error)
}
