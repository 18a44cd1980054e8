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

package packet_test

import (
	"bytes"
	"testing"

	"github.com/ridgeway-labs/sessioncore/network/packet"
)

func TestFromBodyRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		protocolNo uint16
		body       []byte
	}{
		{"empty body", 7, nil},
		{"short body", 42, []byte("hello")},
		{"max protocol number", 0xFFFF, []byte{1, 2, 3, 4, 5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := packet.FromBody(tc.protocolNo, tc.body)

			wire := p.Bytes()
			size, protocolNo := packet.ParseHeader(wire)

			if int(size) != len(wire) {
				t.Fatalf("header size %d does not match wire length %d", size, len(wire))
			}
			if protocolNo != tc.protocolNo {
				t.Fatalf("protocol_no = %d, want %d", protocolNo, tc.protocolNo)
			}
			if !bytes.Equal(p.Body(), tc.body) {
				t.Fatalf("Body() = %v, want %v", p.Body(), tc.body)
			}
			if p.ProtocolNo() != tc.protocolNo {
				t.Fatalf("ProtocolNo() = %d, want %d", p.ProtocolNo(), tc.protocolNo)
			}
		})
	}
}

func TestPushThenFinalize(t *testing.T) {
	p := packet.New(99)
	p.Push([]byte("ab"))
	p.Push([]byte("cd"))
	p.Finalize()

	if got, want := p.Body(), []byte("abcd"); !bytes.Equal(got, want) {
		t.Fatalf("Body() = %v, want %v", got, want)
	}
	if int(p.Size()) != packet.HeaderSize+4 {
		t.Fatalf("Size() = %d, want %d", p.Size(), packet.HeaderSize+4)
	}
}

func TestHeaderIsLittleEndian(t *testing.T) {
	p := packet.FromBody(0x0102, []byte{0xAA})
	wire := p.Bytes()

	// size = HeaderSize+1 = 5, protocol_no = 0x0102: both little-endian.
	want := []byte{0x05, 0x00, 0x02, 0x01, 0xAA}
	if !bytes.Equal(wire, want) {
		t.Fatalf("wire bytes = %v, want %v", wire, want)
	}
}
