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

package buffer_test

import (
	"bytes"
	"testing"

	"github.com/ridgeway-labs/sessioncore/network/buffer"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := buffer.New(16)

	n := copy(b.WritePtr(), []byte("hello"))
	if !b.OnWrite(n) {
		t.Fatalf("OnWrite(%d) failed", n)
	}
	if b.DataSize() != 5 {
		t.Fatalf("DataSize() = %d, want 5", b.DataSize())
	}

	if got := b.ReadPtr(); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("ReadPtr() = %q, want %q", got, "hello")
	}

	if !b.OnRead(5) {
		t.Fatalf("OnRead(5) failed")
	}
	if b.DataSize() != 0 {
		t.Fatalf("DataSize() after full read = %d, want 0", b.DataSize())
	}
}

func TestOnWriteRejectsOverflow(t *testing.T) {
	b := buffer.New(4)
	if b.OnWrite(5) {
		t.Fatalf("OnWrite(5) on a 4-byte buffer should fail")
	}
}

func TestOnReadRejectsOverread(t *testing.T) {
	b := buffer.New(16)
	copy(b.WritePtr(), []byte("ab"))
	b.OnWrite(2)

	if b.OnRead(3) {
		t.Fatalf("OnRead(3) with only 2 bytes buffered should fail")
	}
}

func TestCompactsToZeroWhenDrained(t *testing.T) {
	b := buffer.New(16)
	copy(b.WritePtr(), []byte("hello"))
	b.OnWrite(5)
	b.OnRead(5)

	if got := b.Remaining(); got != 16 {
		t.Fatalf("Remaining() after full drain = %d, want 16 (cursors reset)", got)
	}
}

func TestReset(t *testing.T) {
	b := buffer.New(16)
	copy(b.WritePtr(), []byte("xy"))
	b.OnWrite(2)

	b.Reset()

	if b.DataSize() != 0 || b.Remaining() != 16 {
		t.Fatalf("Reset() left DataSize=%d Remaining=%d, want 0 and 16", b.DataSize(), b.Remaining())
	}
}
