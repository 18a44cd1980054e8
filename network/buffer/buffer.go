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

// Package buffer implements the linear receive buffer (compacted to offset
// 0 as it drains) that a Session fills and parses on its recv loop, ported from the original
// NetworkLibrary/RecvBuffer.{h,cpp}.
package buffer

// DefaultCapacity is the default buffer size: 3 * 65535, large enough to
// hold several maximum-size frames before a compaction is forced.
const DefaultCapacity = 3 * 65535

// compactionThreshold: below this many live bytes, a read advance that
// leaves the cursor non-zero triggers a compaction to offset 0.
const compactionThreshold = 65535

// Buffer is a fixed-capacity byte window with independent read/write
// cursors. It has no internal synchronisation and is not safe for
// concurrent use: the Session recv loop goroutine both writes into it and
// parses frames out of it, one step after the other (see network/session).
type Buffer struct {
	data  []byte
	read  int
	write int
}

// New allocates a Buffer with the given capacity. A capacity of 0 uses
// DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Capacity returns the fixed total size of the underlying storage.
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// DataSize returns the number of unread bytes currently buffered.
func (b *Buffer) DataSize() int {
	return b.write - b.read
}

// Remaining returns how many more bytes can be written before the buffer
// is full, i.e. before a compaction or a drain is required.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.write
}

// WritePtr returns the slice a reader (e.g. net.Conn.Read) should write
// into: the free tail of the buffer after the current write cursor.
func (b *Buffer) WritePtr() []byte {
	return b.data[b.write:]
}

// ReadPtr returns the slice of unread, buffered bytes starting at the read
// cursor.
func (b *Buffer) ReadPtr() []byte {
	return b.data[b.read:b.write]
}

// OnWrite advances the write cursor by n bytes that were just copied into
// WritePtr(). It fails if doing so would exceed capacity.
func (b *Buffer) OnWrite(n int) bool {
	if n < 0 || n > b.Remaining() {
		return false
	}
	b.write += n
	return true
}

// OnRead advances the read cursor by n bytes that the caller has consumed
// from ReadPtr(), then compacts per the spec §4.2 rule: if no data
// remains, reset both cursors to 0; else if the live window is small and
// the read cursor is non-zero, memmove it down to offset 0.
func (b *Buffer) OnRead(n int) bool {
	if n < 0 || n > b.DataSize() {
		return false
	}
	b.read += n
	b.compact()
	return true
}

func (b *Buffer) compact() {
	if b.read == b.write {
		b.read, b.write = 0, 0
		return
	}

	if b.DataSize() < compactionThreshold && b.read > 0 {
		n := copy(b.data, b.data[b.read:b.write])
		b.read, b.write = 0, n
	}
}

// Reset empties the buffer without touching its backing storage.
func (b *Buffer) Reset() {
	b.read, b.write = 0, 0
}
