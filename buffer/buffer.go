/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package buffer is a growable byte container with split reader/writer
// cursors, modeled so that appends and retrievals on the hot path never
// allocate once the backing array has grown to its working size.
package buffer

import (
	"bytes"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/reerr"
)

const (
	// cheapPrepend is the number of bytes reserved at the front of every
	// buffer so small headers (e.g. a length prefix) can be inserted
	// without shifting the readable region.
	cheapPrepend = 8

	// initialSize is the writable capacity a freshly created buffer
	// starts with, beyond cheapPrepend.
	initialSize = 1024

	// scratchSize is the size of the stack scratch vector ReadFD uses
	// for its second readv vector, letting one syscall absorb payloads
	// larger than the buffer's current writable region.
	scratchSize = 64 * 1024
)

// Buffer is a contiguous byte container with a reserved prepend zone, a
// readable region, and a writable region.
type Buffer interface {
	ReadableBytes() int
	WritableBytes() int
	PrependableBytes() int

	Peek() []byte
	BeginWrite() []byte

	Retrieve(n int)
	RetrieveUntil(index int)
	RetrieveAll()
	RetrieveAsString(n int) string

	Append(data []byte)
	Prepend(data []byte) reerr.Error

	FindCRLF() int
	FindEOL() int

	// ReadFD performs a scatter read from fd directly into the buffer's
	// writable region plus a scratch vector, growing to absorb whatever
	// the scratch vector caught. Returns the number of bytes read.
	ReadFD(fd int) (int, reerr.Error)

	Reset()
}

type buf struct {
	b []byte
	r int
	w int
}

// New returns an empty Buffer with its cheap-prepend zone reserved.
func New() Buffer {
	return &buf{
		b: make([]byte, cheapPrepend+initialSize),
		r: cheapPrepend,
		w: cheapPrepend,
	}
}

func (b *buf) ReadableBytes() int {
	return b.w - b.r
}

func (b *buf) WritableBytes() int {
	return len(b.b) - b.w
}

func (b *buf) PrependableBytes() int {
	return b.r
}

func (b *buf) Peek() []byte {
	return b.b[b.r:b.w]
}

func (b *buf) BeginWrite() []byte {
	return b.b[b.w:]
}

func (b *buf) Retrieve(n int) {
	if n <= 0 {
		return
	}
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.r += n
}

func (b *buf) RetrieveUntil(index int) {
	b.Retrieve(index - b.r)
}

func (b *buf) RetrieveAll() {
	b.r = cheapPrepend
	b.w = cheapPrepend
}

func (b *buf) RetrieveAsString(n int) string {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	s := string(b.b[b.r : b.r+n])
	b.Retrieve(n)
	return s
}

func (b *buf) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	b.ensureWritable(len(data))
	n := copy(b.b[b.w:], data)
	b.w += n
}

func (b *buf) Prepend(data []byte) reerr.Error {
	if len(data) > b.PrependableBytes() {
		return ErrorPrependTooLarge.Error(nil)
	}
	b.r -= len(data)
	copy(b.b[b.r:], data)
	return nil
}

func (b *buf) FindCRLF() int {
	return bytes.Index(b.Peek(), []byte("\r\n"))
}

func (b *buf) FindEOL() int {
	i := bytes.IndexByte(b.Peek(), '\n')
	return i
}

// ensureWritable grows or compacts the backing array so at least need
// bytes are writable, following the compact-first growth policy: reuse
// the prepend+trailing slack by shifting readable bytes left before
// resorting to a real allocation.
func (b *buf) ensureWritable(need int) {
	if b.WritableBytes() >= need {
		return
	}

	if b.WritableBytes()+b.PrependableBytes() >= need+cheapPrepend {
		readable := b.ReadableBytes()
		copy(b.b[cheapPrepend:], b.b[b.r:b.w])
		b.r = cheapPrepend
		b.w = b.r + readable
		return
	}

	nb := make([]byte, b.w+need)
	copy(nb, b.b[:b.w])
	b.b = nb
}

func (b *buf) ReadFD(fd int) (int, reerr.Error) {
	scratch := make([]byte, scratchSize)
	writable := b.BeginWrite()

	total, err := unix.Readv(fd, [][]byte{writable, scratch})
	if err != nil {
		return 0, ErrorReadFD.ErrorParent(err)
	}

	if total <= len(writable) {
		b.w += total
		return total, nil
	}

	b.w += len(writable)
	extra := total - len(writable)
	b.Append(scratch[:extra])

	return total, nil
}

func (b *buf) Reset() {
	b.RetrieveAll()
}
