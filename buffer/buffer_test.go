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

package buffer_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/reactor/buffer"
)

var _ = Describe("Buffer", func() {
	var b buffer.Buffer

	BeforeEach(func() {
		b = buffer.New()
	})

	It("starts empty with full prepend room", func() {
		Expect(b.ReadableBytes()).To(Equal(0))
		Expect(b.PrependableBytes()).To(BeNumerically(">=", 8))
	})

	It("round-trips append and retrieve-all", func() {
		b.Append([]byte("hello"))
		Expect(b.ReadableBytes()).To(Equal(5))
		Expect(string(b.Peek())).To(Equal("hello"))

		s := b.RetrieveAsString(b.ReadableBytes())
		Expect(s).To(Equal("hello"))
		Expect(b.ReadableBytes()).To(Equal(0))
	})

	It("resets both cursors to the cheap-prepend offset once drained", func() {
		b.Append([]byte("x"))
		before := b.PrependableBytes()
		b.Retrieve(1)
		Expect(b.PrependableBytes()).To(Equal(before))
	})

	It("grows to absorb a payload larger than its initial capacity", func() {
		big := strings.Repeat("a", 4096)
		b.Append([]byte(big))
		Expect(b.ReadableBytes()).To(Equal(len(big)))
		Expect(b.RetrieveAsString(len(big))).To(Equal(big))
	})

	It("prepends a small header into the reserved zone without copying the body", func() {
		b.Append([]byte("body"))
		Expect(b.Prepend([]byte("HDR:"))).To(BeNil())
		Expect(string(b.Peek())).To(Equal("HDR:body"))
	})

	It("rejects a prepend larger than the remaining prependable space", func() {
		// drain the whole 8-byte prepend room with one prepend first.
		Expect(b.Prepend([]byte("12345678"))).To(BeNil())
		Expect(b.Prepend([]byte("9"))).ToNot(BeNil())
	})

	It("finds a CRLF boundary", func() {
		b.Append([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n"))
		i := b.FindCRLF()
		Expect(i).To(Equal(len("GET / HTTP/1.1")))
	})

	It("reports -1 when no CRLF is present", func() {
		b.Append([]byte("no newline here"))
		Expect(b.FindCRLF()).To(Equal(-1))
	})
})
