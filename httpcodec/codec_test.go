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

package httpcodec_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/httpcodec"
)

var _ = Describe("Codec", func() {
	var (
		b buffer.Buffer
		c httpcodec.Codec
	)

	BeforeEach(func() {
		b = buffer.New()
		c = httpcodec.NewCodec()
	})

	It("parses a GET request line and headers with no body", func() {
		b.Append([]byte("GET /hello?name=bob HTTP/1.1\r\nHost: example.com\r\nConnection: keep-alive\r\n\r\n"))

		done, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(done).To(BeTrue())

		req := c.Request()
		Expect(req.Method).To(Equal(httpcodec.MethodGet))
		Expect(req.Path).To(Equal("/hello"))
		Expect(req.Query).To(Equal("name=bob"))
		Expect(req.Headers.Get("Host")).To(Equal("example.com"))
		Expect(req.Close).To(BeFalse())
		Expect(req.Params()).To(HaveKeyWithValue("name", "bob"))
	})

	It("waits for more bytes when the request line is split across writes", func() {
		b.Append([]byte("GET / HTTP/1.1\r\n"))
		done, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(done).To(BeFalse())

		b.Append([]byte("Host: x\r\n\r\n"))
		done, err = c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(done).To(BeTrue())
	})

	It("ends a request at the blank line regardless of Content-Length", func() {
		b.Append([]byte("POST /submit HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhowdy"))

		done, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(done).To(BeTrue())
		Expect(c.Request().Body).To(BeEmpty())
		Expect(string(b.Peek())).To(Equal("howdy"))
	})

	It("rejects a malformed request line", func() {
		b.Append([]byte("GET\r\n\r\n"))
		_, err := c.ParseRequest(b, time.Now())
		Expect(err).ToNot(BeNil())
	})

	It("rejects an unsupported method", func() {
		b.Append([]byte("TRACE / HTTP/1.1\r\n\r\n"))
		_, err := c.ParseRequest(b, time.Now())
		Expect(err).ToNot(BeNil())
	})

	It("rejects an unsupported HTTP version", func() {
		b.Append([]byte("GET / HTTP/2.0\r\n\r\n"))
		_, err := c.ParseRequest(b, time.Now())
		Expect(err).ToNot(BeNil())
	})

	It("defaults an empty path to /", func() {
		b.Append([]byte("GET  HTTP/1.1\r\n\r\n"))
		done, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(done).To(BeTrue())
		Expect(c.Request().Path).To(Equal("/"))
	})

	It("derives Close from an HTTP/1.0 request with no Keep-Alive header", func() {
		b.Append([]byte("GET / HTTP/1.0\r\n\r\n"))
		_, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(c.Request().Close).To(BeTrue())
	})

	It("honors an explicit Connection: close on HTTP/1.1", func() {
		b.Append([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
		_, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(c.Request().Close).To(BeTrue())
	})

	It("splits a single Cookie header with no semicolons into one entry", func() {
		b.Append([]byte("GET / HTTP/1.1\r\nCookie: session=abc\r\n\r\n"))
		_, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(c.Request().Cookies()).To(HaveKeyWithValue("session", "abc"))
	})

	It("resets so the same codec can parse a pipelined second request", func() {
		b.Append([]byte("GET /one HTTP/1.1\r\n\r\n"))
		_, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())

		c.Reset()
		b.Append([]byte("GET /two HTTP/1.1\r\n\r\n"))
		done, err := c.ParseRequest(b, time.Now())
		Expect(err).To(BeNil())
		Expect(done).To(BeTrue())
		Expect(c.Request().Path).To(Equal("/two"))
	})
})

var _ = Describe("Format", func() {
	It("round-trips a simple response's status line and headers", func() {
		resp := httpcodec.NewResponse()
		resp.SetStatusCode(200)
		resp.SetBody([]byte("hi"))

		out := string(httpcodec.Format(resp))
		Expect(out).To(ContainSubstring("HTTP/1.1 200 OK\r\n"))
		Expect(out).To(ContainSubstring("Content-Length: 2\r\n"))
		Expect(out).To(ContainSubstring("Connection: Keep-Alive\r\n"))
		Expect(out).To(HaveSuffix("hi"))
	})

	It("emits Connection: close and omits Content-Length when closing", func() {
		resp := httpcodec.NewResponse()
		resp.SetStatusCode(400)
		resp.SetCloseConnection(true)

		out := string(httpcodec.Format(resp))
		Expect(out).To(ContainSubstring("HTTP/1.1 400 Bad Request\r\n"))
		Expect(out).To(ContainSubstring("Connection: close\r\n"))
		Expect(out).ToNot(ContainSubstring("Content-Length"))
	})
})
