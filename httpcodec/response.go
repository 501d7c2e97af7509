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

package httpcodec

import (
	"strconv"
	"strings"
)

type headerKV struct {
	Name  string
	Value string
}

// HttpResponse is the codec's serialization target: a status code, body,
// close-flag, and an ordered set of custom headers.
type HttpResponse struct {
	StatusCode int
	Body       []byte
	Close      bool

	headers []headerKV
}

// NewResponse returns an HttpResponse defaulted to 200 OK with an empty
// body and Keep-Alive.
func NewResponse() *HttpResponse {
	return &HttpResponse{StatusCode: 200}
}

func (r *HttpResponse) SetStatusCode(code int)   { r.StatusCode = code }
func (r *HttpResponse) SetBody(body []byte)      { r.Body = body }
func (r *HttpResponse) SetCloseConnection(c bool) { r.Close = c }

// SetHeader appends a custom header, emitted verbatim in insertion order.
func (r *HttpResponse) SetHeader(name, value string) {
	r.headers = append(r.headers, headerKV{Name: name, Value: value})
}

var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
}

func reasonPhrase(code int) string {
	if p, ok := reasonPhrases[code]; ok {
		return p
	}
	return "Unknown"
}

// Format renders resp as HTTP/1.1 response bytes: status line, either
// "Connection: close" or "Content-Length" + "Connection: Keep-Alive",
// every custom header, a blank line, then the body.
func Format(resp *HttpResponse) []byte {
	var b strings.Builder

	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(resp.StatusCode))
	b.WriteByte(' ')
	b.WriteString(reasonPhrase(resp.StatusCode))
	b.WriteString("\r\n")

	if resp.Close {
		b.WriteString("Connection: close\r\n")
	} else {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(resp.Body)))
		b.WriteString("\r\n")
		b.WriteString("Connection: Keep-Alive\r\n")
	}

	for _, h := range resp.headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}

	b.WriteString("\r\n")

	out := make([]byte, 0, b.Len()+len(resp.Body))
	out = append(out, b.String()...)
	out = append(out, resp.Body...)
	return out
}

// FormatBadRequest renders exactly the wire bytes the spec requires for a
// malformed request line: a bare status line and a blank line, no
// headers and no body. The connection is closed by the caller after
// writing these bytes, not by a "Connection: close" header — the spec's
// 400 response carries none.
func FormatBadRequest() []byte {
	return []byte("HTTP/1.1 400 Bad Request\r\n\r\n")
}
