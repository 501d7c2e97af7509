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
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/reerr"
)

// ParseState is the codec's request-line/headers state machine per the
// spec's parser model. ExpectBody is carried for parity with the
// original but is never entered: the blank line ending headers always
// transitions straight to GotAll.
type ParseState int

const (
	ExpectRequestLine ParseState = iota
	ExpectHeaders
	ExpectBody
	GotAll
)

// Codec incrementally parses one HttpRequest out of a connection's input
// buffer, byte-stream style: feed it whatever bytes arrived, it consumes
// complete request-line and header lines as they become available and
// reports whether the request is complete. Body bytes are never consumed.
type Codec interface {
	// ParseRequest drains complete lines out of buf. It returns true once
	// the request reached GotAll at the blank line ending headers. A
	// non-nil error means the input is malformed and the connection
	// should be closed after a 400 response; the codec must not be reused.
	ParseRequest(buf buffer.Buffer, receiveTime time.Time) (bool, reerr.Error)

	// Request returns the request parsed so far (only complete once
	// ParseRequest returned true).
	Request() *HttpRequest

	// Reset prepares the codec to parse the next request on the same
	// connection (HTTP/1.1 keep-alive pipelining).
	Reset()
}

type codec struct {
	state ParseState
	req   *HttpRequest
}

// NewCodec returns a Codec ready to parse a request line.
func NewCodec() Codec {
	c := &codec{}
	c.Reset()
	return c
}

func (c *codec) Reset() {
	c.state = ExpectRequestLine
	c.req = newRequest()
}

func (c *codec) Request() *HttpRequest {
	return c.req
}

func (c *codec) ParseRequest(buf buffer.Buffer, receiveTime time.Time) (bool, reerr.Error) {
	for {
		switch c.state {
		case ExpectRequestLine:
			line, ok := nextLine(buf)
			if !ok {
				return false, nil
			}
			if err := c.parseRequestLine(line, receiveTime); err != nil {
				return false, err
			}
			c.state = ExpectHeaders

		case ExpectHeaders:
			line, ok := nextLine(buf)
			if !ok {
				return false, nil
			}
			if line == "" {
				if err := c.headersComplete(); err != nil {
					return false, err
				}
				continue
			}
			if err := c.parseHeaderLine(line); err != nil {
				return false, err
			}

		case ExpectBody:
			// Unreached: headersComplete always transitions straight to
			// GotAll. Body framing beyond the blank line that ends
			// headers is out of scope, matching the original parser's
			// own unimplemented kExpectBody case.
			return true, nil

		case GotAll:
			return true, nil
		}
	}
}

// nextLine extracts one CRLF-terminated line (without the CRLF) from buf,
// advancing its read cursor past it. Returns ok=false if no full line is
// buffered yet.
func nextLine(buf buffer.Buffer) (string, bool) {
	idx := buf.FindCRLF()
	if idx < 0 {
		return "", false
	}
	line := buf.RetrieveAsString(idx)
	buf.Retrieve(2) // consume the CRLF itself
	return line, true
}

func (c *codec) parseRequestLine(line string, receiveTime time.Time) reerr.Error {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 < 0 {
		return ErrorBadRequestLine.Error(nil)
	}
	rest := line[sp1+1:]
	sp2 := strings.IndexByte(rest, ' ')
	if sp2 < 0 {
		return ErrorBadRequestLine.Error(nil)
	}

	method := parseMethod(line[:sp1])
	if method == MethodInvalid {
		return ErrorBadRequestLine.Error(nil)
	}

	uri := rest[:sp2]
	versionStr := rest[sp2+1:]
	version, ok := parseVersion(versionStr)
	if !ok {
		return ErrorBadRequestLine.Error(nil)
	}

	c.req.Method = method
	c.req.Version = version
	c.req.ReceiveTime = receiveTime
	c.splitURI(uri)

	return nil
}

// splitURI breaks a request-target into path, query, and fragment, and
// defaults an empty path to "/" per the spec's edge case.
func (c *codec) splitURI(uri string) {
	c.req.URI = uri

	if i := strings.IndexByte(uri, '#'); i >= 0 {
		c.req.Fragment = uri[i+1:]
		uri = uri[:i]
	}

	if i := strings.IndexByte(uri, '?'); i >= 0 {
		c.req.Query = uri[i+1:]
		uri = uri[:i]
	}

	if uri == "" {
		uri = "/"
	}
	c.req.Path = uri
}

func (c *codec) parseHeaderLine(line string) reerr.Error {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return ErrorBadHeader.Error(nil)
	}

	name := strings.TrimSpace(line[:i])
	value := strings.TrimSpace(line[i+1:])

	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return ErrorBadHeader.Error(nil)
	}

	c.req.Headers.Set(name, value)
	return nil
}

// headersComplete derives Close/WebSocket and ends the request at the
// blank line that terminates headers: per the spec, body framing is out
// of scope of this parser, so every request transitions straight to
// GotAll here regardless of any Content-Length header present.
func (c *codec) headersComplete() reerr.Error {
	conn := strings.ToLower(strings.TrimSpace(c.req.Headers.Get("Connection")))

	switch {
	case conn == "close":
		c.req.Close = true
	case c.req.Version.Minor() == 0 && c.req.Version.Major() == 1:
		c.req.Close = conn != "keep-alive"
	default:
		c.req.Close = false
	}

	if strings.EqualFold(c.req.Headers.Get("Upgrade"), "websocket") {
		c.req.WebSocket = true
	}

	c.state = GotAll
	return nil
}
