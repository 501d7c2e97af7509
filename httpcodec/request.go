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

// Package httpcodec is the per-connection HTTP/1.x streaming parser and
// response formatter: a state machine that consumes a buffer.Buffer until
// it holds one complete HttpRequest, plus a formatter that renders an
// HttpResponse back to wire bytes.
package httpcodec

import (
	"strconv"
	"strings"
	"time"
)

// Method is the HTTP request method. MethodInvalid marks anything the
// parser didn't recognize, which always rejects the request line.
type Method int

const (
	MethodInvalid Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "INVALID"
	}
}

func parseMethod(s string) Method {
	switch s {
	case "GET":
		return MethodGet
	case "HEAD":
		return MethodHead
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	default:
		return MethodInvalid
	}
}

// Version packs HTTP/1.{0,1} as a (major, minor) nibble pair in one byte,
// matching the spec's data model.
type Version uint8

func newVersion(major, minor int) Version {
	return Version(major<<4 | minor&0x0f)
}

func (v Version) Major() int { return int(v >> 4) }
func (v Version) Minor() int { return int(v & 0x0f) }

func (v Version) String() string {
	return "HTTP/" + strconv.Itoa(v.Major()) + "." + strconv.Itoa(v.Minor())
}

func parseVersion(s string) (Version, bool) {
	switch s {
	case "HTTP/1.0":
		return newVersion(1, 0), true
	case "HTTP/1.1":
		return newVersion(1, 1), true
	}
	return 0, false
}

const (
	parsedQuery   uint8 = 1 << iota // query string decoded into params
	parsedForm                      // body also folded into params
	parsedCookies                   // Cookie header decoded
)

// HttpRequest is a parsed HTTP/1.x request. Headers are held in a
// case-insensitive map; query parameters and cookies are plain Go maps
// keyed exactly as the names appear on the wire, so their lookups are
// case-sensitive.
type HttpRequest struct {
	Method      Method
	Version     Version
	Path        string
	Query       string
	URI         string
	Fragment    string
	Body        []byte
	Headers     CaseInsensitiveMap
	Close       bool
	WebSocket   bool
	ReceiveTime time.Time

	parsedMask uint8
	params     map[string]string
	cookies    map[string]string
}

func newRequest() *HttpRequest {
	return &HttpRequest{Headers: newCIMap()}
}

// Params lazily decodes the query string (and, for
// application/x-www-form-urlencoded bodies, the body too) into a flat
// key/value map, guarded by the request's parsed-flag bits so repeated
// calls don't redo the work.
func (r *HttpRequest) Params() map[string]string {
	if r.parsedMask&parsedQuery == 0 {
		r.params = parseURLEncoded(r.Query, true)
		r.parsedMask |= parsedQuery
	}

	if r.parsedMask&parsedForm == 0 {
		if strings.EqualFold(strings.TrimSpace(r.Headers.Get("Content-Type")), "application/x-www-form-urlencoded") {
			for k, v := range parseURLEncoded(string(r.Body), true) {
				r.params[k] = v
			}
		}
		r.parsedMask |= parsedForm
	}

	return r.params
}

// Cookies lazily splits the Cookie header on ';', trimming whitespace
// around each crumb.
func (r *HttpRequest) Cookies() map[string]string {
	if r.parsedMask&parsedCookies != 0 {
		return r.cookies
	}

	r.cookies = make(map[string]string)
	raw := r.Headers.Get("Cookie")

	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '='); i >= 0 {
			r.cookies[part[:i]] = part[i+1:]
		} else {
			r.cookies[part] = ""
		}
	}

	r.parsedMask |= parsedCookies
	return r.cookies
}

// parseURLEncoded decodes an "a=b&c=d" query/form body into a map. '+'
// decodes to space only when plusAsSpace is set (query/form contexts).
func parseURLEncoded(s string, plusAsSpace bool) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[urlDecode(k, plusAsSpace)] = urlDecode(v, plusAsSpace)
	}

	return out
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	default:
		return b - 'A' + 10
	}
}

// urlDecode implements the spec's %HH / '+' decoding: %HH (case-insensitive
// hex) decodes to the byte, '+' decodes to space when plusAsSpace is set,
// everything else passes through unchanged.
func urlDecode(s string, plusAsSpace bool) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(hexVal(s[i+1])<<4 | hexVal(s[i+2]))
			i += 2
		case c == '+' && plusAsSpace:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// CaseInsensitiveMap is a small ordered map keyed case-insensitively,
// backing HttpRequest's headers. Params and cookies do not use it.
type CaseInsensitiveMap interface {
	Set(name, value string)
	Get(name string) string
	Has(name string) bool
	Len() int
	Each(fn func(name, value string))
}

type ciMap struct {
	keys []string
	vals map[string]string
}

func newCIMap() CaseInsensitiveMap {
	return &ciMap{vals: make(map[string]string)}
}

func (m *ciMap) Set(name, value string) {
	lc := strings.ToLower(name)
	if _, ok := m.vals[lc]; !ok {
		m.keys = append(m.keys, name)
	}
	m.vals[lc] = value
}

func (m *ciMap) Get(name string) string {
	return m.vals[strings.ToLower(name)]
}

func (m *ciMap) Has(name string) bool {
	_, ok := m.vals[strings.ToLower(name)]
	return ok
}

func (m *ciMap) Len() int { return len(m.keys) }

func (m *ciMap) Each(fn func(name, value string)) {
	for _, k := range m.keys {
		fn(k, m.vals[strings.ToLower(k)])
	}
}
