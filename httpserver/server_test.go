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

package httpserver_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/nabbar/reactor/httpcodec"
	"github.com/nabbar/reactor/httpserver"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/rconfig"
	"github.com/nabbar/reactor/socket"
)

func startServer(t *testing.T, handler httpserver.Handler) (socket.Address, func()) {
	t.Helper()

	l, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go func() { _ = l.Run() }()

	cfg := rconfig.DefaultServer("127.0.0.1:0")
	s, serr := httpserver.New(l, nil, socket.NewAddress("127.0.0.1", 0), cfg, handler)
	if serr != nil {
		t.Fatalf("new server: %v", serr)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var addr socket.Address
	for i := 0; i < 100; i++ {
		addr, err = s.Addr()
		if err == nil && addr.Port() != 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	return addr, func() {
		_ = s.Stop()
		l.Quit()
	}
}

// TestHttpServerHappyPath exercises the spec's HTTP happy-path scenario: a
// GET request gets a 200 response with the handler's body.
func TestHttpServerHappyPath(t *testing.T) {
	addr, stop := startServer(t, func(req *httpcodec.HttpRequest) *httpcodec.HttpResponse {
		resp := httpcodec.NewResponse()
		resp.SetStatusCode(200)
		resp.SetBody([]byte("hi " + req.Path))
		return resp
	})
	defer stop()

	conn, derr := net.DialTimeout("tcp", addr.ToIPPort(), 2*time.Second)
	if derr != nil {
		t.Fatalf("dial: %v", derr)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, werr := conn.Write([]byte("GET /there HTTP/1.1\r\nHost: x\r\n\r\n")); werr != nil {
		t.Fatalf("write: %v", werr)
	}

	r := bufio.NewReader(conn)
	status, rerr := r.ReadString('\n')
	if rerr != nil {
		t.Fatalf("read status line: %v", rerr)
	}
	if status != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("unexpected status line: %q", status)
	}
}

// TestHttpServerBadRequest exercises the spec's HTTP bad-request scenario: a
// malformed request line gets a 400 and the connection closes.
func TestHttpServerBadRequest(t *testing.T) {
	addr, stop := startServer(t, nil)
	defer stop()

	conn, derr := net.DialTimeout("tcp", addr.ToIPPort(), 2*time.Second)
	if derr != nil {
		t.Fatalf("dial: %v", derr)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, werr := conn.Write([]byte("GARBAGE\r\n\r\n")); werr != nil {
		t.Fatalf("write: %v", werr)
	}

	r := bufio.NewReader(conn)
	status, rerr := r.ReadString('\n')
	if rerr != nil {
		t.Fatalf("read status line: %v", rerr)
	}
	if status != "HTTP/1.1 400 Bad Request\r\n" {
		t.Fatalf("unexpected status line: %q", status)
	}

	blank, rerr2 := r.ReadString('\n')
	if rerr2 != nil {
		t.Fatalf("read blank line: %v", rerr2)
	}
	if blank != "\r\n" {
		t.Fatalf("expected a bare blank line ending the 400 response, got %q", blank)
	}

	buf := make([]byte, 64)
	n, rerr3 := r.Read(buf)
	if rerr3 == nil {
		t.Fatalf("expected the connection to close after the 400 response, got %d more bytes", n)
	}
}
