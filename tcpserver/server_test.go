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

package tcpserver_test

import (
	"net"
	"testing"
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/rconfig"
	"github.com/nabbar/reactor/socket"
	"github.com/nabbar/reactor/tcpconn"
	"github.com/nabbar/reactor/tcpserver"
)

// TestEchoServer exercises the spec's end-to-end echo scenario: a client
// connects, sends "hello", gets "hello" back byte-for-byte, and the server
// observes the connection go up then down.
func TestEchoServer(t *testing.T) {
	l, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go func() { _ = l.Run() }()
	defer l.Quit()

	cfg := rconfig.DefaultServer("127.0.0.1:0")
	s, serr := tcpserver.New(l, nil, socket.NewAddress("127.0.0.1", 0), cfg)
	if serr != nil {
		t.Fatalf("new server: %v", serr)
	}

	up := make(chan struct{}, 2)
	down := make(chan struct{}, 2)

	s.SetConnectionCallback(func(c tcpconn.TcpConnection) {
		if c.Connected() {
			up <- struct{}{}
		} else {
			down <- struct{}{}
		}
	})
	s.SetMessageCallback(func(c tcpconn.TcpConnection, in buffer.Buffer, _ time.Time) {
		data := append([]byte(nil), in.Peek()...)
		in.RetrieveAll()
		c.Send(data)
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	var addr socket.Address
	for i := 0; i < 100; i++ {
		addr, err = s.Addr()
		if err == nil && addr.Port() != 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn, derr := net.DialTimeout("tcp", addr.ToIPPort(), 2*time.Second)
	if derr != nil {
		t.Fatalf("dial: %v", derr)
	}

	select {
	case <-up:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection-up callback")
	}

	if _, werr := conn.Write([]byte("hello")); werr != nil {
		t.Fatalf("write: %v", werr)
	}

	buf := make([]byte, 16)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, rerr := conn.Read(buf)
	if rerr != nil {
		t.Fatalf("read: %v", rerr)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("expected echoed %q, got %q", "hello", string(buf[:n]))
	}

	conn.Close()

	select {
	case <-down:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection-down callback")
	}
}
