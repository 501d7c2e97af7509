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

package tcpconn_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/socket"
	"github.com/nabbar/reactor/tcpconn"
)

func newSocketpair(t *testing.T) (ours, theirs int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	return fds[0], fds[1]
}

func TestTcpConnectionEcho(t *testing.T) {
	ours, theirs := newSocketpair(t)
	defer unix.Close(theirs)

	l, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go func() { _ = l.Run() }()
	defer l.Quit()

	c := tcpconn.New(l, nil, "test-echo", ours, socket.Address{}, socket.Address{})
	c.SetMessageCallback(func(conn tcpconn.TcpConnection, in buffer.Buffer, _ time.Time) {
		data := append([]byte(nil), in.Peek()...)
		in.RetrieveAll()
		conn.Send(data)
	})

	established := make(chan struct{})
	l.RunInLoop(func() {
		c.ConnectEstablished()
		close(established)
	})
	<-established

	if _, err := unix.Write(theirs, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 16)
	deadline := time.Now().Add(2 * time.Second)
	var n int
	for time.Now().Before(deadline) {
		n, err = unix.Read(theirs, buf)
		if err == nil && n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if string(buf[:n]) != "hello" {
		t.Fatalf("expected echoed %q, got %q", "hello", string(buf[:n]))
	}
}

func TestTcpConnectionHandleCloseOnPeerEOF(t *testing.T) {
	ours, theirs := newSocketpair(t)

	l, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go func() { _ = l.Run() }()
	defer l.Quit()

	c := tcpconn.New(l, nil, "test-close", ours, socket.Address{}, socket.Address{})

	closed := make(chan struct{})
	c.SetCloseCallback(func(conn tcpconn.TcpConnection) { close(closed) })

	established := make(chan struct{})
	l.RunInLoop(func() {
		c.ConnectEstablished()
		close(established)
	})
	<-established

	unix.Close(theirs)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close callback after peer EOF")
	}

	state := make(chan tcpconn.State, 1)
	l.RunInLoop(func() { state <- c.State() })
	if s := <-state; s != tcpconn.StateDisconnected {
		t.Fatalf("expected StateDisconnected, got %v", s)
	}
}
