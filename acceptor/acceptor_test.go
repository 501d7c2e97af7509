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

package acceptor_test

import (
	"net"
	"testing"
	"time"

	"github.com/nabbar/reactor/acceptor"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/socket"
)

func TestAcceptorDeliversNewConnection(t *testing.T) {
	l, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go func() {
		_ = l.Run()
	}()
	defer l.Quit()

	a, err := acceptor.New(l, nil, socket.NewAddress("127.0.0.1", 0), false)
	if err != nil {
		t.Fatalf("new acceptor: %v", err)
	}
	defer a.Close()

	got := make(chan int, 1)
	a.SetNewConnectionCallback(func(fd int, peer socket.Address) {
		got <- fd
	})

	if err := a.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if !a.Listening() {
		t.Fatal("expected Listening to report true after Listen")
	}

	bound, aerr := a.Addr()
	if aerr != nil {
		t.Fatalf("addr: %v", aerr)
	}

	conn, derr := net.DialTimeout("tcp", bound.ToIPPort(), time.Second)
	if derr != nil {
		t.Fatalf("dial: %v", derr)
	}
	defer conn.Close()

	select {
	case fd := <-got:
		if fd < 0 {
			t.Fatal("expected a valid accepted fd")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
}

func TestAcceptorWithoutCallbackClosesAcceptedFd(t *testing.T) {
	l, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go func() {
		_ = l.Run()
	}()
	defer l.Quit()

	a, err := acceptor.New(l, nil, socket.NewAddress("127.0.0.1", 0), false)
	if err != nil {
		t.Fatalf("new acceptor: %v", err)
	}
	defer a.Close()

	if err := a.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	bound, aerr := a.Addr()
	if aerr != nil {
		t.Fatalf("addr: %v", aerr)
	}

	conn, derr := net.DialTimeout("tcp", bound.ToIPPort(), time.Second)
	if derr != nil {
		t.Fatalf("dial: %v", derr)
	}
	defer conn.Close()

	// With no callback registered the acceptor closes the accepted fd
	// immediately; the peer should observe EOF rather than staying open.
	buf := make([]byte, 1)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, rerr := conn.Read(buf); rerr == nil {
		t.Fatal("expected peer to observe connection close")
	}
}
