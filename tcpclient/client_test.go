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

package tcpclient_test

import (
	"net"
	"testing"
	"time"

	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/socket"
	"github.com/nabbar/reactor/tcpclient"
	"github.com/nabbar/reactor/tcpconn"
)

func TestTcpClientConnects(t *testing.T) {
	ln, lerr := net.Listen("tcp", "127.0.0.1:0")
	if lerr != nil {
		t.Fatalf("listen: %v", lerr)
	}
	defer ln.Close()

	go func() {
		c, aerr := ln.Accept()
		if aerr == nil {
			defer c.Close()
			buf := make([]byte, 16)
			n, _ := c.Read(buf)
			if n > 0 {
				_, _ = c.Write(buf[:n])
			}
		}
	}()

	l, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	go func() { _ = l.Run() }()
	defer l.Quit()

	port := ln.Addr().(*net.TCPAddr).Port
	client := tcpclient.New(l, nil, "test-client", socket.NewAddress("127.0.0.1", port))

	up := make(chan tcpconn.TcpConnection, 1)
	client.SetConnectionCallback(func(c tcpconn.TcpConnection) {
		if c.Connected() {
			up <- c
		}
	})

	client.Connect()

	select {
	case c := <-up:
		c.Send([]byte("ping"))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client to connect")
	}

	if _, ok := client.Connection(); !ok {
		t.Fatal("expected Connection to report an active connection")
	}

	client.Stop()
}
