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

package socket_test

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/socket"
)

func TestBindListenAcceptRoundTrip(t *testing.T) {
	lsock, err := socket.New(unix.AF_INET)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer lsock.Close()

	if err := lsock.SetReuseAddr(true); err != nil {
		t.Fatalf("reuseaddr: %v", err)
	}
	if err := lsock.Bind(socket.NewAddress("127.0.0.1", 0)); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := lsock.Listen(16); err != nil {
		t.Fatalf("listen: %v", err)
	}

	local, err := lsock.LocalAddr()
	if err != nil {
		t.Fatalf("local addr: %v", err)
	}
	if local.Port() == 0 {
		t.Fatal("expected an ephemeral port to have been assigned")
	}

	csock, err := socket.New(unix.AF_INET)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer csock.Close()

	cerr := csock.Connect(socket.NewAddress("127.0.0.1", local.Port()))
	if cerr != nil && cerr != unix.EINPROGRESS {
		t.Fatalf("connect: %v", cerr)
	}
}

func TestAddressEqualAndLoopback(t *testing.T) {
	a := socket.NewAddress("127.0.0.1", 80)
	b := socket.NewAddress("127.0.0.1", 80)
	c := socket.NewAddress("127.0.0.1", 81)

	if !a.Equal(b) {
		t.Fatal("expected equal addresses to compare equal")
	}
	if a.Equal(c) {
		t.Fatal("expected different ports to compare unequal")
	}
	if !a.IsLoopback() {
		t.Fatal("expected 127.0.0.1 to be a loopback address")
	}
}
