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

package socket

import (
	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/reerr"
)

// Socket wraps a non-blocking, close-on-exec descriptor.
type Socket struct {
	Fd int
}

// New creates a non-blocking, close-on-exec TCP socket for the given
// address family.
func New(family int) (Socket, reerr.Error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return Socket{}, ErrorCreate.ErrorParent(err)
	}
	return Socket{Fd: fd}, nil
}

func (s Socket) Bind(addr Address) reerr.Error {
	if err := unix.Bind(s.Fd, addr.Sockaddr()); err != nil {
		return ErrorBind.ErrorParent(err)
	}
	return nil
}

func (s Socket) Listen(backlog int) reerr.Error {
	if err := unix.Listen(s.Fd, backlog); err != nil {
		return ErrorListen.ErrorParent(err)
	}
	return nil
}

// Accept returns a non-blocking, close-on-exec fd plus the peer address
// for one pending connection. On error it returns fd -1 and the raw
// errno, leaving classification (transient vs. fatal) to the caller, per
// the acceptor's accept-EMFILE mitigation.
func (s Socket) Accept() (int, Address, error) {
	fd, sa, err := unix.Accept4(s.Fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, Address{}, err
	}

	addr, aerr := FromSockaddr(sa)
	if aerr != nil {
		return fd, Address{}, nil
	}
	return fd, addr, nil
}

// IsTransientAcceptError reports whether errno is one of the accept(2)
// conditions that should be retried rather than treated as fatal.
func IsTransientAcceptError(err error) bool {
	switch err {
	case unix.EAGAIN, unix.ECONNABORTED, unix.EINTR, unix.EPROTO, unix.EPERM, unix.EMFILE:
		return true
	default:
		return false
	}
}

func (s Socket) ShutdownWrite() error {
	return unix.Shutdown(s.Fd, unix.SHUT_WR)
}

func (s Socket) Close() error {
	return unix.Close(s.Fd)
}

func (s Socket) SetTCPNoDelay(on bool) reerr.Error {
	return s.setBoolOpt(unix.IPPROTO_TCP, unix.TCP_NODELAY, on)
}

func (s Socket) SetReuseAddr(on bool) reerr.Error {
	return s.setBoolOpt(unix.SOL_SOCKET, unix.SO_REUSEADDR, on)
}

func (s Socket) SetReusePort(on bool) reerr.Error {
	return s.setBoolOpt(unix.SOL_SOCKET, unix.SO_REUSEPORT, on)
}

func (s Socket) SetKeepAlive(on bool) reerr.Error {
	return s.setBoolOpt(unix.SOL_SOCKET, unix.SO_KEEPALIVE, on)
}

func (s Socket) setBoolOpt(level, opt int, on bool) reerr.Error {
	v := 0
	if on {
		v = 1
	}
	if err := unix.SetsockoptInt(s.Fd, level, opt, v); err != nil {
		return ErrorOption.ErrorParent(err)
	}
	return nil
}

// LocalAddr reads the socket's local address via getsockname(2).
func (s Socket) LocalAddr() (Address, reerr.Error) {
	sa, err := unix.Getsockname(s.Fd)
	if err != nil {
		return Address{}, ErrorOption.ErrorParent(err)
	}
	return FromSockaddr(sa)
}

// PeerAddr reads the socket's peer address via getpeername(2).
func (s Socket) PeerAddr() (Address, reerr.Error) {
	sa, err := unix.Getpeername(s.Fd)
	if err != nil {
		return Address{}, ErrorOption.ErrorParent(err)
	}
	return FromSockaddr(sa)
}

// SOError reads and clears SO_ERROR, used by Connector to inspect the
// result of a non-blocking connect once the socket becomes writable.
func (s Socket) SOError() (int, reerr.Error) {
	v, err := unix.GetsockoptInt(s.Fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return 0, ErrorOption.ErrorParent(err)
	}
	return v, nil
}

// Connect attempts a non-blocking connect(2), returning the raw errno so
// Connector can classify it per the spec's retry table.
func (s Socket) Connect(addr Address) error {
	return unix.Connect(s.Fd, addr.Sockaddr())
}
