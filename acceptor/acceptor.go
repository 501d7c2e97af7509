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

// Package acceptor is the listening-socket state machine: it produces
// accepted connection descriptors with their peer addresses and survives
// accept-EMFILE storms by draining the listen backlog without handing out
// a descriptor.
package acceptor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/reerr"
	"github.com/nabbar/reactor/socket"
)

type NewConnectionFunc func(fd int, peer socket.Address)

// Acceptor owns a listening socket and channel, bound to exactly one
// loop (conventionally the main/base loop).
type Acceptor interface {
	Listen() reerr.Error
	Listening() bool
	SetNewConnectionCallback(fn NewConnectionFunc)
	// Addr reports the listening socket's bound local address, resolved
	// via getsockname so a caller that bound to port 0 can learn the
	// ephemeral port the kernel assigned.
	Addr() (socket.Address, reerr.Error)
	Close() error
}

type acc struct {
	log logger.Logger
	l   loop.Loop

	sock socket.Socket
	ch   channel.Channel

	listening bool
	reserveFd int

	newConnCb NewConnectionFunc
}

// New builds an Acceptor bound to l, listening on addr. reusePort
// controls SO_REUSEPORT on the listening socket.
func New(l loop.Loop, log logger.Logger, addr socket.Address, reusePort bool) (Acceptor, reerr.Error) {
	if log == nil {
		log = logger.Nop()
	}

	s, err := socket.New(addr.Family())
	if err != nil {
		return nil, err
	}

	if err := s.SetReuseAddr(true); err != nil {
		_ = s.Close()
		return nil, err
	}
	if reusePort {
		if err := s.SetReusePort(true); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	if err := s.Bind(addr); err != nil {
		_ = s.Close()
		return nil, err
	}

	reserve, rerr := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if rerr != nil {
		_ = s.Close()
		return nil, ErrorReserve.ErrorParent(rerr)
	}

	a := &acc{
		log:       log,
		l:         l,
		sock:      s,
		reserveFd: reserve,
	}

	a.ch = channel.New(l, s.Fd)
	a.ch.SetReadCallback(func(time.Time) { a.handleRead() })

	return a, nil
}

const listenBacklog = 1024

func (a *acc) Listen() reerr.Error {
	a.listening = true
	if err := a.sock.Listen(listenBacklog); err != nil {
		return err
	}
	a.ch.EnableReading()
	return nil
}

func (a *acc) Listening() bool { return a.listening }

func (a *acc) Addr() (socket.Address, reerr.Error) {
	return a.sock.LocalAddr()
}

func (a *acc) SetNewConnectionCallback(fn NewConnectionFunc) {
	a.newConnCb = fn
}

func (a *acc) handleRead() {
	fd, peer, err := a.sock.Accept()
	if err != nil {
		if err == unix.EMFILE {
			a.handleEMFILE()
			return
		}
		if socket.IsTransientAcceptError(err) {
			return
		}
		a.log.Fatal(nil, "accept: %s", err.Error())
		return
	}

	if a.newConnCb != nil {
		a.newConnCb(fd, peer)
	} else {
		_ = unix.Close(fd)
	}
}

// handleEMFILE implements the reserve-fd mitigation: close the spare fd,
// accept the connection that's now unblocked, close it immediately, then
// reopen the spare at /dev/null so the listening socket keeps draining
// even while the process sits at its descriptor ceiling.
func (a *acc) handleEMFILE() {
	_ = unix.Close(a.reserveFd)

	fd, _, _ := unix.Accept4(a.sock.Fd, unix.SOCK_CLOEXEC)
	if fd >= 0 {
		_ = unix.Close(fd)
	}

	reserve, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		a.log.Error(nil, "acceptor: failed to reopen reserve fd: %v", err)
		return
	}
	a.reserveFd = reserve
}

func (a *acc) Close() error {
	_ = a.ch.Remove()
	_ = unix.Close(a.reserveFd)
	return a.sock.Close()
}
