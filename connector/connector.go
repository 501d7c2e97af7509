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

// Package connector is the outbound-connection state machine: it retries a
// non-blocking connect(2) with exponential backoff and hands the caller a
// live fd once the peer accepts.
package connector

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/socket"
)

// State is the Connector's lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

const (
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

type NewConnectionFunc func(fd int)

// Connector owns at most one in-flight outbound socket at a time, bound to
// exactly one loop.
type Connector interface {
	Start()
	Stop()
	Restart()

	SetNewConnectionCallback(fn NewConnectionFunc)
	State() State
}

type con struct {
	log logger.Logger
	l   loop.Loop

	serverAddr socket.Address

	connecting bool
	state      State

	retryDelay time.Duration

	sockFd int
	ch     channel.Channel

	newConnCb NewConnectionFunc
}

// New builds a Connector bound to l that will dial addr once Start is
// called.
func New(l loop.Loop, log logger.Logger, addr socket.Address) Connector {
	if log == nil {
		log = logger.Nop()
	}
	return &con{
		log:        log,
		l:          l,
		serverAddr: addr,
		retryDelay: initialRetryDelay,
	}
}

func (c *con) SetNewConnectionCallback(fn NewConnectionFunc) {
	c.newConnCb = fn
}

func (c *con) State() State { return c.state }

func (c *con) Start() {
	c.connecting = true
	c.l.RunInLoop(c.startInLoop)
}

func (c *con) startInLoop() {
	if !c.connecting {
		return
	}
	c.connect()
}

// connect attempts a non-blocking connect(2) and classifies errno per the
// spec's retry table.
func (c *con) connect() {
	s, err := socket.New(c.serverAddr.Family())
	if err != nil {
		c.log.Error(nil, "connector: socket: %s", err.Error())
		return
	}

	cerr := s.Connect(c.serverAddr)
	switch cerr {
	case nil, unix.EINPROGRESS, unix.EINTR, unix.EISCONN:
		c.connecting2(s.Fd)
	case unix.EAGAIN, unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.ECONNREFUSED, unix.ENETUNREACH:
		c.retry(s.Fd)
	default:
		c.log.Error(nil, "connector: connect: %s", ErrorConnect.ErrorParent(cerr).Error())
		_ = s.Close()
	}
}

// connecting2 moves to StateConnecting and subscribes to writable/error on
// the socket so handleWrite can inspect SO_ERROR once the kernel decides.
func (c *con) connecting2(fd int) {
	c.state = StateConnecting
	c.sockFd = fd

	ch := channel.New(c.l, fd)
	ch.SetWriteCallback(c.handleWrite)
	ch.SetErrorCallback(c.handleError)
	ch.EnableWriting()
	c.ch = ch
}

func (c *con) retry(fd int) {
	_ = unix.Close(fd)

	delay := c.retryDelay
	c.l.RunAfter(delay, func(time.Time) {
		if c.connecting {
			c.startInLoop()
		}
	})

	c.retryDelay *= 2
	if c.retryDelay > maxRetryDelay {
		c.retryDelay = maxRetryDelay
	}
}

func (c *con) handleWrite() {
	if c.state != StateConnecting {
		return
	}

	sock := socket.Socket{Fd: c.sockFd}

	errv, serr := sock.SOError()
	if serr != nil || errv != 0 {
		c.resetChannel()
		c.retry(c.sockFd)
		return
	}

	local, lerr := sock.LocalAddr()
	peer, perr := sock.PeerAddr()
	if lerr == nil && perr == nil && local.Equal(peer) {
		// self-connect: the kernel looped the connect back to us.
		c.resetChannel()
		c.retry(c.sockFd)
		return
	}

	c.resetChannel()
	c.state = StateConnected

	if c.newConnCb != nil {
		c.newConnCb(c.sockFd)
	}
}

func (c *con) handleError() {
	c.log.Warn(nil, "connector: error readiness on fd=%d", c.sockFd)
	c.resetChannel()
	c.retry(c.sockFd)
}

func (c *con) resetChannel() {
	if c.ch != nil {
		_ = c.ch.Remove()
		c.ch = nil
	}
}

func (c *con) Stop() {
	c.connecting = false
	if c.ch != nil {
		_ = c.ch.Remove()
		_ = unix.Close(c.sockFd)
		c.ch = nil
	}
	c.state = StateDisconnected
}

func (c *con) Restart() {
	c.retryDelay = initialRetryDelay
	c.connecting = true
	c.state = StateDisconnected
	c.l.RunInLoop(c.startInLoop)
}
