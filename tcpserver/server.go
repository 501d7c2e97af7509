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

// Package tcpserver binds an Acceptor on a main loop and assigns each new
// connection to a worker loop from a LoopThreadPool, round-robin.
package tcpserver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nabbar/reactor/acceptor"
	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/pool"
	"github.com/nabbar/reactor/rconfig"
	"github.com/nabbar/reactor/reerr"
	"github.com/nabbar/reactor/socket"
	"github.com/nabbar/reactor/tcpconn"
)

// TcpServer is a thin composition of an Acceptor, a LoopThreadPool, and the
// connection table that tracks every live TcpConnection it has handed out.
type TcpServer interface {
	Start() reerr.Error
	Stop() error

	SetThreadNum(n int)

	SetConnectionCallback(fn tcpconn.ConnectionCallback)
	SetMessageCallback(fn tcpconn.MessageCallback)
	SetWriteCompleteCallback(fn tcpconn.WriteCompleteCallback)

	Name() string
	Addr() (socket.Address, reerr.Error)
	ConnectionCount() int
}

type srv struct {
	l   loop.Loop
	log logger.Logger

	name string
	acc  acceptor.Acceptor
	pool pool.Pool

	highWaterMark int64
	tcpNoDelay    bool

	started    atomic.Bool
	nextConnID atomic.Uint64

	mu    sync.Mutex
	conns map[string]tcpconn.TcpConnection

	connCb          tcpconn.ConnectionCallback
	msgCb           tcpconn.MessageCallback
	writeCompleteCb tcpconn.WriteCompleteCallback
}

// New builds a TcpServer bound to l (the main loop), listening on addr per
// cfg. Start must still be called to begin accepting.
func New(l loop.Loop, log logger.Logger, addr socket.Address, cfg rconfig.Server) (TcpServer, reerr.Error) {
	if log == nil {
		log = logger.Nop()
	}

	a, err := acceptor.New(l, log, addr, cfg.ReusePort)
	if err != nil {
		return nil, err
	}

	s := &srv{
		l:             l,
		log:           log,
		name:          cfg.Name,
		acc:           a,
		pool:          pool.New(l, log),
		highWaterMark: cfg.HighWaterMark,
		tcpNoDelay:    cfg.TCPNoDelay,
		conns:         make(map[string]tcpconn.TcpConnection),
	}
	s.pool.SetThreadNum(cfg.Loop.NumThreads)
	a.SetNewConnectionCallback(s.newConnection)

	return s, nil
}

func (s *srv) SetThreadNum(n int) {
	s.pool.SetThreadNum(n)
}

func (s *srv) SetConnectionCallback(fn tcpconn.ConnectionCallback)       { s.connCb = fn }
func (s *srv) SetMessageCallback(fn tcpconn.MessageCallback)             { s.msgCb = fn }
func (s *srv) SetWriteCompleteCallback(fn tcpconn.WriteCompleteCallback) { s.writeCompleteCb = fn }

func (s *srv) Name() string { return s.name }

func (s *srv) Addr() (socket.Address, reerr.Error) {
	return s.acc.Addr()
}

func (s *srv) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Start is idempotent: only the first call starts the worker pool and
// schedules the acceptor's Listen on the main loop.
func (s *srv) Start() reerr.Error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.pool.Start(nil); err != nil {
		return err
	}

	s.l.RunInLoop(func() {
		if err := s.acc.Listen(); err != nil {
			s.log.Error(nil, "tcpserver %s: %s", s.name, err.Error())
		}
	})

	return nil
}

func (s *srv) newConnection(fd int, peer socket.Address) {
	s.l.AssertInLoopThread()

	ioLoop := s.pool.GetNextLoop()

	local, lerr := socket.Socket{Fd: fd}.LocalAddr()
	if lerr != nil {
		local = socket.Address{}
	}

	connID := s.nextConnID.Add(1)
	connName := fmt.Sprintf("%s-%s#%d", s.name, peer.String(), connID)

	c := tcpconn.New(ioLoop, s.log, connName, fd, local, peer)
	c.SetConnectionCallback(s.connCb)
	c.SetMessageCallback(s.msgCb)
	c.SetWriteCompleteCallback(s.writeCompleteCb)
	c.SetHighWaterMark(s.highWaterMark)
	c.SetCloseCallback(s.removeConnection)
	if s.tcpNoDelay {
		_ = c.SetTCPNoDelay(true)
	}

	s.mu.Lock()
	s.conns[connName] = c
	s.mu.Unlock()

	ioLoop.RunInLoop(c.ConnectEstablished)
}

func (s *srv) removeConnection(c tcpconn.TcpConnection) {
	s.l.RunInLoop(func() { s.removeConnectionInLoop(c) })
}

func (s *srv) removeConnectionInLoop(c tcpconn.TcpConnection) {
	s.l.AssertInLoopThread()

	s.mu.Lock()
	_, ok := s.conns[c.Name()]
	delete(s.conns, c.Name())
	s.mu.Unlock()

	if !ok {
		s.log.Error(nil, "tcpserver %s: %s", s.name, ErrorUnknownConnection.Error(nil).Error())
		return
	}

	c.Loop().QueueInLoop(c.ConnectDestroyed)
}

// Stop schedules ConnectDestroyed for every live connection and tears down
// the worker pool and listening socket. The caller's loops must keep
// running until those tasks drain.
func (s *srv) Stop() error {
	s.mu.Lock()
	conns := make([]tcpconn.TcpConnection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		cc := c
		cc.Loop().QueueInLoop(cc.ConnectDestroyed)
	}

	_ = s.pool.Stop()
	return s.acc.Close()
}
