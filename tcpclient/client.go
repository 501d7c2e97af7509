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

// Package tcpclient drives a Connector and holds the single connection it
// produces, with optional auto-reconnect on close.
package tcpclient

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nabbar/reactor/connector"
	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/socket"
	"github.com/nabbar/reactor/tcpconn"
)

// TcpClient uses a Connector and holds at most one TcpConnection at a time.
type TcpClient interface {
	Connect()
	Disconnect()
	Stop()

	SetRetry(on bool)

	SetConnectionCallback(fn tcpconn.ConnectionCallback)
	SetMessageCallback(fn tcpconn.MessageCallback)
	SetWriteCompleteCallback(fn tcpconn.WriteCompleteCallback)

	// Connection returns the current connection and whether one exists.
	Connection() (tcpconn.TcpConnection, bool)
	Name() string
}

type cli struct {
	l   loop.Loop
	log logger.Logger

	name string
	conn connector.Connector

	retry       atomic.Bool
	connectFlag atomic.Bool
	nextConnID  atomic.Uint64

	mu sync.Mutex
	c  tcpconn.TcpConnection

	connCb          tcpconn.ConnectionCallback
	msgCb           tcpconn.MessageCallback
	writeCompleteCb tcpconn.WriteCompleteCallback
}

// New builds a TcpClient bound to l that will dial addr once Connect is
// called.
func New(l loop.Loop, log logger.Logger, name string, addr socket.Address) TcpClient {
	if log == nil {
		log = logger.Nop()
	}

	cl := &cli{
		l:    l,
		log:  log,
		name: name,
	}
	cl.conn = connector.New(l, log, addr)
	cl.conn.SetNewConnectionCallback(cl.newConnection)

	return cl
}

func (cl *cli) Name() string { return cl.name }

func (cl *cli) SetRetry(on bool) { cl.retry.Store(on) }

func (cl *cli) SetConnectionCallback(fn tcpconn.ConnectionCallback)       { cl.connCb = fn }
func (cl *cli) SetMessageCallback(fn tcpconn.MessageCallback)             { cl.msgCb = fn }
func (cl *cli) SetWriteCompleteCallback(fn tcpconn.WriteCompleteCallback) { cl.writeCompleteCb = fn }

func (cl *cli) Connect() {
	cl.connectFlag.Store(true)
	cl.conn.Start()
}

// newConnection runs on the owning loop: Connector only ever invokes its
// new-connection callback from inside a channel write dispatch.
func (cl *cli) newConnection(fd int) {
	peer, _ := socket.Socket{Fd: fd}.PeerAddr()
	local, _ := socket.Socket{Fd: fd}.LocalAddr()

	connID := cl.nextConnID.Add(1)
	connName := fmt.Sprintf("%s-%d", cl.name, connID)

	c := tcpconn.New(cl.l, cl.log, connName, fd, local, peer)
	c.SetConnectionCallback(cl.connCb)
	c.SetMessageCallback(cl.msgCb)
	c.SetWriteCompleteCallback(cl.writeCompleteCb)
	c.SetCloseCallback(cl.removeConnection)

	cl.mu.Lock()
	cl.c = c
	cl.mu.Unlock()

	c.ConnectEstablished()
}

func (cl *cli) removeConnection(c tcpconn.TcpConnection) {
	cl.mu.Lock()
	if cl.c == c {
		cl.c = nil
	}
	cl.mu.Unlock()

	c.Loop().QueueInLoop(c.ConnectDestroyed)

	if cl.retry.Load() && cl.connectFlag.Load() {
		cl.conn.Restart()
	}
}

func (cl *cli) Connection() (tcpconn.TcpConnection, bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.c, cl.c != nil
}

func (cl *cli) Disconnect() {
	cl.connectFlag.Store(false)

	cl.mu.Lock()
	c := cl.c
	cl.mu.Unlock()

	if c != nil {
		c.Shutdown()
	}
}

// Stop halts reconnection and closes any live connection. If there is no
// live connection it is a no-op beyond stopping the connector.
func (cl *cli) Stop() {
	cl.connectFlag.Store(false)
	cl.conn.Stop()

	cl.mu.Lock()
	c := cl.c
	cl.mu.Unlock()

	if c != nil {
		c.ForceClose()
	}
}
