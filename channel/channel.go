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

// Package channel holds the per-descriptor interest/readiness record that
// Poller and EventLoop dispatch events through. A Channel never owns its
// descriptor; it only demultiplexes readiness into typed callbacks.
//
// Go has no native weak reference until the experimental weak package, and
// this module targets a release before it shipped, so a Channel's tie to
// its owning object goes through a generational Tie lookup instead of a
// weak pointer: Resolve fails once the generation the Tie was built for is
// gone, exactly as a weak pointer would report collection.
package channel

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/reerr"
)

// State is the three-state registration index Poller maintains per
// Channel: New (never registered), Added (registered with epoll), Deleted
// (was registered, currently has no interest).
type State int

const (
	StateNew State = iota
	StateAdded
	StateDeleted
)

const (
	readEvents  = unix.EPOLLIN | unix.EPOLLPRI
	writeEvents = unix.EPOLLOUT
	noneEvent   = uint32(0)
)

// Tie resolves a weak reference to the object a Channel is tied to (e.g. a
// TcpConnection), failing once that object has been destroyed.
type Tie interface {
	Resolve() (any, bool)
}

// LoopUpdater is the subset of EventLoop a Channel needs to register
// itself for readiness changes. It is satisfied by loop.Loop.
type LoopUpdater interface {
	UpdateChannel(ch Channel)
	RemoveChannel(ch Channel)
	AssertInLoopThread()
}

type (
	ReadCallback  func(receiveTime time.Time)
	WriteCallback func()
	CloseCallback func()
	ErrorCallback func()
)

// Channel is a per-descriptor interest/readiness record and event
// demultiplexer: it dispatches a readiness mask to typed callbacks.
type Channel interface {
	Fd() int
	Events() uint32
	SetRevents(revents uint32)
	Index() State
	SetIndex(s State)

	EnableReading()
	EnableWriting()
	DisableWriting()
	DisableReading()
	DisableAll()

	IsWriting() bool
	IsReading() bool
	IsNoneEvent() bool

	Tie(t Tie)

	SetReadCallback(fn ReadCallback)
	SetWriteCallback(fn WriteCallback)
	SetCloseCallback(fn CloseCallback)
	SetErrorCallback(fn ErrorCallback)

	// HandleEvent dispatches the last readiness mask to the registered
	// callbacks, upgrading the tie for the duration of the call.
	HandleEvent(receiveTime time.Time) reerr.Error

	Remove() reerr.Error
}

type chn struct {
	loop LoopUpdater
	fd   int

	events  uint32
	revents uint32
	index   State

	tie         Tie
	handlingEvt bool

	readCb  ReadCallback
	writeCb WriteCallback
	closeCb CloseCallback
	errorCb ErrorCallback
}

// New returns a Channel for fd, owned by loop, with no interest enabled.
func New(loop LoopUpdater, fd int) Channel {
	return &chn{
		loop:  loop,
		fd:    fd,
		index: StateNew,
	}
}

func (c *chn) Fd() int               { return c.fd }
func (c *chn) Events() uint32        { return c.events }
func (c *chn) SetRevents(r uint32)   { c.revents = r }
func (c *chn) Index() State          { return c.index }
func (c *chn) SetIndex(s State)      { c.index = s }

func (c *chn) update() {
	c.loop.UpdateChannel(c)
}

func (c *chn) EnableReading() {
	c.events |= readEvents
	c.update()
}

func (c *chn) EnableWriting() {
	c.events |= writeEvents
	c.update()
}

func (c *chn) DisableWriting() {
	c.events &^= writeEvents
	c.update()
}

func (c *chn) DisableReading() {
	c.events &^= readEvents
	c.update()
}

func (c *chn) DisableAll() {
	c.events = noneEvent
	c.update()
}

func (c *chn) IsWriting() bool   { return c.events&writeEvents != 0 }
func (c *chn) IsReading() bool   { return c.events&readEvents != 0 }
func (c *chn) IsNoneEvent() bool { return c.events == noneEvent }

func (c *chn) Tie(t Tie) {
	c.tie = t
}

func (c *chn) SetReadCallback(fn ReadCallback)   { c.readCb = fn }
func (c *chn) SetWriteCallback(fn WriteCallback) { c.writeCb = fn }
func (c *chn) SetCloseCallback(fn CloseCallback) { c.closeCb = fn }
func (c *chn) SetErrorCallback(fn ErrorCallback) { c.errorCb = fn }

func (c *chn) HandleEvent(receiveTime time.Time) reerr.Error {
	if c.tie != nil {
		if _, ok := c.tie.Resolve(); !ok {
			return nil
		}
	}

	c.handlingEvt = true
	defer func() { c.handlingEvt = false }()

	return c.handleEventWithGuard(receiveTime)
}

// handleEventWithGuard implements the dispatch order and triggering
// conditions over the last readiness mask: HUP without IN closes, NVAL
// warns (and returns a warning error), ERR/NVAL errors, IN|PRI|RDHUP
// reads, OUT writes. epoll has no true POLLNVAL-equivalent bit, so this
// branch is kept for parity with the documented state table but is dead
// in practice, exactly as in the original.
func (c *chn) handleEventWithGuard(receiveTime time.Time) reerr.Error {
	revents := c.revents
	var warn reerr.Error

	if revents&unix.EPOLLHUP != 0 && revents&unix.EPOLLIN == 0 {
		if c.closeCb != nil {
			c.closeCb()
		}
		return nil
	}

	if revents&unix.EPOLLNVAL != 0 {
		warn = ErrorInvalidFd.Error(nil)
	}

	if revents&(unix.EPOLLERR|unix.EPOLLNVAL) != 0 {
		if c.errorCb != nil {
			c.errorCb()
		}
	}

	if revents&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		if c.readCb != nil {
			c.readCb(receiveTime)
		}
	}

	if revents&unix.EPOLLOUT != 0 {
		if c.writeCb != nil {
			c.writeCb()
		}
	}

	return warn
}

// Remove unregisters the channel from its loop. It must never be called
// while HandleEvent is on the stack for this channel.
func (c *chn) Remove() reerr.Error {
	if c.handlingEvt {
		return ErrorDestroyWhileHandling.Error(nil)
	}
	c.loop.RemoveChannel(c)
	return nil
}
