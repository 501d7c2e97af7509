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

// Package poller encapsulates the OS readiness primitive. On Linux this is
// epoll, level-triggered to match the dispatch semantics channel.Channel
// expects (a channel that doesn't fully drain a readable socket keeps
// seeing it ready on the next poll, same as POSIX poll).
package poller

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/reerr"
)

const initialActiveEvents = 16

// Poller is the fd-to-Channel readiness multiplexer each EventLoop owns
// exactly one of.
type Poller interface {
	// Poll blocks up to timeoutMs and returns the channels that became
	// ready, with their readiness mask already set via SetRevents.
	Poll(timeoutMs int) (time.Time, []channel.Channel, reerr.Error)

	Update(ch channel.Channel) reerr.Error
	Remove(ch channel.Channel) reerr.Error
	Has(ch channel.Channel) bool

	Close() error
}

type poller struct {
	epfd     int
	channels map[int]channel.Channel
	events   []unix.EpollEvent
}

// Open creates a new epoll instance.
func Open() (Poller, reerr.Error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrorCreate.ErrorParent(err)
	}

	return &poller{
		epfd:     fd,
		channels: make(map[int]channel.Channel),
		events:   make([]unix.EpollEvent, initialActiveEvents),
	}, nil
}

func (p *poller) Poll(timeoutMs int) (time.Time, []channel.Channel, reerr.Error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	now := time.Now()

	if err != nil {
		if err == unix.EINTR {
			return now, nil, nil
		}
		return now, nil, ErrorWait.ErrorParent(err)
	}

	active := make([]channel.Channel, 0, n)
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		if ch, ok := p.channels[fd]; ok {
			ch.SetRevents(p.events[i].Events)
			active = append(active, ch)
		}
	}

	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}

	return now, active, nil
}

func (p *poller) Update(ch channel.Channel) reerr.Error {
	switch ch.Index() {
	case channel.StateNew, channel.StateDeleted:
		return p.add(ch)
	default:
		return p.modify(ch)
	}
}

func (p *poller) add(ch channel.Channel) reerr.Error {
	fd := ch.Fd()

	if ch.IsNoneEvent() {
		ch.SetIndex(channel.StateNew)
		return nil
	}

	ev := unix.EpollEvent{Events: ch.Events(), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return ErrorCtl.ErrorParent(err)
	}

	p.channels[fd] = ch
	ch.SetIndex(channel.StateAdded)
	return nil
}

func (p *poller) modify(ch channel.Channel) reerr.Error {
	fd := ch.Fd()

	if ch.IsNoneEvent() {
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return ErrorCtl.ErrorParent(err)
		}
		delete(p.channels, fd)
		ch.SetIndex(channel.StateDeleted)
		return nil
	}

	ev := unix.EpollEvent{Events: ch.Events(), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return ErrorCtl.ErrorParent(err)
	}
	return nil
}

func (p *poller) Remove(ch channel.Channel) reerr.Error {
	fd := ch.Fd()

	if _, ok := p.channels[fd]; !ok {
		return ErrorUnknownChannel.Error(nil)
	}

	if ch.Index() == channel.StateAdded {
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return ErrorCtl.ErrorParent(err)
		}
	}

	delete(p.channels, fd)
	ch.SetIndex(channel.StateNew)
	return nil
}

func (p *poller) Has(ch channel.Channel) bool {
	c, ok := p.channels[ch.Fd()]
	return ok && c == ch
}

func (p *poller) Close() error {
	return unix.Close(p.epfd)
}
