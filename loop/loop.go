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

// Package loop is the single-threaded reactor: one Poller, one timer
// Queue, one wake descriptor, and a cross-thread pending-functor queue,
// all owned by the OS thread that calls Run.
package loop

import (
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/channel"
	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/poller"
	"github.com/nabbar/reactor/reerr"
	"github.com/nabbar/reactor/timer"
)

// pollTimeoutMs bounds every call into the kernel so a loop with no
// active descriptors still periodically wakes to observe a pending quit.
const pollTimeoutMs = 10000

// Loop is a single-threaded reactor owning one Poller, one timer Queue,
// a wake descriptor, and a mutex-guarded pending-functor queue.
type Loop interface {
	channel.LoopUpdater

	// Run blocks on the calling OS thread until Quit is observed. It
	// must be called at most once, from the thread that is to become
	// the loop's owner.
	Run() reerr.Error
	Quit()

	RunInLoop(task func())
	QueueInLoop(task func())
	QueueSize() int

	RunAt(when time.Time, fn func(time.Time)) timer.Id
	RunAfter(d time.Duration, fn func(time.Time)) timer.Id
	RunEvery(d time.Duration, fn func(time.Time)) timer.Id
	CancelTimer(id timer.Id)

	HasChannel(ch channel.Channel) bool
	Wakeup()

	IsInLoopThread() bool

	Close() error
}

type lp struct {
	log logger.Logger

	poller poller.Poller
	timers timer.Queue

	wakeFd int
	wakeCh channel.Channel
	timeCh channel.Channel

	active    []channel.Channel
	current   channel.Channel

	mu             sync.Mutex
	pending        []func()
	callingPending atomic.Bool

	quit atomic.Bool
	tid  atomic.Int64

	started atomic.Bool
}

// ignoreSigpipeOnce ensures SIGPIPE is ignored process-wide exactly once,
// the one piece of truly global state the reactor needs: a broken write
// must surface as EPIPE, not terminate the process.
var ignoreSigpipeOnce sync.Once

// New constructs a Loop. It does not start running until Run is called;
// Run must be invoked from the thread that is to own it.
func New(log logger.Logger) (Loop, reerr.Error) {
	ignoreSigpipeOnce.Do(func() {
		signal.Ignore(syscall.SIGPIPE)
	})

	if log == nil {
		log = logger.Nop()
	}

	p, err := poller.Open()
	if err != nil {
		return nil, err
	}

	tq, err := timer.New()
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	wfd, werr := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if werr != nil {
		_ = p.Close()
		_ = tq.Close()
		return nil, ErrorWakeFdCreate.ErrorParent(werr)
	}

	l := &lp{
		log:    log,
		poller: p,
		timers: tq,
		wakeFd: wfd,
	}
	l.tid.Store(-1)

	l.wakeCh = channel.New(l, wfd)
	l.wakeCh.SetReadCallback(func(time.Time) { l.handleWakeRead() })
	l.wakeCh.EnableReading()

	l.timeCh = channel.New(l, tq.Fd())
	l.timeCh.SetReadCallback(func(time.Time) {
		if e := l.timers.HandleRead(); e != nil {
			l.log.Error(nil, "timer queue: %s", e.Error())
		}
	})
	l.timeCh.EnableReading()

	return l, nil
}

func (l *lp) handleWakeRead() {
	var buf [8]byte
	_, _ = unix.Read(l.wakeFd, buf[:])
}

func (l *lp) Run() reerr.Error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrorAlreadyRunning.Error(nil)
	}

	runtime.LockOSThread()
	l.tid.Store(int64(unix.Gettid()))

	for !l.quit.Load() {
		_, active, err := l.poller.Poll(pollTimeoutMs)
		if err != nil {
			l.log.Error(nil, "poller wait: %s", err.Error())
			continue
		}

		l.active = active
		for _, ch := range active {
			l.current = ch
			if e := ch.HandleEvent(time.Now()); e != nil {
				l.log.Error(nil, "channel dispatch: %s", e.Error())
			}
		}
		l.current = nil
		l.active = nil

		l.doPendingFunctors()
	}

	return nil
}

func (l *lp) doPendingFunctors() {
	l.mu.Lock()
	l.callingPending.Store(true)
	local := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, f := range local {
		f()
	}

	l.callingPending.Store(false)
}

func (l *lp) Quit() {
	l.quit.Store(true)
	if !l.IsInLoopThread() {
		l.Wakeup()
	}
}

func (l *lp) RunInLoop(task func()) {
	if l.IsInLoopThread() {
		task()
		return
	}
	l.QueueInLoop(task)
}

func (l *lp) QueueInLoop(task func()) {
	l.mu.Lock()
	l.pending = append(l.pending, task)
	l.mu.Unlock()

	if !l.IsInLoopThread() || l.callingPending.Load() {
		l.Wakeup()
	}
}

func (l *lp) QueueSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// RunAt builds the timer's Id on the calling thread (Create never touches
// the owning loop's state) and only defers the actual insert-and-arm to
// the loop via RunInLoop, so a cross-thread caller never blocks waiting
// for the loop to come around.
func (l *lp) RunAt(when time.Time, fn func(time.Time)) timer.Id {
	id := l.timers.Create(fn, when, 0)
	l.RunInLoop(func() { l.timers.Schedule(id) })
	return id
}

func (l *lp) RunAfter(d time.Duration, fn func(time.Time)) timer.Id {
	return l.RunAt(time.Now().Add(d), fn)
}

func (l *lp) RunEvery(d time.Duration, fn func(time.Time)) timer.Id {
	id := l.timers.Create(fn, time.Now().Add(d), d)
	l.RunInLoop(func() { l.timers.Schedule(id) })
	return id
}

func (l *lp) CancelTimer(id timer.Id) {
	l.RunInLoop(func() { l.timers.Cancel(id) })
}

func (l *lp) UpdateChannel(ch channel.Channel) {
	if err := l.poller.Update(ch); err != nil {
		l.log.Error(nil, "update channel fd=%d: %s", ch.Fd(), err.Error())
	}
}

func (l *lp) RemoveChannel(ch channel.Channel) {
	if err := l.poller.Remove(ch); err != nil {
		l.log.Error(nil, "remove channel fd=%d: %s", ch.Fd(), err.Error())
	}
}

func (l *lp) HasChannel(ch channel.Channel) bool {
	return l.poller.Has(ch)
}

func (l *lp) Wakeup() {
	one := [8]byte{1}
	if _, err := unix.Write(l.wakeFd, one[:]); err != nil && err != unix.EAGAIN {
		l.log.Error(nil, "wakeup write: %s", err.Error())
	}
}

func (l *lp) IsInLoopThread() bool {
	tid := l.tid.Load()
	return tid >= 0 && tid == int64(unix.Gettid())
}

func (l *lp) AssertInLoopThread() {
	if l.IsInLoopThread() {
		return
	}
	l.log.Fatal(nil, ErrorNotOwnerThread.Error(nil).Error())
}

func (l *lp) Close() error {
	_ = l.wakeCh.Remove()
	_ = l.timeCh.Remove()
	_ = l.timers.Close()
	_ = l.poller.Close()
	return unix.Close(l.wakeFd)
}
