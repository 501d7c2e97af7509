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

// Package timer is a time-ordered set of callbacks fired off a single
// monotonic timerfd, owned by exactly one loop. Ordering and cancellation
// lookup both ride golang.org/x/exp/slices' generic binary search instead
// of a hand-rolled tree.
package timer

import (
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/reerr"
)

// Id identifies one scheduled timer. Cancelling with a stale Id (one whose
// seq no longer matches the entry, because the slot was reused) is a
// guarded no-op.
type Id struct {
	e   *entry
	seq uint64
}

type entry struct {
	fn         func(time.Time)
	expiration time.Time
	interval   time.Duration
	repeat     bool
	seq        uint64
}

func less(a, b *entry) bool {
	if !a.expiration.Equal(b.expiration) {
		return a.expiration.Before(b.expiration)
	}
	return a.seq < b.seq
}

func cmpKey(a, target *entry) int {
	switch {
	case a == target || (a.expiration.Equal(target.expiration) && a.seq == target.seq):
		return 0
	case less(a, target):
		return -1
	default:
		return 1
	}
}

// Queue is the time-ordered set of timers for one loop, fired via a
// CLOCK_MONOTONIC timerfd.
type Queue interface {
	Fd() int

	Add(fn func(time.Time), when time.Time, interval time.Duration) Id
	Cancel(id Id)

	// Create allocates a Timer's Id and sequence number without touching
	// the ordered sets, so it is safe to call from any thread. Schedule
	// must be called on the owning loop afterward to actually insert and
	// arm it; callers that are off-loop build the Id here, then defer
	// Schedule via queue_in_loop, so adding a timer from another thread
	// never blocks the caller.
	Create(fn func(time.Time), when time.Time, interval time.Duration) Id

	// Schedule inserts an Id built by Create into the ordered sets and
	// rearms the timer fd if it became the earliest entry. Must run on
	// the owning loop.
	Schedule(id Id)

	// HandleRead is invoked when Fd becomes readable: it drains the
	// expiration counter, fires every due timer in order, then
	// reschedules repeating timers and rearms the fd.
	HandleRead() reerr.Error

	Len() int
	Close() error
}

type queue struct {
	fd        int
	active    []*entry
	canceling map[*entry]struct{}
	firing    bool
	firingCur *entry
	seqGen    atomic.Uint64
}

// New creates a timerfd-backed Queue. The fd is not yet armed; the first
// Schedule (directly or through Add) arms it.
func New() (Queue, reerr.Error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, ErrorCreateFd.ErrorParent(err)
	}

	return &queue{
		fd: fd,
	}, nil
}

func (q *queue) Fd() int { return q.fd }

func (q *queue) Len() int { return len(q.active) }

func (q *queue) Add(fn func(time.Time), when time.Time, interval time.Duration) Id {
	id := q.Create(fn, when, interval)
	q.Schedule(id)
	return id
}

// Create builds the entry and assigns its sequence number off an atomic
// counter, the only state this step touches, so it never needs the
// owning loop.
func (q *queue) Create(fn func(time.Time), when time.Time, interval time.Duration) Id {
	seq := q.seqGen.Add(1)

	e := &entry{
		fn:         fn,
		expiration: when,
		// a zero interval is a one-shot, per the spec's boundary
		// behavior for interval-0 timers.
		interval: interval,
		repeat:   interval > 0,
		seq:      seq,
	}

	return Id{e: e, seq: seq}
}

func (q *queue) Schedule(id Id) {
	e := id.e
	if e == nil {
		return
	}

	q.insert(e)

	if q.active[0] == e {
		_ = q.rearm(e.expiration)
	}
}

func (q *queue) insert(e *entry) {
	pos, _ := slices.BinarySearchFunc(q.active, e, cmpKey)
	q.active = slices.Insert(q.active, pos, e)
}

func (q *queue) removeAt(e *entry) bool {
	pos, found := slices.BinarySearchFunc(q.active, e, cmpKey)
	if !found {
		return false
	}
	q.active = slices.Delete(q.active, pos, pos+1)
	return true
}

func (q *queue) Cancel(id Id) {
	if id.e == nil || id.e.seq != id.seq {
		return
	}

	if q.firing && q.firingCur == id.e {
		if q.canceling == nil {
			q.canceling = make(map[*entry]struct{})
		}
		q.canceling[id.e] = struct{}{}
		return
	}

	q.removeAt(id.e)
}

func (q *queue) rearm(when time.Time) reerr.Error {
	d := time.Until(when)
	if d <= 0 {
		d = time.Nanosecond
	}

	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(int64(d))}
	if err := unix.TimerfdSettime(q.fd, 0, &spec, nil); err != nil {
		return ErrorSetTime.ErrorParent(err)
	}
	return nil
}

func (q *queue) disarm() reerr.Error {
	var spec unix.ItimerSpec
	if err := unix.TimerfdSettime(q.fd, 0, &spec, nil); err != nil {
		return ErrorSetTime.ErrorParent(err)
	}
	return nil
}

func (q *queue) HandleRead() reerr.Error {
	var buf [8]byte
	if _, err := unix.Read(q.fd, buf[:]); err != nil && err != unix.EAGAIN {
		return ErrorRead.ErrorParent(err)
	}

	now := time.Now()

	var expired []*entry
	for len(q.active) > 0 && !q.active[0].expiration.After(now) {
		expired = append(expired, q.active[0])
		q.active = slices.Delete(q.active, 0, 1)
	}

	q.firing = true
	q.canceling = nil

	for _, e := range expired {
		q.firingCur = e
		e.fn(now)
	}

	q.firingCur = nil
	q.firing = false

	for _, e := range expired {
		if _, cancelled := q.canceling[e]; cancelled {
			continue
		}
		if e.repeat {
			e.expiration = now.Add(e.interval)
			q.insert(e)
		}
	}
	q.canceling = nil

	if len(q.active) > 0 {
		return q.rearm(q.active[0].expiration)
	}
	return q.disarm()
}

func (q *queue) Close() error {
	return unix.Close(q.fd)
}
