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

package channel_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/channel"
)

type fakeLoop struct {
	updated int
	removed int
}

func (f *fakeLoop) UpdateChannel(ch channel.Channel) { f.updated++ }
func (f *fakeLoop) RemoveChannel(ch channel.Channel) { f.removed++ }
func (f *fakeLoop) AssertInLoopThread()              {}

type fakeTie struct{ alive bool }

func (f fakeTie) Resolve() (any, bool) {
	if !f.alive {
		return nil, false
	}
	return f, true
}

func TestEnableDisable(t *testing.T) {
	lp := &fakeLoop{}
	ch := channel.New(lp, 3)

	if !ch.IsNoneEvent() {
		t.Fatal("expected no interest on a fresh channel")
	}

	ch.EnableReading()
	if !ch.IsReading() {
		t.Fatal("expected reading to be enabled")
	}
	if lp.updated != 1 {
		t.Fatalf("expected one update call, got %d", lp.updated)
	}

	ch.DisableAll()
	if !ch.IsNoneEvent() {
		t.Fatal("expected no interest after DisableAll")
	}
}

func TestHandleEventDispatch(t *testing.T) {
	lp := &fakeLoop{}
	ch := channel.New(lp, 3)

	var gotRead, gotWrite, gotClose bool
	ch.SetReadCallback(func(time.Time) { gotRead = true })
	ch.SetWriteCallback(func() { gotWrite = true })
	ch.SetCloseCallback(func() { gotClose = true })

	ch.SetRevents(unix.EPOLLIN)
	if err := ch.HandleEvent(time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotRead || gotWrite || gotClose {
		t.Fatalf("expected only read callback to fire")
	}

	gotRead = false
	ch.SetRevents(unix.EPOLLHUP)
	_ = ch.HandleEvent(time.Now())
	if !gotClose {
		t.Fatal("expected HUP without IN to invoke close callback")
	}
}

func TestHandleEventDropsWhenTieExpired(t *testing.T) {
	lp := &fakeLoop{}
	ch := channel.New(lp, 3)
	ch.Tie(fakeTie{alive: false})

	called := false
	ch.SetReadCallback(func(time.Time) { called = true })
	ch.SetRevents(unix.EPOLLIN)

	_ = ch.HandleEvent(time.Now())
	if called {
		t.Fatal("expected event to be dropped when the tie fails to resolve")
	}
}
