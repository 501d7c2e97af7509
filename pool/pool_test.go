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

package pool_test

import (
	"testing"
	"time"

	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/pool"
)

func TestZeroThreadsUsesBaseLoop(t *testing.T) {
	base, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new base loop: %v", err)
	}
	defer base.Close()

	p := pool.New(base, nil)
	if err := p.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	if p.GetNextLoop() != base {
		t.Fatal("expected the base loop when no worker threads are configured")
	}
}

func TestRoundRobinAcrossWorkers(t *testing.T) {
	base, err := loop.New(nil)
	if err != nil {
		t.Fatalf("new base loop: %v", err)
	}
	defer base.Close()

	p := pool.New(base, nil)
	p.SetThreadNum(2)

	go func() { _ = base.Run() }()
	defer base.Quit()

	if err := p.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		_ = p.Stop()
	}()

	first := p.GetNextLoop()
	second := p.GetNextLoop()
	third := p.GetNextLoop()

	if first == second {
		t.Fatal("expected round-robin to alternate across workers")
	}
	if first != third {
		t.Fatal("expected round-robin to wrap back to the first worker")
	}

	time.Sleep(10 * time.Millisecond)
}
