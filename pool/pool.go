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

// Package pool hosts N worker threads, each running its own loop.Loop, and
// distributes new connections across them round-robin or by hash.
package pool

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/reerr"
)

// Pool owns a set of worker loops, one per OS thread, and the base loop
// that constructed it.
type Pool interface {
	SetThreadNum(n int)

	// Start must run on the base loop. With zero worker threads, the
	// base loop is the pool's only loop.
	Start(initCb func(l loop.Loop)) reerr.Error

	GetNextLoop() loop.Loop
	GetLoopForHash(h uint64) loop.Loop
	GetAllLoops() []loop.Loop

	// Stop asks every worker loop to quit and waits for their Run
	// goroutines to return.
	Stop() error
}

type pl struct {
	base loop.Loop
	log  logger.Logger

	numThreads int
	loops      []loop.Loop
	next       atomic.Uint64
	started    atomic.Bool

	eg *errgroup.Group
}

// New returns a Pool anchored on base. base is included as the last loop
// in GetAllLoops when numThreads is zero.
func New(base loop.Loop, log logger.Logger) Pool {
	if log == nil {
		log = logger.Nop()
	}
	return &pl{base: base, log: log}
}

func (p *pl) SetThreadNum(n int) {
	p.numThreads = n
}

func (p *pl) Start(initCb func(l loop.Loop)) reerr.Error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrorAlreadyStarted.Error(nil)
	}

	if p.numThreads == 0 {
		p.loops = []loop.Loop{p.base}
		if initCb != nil {
			initCb(p.base)
		}
		return nil
	}

	p.loops = make([]loop.Loop, p.numThreads)
	p.eg = &errgroup.Group{}

	// boot is a short-lived errgroup used only to wait for every worker
	// to signal readiness, instead of a hand-rolled WaitGroup+mutex.
	var boot errgroup.Group

	for i := 0; i < p.numThreads; i++ {
		l, err := loop.New(p.log)
		if err != nil {
			return err
		}
		p.loops[i] = l

		ready := make(chan struct{})
		boot.Go(func() error {
			<-ready
			return nil
		})

		p.eg.Go(func() error {
			if initCb != nil {
				initCb(l)
			}
			close(ready)
			return l.Run()
		})
	}

	_ = boot.Wait()
	return nil
}

func (p *pl) GetNextLoop() loop.Loop {
	if len(p.loops) == 0 {
		return p.base
	}
	i := p.next.Add(1) - 1
	return p.loops[i%uint64(len(p.loops))]
}

func (p *pl) GetLoopForHash(h uint64) loop.Loop {
	if len(p.loops) == 0 {
		return p.base
	}
	return p.loops[h%uint64(len(p.loops))]
}

func (p *pl) GetAllLoops() []loop.Loop {
	if len(p.loops) == 0 {
		return []loop.Loop{p.base}
	}
	return p.loops
}

func (p *pl) Stop() error {
	if p.eg == nil {
		return nil
	}
	for _, l := range p.loops {
		l.Quit()
	}
	return p.eg.Wait()
}
