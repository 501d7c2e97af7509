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

// Command loadtest drives the reactor's ping-pong concurrency scenario
// against a running echoserver: a configurable number of clients each send
// fixed-size blocks in a loop for a fixed duration, reporting throughput
// via a live progress bar.
package main

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/nabbar/reactor/internal/bootstrap"
)

func main() {
	var (
		target   string
		clients  int
		blockLen int
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a ping-pong load test against a reactor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(target, clients, blockLen, duration)
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "127.0.0.1:9000", "address of the server to hammer")
	cmd.Flags().IntVarP(&clients, "clients", "n", 100, "number of concurrent clients")
	cmd.Flags().IntVarP(&blockLen, "block", "b", 256, "bytes per block sent per round-trip")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 5*time.Second, "how long each client runs")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(target string, clients, blockLen int, duration time.Duration) error {
	bootstrap.Banner("loadtest", "1.0")

	var sent, recv, errs atomic.Int64

	p := mpb.New(mpb.WithWidth(48))
	bar := p.AddBar(int64(duration/time.Millisecond),
		mpb.PrependDecorators(decor.Name("ping-pong ")),
		mpb.AppendDecorators(decor.Percentage()),
	)

	done := make(chan struct{})
	for i := 0; i < clients; i++ {
		go pingPongClient(target, blockLen, duration, &sent, &recv, &errs, done)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		<-ticker.C
		bar.IncrBy(100)
	}
	bar.SetCurrent(int64(duration / time.Millisecond))

	for i := 0; i < clients; i++ {
		<-done
	}
	p.Wait()

	bootstrap.StatusLine(os.Stdout, errs.Load() == 0,
		fmt.Sprintf("sent=%d recv=%d errors=%d", sent.Load(), recv.Load(), errs.Load()))

	return nil
}

// pingPongClient dials target, then writes and reads a blockLen-byte block
// in a loop until duration elapses, accumulating byte counters.
func pingPongClient(target string, blockLen int, duration time.Duration, sent, recv, errs *atomic.Int64, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	conn, err := net.DialTimeout("tcp", target, 2*time.Second)
	if err != nil {
		errs.Add(1)
		return
	}
	defer conn.Close()

	block := make([]byte, blockLen)
	buf := make([]byte, blockLen)
	deadline := time.Now().Add(duration)

	for time.Now().Before(deadline) {
		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

		n, werr := conn.Write(block)
		if werr != nil {
			errs.Add(1)
			return
		}
		sent.Add(int64(n))

		read := 0
		for read < blockLen {
			m, rerr := conn.Read(buf[read:])
			if rerr != nil {
				errs.Add(1)
				return
			}
			read += m
		}
		recv.Add(int64(read))
	}
}
