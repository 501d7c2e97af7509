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

// Command reactorctl is a live TUI dashboard over a running TcpServer's
// name, listen address, and connection count.
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/internal/bootstrap"
	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/rconfig"
	"github.com/nabbar/reactor/tcpconn"
	"github.com/nabbar/reactor/tcpserver"
)

func main() {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "reactorctl",
		Short: "Run the reactor echo server under a live TUI dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file (default: ~/.reactor/reactorctl.yaml)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg := rconfig.DefaultServer("127.0.0.1:9001")
	cfg.Loop.NumThreads = 4
	if err := bootstrap.LoadConfig(cfgPath, "reactorctl", &cfg); err != nil {
		return err
	}
	if verr := cfg.Validate(); verr != nil {
		return verr
	}

	log := logger.New()

	l, err := loop.New(nil)
	if err != nil {
		return err
	}
	go func() { _ = l.Run() }()
	defer l.Quit()

	addr, aerr := bootstrap.SplitListen(cfg.Listen)
	if aerr != nil {
		return aerr
	}

	srv, serr := tcpserver.New(l, log, addr, cfg)
	if serr != nil {
		return serr
	}

	srv.SetMessageCallback(func(c tcpconn.TcpConnection, in buffer.Buffer, _ time.Time) {
		data := append([]byte(nil), in.Peek()...)
		in.RetrieveAll()
		c.Send(data)
	})

	if serr := srv.Start(); serr != nil {
		return serr
	}
	defer srv.Stop()

	p := tea.NewProgram(newDashboard(srv))
	_, terr := p.Run()
	return terr
}
