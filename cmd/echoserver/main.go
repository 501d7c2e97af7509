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

// Command echoserver runs the reactor's echo scenario: every byte a client
// sends comes straight back.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

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
		Use:   "echoserver",
		Short: "Run the reactor echo server",
		Long:  "echoserver binds a TcpServer and echoes every byte it receives back to the sender.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file (default: ~/.reactor/echoserver.yaml)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg := rconfig.DefaultServer("127.0.0.1:9000")
	if err := bootstrap.LoadConfig(cfgPath, "echoserver", &cfg); err != nil {
		return err
	}
	if verr := cfg.Validate(); verr != nil {
		return verr
	}

	bootstrap.Banner("echoserver", "1.0")

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

	srv.SetConnectionCallback(func(c tcpconn.TcpConnection) {
		if c.Connected() {
			log.Info(nil, "echoserver: %s connected", c.Name())
		} else {
			log.Info(nil, "echoserver: %s disconnected", c.Name())
		}
	})
	srv.SetMessageCallback(func(c tcpconn.TcpConnection, in buffer.Buffer, _ time.Time) {
		data := append([]byte(nil), in.Peek()...)
		in.RetrieveAll()
		c.Send(data)
	})

	if serr := srv.Start(); serr != nil {
		return serr
	}

	listenAddr, _ := srv.Addr()
	bootstrap.StatusLine(os.Stdout, true, fmt.Sprintf("listening on %s", listenAddr.ToIPPort()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	return srv.Stop()
}
