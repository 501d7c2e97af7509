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

// Command httpdemo runs a tiny HTTP/1.x server over the reactor, demoing
// the happy-path/bad-request scenarios.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nabbar/reactor/httpcodec"
	"github.com/nabbar/reactor/httpserver"
	"github.com/nabbar/reactor/internal/bootstrap"
	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/rconfig"
)

func main() {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "httpdemo",
		Short: "Run a tiny HTTP demo server over the reactor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file (default: ~/.reactor/httpdemo.yaml)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handle(req *httpcodec.HttpRequest) *httpcodec.HttpResponse {
	resp := httpcodec.NewResponse()

	switch req.Path {
	case "/":
		resp.SetStatusCode(200)
		resp.SetBody([]byte("reactor httpdemo\n"))
	case "/echo":
		resp.SetStatusCode(200)
		resp.SetBody(req.Body)
	default:
		resp.SetStatusCode(404)
		resp.SetBody([]byte("not found\n"))
	}

	return resp
}

func run(cfgPath string) error {
	cfg := rconfig.DefaultServer("127.0.0.1:8080")
	if err := bootstrap.LoadConfig(cfgPath, "httpdemo", &cfg); err != nil {
		return err
	}
	if verr := cfg.Validate(); verr != nil {
		return verr
	}

	bootstrap.Banner("httpdemo", "1.0")

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

	srv, serr := httpserver.New(l, log, addr, cfg, handle)
	if serr != nil {
		return serr
	}

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
