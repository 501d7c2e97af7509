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

// Package httpserver adapts a TcpServer into an HTTP/1.x server by stashing
// one httpcodec.Codec per connection in its Context and driving it from the
// connection's message callback.
package httpserver

import (
	"time"

	"github.com/nabbar/reactor/buffer"
	"github.com/nabbar/reactor/httpcodec"
	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/rconfig"
	"github.com/nabbar/reactor/reerr"
	"github.com/nabbar/reactor/socket"
	"github.com/nabbar/reactor/tcpconn"
	"github.com/nabbar/reactor/tcpserver"
)

// Handler produces a response for a fully parsed request.
type Handler func(req *httpcodec.HttpRequest) *httpcodec.HttpResponse

// HttpServer is a TcpServer that speaks HTTP/1.x: every live connection gets
// its own httpcodec.Codec, fed from incoming bytes until a full request is
// parsed, dispatched to Handler, and replied to.
type HttpServer interface {
	Start() reerr.Error
	Stop() error

	Name() string
	Addr() (socket.Address, reerr.Error)
	ConnectionCount() int
}

type srv struct {
	ts      tcpserver.TcpServer
	log     logger.Logger
	handler Handler
}

// New builds an HttpServer bound to l, listening on addr per cfg, and
// dispatching complete requests to handler.
func New(l loop.Loop, log logger.Logger, addr socket.Address, cfg rconfig.Server, handler Handler) (HttpServer, reerr.Error) {
	if log == nil {
		log = logger.Nop()
	}

	ts, err := tcpserver.New(l, log, addr, cfg)
	if err != nil {
		return nil, err
	}

	s := &srv{ts: ts, log: log, handler: handler}
	ts.SetConnectionCallback(s.onConnection)
	ts.SetMessageCallback(s.onMessage)

	return s, nil
}

func (s *srv) Name() string                          { return s.ts.Name() }
func (s *srv) Addr() (socket.Address, reerr.Error)    { return s.ts.Addr() }
func (s *srv) ConnectionCount() int                   { return s.ts.ConnectionCount() }
func (s *srv) Start() reerr.Error                     { return s.ts.Start() }
func (s *srv) Stop() error                            { return s.ts.Stop() }

func (s *srv) onConnection(c tcpconn.TcpConnection) {
	if c.Connected() {
		c.SetContext(httpcodec.NewCodec())
	}
}

func (s *srv) onMessage(c tcpconn.TcpConnection, in buffer.Buffer, receiveTime time.Time) {
	codec, ok := c.Context().(httpcodec.Codec)
	if !ok {
		c.ForceClose()
		return
	}

	for {
		done, perr := codec.ParseRequest(in, receiveTime)
		if perr != nil {
			s.log.Warn(nil, "httpserver %s: %s: %s", s.ts.Name(), c.Name(), perr.Error())
			c.Send(httpcodec.FormatBadRequest())
			c.Shutdown()
			return
		}
		if !done {
			return
		}

		req := codec.Request()
		resp := s.dispatch(req)
		resp.SetCloseConnection(resp.Close || req.Close)

		c.Send(httpcodec.Format(resp))
		if resp.Close {
			c.Shutdown()
			return
		}

		codec.Reset()
	}
}

func (s *srv) dispatch(req *httpcodec.HttpRequest) *httpcodec.HttpResponse {
	if s.handler == nil {
		return notFound()
	}
	resp := s.handler(req)
	if resp == nil {
		resp = notFound()
	}
	return resp
}

func notFound() *httpcodec.HttpResponse {
	resp := httpcodec.NewResponse()
	resp.SetStatusCode(404)
	resp.SetBody([]byte("Not Found"))
	return resp
}
