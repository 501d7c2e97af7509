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

// Package rconfig holds the one-shot, validated option structs for the
// reactor's server/client/loop components. It is deliberately thin: no
// file-watching hot-reload (the spec rules out hot-reloading listeners)
// and no routing/REST layer (out of scope as application glue).
package rconfig

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nabbar/reactor/reerr"
)

// Loop configures a LoopThreadPool.
type Loop struct {
	// NumThreads is the number of worker loops to host, one per OS thread.
	// Zero means the base loop is the only loop.
	NumThreads int `mapstructure:"num_threads" yaml:"num_threads" validate:"gte=0"`
}

// Server configures a TcpServer's Acceptor and connection defaults.
type Server struct {
	Name          string        `mapstructure:"name" yaml:"name"`
	Listen        string        `mapstructure:"listen" yaml:"listen" validate:"required,hostname_port"`
	ReusePort     bool          `mapstructure:"reuse_port" yaml:"reuse_port"`
	HighWaterMark int64         `mapstructure:"high_water_mark" yaml:"high_water_mark" validate:"gte=0"`
	TCPNoDelay    bool          `mapstructure:"tcp_no_delay" yaml:"tcp_no_delay"`
	ShutdownWait  time.Duration `mapstructure:"shutdown_wait" yaml:"shutdown_wait" validate:"gte=0"`
	Loop          Loop          `mapstructure:"loop" yaml:"loop"`
}

// Connector configures a TcpClient's Connector retry behavior.
type Connector struct {
	Addr           string        `mapstructure:"addr" yaml:"addr" validate:"required,hostname_port"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" validate:"gte=0"`
	Retry          bool          `mapstructure:"retry" yaml:"retry"`
}

// DefaultServer returns a Server config with the spec's defaults: a 64 MiB
// high-water mark and no worker threads (single-loop mode).
func DefaultServer(listen string) Server {
	return Server{
		Name:          listen,
		Listen:        listen,
		HighWaterMark: 64 * 1024 * 1024,
		ShutdownWait:  10 * time.Second,
	}
}

// DefaultConnector returns a Connector config with the spec's backoff
// schedule: 500ms initial, doubling to a 30s cap.
func DefaultConnector(addr string) Connector {
	return Connector{
		Addr:           addr,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Retry:          true,
	}
}

func validateStruct(code reerr.CodeError, v any) reerr.Error {
	val := validator.New()
	err := val.Struct(v)
	if err == nil {
		return nil
	}

	if e, ok := err.(*validator.InvalidValidationError); ok {
		return code.ErrorParent(e)
	}

	out := code.Error(nil)
	for _, e := range err.(validator.ValidationErrors) {
		out.Add(fmt.Errorf("field %q failed constraint %q", e.Field(), e.ActualTag()))
	}

	return out
}

func (c Loop) Validate() reerr.Error {
	return validateStruct(ErrorValidate, c)
}

func (c Server) Validate() reerr.Error {
	return validateStruct(ErrorValidate, c)
}

func (c Connector) Validate() reerr.Error {
	return validateStruct(ErrorValidate, c)
}
