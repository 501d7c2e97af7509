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

// Package hclogbridge adapts a github.com/hashicorp/go-hclog.Logger into
// the reactor's logger.Logger sink, for hosts already standardized on
// hclog (e.g. Nomad/Consul-style plugins embedding this library).
package hclogbridge

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/logger/level"
)

type bridge struct {
	l   hclog.Logger
	lvl level.Level
	hk  func()
}

// New wraps an existing hclog.Logger as a reactor logger.Logger.
func New(l hclog.Logger) logger.Logger {
	return &bridge{l: l, lvl: level.InfoLevel}
}

func (b *bridge) SetLevel(lvl level.Level) {
	b.lvl = lvl

	switch lvl {
	case level.TraceLevel:
		b.l.SetLevel(hclog.Trace)
	case level.DebugLevel:
		b.l.SetLevel(hclog.Debug)
	case level.InfoLevel:
		b.l.SetLevel(hclog.Info)
	case level.WarnLevel:
		b.l.SetLevel(hclog.Warn)
	case level.ErrorLevel, level.FatalLevel:
		b.l.SetLevel(hclog.Error)
	}
}

func (b *bridge) GetLevel() level.Level {
	return b.lvl
}

func (b *bridge) SetFatalHook(hook func()) {
	b.hk = hook
}

func fieldArgs(f logger.Fields) []interface{} {
	args := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		args = append(args, k, v)
	}
	return args
}

func (b *bridge) Logf(lvl level.Level, fields logger.Fields, pattern string, args ...any) {
	msg := fmt.Sprintf(pattern, args...)
	kv := fieldArgs(fields)

	switch lvl {
	case level.TraceLevel:
		b.l.Trace(msg, kv...)
	case level.DebugLevel:
		b.l.Debug(msg, kv...)
	case level.InfoLevel:
		b.l.Info(msg, kv...)
	case level.WarnLevel:
		b.l.Warn(msg, kv...)
	case level.ErrorLevel:
		b.l.Error(msg, kv...)
	case level.FatalLevel:
		b.l.Error(msg, kv...)
		if b.hk != nil {
			b.hk()
		}
		os.Exit(1)
	}
}

func (b *bridge) Trace(f logger.Fields, pattern string, args ...any) {
	b.Logf(level.TraceLevel, f, pattern, args...)
}
func (b *bridge) Debug(f logger.Fields, pattern string, args ...any) {
	b.Logf(level.DebugLevel, f, pattern, args...)
}
func (b *bridge) Info(f logger.Fields, pattern string, args ...any) {
	b.Logf(level.InfoLevel, f, pattern, args...)
}
func (b *bridge) Warn(f logger.Fields, pattern string, args ...any) {
	b.Logf(level.WarnLevel, f, pattern, args...)
}
func (b *bridge) Error(f logger.Fields, pattern string, args ...any) {
	b.Logf(level.ErrorLevel, f, pattern, args...)
}
func (b *bridge) Fatal(f logger.Fields, pattern string, args ...any) {
	b.Logf(level.FatalLevel, f, pattern, args...)
}
