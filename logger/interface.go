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

// Package logger is the injectable log sink every reactor component emits
// structured events through. The default implementation wraps logrus;
// logger/hclogbridge and logger/jwwbridge let a host plug in its own.
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nabbar/reactor/logger/level"
)

// Fields are structured key/value pairs attached to one log entry.
type Fields map[string]any

// Logger is the sink every component logs through. FATAL entries must
// abort the process after flushing, per the spec's six-level sink.
type Logger interface {
	SetLevel(lvl level.Level)
	GetLevel() level.Level

	Logf(lvl level.Level, fields Fields, pattern string, args ...any)

	Trace(fields Fields, pattern string, args ...any)
	Debug(fields Fields, pattern string, args ...any)
	Info(fields Fields, pattern string, args ...any)
	Warn(fields Fields, pattern string, args ...any)
	Error(fields Fields, pattern string, args ...any)

	// Fatal logs then invokes any registered FatalHook before calling
	// os.Exit(1), giving callers a chance to flush other sinks first.
	Fatal(fields Fields, pattern string, args ...any)

	// SetFatalHook installs a function run just before Fatal aborts.
	SetFatalHook(hook func())
}

type lgr struct {
	lvl level.Level
	log *logrus.Logger
	hk  func()
}

// New returns a Logger backed by a fresh logrus.Logger at InfoLevel.
func New() Logger {
	l := logrus.New()
	l.SetLevel(level.InfoLevel.Logrus())

	return &lgr{
		lvl: level.InfoLevel,
		log: l,
	}
}

func (l *lgr) SetLevel(lvl level.Level) {
	l.lvl = lvl
	l.log.SetLevel(lvl.Logrus())
}

func (l *lgr) GetLevel() level.Level {
	return l.lvl
}

func (l *lgr) SetFatalHook(hook func()) {
	l.hk = hook
}

func (l *lgr) Logf(lvl level.Level, fields Fields, pattern string, args ...any) {
	e := l.log.WithFields(logrus.Fields(fields))
	msg := fmt.Sprintf(pattern, args...)

	switch lvl {
	case level.TraceLevel:
		e.Trace(msg)
	case level.DebugLevel:
		e.Debug(msg)
	case level.InfoLevel:
		e.Info(msg)
	case level.WarnLevel:
		e.Warn(msg)
	case level.ErrorLevel:
		e.Error(msg)
	case level.FatalLevel:
		e.Error(msg)
		if l.hk != nil {
			l.hk()
		}
		l.log.Exit(1)
	}
}

func (l *lgr) Trace(fields Fields, pattern string, args ...any) {
	l.Logf(level.TraceLevel, fields, pattern, args...)
}

func (l *lgr) Debug(fields Fields, pattern string, args ...any) {
	l.Logf(level.DebugLevel, fields, pattern, args...)
}

func (l *lgr) Info(fields Fields, pattern string, args ...any) {
	l.Logf(level.InfoLevel, fields, pattern, args...)
}

func (l *lgr) Warn(fields Fields, pattern string, args ...any) {
	l.Logf(level.WarnLevel, fields, pattern, args...)
}

func (l *lgr) Error(fields Fields, pattern string, args ...any) {
	l.Logf(level.ErrorLevel, fields, pattern, args...)
}

func (l *lgr) Fatal(fields Fields, pattern string, args ...any) {
	l.Logf(level.FatalLevel, fields, pattern, args...)
}

// Nop returns a Logger that discards everything, useful in tests.
func Nop() Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return &lgr{lvl: level.FatalLevel, log: l}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
