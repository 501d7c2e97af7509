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

package reerr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Error extends the standard error with a component code and a parent
// chain, so a single returned value can carry the whole causal history
// of a failure across loop hops without losing the original cause.
type Error interface {
	error

	IsCode(code CodeError) bool
	HasCode(code CodeError) bool
	GetCode() CodeError

	HasParent() bool
	GetParent() []error
	Add(parent ...error)

	Unwrap() []error
}

type ers struct {
	c CodeError
	m string
	p []error
	f runtime.Frame
}

func newError(c CodeError, msg string, parent ...error) Error {
	var p []error
	for _, e := range parent {
		if e != nil {
			p = append(p, e)
		}
	}

	return &ers{
		c: c,
		m: msg,
		p: p,
		f: frame(),
	}
}

// New builds an Error with the given code and message.
func New(code CodeError, msg string, parent ...error) Error {
	return newError(code, msg, parent...)
}

// Newf builds an Error with the given code and a formatted message.
func Newf(code CodeError, pattern string, args ...any) Error {
	return newError(code, fmt.Sprintf(pattern, args...))
}

// Make wraps a plain error into an Error, preserving it unchanged if it
// already is one.
func Make(e error) Error {
	if e == nil {
		return nil
	}

	var err Error
	if errors.As(e, &err) {
		return err
	}

	return newError(UnknownError, e.Error())
}

func (e *ers) Error() string {
	if e.c == UnknownError {
		return e.m
	}
	return fmt.Sprintf("[%d] %s", e.c, e.m)
}

func (e *ers) IsCode(code CodeError) bool {
	return e.c == code
}

func (e *ers) HasCode(code CodeError) bool {
	if e.c == code {
		return true
	}
	for _, p := range e.p {
		if Has(p, code) {
			return true
		}
	}
	return false
}

func (e *ers) GetCode() CodeError {
	return e.c
}

func (e *ers) HasParent() bool {
	return len(e.p) > 0
}

func (e *ers) GetParent() []error {
	return e.p
}

func (e *ers) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.p = append(e.p, p)
		}
	}
}

func (e *ers) Unwrap() []error {
	return e.p
}

// Has reports whether e is an Error carrying the given code, anywhere in
// its parent chain.
func Has(e error, code CodeError) bool {
	if e == nil {
		return false
	}
	var err Error
	if errors.As(e, &err) {
		return err.HasCode(code)
	}
	return false
}

// Get returns e as an Error if it is one.
func Get(e error) Error {
	var err Error
	if errors.As(e, &err) {
		return err
	}
	return nil
}

// Trace renders the file:line of the first frame where this Error was
// constructed, for inclusion in log lines.
func (e *ers) Trace() string {
	if e.f.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.f.File, e.f.Line)
}

func frame() runtime.Frame {
	pc := make([]uintptr, 1)
	// skip: Callers, frame, newError, the exported constructor.
	if runtime.Callers(4, pc) == 0 {
		return runtime.Frame{}
	}
	f, _ := runtime.CallersFrames(pc).Next()
	return f
}

// JoinMessages concatenates the message of e and every parent, innermost
// last, for a one-line summary in logs.
func JoinMessages(e error) string {
	err := Get(e)
	if err == nil {
		if e == nil {
			return ""
		}
		return e.Error()
	}

	parts := []string{err.Error()}
	for _, p := range err.GetParent() {
		parts = append(parts, JoinMessages(p))
	}
	return strings.Join(parts, "; ")
}
