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

// Package reerr provides the reactor's error-code classification scheme:
// every component declares its own band of codes off a MinPkg constant,
// chains parent errors, and keeps a stack frame for the first throw site.
package reerr

import (
	"strconv"
	"sync"
)

// CodeError is a numeric error classification, analogous to an HTTP status
// code, unique to the component that raised it.
type CodeError uint16

const (
	// UnknownError is used when no specific code applies.
	UnknownError CodeError = 0
)

func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

func (c CodeError) String() string {
	return strconv.Itoa(int(c))
}

// Message renders the human-readable text registered for this code, or
// the empty string if no component has registered one.
func (c CodeError) Message() string {
	msgMu.RLock()
	defer msgMu.RUnlock()

	// Components register once, keyed by the first code of their band;
	// find the band whose start is the closest one not greater than c.
	var (
		found  bool
		band   CodeError
		bandFn Message
	)

	for k, f := range msgReg {
		if k <= c && (!found || k > band) {
			found, band, bandFn = true, k, f
		}
	}

	if !found {
		return ""
	}

	return bandFn(c)
}

// Error builds a new Error with this code and any given parent errors.
func (c CodeError) Error(parent ...error) Error {
	return newError(c, c.Message(), parent...)
}

// ErrorParent builds a new Error with this code, wrapping exactly one
// parent error and adopting its message when the code itself carries none.
func (c CodeError) ErrorParent(parent error) Error {
	msg := c.Message()
	if msg == "" && parent != nil {
		msg = parent.Error()
	}
	return newError(c, msg, parent)
}

type Message func(code CodeError) string

var (
	msgMu  sync.RWMutex
	msgReg = make(map[CodeError]Message)
)

// RegisterMessage installs the message function for every code of a
// component; components call this from an init() keyed on their first
// declared code, mirroring the teacher's RegisterIdFctMessage.
func RegisterMessage(first CodeError, fct Message) {
	msgMu.Lock()
	defer msgMu.Unlock()
	msgReg[first] = fct
}
