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

// Package jwwbridge installs a reactor logger.Logger as the output sink of
// the global github.com/spf13/jwalterweatherman logger, the same bridge
// the teacher exposes as Logger.SetSPF13Level, so Cobra/Viper diagnostics
// (used by the cmd/ binaries) land in the reactor's own sink instead of
// jww's default writers; jww's stdout output is discarded.
package jwwbridge

import (
	"io"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/nabbar/reactor/logger"
	"github.com/nabbar/reactor/logger/level"
)

// writer adapts a logger.Logger into an io.Writer, the shape jww expects
// for SetLogOutput/SetStdoutOutput.
type writer struct {
	l   logger.Logger
	lvl level.Level
}

func (w writer) Write(p []byte) (int, error) {
	w.l.Logf(w.lvl, nil, "%s", string(p))
	return len(p), nil
}

// Install points jww's global log output at l, discards jww's stdout
// output, and sets jww's log threshold to the equivalent of lvl.
func Install(l logger.Logger, lvl level.Level) {
	out := writer{l: l, lvl: lvl}

	jww.SetStdoutOutput(io.Discard)
	jww.SetLogOutput(out)

	switch lvl {
	case level.TraceLevel:
		jww.SetLogThreshold(jww.LevelTrace)
	case level.DebugLevel:
		jww.SetLogThreshold(jww.LevelDebug)
	case level.InfoLevel:
		jww.SetLogThreshold(jww.LevelInfo)
	case level.WarnLevel:
		jww.SetLogThreshold(jww.LevelWarn)
	case level.ErrorLevel:
		jww.SetLogThreshold(jww.LevelError)
	case level.FatalLevel:
		jww.SetLogThreshold(jww.LevelFatal)
	}
}
