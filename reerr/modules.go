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

// Each core component owns a hundred-wide band of error codes so that a
// bare numeric code printed in a log line can be traced back to the owning
// package without a lookup table.
const (
	MinPkgBuffer     = 100
	MinPkgPoller     = 200
	MinPkgChannel    = 300
	MinPkgTimer      = 400
	MinPkgLoop       = 500
	MinPkgPool       = 600
	MinPkgSocket     = 700
	MinPkgAcceptor   = 800
	MinPkgConnector  = 900
	MinPkgTcpConn    = 1000
	MinPkgTcpServer  = 1100
	MinPkgTcpClient  = 1200
	MinPkgHttpCodec  = 1300
	MinPkgHttpServer = 1400
	MinPkgConfig     = 1500
	MinPkgLogger     = 1600

	MinAvailable = 2000
)
