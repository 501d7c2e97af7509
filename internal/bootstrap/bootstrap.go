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

// Package bootstrap holds the bits shared by every cmd/ binary: viper-based
// config loading rooted at the user's home directory, and a colored startup
// banner gated on terminal capability.
package bootstrap

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/nabbar/reactor/socket"
)

// LoadConfig reads a YAML config file into out. If path is empty it looks
// for "<homedir>/.reactor/<name>.yaml"; a missing file at the default
// location is not an error, out is simply left unchanged.
func LoadConfig(path, name string, out any) error {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		v.AddConfigPath(filepath.Join(home, ".reactor"))
		v.SetConfigName(name)
	}

	if err := v.ReadInConfig(); err != nil {
		if path == "" {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				return nil
			}
		}
		return err
	}

	return v.Unmarshal(out)
}

// SplitListen turns a "host:port" config value into a socket.Address,
// resolving the host via DNS if it isn't already a literal IP.
func SplitListen(listen string) (socket.Address, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return socket.Address{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return socket.Address{}, err
	}
	if host == "" || net.ParseIP(host) != nil {
		return socket.NewAddress(host, port), nil
	}

	addr, aerr := socket.Resolve(host, port)
	if aerr != nil {
		return socket.Address{}, aerr
	}
	return addr, nil
}

// Banner writes a colored startup banner to stdout, falling back to plain
// text when stdout isn't a terminal.
func Banner(program, version string) {
	out := colorable.NewColorableStdout()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		_, _ = fmt.Fprintf(out, "%s %s\n", program, version)
		return
	}

	bold := color.New(color.FgCyan, color.Bold)
	_, _ = bold.Fprintf(out, "%s", program)
	_, _ = fmt.Fprintf(out, " %s\n", version)
}

// StatusLine prints a green "ok" or red "fail" prefixed status line to w,
// falling back to plain text when stdout isn't a terminal.
func StatusLine(w io.Writer, ok bool, msg string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		_, _ = fmt.Fprintln(w, msg)
		return
	}

	if ok {
		_, _ = color.New(color.FgGreen).Fprint(w, "[ok] ")
	} else {
		_, _ = color.New(color.FgRed).Fprint(w, "[fail] ")
	}
	_, _ = fmt.Fprintln(w, msg)
}
