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

// Package socket wraps OS sockets and dual-stack addresses behind thin,
// semantic types so the rest of the reactor never touches a raw fd or
// sockaddr directly.
package socket

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/nabbar/reactor/reerr"
)

// Address is a discriminated union over IPv4 and IPv6 sockaddr forms.
// Network-byte-order is handled entirely inside Sockaddr/FromSockaddr;
// every other accessor deals in host-order ints and dotted/colon text.
type Address struct {
	ip   net.IP
	port int
	v6   bool
}

// NewAddress builds an Address from a textual IP (or empty, meaning the
// wildcard address) and a port.
func NewAddress(ip string, port int) Address {
	if ip == "" {
		return Address{ip: net.IPv4zero, port: port}
	}

	parsed := net.ParseIP(ip)
	isV6 := parsed != nil && parsed.To4() == nil

	return Address{ip: parsed, port: port, v6: isV6}
}

// Resolve blocks on a DNS/hosts lookup of host and returns its first
// address combined with port.
func Resolve(host string, port int) (Address, reerr.Error) {
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return Address{}, ErrorResolve.ErrorParent(err)
	}

	ip := ips[0]
	return Address{ip: ip, port: port, v6: ip.To4() == nil}, nil
}

func (a Address) Family() int {
	if a.v6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func (a Address) Port() int { return a.port }

func (a Address) ToIP() string {
	if a.ip == nil {
		return ""
	}
	return a.ip.String()
}

func (a Address) ToIPPort() string {
	return net.JoinHostPort(a.ToIP(), strconv.Itoa(a.port))
}

func (a Address) String() string {
	return a.ToIPPort()
}

func (a Address) IsLoopback() bool {
	return a.ip != nil && a.ip.IsLoopback()
}

// Equal reports whether two addresses name the same endpoint, used by the
// Connector to detect a self-connect.
func (a Address) Equal(b Address) bool {
	return a.port == b.port && a.ip.Equal(b.ip)
}

// Sockaddr renders the address as a unix.Sockaddr suitable for bind/
// connect.
func (a Address) Sockaddr() unix.Sockaddr {
	if a.v6 {
		var sa unix.SockaddrInet6
		sa.Port = a.port
		copy(sa.Addr[:], a.ip.To16())
		return &sa
	}

	var sa unix.SockaddrInet4
	sa.Port = a.port
	ip4 := a.ip.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	copy(sa.Addr[:], ip4)
	return &sa
}

// FromSockaddr converts a raw unix.Sockaddr (as returned by Getsockname/
// Getpeername/Accept4) back into an Address.
func FromSockaddr(sa unix.Sockaddr) (Address, reerr.Error) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return Address{ip: net.IP(s.Addr[:]).To16(), port: s.Port, v6: false}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, s.Addr[:])
		return Address{ip: ip, port: s.Port, v6: true}, nil
	default:
		return Address{}, ErrorResolve.Error(nil)
	}
}
