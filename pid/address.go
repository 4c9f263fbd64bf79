// MIT License
//
// Copyright (c) 2022-2026 Relay Contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package pid

import (
	"fmt"
	"net"
	"strconv"
)

// ParseHostPort validates the "host:port" address syntax used for server
// peers (spec §6 Address syntax) and returns the parsed port.
func ParseHostPort(address string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, fmt.Errorf("pid: invalid address %q: %w", address, err)
	}
	port, err = strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("pid: invalid port in address %q: %w", address, err)
	}
	return h, port, nil
}

// JoinHostPort formats a server address from its host and port, mirroring
// net.JoinHostPort but kept local so callers only depend on this package
// for address formatting conventions.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ClientAddress synthesizes the address of a client-style peer identified
// only by its peer system id, e.g. "$client/<systemID>".
func ClientAddress(systemID string) string {
	return ClientPrefix + systemID
}

// ClientSystemID extracts the peer system id from a client-style address.
// ok is false when address does not carry the client prefix.
func ClientSystemID(address string) (systemID string, ok bool) {
	if len(address) <= len(ClientPrefix) || address[:len(ClientPrefix)] != ClientPrefix {
		return "", false
	}
	return address[len(ClientPrefix):], true
}
