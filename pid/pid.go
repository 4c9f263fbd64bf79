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

// Package pid defines the routing token used throughout the runtime to
// address an actor: a triple of (address, id, request id).
package pid

import (
	"fmt"
	"strings"
)

// ClientPrefix marks identities belonging to peers that connect outbound
// only and have no stable, dialable address (spec: "a special prefix marks
// client identities").
const ClientPrefix = "$client/"

// ActivatorName is the distinguished system actor that hosts remote actor
// spawning on every node.
const ActivatorName = "$activator"

// PID is the identity triple (address, id, requestId?). Two PIDs are equal
// iff address and id are equal; RequestID never participates in equality,
// it only disambiguates in-flight request/reply correlation.
type PID struct {
	Address   string
	ID        string
	RequestID string
}

// New builds a PID for a local or remote actor living at address, known by
// id.
func New(address, id string) PID {
	return PID{Address: address, ID: id}
}

// WithRequestID returns a copy of the PID carrying the given correlation
// id, used to route an async reply back to the exact waiter.
func (p PID) WithRequestID(requestID string) PID {
	p.RequestID = requestID
	return p
}

// IsClient reports whether this identity is a client-style peer, i.e. one
// that connects outbound only and has no stable address.
func (p PID) IsClient() bool {
	return strings.HasPrefix(p.Address, ClientPrefix)
}

// IsZero reports whether p is the zero-value PID, useful as a poor man's
// "no sender" marker.
func (p PID) IsZero() bool {
	return p.Address == "" && p.ID == ""
}

// Equals implements the spec's equality rule: two PIDs are equal iff
// address and id are equal.
func (p PID) Equals(other PID) bool {
	return p.Address == other.Address && p.ID == other.ID
}

// String renders the PID as "address/id", matching the teacher's
// Address.String() convention of slash-joining host and actor name, with
// a "?rid=<RequestID>" suffix when RequestID is set.
func (p PID) String() string {
	if p.RequestID != "" {
		return fmt.Sprintf("%s/%s?rid=%s", p.Address, p.ID, p.RequestID)
	}
	return fmt.Sprintf("%s/%s", p.Address, p.ID)
}
