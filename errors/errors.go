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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDead indicates that the actor is no longer alive or has been terminated.
	ErrDead = errors.New("actor is not alive")

	// ErrNameTaken is returned when Registry.Add is called with an id already
	// present in the local table.
	ErrNameTaken = errors.New("id already exists in the process registry")

	// ErrMailboxFull is returned by a bounded mailbox when PostUserMessage
	// is called at capacity.
	ErrMailboxFull = errors.New("mailbox is full")

	// ErrUnhandled is returned when an actor receives a message it cannot handle.
	ErrUnhandled = errors.New("unhandled message")

	// ErrSystemShuttingDown is returned when a user operation is attempted
	// while the actor system is shutting down.
	ErrSystemShuttingDown = errors.New("actor system is shutting down")

	// ErrEndpointManagerStopped is returned by EndpointManager operations
	// issued once Stop has been called.
	ErrEndpointManagerStopped = errors.New("endpoint manager is stopped")

	// ErrRequestTimeout is returned when a request/reply call exceeds its
	// deadline without receiving a response.
	ErrRequestTimeout = errors.New("request timed out waiting for reply")

	// ErrClusterDisabled indicates an attempt to access cluster-specific
	// features when clustering is not enabled for the actor system.
	ErrClusterDisabled = errors.New("cluster is not enabled")

	// ErrActorNotFound is returned when a cluster lookup finds no registered
	// actor under the given name.
	ErrActorNotFound = errors.New("actor not found")

	// ErrNoPeers reports that no peers could be discovered. No function in
	// this module returns it.
	ErrNoPeers = errors.New("no peers discovered")

	// ErrEndpointQueueFull is returned when an Endpoint's bounded outbound
	// queue is at capacity; the send is failed rather than blocking the
	// caller (spec §4.G backpressure).
	ErrEndpointQueueFull = errors.New("endpoint outbound queue is full")

	// ErrEndpointBlocked is returned when a send is attempted against the
	// blocked sentinel endpoint.
	ErrEndpointBlocked = errors.New("endpoint address is blocked")
)

// AddressNotFoundError is returned when a PID's address cannot be resolved
// by any registered host resolver.
type AddressNotFoundError struct {
	Address string
}

func (e *AddressNotFoundError) Error() string {
	return fmt.Sprintf("address not found: %s", e.Address)
}

// NewAddressNotFoundError builds an AddressNotFoundError for address.
func NewAddressNotFoundError(address string) error {
	return &AddressNotFoundError{Address: address}
}

// ProtocolError wraps a malformed-envelope or unknown-type-tag condition
// encountered on an Endpoint's inbound path (spec §7 kind 4).
type ProtocolError struct {
	Reason string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// NewProtocolError builds a ProtocolError.
func NewProtocolError(reason string, cause error) error {
	return &ProtocolError{Reason: reason, Cause: cause}
}
