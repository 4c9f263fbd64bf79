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

// Package discovery implements Component I: the seed/membership provider
// abstraction and its concrete plugins. The core consumes only
// MemberJoined/MemberLeft events derived from a Provider; concrete
// discovery mechanisms are external collaborators (spec §4.I).
package discovery

// Config carries provider-specific settings as a flat string map, kept
// deliberately untyped so SetConfig stays a single narrow seam between
// the provider and whatever configuration source constructs it.
type Config map[string]string

// Provider discovers the peers an actor system should gossip with.
type Provider interface {
	// ID returns the provider's name, for logging and diagnostics.
	ID() string
	// Initialize prepares internal state (clients, caches) without yet
	// announcing this node.
	Initialize() error
	// Register announces this node to the discovery directory.
	Register() error
	// Deregister removes this node from the discovery directory.
	Deregister() error
	// SetConfig installs provider-specific configuration. Called before
	// Initialize.
	SetConfig(config Config) error
	// DiscoverPeers returns the currently known peer addresses, in
	// "host:port" form, excluding this node.
	DiscoverPeers() ([]string, error)
}
