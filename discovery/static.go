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

package discovery

import (
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/relaycore/relay/log"
)

// StaticProvider is a fixed peer list known ahead of time: no elasticity,
// nothing to watch, nothing to register against. Useful for Docker
// Compose style fixed topologies and tests.
type StaticProvider struct {
	mu sync.Mutex

	peers []string

	initialized *atomic.Bool
	registered  *atomic.Bool
	logger      log.Logger
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider builds a StaticProvider from a fixed list of
// "host:port" peer addresses.
func NewStaticProvider(peers []string, logger log.Logger) *StaticProvider {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &StaticProvider{
		peers:       append([]string(nil), peers...),
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
		logger:      logger,
	}
}

func (p *StaticProvider) ID() string { return "static" }

// SetConfig overrides the peer list from config["peers"], a
// comma-separated "host:port" list, if present. Absent is not an error:
// the list passed to NewStaticProvider remains in effect.
func (p *StaticProvider) SetConfig(config Config) error {
	raw, ok := config["peers"]
	if !ok || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	peers := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			peers = append(peers, part)
		}
	}
	if len(peers) == 0 {
		return ErrInvalidConfig
	}

	p.mu.Lock()
	p.peers = peers
	p.mu.Unlock()
	return nil
}

func (p *StaticProvider) Initialize() error {
	if !p.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}
	return nil
}

// Register is a no-op: there is no directory to announce to.
func (p *StaticProvider) Register() error {
	if !p.initialized.Load() {
		return ErrNotInitialized
	}
	if !p.registered.CompareAndSwap(false, true) {
		return ErrAlreadyRegistered
	}
	return nil
}

// Deregister is a no-op for the same reason Register is.
func (p *StaticProvider) Deregister() error {
	if !p.registered.CompareAndSwap(true, false) {
		return ErrNotRegistered
	}
	return nil
}

func (p *StaticProvider) DiscoverPeers() ([]string, error) {
	if !p.initialized.Load() {
		return nil, ErrNotInitialized
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.peers...), nil
}
