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
	"context"
	"sync"
	"time"

	"github.com/relaycore/relay/eventstream"
	"github.com/relaycore/relay/log"
)

// MemberJoined is published onto the event stream when Seeder first
// observes a peer address it had not seen before.
type MemberJoined struct {
	Address string
}

// MemberLeft is published when Seeder stops observing a previously known
// peer address.
type MemberLeft struct {
	Address string
}

// SeederConfig configures a Seeder's polling behaviour.
type SeederConfig struct {
	// PollInterval is how often DiscoverPeers is polled for changes.
	PollInterval time.Duration
	Logger       log.Logger
}

func (c *SeederConfig) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
}

// Seeder bootstraps cluster membership from a Provider and republishes
// every change as MemberJoined/MemberLeft on the event stream (spec
// §4.I). The provider is not assumed to emit incremental deltas: each
// poll's result is diffed as a full snapshot against the previously
// known peer set (resolved Open Question, see DESIGN.md).
type Seeder struct {
	provider Provider
	events   *eventstream.Stream
	cfg      SeederConfig
	logger   log.Logger

	mu    sync.Mutex
	known map[string]struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSeeder builds a Seeder publishing onto events, bootstrapped from
// provider.
func NewSeeder(provider Provider, events *eventstream.Stream, cfg SeederConfig) *Seeder {
	cfg.setDefaults()
	return &Seeder{
		provider: provider,
		events:   events,
		cfg:      cfg,
		logger:   cfg.Logger,
		known:    make(map[string]struct{}),
	}
}

// Start initializes and registers the provider, takes the first snapshot
// synchronously (so callers can join an existing cluster immediately),
// then polls for changes in the background until Stop.
func (s *Seeder) Start(ctx context.Context) ([]string, error) {
	if err := s.provider.Initialize(); err != nil {
		return nil, err
	}
	if err := s.provider.Register(); err != nil {
		return nil, err
	}

	peers, err := s.provider.DiscoverPeers()
	if err != nil {
		return nil, err
	}
	s.diffAndPublish(peers)

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.pollLoop()

	return peers, nil
}

// Stop deregisters the provider and ends the polling loop. Idempotent.
func (s *Seeder) Stop() error {
	s.mu.Lock()
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	if stopCh == nil {
		return nil
	}
	close(stopCh)
	s.wg.Wait()
	return s.provider.Deregister()
}

func (s *Seeder) pollLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			peers, err := s.provider.DiscoverPeers()
			if err != nil {
				s.logger.Warnf("discovery: poll failed: %v", err)
				continue
			}
			s.diffAndPublish(peers)
		}
	}
}

// diffAndPublish compares peers against the previously known set,
// publishing a MemberJoined for every address newly present and a
// MemberLeft for every address no longer present.
func (s *Seeder) diffAndPublish(peers []string) {
	current := make(map[string]struct{}, len(peers))
	for _, p := range peers {
		current[p] = struct{}{}
	}

	s.mu.Lock()
	known := s.known
	s.known = current
	s.mu.Unlock()

	for addr := range current {
		if _, ok := known[addr]; !ok {
			s.events.Publish(eventstream.TopicMemberJoined, MemberJoined{Address: addr})
		}
	}
	for addr := range known {
		if _, ok := current[addr]; !ok {
			s.events.Publish(eventstream.TopicMemberLeft, MemberLeft{Address: addr})
		}
	}
}

// Known returns the most recently observed peer set, for diagnostics.
func (s *Seeder) Known() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]string, 0, len(s.known))
	for addr := range s.known {
		peers = append(peers, addr)
	}
	return peers
}
