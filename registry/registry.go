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

// Package registry implements Component B: the map from identity to
// message sink, with local storage and a chain of host resolvers for
// addresses outside the local system.
package registry

import (
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/relaycore/relay/errors"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
)

// Sink is the process sink contract (spec §6 "Process sink contract"):
// every routable target, whether a local mailbox-backed actor, the
// dead-letter sink, or a remote proxy, implements this.
type Sink interface {
	SendUser(env *message.Envelope) error
	SendSystem(env *message.Envelope)
	Stop() error
}

// HostResolver resolves a PID whose address is not the local address into
// a Sink. A resolver that does not claim p returns false (its Sink is
// then ignored); the Registry tries the next resolver and falls back to
// its dead-letter sink when none claims p.
type HostResolver func(p pid.PID) (Sink, bool)

// record is a local process table entry.
type record struct {
	pid  pid.PID
	sink Sink
}

// shardCount is the number of independent id->record shards the local
// table is split across, each with its own lock, so that actors hashing
// to different shards never contend on registration. Grounded on the
// teacher's pid_map.go sharding-by-fast-hash idiom.
const shardCount = 32

type shard struct {
	mu   sync.RWMutex
	byID map[string]record
}

// Registry owns the process records keyed by id for local actors and
// resolves unknown addresses by delegating, in registration order, to
// host resolvers (e.g. the Endpoint Manager registers one yielding a
// remote proxy sink).
type Registry struct {
	localAddress string
	deadLetter   Sink
	shards       [shardCount]*shard

	resMu     sync.RWMutex
	resolvers []HostResolver
}

// New builds a Registry for localAddress, falling back to deadLetter for
// any id/address this registry cannot otherwise resolve.
func New(localAddress string, deadLetter Sink) *Registry {
	r := &Registry{localAddress: localAddress, deadLetter: deadLetter}
	for i := range r.shards {
		r.shards[i] = &shard{byID: make(map[string]record)}
	}
	return r
}

// shardFor picks the shard owning id, via the same fast non-cryptographic
// hash the teacher uses for its own sharded process table.
func (r *Registry) shardFor(id string) *shard {
	h := xxh3.Hash([]byte(id))
	return r.shards[h%uint64(shardCount)]
}

// RegisterHostResolver appends resolver to the resolution chain consulted
// for any PID whose address is not the local address.
func (r *Registry) RegisterHostResolver(resolver HostResolver) {
	r.resMu.Lock()
	defer r.resMu.Unlock()
	r.resolvers = append(r.resolvers, resolver)
}

// Add inserts id -> sink for the local address. added is false and
// errors.ErrNameTaken is returned when id is already present.
func (r *Registry) Add(id string, sink Sink) (p pid.PID, added bool, err error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id]; exists {
		return pid.PID{}, false, errors.ErrNameTaken
	}
	p = pid.New(r.localAddress, id)
	s.byID[id] = record{pid: p, sink: sink}
	return p, true, nil
}

// Remove deletes the local record for p, if present.
func (r *Registry) Remove(p pid.PID) {
	s := r.shardFor(p.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, p.ID)
}

// Get resolves p to a Sink. Resolution order: local table lookup when
// p.Address is the local address, otherwise each host resolver in
// registration order until one claims it; the dead-letter sink is the
// total fallback so Get never returns a nil Sink.
func (r *Registry) Get(p pid.PID) Sink {
	if p.Address == r.localAddress {
		s := r.shardFor(p.ID)
		s.mu.RLock()
		rec, ok := s.byID[p.ID]
		s.mu.RUnlock()
		if ok {
			return rec.sink
		}
		return r.deadLetter
	}

	r.resMu.RLock()
	resolvers := r.resolvers
	r.resMu.RUnlock()

	for _, resolve := range resolvers {
		if sink, ok := resolve(p); ok {
			return sink
		}
	}
	return r.deadLetter
}

// LocalCount reports the number of local actors currently registered,
// for diagnostics.
func (r *Registry) LocalCount() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.byID)
		s.mu.RUnlock()
	}
	return total
}

// DeadLetter returns the registry's dead-letter sink.
func (r *Registry) DeadLetter() Sink { return r.deadLetter }
