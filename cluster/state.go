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

package cluster

import (
	"sync"
	"sync/atomic"
)

// Entry is one versioned key/value record inside a single member's state
// map. Seq strictly increases every time the owning member writes Key
// again; it never increases for any other reason.
type Entry struct {
	Key   string
	Value []byte
	Seq   uint64
}

// record is how an Entry is actually kept inside a MemberState: alongside
// the entry itself, the id of whichever gossip sender last wrote it, used
// to break same-sequence ties deterministically (spec §4.H "ties broken
// by member id").
type record struct {
	entry      Entry
	lastSender string
}

// MemberState is the per-member key/value map described in spec §3
// "Gossip state". Each cluster member owns exactly one MemberState; all
// other members hold replicas populated by merging MemberStateDeltas.
type MemberState struct {
	mu      sync.RWMutex
	id      string
	entries map[string]record
}

// NewMemberState builds an empty state map owned by member id.
func NewMemberState(id string) *MemberState {
	return &MemberState{id: id, entries: make(map[string]record)}
}

// ID returns the owning member's id.
func (s *MemberState) ID() string { return s.id }

// Set stores value under key as a fresh local write, assigning it the
// next sequence number for that key. Only the owning member should ever
// call Set directly; replicas learn of writes via mergeEntry.
func (s *MemberState) Set(key string, value []byte) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.entries[key].entry.Seq + 1
	e := Entry{Key: key, Value: value, Seq: next}
	s.entries[key] = record{entry: e, lastSender: s.id}
	return e
}

// Get returns the current entry for key, if any.
func (s *MemberState) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entries[key]
	return r.entry, ok
}

// Snapshot returns every entry currently held, in no particular order.
func (s *MemberState) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, r := range s.entries {
		out = append(out, r.entry)
	}
	return out
}

// mergeEntry applies an entry learned from senderID (the gossip peer that
// delivered it, not necessarily this state's owner). Last-writer-wins by
// sequence number; on an exact sequence tie the entry from the
// lexicographically greater sender id wins, which is an arbitrary but
// deterministic rule every member applies identically, guaranteeing
// convergence regardless of merge order (spec §4.H conflict resolution).
// Returns whether the stored entry changed.
func (s *MemberState) mergeEntry(e Entry, senderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[e.Key]
	switch {
	case !ok || e.Seq > cur.entry.Seq:
		s.entries[e.Key] = record{entry: e, lastSender: senderID}
		return true
	case e.Seq == cur.entry.Seq && senderID > cur.lastSender:
		s.entries[e.Key] = record{entry: e, lastSender: senderID}
		return true
	default:
		return false
	}
}

// seqFor reports the current sequence number for key, 0 if unset. Used by
// the gossiper to decide which entries a peer still needs.
func (s *MemberState) seqFor(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].entry.Seq
}

// MemberStateDelta carries the subset of one member's entries that a
// specific peer has not yet seen, plus the callback the gossiper invokes
// once the peer has acknowledged receipt (spec §3 "Gossip state").
type MemberStateDelta struct {
	// MemberID is the state owner these entries belong to.
	MemberID string
	// SenderID is the gossip participant that produced this delta.
	SenderID string
	Entries  []Entry

	committed atomic.Bool
	onCommit  func()
}

// NewMemberStateDelta builds a delta of entries owned by memberID,
// originated by senderID, invoking onCommit exactly once when Commit is
// first called.
func NewMemberStateDelta(memberID, senderID string, entries []Entry, onCommit func()) *MemberStateDelta {
	return &MemberStateDelta{MemberID: memberID, SenderID: senderID, Entries: entries, onCommit: onCommit}
}

// Commit is idempotent (spec §8 "commit is idempotent"): only the first
// call runs onCommit; later calls are no-ops. Returns whether this call
// was the one that ran it.
func (d *MemberStateDelta) Commit() bool {
	if !d.committed.CompareAndSwap(false, true) {
		return false
	}
	if d.onCommit != nil {
		d.onCommit()
	}
	return true
}

// Committed reports whether Commit has already run.
func (d *MemberStateDelta) Committed() bool { return d.committed.Load() }

// Store aggregates every member's MemberState this node currently knows
// about: its own, written directly, and every other member's, populated
// by merging deltas received over gossip.
type Store struct {
	mu      sync.RWMutex
	localID string
	members map[string]*MemberState
}

// NewStore builds a Store whose local member id is localID.
func NewStore(localID string) *Store {
	return &Store{localID: localID, members: make(map[string]*MemberState)}
}

// member returns the MemberState for id, creating an empty one on first
// reference (whether for the local member or a replica of a remote one).
func (st *Store) member(id string) *MemberState {
	st.mu.RLock()
	s, ok := st.members[id]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.members[id]; ok {
		return s
	}
	s = NewMemberState(id)
	st.members[id] = s
	return s
}

// Local returns this node's own MemberState.
func (st *Store) Local() *MemberState { return st.member(st.localID) }

// SetLocal writes key/value into the local member's state, returning the
// newly assigned Entry.
func (st *Store) SetLocal(key string, value []byte) Entry {
	return st.Local().Set(key, value)
}

// ApplyDelta merges delta into the replica of delta.MemberID's state,
// returning the entries that actually changed something (for diagnostics
// or tests; gossip convergence does not otherwise depend on this value).
func (st *Store) ApplyDelta(delta *MemberStateDelta) []Entry {
	target := st.member(delta.MemberID)
	changed := make([]Entry, 0, len(delta.Entries))
	for _, e := range delta.Entries {
		if target.mergeEntry(e, delta.SenderID) {
			changed = append(changed, e)
		}
	}
	return changed
}

// MemberIDs returns every member id this Store currently has a replica
// for, including the local one.
func (st *Store) MemberIDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.members))
	for id := range st.members {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns a deep copy of every member's entries, keyed by member
// id, for diagnostics and convergence assertions.
func (st *Store) Snapshot() map[string][]Entry {
	st.mu.RLock()
	members := make([]*MemberState, 0, len(st.members))
	for _, s := range st.members {
		members = append(members, s)
	}
	st.mu.RUnlock()

	out := make(map[string][]Entry, len(members))
	for _, s := range members {
		out[s.ID()] = s.Snapshot()
	}
	return out
}
