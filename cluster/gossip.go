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

// Package cluster implements Component H: the gossip-based membership
// overlay. A Gossiper wraps a hashicorp/memberlist Memberlist for peer
// discovery and failure detection, and layers a periodic anti-entropy
// push of MemberStateDeltas over it for the per-member key/value state
// described in spec §3.
package cluster

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"github.com/hashicorp/memberlist"

	"github.com/relaycore/relay/errors"
	"github.com/relaycore/relay/log"
)

// maxJoinAttempts bounds the join retry loop the same way remote/endpoint.go
// bounds its dial retries: small and tight so a join against a
// momentarily-unreachable seed fails fast rather than stalling Start.
const maxJoinAttempts = 3

// Member is the identity and advertised address of a cluster node,
// carried in memberlist's NodeMeta so that membership events can be
// resolved to routable Endpoints (SPEC "NodeMeta carries the per-member
// advertised address").
type Member struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// GossipConfig configures a Gossiper.
type GossipConfig struct {
	BindAddr string
	BindPort int
	// Fanout is the number of random peers each anti-entropy round
	// pushes a delta to.
	Fanout int
	// Interval is the anti-entropy round period.
	Interval time.Duration
	Logger   log.Logger
}

func (c *GossipConfig) setDefaults() {
	if c.Fanout <= 0 {
		c.Fanout = 3
	}
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
}

// wireDelta is the gob-encoded form of a MemberStateDelta pushed over
// memberlist's reliable transport. Gob is used here for the same reason
// it is used in remote/wire.go: this is an internal transport frame, not
// the envelope serialization façade the spec holds to the protobuf bar.
type wireDelta struct {
	MemberID string
	SenderID string
	Entries  []Entry
}

// offsetTracker records, per (peer, member, key), the highest sequence
// number known to have been committed to that peer, so later
// anti-entropy rounds only resend what a peer has not yet seen (spec §3
// "the local sent-to-P offset").
type offsetTracker struct {
	mu   sync.Mutex
	sent map[string]map[string]map[string]uint64
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{sent: make(map[string]map[string]map[string]uint64)}
}

func (t *offsetTracker) offsetFor(peerID, memberID, key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	byMember := t.sent[peerID]
	if byMember == nil {
		return 0
	}
	return byMember[memberID][key]
}

func (t *offsetTracker) advance(peerID, memberID, key string, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byMember := t.sent[peerID]
	if byMember == nil {
		byMember = make(map[string]map[string]uint64)
		t.sent[peerID] = byMember
	}
	byKey := byMember[memberID]
	if byKey == nil {
		byKey = make(map[string]uint64)
		byMember[memberID] = byKey
	}
	if seq > byKey[key] {
		byKey[key] = seq
	}
}

// Gossiper drives membership (via memberlist) and the per-member state
// anti-entropy protocol described in spec §4.H, on top of it.
type Gossiper struct {
	self   Member
	store  *Store
	cfg    GossipConfig
	logger log.Logger

	mconfig  *memberlist.Config
	mlist    *memberlist.Memberlist
	eventsCh chan memberlist.NodeEvent

	offsets *offsetTracker

	// knownPeers is the peer-ID set observed as of the last anti-entropy
	// round, used to log membership churn between rounds without diffing
	// memberlist.Node slices by hand.
	knownPeers mapset.Set[string]

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewGossiper builds a Gossiper for self, backed by store for its
// per-member state.
func NewGossiper(self Member, store *Store, cfg GossipConfig) *Gossiper {
	cfg.setDefaults()
	return &Gossiper{
		self:       self,
		store:      store,
		cfg:        cfg,
		logger:     cfg.Logger,
		offsets:    newOffsetTracker(),
		knownPeers: mapset.NewThreadUnsafeSet[string](),
	}
}

// gossipDelegate implements memberlist.Delegate, bridging NotifyMsg (the
// reliable-send inbound path used for MemberStateDeltas) to the Gossiper
// that owns it.
type gossipDelegate struct {
	g    *Gossiper
	meta []byte
}

var _ memberlist.Delegate = (*gossipDelegate)(nil)

func (d *gossipDelegate) NodeMeta(limit int) []byte { return d.meta }

func (d *gossipDelegate) NotifyMsg(buf []byte) {
	var w wireDelta
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&w); err != nil {
		d.g.logger.Warnf("cluster: dropping malformed gossip message: %v", err)
		return
	}
	delta := NewMemberStateDelta(w.MemberID, w.SenderID, w.Entries, nil)
	d.g.store.ApplyDelta(delta)
}

func (d *gossipDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *gossipDelegate) LocalState(join bool) []byte                { return nil }
func (d *gossipDelegate) MergeRemoteState(buf []byte, join bool)     {}

// Start joins the memberlist cluster (if seeds are given) and begins the
// periodic anti-entropy loop. ctx governs the join attempt only; use Stop
// to end the gossip loop.
func (g *Gossiper) Start(ctx context.Context, seeds []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return nil
	}

	meta, err := json.Marshal(g.self)
	if err != nil {
		return fmt.Errorf("cluster: marshal member meta: %w", err)
	}

	g.mconfig = memberlist.DefaultLANConfig()
	g.mconfig.Name = g.self.ID
	g.mconfig.BindAddr = g.cfg.BindAddr
	g.mconfig.BindPort = g.cfg.BindPort
	g.mconfig.AdvertisePort = g.cfg.BindPort
	g.mconfig.LogOutput = newLogWriter(g.logger)
	g.mconfig.Delegate = &gossipDelegate{g: g, meta: meta}

	g.eventsCh = make(chan memberlist.NodeEvent, 256)
	g.mconfig.Events = &memberlist.ChannelEventDelegate{Ch: g.eventsCh}

	mlist, err := memberlist.Create(g.mconfig)
	if err != nil {
		return fmt.Errorf("cluster: create memberlist: %w", err)
	}
	g.mlist = mlist

	if len(seeds) > 0 {
		retrier := retry.NewRetrier(maxJoinAttempts, 50*time.Millisecond, 200*time.Millisecond)
		if err := retrier.RunContext(ctx, func(context.Context) error {
			_, err := mlist.Join(seeds)
			return err
		}); err != nil {
			_ = mlist.Shutdown()
			return fmt.Errorf("cluster: join existing cluster: %w", err)
		}
	}

	g.started = true
	g.stopCh = make(chan struct{})
	g.wg.Add(1)
	go g.gossipLoop()

	return nil
}

// Stop leaves the memberlist cluster and ends the anti-entropy loop.
// Idempotent.
func (g *Gossiper) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = false
	close(g.stopCh)
	g.mu.Unlock()

	g.wg.Wait()

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			timeout = d
		}
	}
	if err := g.mlist.Leave(timeout); err != nil {
		g.logger.Warnf("cluster: leave failed: %v", err)
	}
	return g.mlist.Shutdown()
}

// NodeEvents returns the raw memberlist join/leave/update event channel
// for callers that want the gossip layer's own SWIM-detected membership
// changes, as distinct from the (also eventually consistent, but
// independently timed) view a discovery.Seeder derives by polling a
// discovery.Provider.
func (g *Gossiper) NodeEvents() <-chan memberlist.NodeEvent { return g.eventsCh }

// Members returns every member currently known to the underlying
// memberlist, decoded from NodeMeta.
func (g *Gossiper) Members() ([]Member, error) {
	g.mu.Lock()
	mlist := g.mlist
	g.mu.Unlock()
	if mlist == nil {
		return nil, errors.ErrClusterDisabled
	}

	nodes := mlist.Members()
	members := make([]Member, 0, len(nodes))
	for _, n := range nodes {
		var m Member
		if err := json.Unmarshal(n.Meta, &m); err != nil {
			return nil, fmt.Errorf("cluster: decode node meta for %s: %w", n.Name, err)
		}
		members = append(members, m)
	}
	return members, nil
}

// LocalMember returns this node's own advertised identity.
func (g *Gossiper) LocalMember() Member { return g.self }

// Store returns the per-member state store this Gossiper replicates.
func (g *Gossiper) Store() *Store { return g.store }

// PeerIDs returns the peer-ID set observed as of the last anti-entropy
// round (self excluded).
func (g *Gossiper) PeerIDs() mapset.Set[string] { return g.knownPeers.Clone() }

// logPeerChurn diffs current against the peer set seen on the previous
// round and logs anything that changed, then current becomes the new
// baseline.
func (g *Gossiper) logPeerChurn(current mapset.Set[string]) {
	joined := current.Difference(g.knownPeers)
	left := g.knownPeers.Difference(current)
	if joined.Cardinality() > 0 {
		g.logger.Debugf("cluster: peers joined since last round: %v", joined.ToSlice())
	}
	if left.Cardinality() > 0 {
		g.logger.Debugf("cluster: peers left since last round: %v", left.ToSlice())
	}
	g.knownPeers = current
}

// gossipLoop periodically pushes a MemberStateDelta of the local member's
// unsent entries to a random subset of peers (spec §4.H).
func (g *Gossiper) gossipLoop() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.gossipRound()
		}
	}
}

func (g *Gossiper) gossipRound() {
	nodes := g.mlist.Members()
	peers := make([]*memberlist.Node, 0, len(nodes))
	current := mapset.NewThreadUnsafeSet[string]()
	for _, n := range nodes {
		if n.Name == g.self.ID {
			continue
		}
		peers = append(peers, n)
		current.Add(n.Name)
	}
	g.logPeerChurn(current)
	if len(peers) == 0 {
		return
	}

	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })
	fanout := g.cfg.Fanout
	if fanout > len(peers) {
		fanout = len(peers)
	}

	local := g.store.Local()
	entries := local.Snapshot()

	for _, peer := range peers[:fanout] {
		pending := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if e.Seq > g.offsets.offsetFor(peer.Name, local.ID(), e.Key) {
				pending = append(pending, e)
			}
		}
		if len(pending) == 0 {
			continue
		}
		g.pushDelta(peer, pending)
	}
}

// pushDelta sends pending to peer over memberlist's reliable transport.
// Modeling note: memberlist's SendReliable delivers over TCP but carries
// no application-level acknowledgement back to the sender, so a
// successful send is treated as the "ack" that advances the sent-to-peer
// offset (resolved Open Question, recorded in DESIGN.md).
func (g *Gossiper) pushDelta(peer *memberlist.Node, pending []Entry) {
	local := g.store.Local()
	delta := NewMemberStateDelta(local.ID(), g.self.ID, pending, func() {
		for _, e := range pending {
			g.offsets.advance(peer.Name, local.ID(), e.Key, e.Seq)
		}
	})

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireDelta{MemberID: delta.MemberID, SenderID: delta.SenderID, Entries: delta.Entries}); err != nil {
		g.logger.Errorf("cluster: encode delta for %s: %v", peer.Name, err)
		return
	}

	if err := g.mlist.SendReliable(peer, buf.Bytes()); err != nil {
		g.logger.Warnf("cluster: send delta to %s failed: %v", peer.Name, err)
		return
	}
	delta.Commit()
}
