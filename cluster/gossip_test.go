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

package cluster_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/relaycore/relay/cluster"
)

func newTestGossiper(t *testing.T, id string, port int) *cluster.Gossiper {
	t.Helper()
	store := cluster.NewStore(id)
	self := cluster.Member{ID: id, Address: fmt.Sprintf("127.0.0.1:%d", port)}
	return cluster.NewGossiper(self, store, cluster.GossipConfig{
		BindAddr: "127.0.0.1",
		BindPort: port,
		Fanout:   3,
		Interval: 30 * time.Millisecond,
	})
}

// TestGossip_ThreeMemberConvergence exercises spec §8 scenario 6: three
// members start with distinct local state and, after a bounded number of
// anti-entropy rounds with no loss, every member holds entries for the
// same set of members, with the same number of entries per member.
// Sequence numbers and values are not compared.
func TestGossip_ThreeMemberConvergence(t *testing.T) {
	ports := dynaport.Get(3)

	g1 := newTestGossiper(t, "m1", ports[0])
	g2 := newTestGossiper(t, "m2", ports[1])
	g3 := newTestGossiper(t, "m3", ports[2])

	g1.Store().SetLocal("role", []byte("leader-candidate"))
	g2.Store().SetLocal("role", []byte("follower"))
	g3.Store().SetLocal("role", []byte("follower"))

	ctx := context.Background()
	require.NoError(t, g1.Start(ctx, nil))
	defer func() { _ = g1.Stop(context.Background()) }()

	seed := fmt.Sprintf("127.0.0.1:%d", ports[0])
	require.NoError(t, g2.Start(ctx, []string{seed}))
	defer func() { _ = g2.Stop(context.Background()) }()
	require.NoError(t, g3.Start(ctx, []string{seed}))
	defer func() { _ = g3.Stop(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if converged(g1, g2, g3) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("gossip did not converge within deadline")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func converged(gs ...*cluster.Gossiper) bool {
	want := gs[0].Store().Snapshot()
	if len(want) < len(gs) {
		return false
	}
	for _, g := range gs[1:] {
		got := g.Store().Snapshot()
		if len(got) != len(want) {
			return false
		}
		for member, wantEntries := range want {
			gotEntries, ok := got[member]
			if !ok || len(gotEntries) != len(wantEntries) {
				return false
			}
		}
	}
	return true
}

func TestGossip_TwoNodeStatePropagation(t *testing.T) {
	ports := dynaport.Get(2)
	g1 := newTestGossiper(t, "n1", ports[0])
	g2 := newTestGossiper(t, "n2", ports[1])

	g1.Store().SetLocal("k", []byte("v"))

	ctx := context.Background()
	require.NoError(t, g1.Start(ctx, nil))
	defer func() { _ = g1.Stop(context.Background()) }()
	require.NoError(t, g2.Start(ctx, []string{fmt.Sprintf("127.0.0.1:%d", ports[0])}))
	defer func() { _ = g2.Stop(context.Background()) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		if entries, ok := g2.Store().Snapshot()["n1"]; ok && len(entries) == 1 {
			require.Equal(t, "v", string(entries[0].Value))
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("delta never reached peer")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// TestGossip_PeerIDsReflectsMembership exercises the peer-set bookkeeping
// each anti-entropy round maintains: once p2 joins p1, both gossipers'
// PeerIDs eventually report each other, and after p2 leaves, p1's PeerIDs
// drops it again.
func TestGossip_PeerIDsReflectsMembership(t *testing.T) {
	ports := dynaport.Get(2)
	g1 := newTestGossiper(t, "p1", ports[0])
	g2 := newTestGossiper(t, "p2", ports[1])

	ctx := context.Background()
	require.NoError(t, g1.Start(ctx, nil))
	defer func() { _ = g1.Stop(context.Background()) }()
	require.NoError(t, g2.Start(ctx, []string{fmt.Sprintf("127.0.0.1:%d", ports[0])}))

	require.Eventually(t, func() bool {
		return g1.PeerIDs().Contains("p2") && g2.PeerIDs().Contains("p1")
	}, 3*time.Second, 20*time.Millisecond, "gossipers never observed each other as peers")

	require.NoError(t, g2.Stop(context.Background()))

	require.Eventually(t, func() bool {
		return !g1.PeerIDs().Contains("p2")
	}, 3*time.Second, 20*time.Millisecond, "p1 never dropped p2 from its peer set after it left")
}
