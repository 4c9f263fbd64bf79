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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/relay/cluster"
)

func TestMemberState_SetAssignsStrictlyIncreasingSeq(t *testing.T) {
	s := cluster.NewMemberState("m1")
	e1 := s.Set("k", []byte("v1"))
	e2 := s.Set("k", []byte("v2"))
	assert.Equal(t, uint64(1), e1.Seq)
	assert.Equal(t, uint64(2), e2.Seq)

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", string(got.Value))
}

func TestStore_ApplyDeltaLastWriterWinsBySeq(t *testing.T) {
	st := cluster.NewStore("local")

	delta1 := cluster.NewMemberStateDelta("remote", "peerA",
		[]cluster.Entry{{Key: "k", Value: []byte("old"), Seq: 1}}, nil)
	changed := st.ApplyDelta(delta1)
	require.Len(t, changed, 1)

	// An equal sequence number from a lexicographically smaller sender id
	// does not win.
	delta2 := cluster.NewMemberStateDelta("remote", "peer0",
		[]cluster.Entry{{Key: "k", Value: []byte("stale"), Seq: 1}}, nil)
	changed = st.ApplyDelta(delta2)
	assert.Empty(t, changed)

	delta3 := cluster.NewMemberStateDelta("remote", "peerA",
		[]cluster.Entry{{Key: "k", Value: []byte("new"), Seq: 2}}, nil)
	changed = st.ApplyDelta(delta3)
	require.Len(t, changed, 1)

	snap := st.Snapshot()
	require.Contains(t, snap, "remote")
	require.Len(t, snap["remote"], 1)
	assert.Equal(t, "new", string(snap["remote"][0].Value))
	assert.Equal(t, uint64(2), snap["remote"][0].Seq)
}

func TestStore_ApplyDeltaTieBreaksBySenderID(t *testing.T) {
	st := cluster.NewStore("local")

	// Two deltas claim the same sequence number for the same key; the
	// lexicographically greater sender id must win, deterministically,
	// regardless of arrival order.
	fromA := cluster.NewMemberStateDelta("remote", "aaa",
		[]cluster.Entry{{Key: "k", Value: []byte("from-a"), Seq: 5}}, nil)
	fromZ := cluster.NewMemberStateDelta("remote", "zzz",
		[]cluster.Entry{{Key: "k", Value: []byte("from-z"), Seq: 5}}, nil)

	st.ApplyDelta(fromA)
	st.ApplyDelta(fromZ)
	snap := st.Snapshot()
	assert.Equal(t, "from-z", string(snap["remote"][0].Value))

	st2 := cluster.NewStore("local")
	st2.ApplyDelta(fromZ)
	st2.ApplyDelta(fromA)
	snap2 := st2.Snapshot()
	assert.Equal(t, "from-z", string(snap2["remote"][0].Value))
}

func TestMemberStateDelta_CommitIsIdempotent(t *testing.T) {
	calls := 0
	delta := cluster.NewMemberStateDelta("m1", "sender", nil, func() { calls++ })

	first := delta.Commit()
	second := delta.Commit()

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, calls)
	assert.True(t, delta.Committed())
}

func TestStore_SetLocalIsVisibleThroughLocal(t *testing.T) {
	st := cluster.NewStore("local")
	st.SetLocal("k", []byte("v"))

	got, ok := st.Local().Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got.Value))
	assert.Contains(t, st.MemberIDs(), "local")
}
