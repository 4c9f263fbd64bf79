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

package remote_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/relay/codec"
	"github.com/relaycore/relay/eventstream"
	"github.com/relaycore/relay/pid"
	"github.com/relaycore/relay/registry"
	"github.com/relaycore/relay/remote"
)

// refusingProvider always fails to dial, so endpoints under test reach
// Terminated quickly without a real peer, matching the termination
// deadlock regression scenario's "30 connects to non-existent addresses"
// setup.
type refusingProvider struct{}

func (refusingProvider) Dial(ctx context.Context, address string) (remote.Channel, error) {
	return nil, errors.New("dial refused")
}

func (refusingProvider) Serve(ctx context.Context, bind string, onAccept func(remote.Channel)) error {
	<-ctx.Done()
	return nil
}

func newTestManager(cfg remote.ManagerConfig) (*remote.EndpointManager, *eventstream.Stream) {
	events := eventstream.New(nil)
	reg := registry.New("local", registry.NewDeadLetter(nil))
	mgr := remote.NewEndpointManager("local", refusingProvider{}, codec.New(), reg, events, nil, cfg)
	return mgr, events
}

// TestEndpointManager_GetOrAddServerPicksKindByLocalIdentity exercises spec
// §4.F step 6: get_or_add_server's own Kind choice follows whether the
// local system is itself a client identity, not the destination address.
func TestEndpointManager_GetOrAddServerPicksKindByLocalIdentity(t *testing.T) {
	serverMgr, _ := newTestManager(remote.ManagerConfig{})
	ep, err := serverMgr.GetOrAddServer("10.0.0.9:7000")
	require.NoError(t, err)
	assert.Equal(t, remote.KindServerSide, ep.Kind())

	events := eventstream.New(nil)
	reg := registry.New(pid.ClientPrefix+"local", registry.NewDeadLetter(nil))
	clientMgr := remote.NewEndpointManager(pid.ClientPrefix+"local", refusingProvider{}, codec.New(), reg, events, nil, remote.ManagerConfig{})
	ep, err = clientMgr.GetOrAddServer("10.0.0.9:7000")
	require.NoError(t, err)
	assert.Equal(t, remote.KindClientSide, ep.Kind())
}

func TestEndpointManager_BlockedAddressReturnsSentinelWhileBlocked(t *testing.T) {
	mgr, events := newTestManager(remote.ManagerConfig{WaitAfterEndpointTermination: 50 * time.Millisecond})

	events.Publish(eventstream.TopicEndpointTerminated, remote.EndpointTerminatedEvent{
		ShouldBlock: true,
		Address:     "10.0.0.1:7000",
	})

	require.Eventually(t, func() bool {
		_, blocked := mgr.BlockedSince("10.0.0.1:7000")
		return blocked
	}, time.Second, 2*time.Millisecond, "address was never blocklisted")

	ep, err := mgr.GetOrAddServer("10.0.0.1:7000")
	require.NoError(t, err)
	assert.Equal(t, remote.Terminated, ep.State())
}

// TestEndpointManager_BlockedAddressAutoUnblocksInFiniteTime exercises the
// finally-semantics of the termination handler: once it finishes handling a
// block (including any WaitAfterEndpointTermination sleep), unblock runs
// unconditionally, so the entry never stays blocked forever.
func TestEndpointManager_BlockedAddressAutoUnblocksInFiniteTime(t *testing.T) {
	mgr, events := newTestManager(remote.ManagerConfig{WaitAfterEndpointTermination: 20 * time.Millisecond})

	events.Publish(eventstream.TopicEndpointTerminated, remote.EndpointTerminatedEvent{
		ShouldBlock: true,
		Address:     "10.0.0.1:7001",
	})

	require.Eventually(t, func() bool {
		_, blocked := mgr.BlockedSince("10.0.0.1:7001")
		return !blocked
	}, time.Second, 5*time.Millisecond, "address never auto-unblocked once the handler finished")
}

// TestEndpointManager_AlreadyGoneTerminationStillUnblocks covers the
// idempotence path: a second, redundant EndpointTerminated for a key whose
// endpoint is already removed must still unblock it rather than leaking the
// blocklist entry.
func TestEndpointManager_AlreadyGoneTerminationStillUnblocks(t *testing.T) {
	mgr, events := newTestManager(remote.ManagerConfig{})

	ev := remote.EndpointTerminatedEvent{ShouldBlock: true, Address: "10.0.0.1:7002"}
	events.Publish(eventstream.TopicEndpointTerminated, ev)
	events.Publish(eventstream.TopicEndpointTerminated, ev) // delivered once the endpoint is already removed

	require.Eventually(t, func() bool {
		_, blocked := mgr.BlockedSince("10.0.0.1:7002")
		return !blocked
	}, time.Second, 5*time.Millisecond, "address never auto-unblocked after the redundant termination")
}

func TestEndpointManager_DoublePublishKeepsAddressBlocked(t *testing.T) {
	mgr, events := newTestManager(remote.ManagerConfig{WaitAfterEndpointTermination: 50 * time.Millisecond})

	var mu sync.Mutex
	var deliveries int
	var wg sync.WaitGroup
	wg.Add(2)
	events.Subscribe(eventstream.TopicEndpointTerminated, func(event any) {
		mu.Lock()
		deliveries++
		mu.Unlock()
		wg.Done()
	}, func(fn func()) { fn() })

	ev := remote.EndpointTerminatedEvent{ShouldBlock: true, Address: "10.0.0.2:7000"}
	events.Publish(eventstream.TopicEndpointTerminated, ev)
	events.Publish(eventstream.TopicEndpointTerminated, ev)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, deliveries) // both deliveries reach the handler...

	var since time.Time
	require.Eventually(t, func() bool {
		var blocked bool
		since, blocked = mgr.BlockedSince("10.0.0.2:7000")
		return blocked
	}, time.Second, 2*time.Millisecond)
	assert.False(t, since.IsZero()) // ...and the address is blocklisted with its block time
}

func TestEndpointManager_StopIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(remote.ManagerConfig{})
	mgr.Stop()
	mgr.Stop() // a second Stop must not panic or double-close anything

	_, err := mgr.GetOrAddServer("10.0.0.3:7000")
	assert.Error(t, err)
}

func TestEndpointManager_WaitAfterTerminationOnlyWhenBothSet(t *testing.T) {
	mgr, events := newTestManager(remote.ManagerConfig{WaitAfterEndpointTermination: 20 * time.Millisecond})

	done := make(chan struct{})
	events.Subscribe(eventstream.TopicEndpointTerminated, func(event any) {
		close(done)
	}, func(fn func()) { fn() })

	start := time.Now()
	events.Publish(eventstream.TopicEndpointTerminated, remote.EndpointTerminatedEvent{
		ShouldBlock: true,
		Address:     "10.0.0.4:7000",
	})
	<-done
	require.Eventually(t, func() bool {
		_, blocked := mgr.BlockedSince("10.0.0.4:7000")
		return blocked
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		_, blocked := mgr.BlockedSince("10.0.0.4:7000")
		return !blocked
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

// TestEndpointManager_ManyUnreachableDialsDoNotBlockOutboundProgress is the
// termination-deadlock-regression scenario: a burst of connect attempts to
// addresses with no listener must all make progress toward Terminated
// within a fixed window rather than piling up behind the manager's
// coordination lock.
func TestEndpointManager_ManyUnreachableDialsDoNotBlockOutboundProgress(t *testing.T) {
	mgr, events := newTestManager(remote.ManagerConfig{})

	const n = 30
	var wg sync.WaitGroup
	wg.Add(n)
	events.Subscribe(eventstream.TopicEndpointTerminated, func(event any) {
		wg.Done()
	}, eventstream.GoDispatcher)

	deadline := time.After(time.Second)
	for i := 0; i < n; i++ {
		_, err := mgr.GetOrAddServer("10.0.1." + string(rune('a'+i)) + ":9000")
		require.NoError(t, err)
	}

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()

	select {
	case <-waitDone:
	case <-deadline:
		t.Fatal("not all endpoints reached terminated within 1 second")
	}
}
