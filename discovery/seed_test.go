package discovery_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaycore/relay/discovery"
	"github.com/relaycore/relay/eventstream"
)

type flexProvider struct {
	mu    sync.Mutex
	peers []string
}

func (p *flexProvider) ID() string                          { return "flex" }
func (p *flexProvider) Initialize() error                   { return nil }
func (p *flexProvider) Register() error                     { return nil }
func (p *flexProvider) Deregister() error                   { return nil }
func (p *flexProvider) SetConfig(discovery.Config) error    { return nil }
func (p *flexProvider) setPeers(peers []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers = peers
}
func (p *flexProvider) DiscoverPeers() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.peers...), nil
}

func TestSeeder_StartPublishesInitialSnapshotAsJoins(t *testing.T) {
	provider := &flexProvider{peers: []string{"10.0.0.1:4000", "10.0.0.2:4000"}}
	events := eventstream.New(nil)

	var mu sync.Mutex
	joined := make(map[string]bool)
	events.Subscribe(eventstream.TopicMemberJoined, func(event any) {
		mu.Lock()
		defer mu.Unlock()
		joined[event.(discovery.MemberJoined).Address] = true
	}, eventstream.GoDispatcher)

	seeder := discovery.NewSeeder(provider, events, discovery.SeederConfig{PollInterval: time.Hour})
	peers, err := seeder.Start(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"10.0.0.1:4000", "10.0.0.2:4000"}, peers)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return joined["10.0.0.1:4000"] && joined["10.0.0.2:4000"]
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, seeder.Stop())
}

func TestSeeder_DiffPublishesJoinAndLeaveAcrossPolls(t *testing.T) {
	provider := &flexProvider{peers: []string{"10.0.0.1:4000"}}
	events := eventstream.New(nil)

	var mu sync.Mutex
	var joinedCount, leftCount int
	events.Subscribe(eventstream.TopicMemberJoined, func(event any) {
		mu.Lock()
		defer mu.Unlock()
		joinedCount++
	}, eventstream.GoDispatcher)
	events.Subscribe(eventstream.TopicMemberLeft, func(event any) {
		mu.Lock()
		defer mu.Unlock()
		leftCount++
	}, eventstream.GoDispatcher)

	seeder := discovery.NewSeeder(provider, events, discovery.SeederConfig{PollInterval: 20 * time.Millisecond})
	_, err := seeder.Start(context.Background())
	require.NoError(t, err)
	defer seeder.Stop()

	provider.setPeers([]string{"10.0.0.2:4000"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return joinedCount >= 2 && leftCount >= 1
	}, 2*time.Second, 20*time.Millisecond)

	require.ElementsMatch(t, []string{"10.0.0.2:4000"}, seeder.Known())
}

func TestSeeder_StopIsIdempotent(t *testing.T) {
	provider := &flexProvider{}
	events := eventstream.New(nil)
	seeder := discovery.NewSeeder(provider, events, discovery.SeederConfig{PollInterval: time.Hour})

	_, err := seeder.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, seeder.Stop())
	require.NoError(t, seeder.Stop())
}
