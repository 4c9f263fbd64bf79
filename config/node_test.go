package config_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/relaycore/relay/config"
	"github.com/relaycore/relay/discovery"
)

func TestNewNode_WithoutClusterWiresSystemAndRemote(t *testing.T) {
	cfg := config.New("127.0.0.1:0")
	node, err := config.NewNode(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, node.System)
	require.NotNil(t, node.Remote)
	require.Nil(t, node.Gossiper)
	require.Nil(t, node.Discovery)

	require.NoError(t, node.Shutdown(context.Background()))
}

// TestNewNode_WithDiscoverySeedsGossipAndTracksKnownPeers exercises spec
// §4.I end to end: a Node configured with a discovery.Provider starts a
// Seeder whose initial snapshot feeds the gossip join list (rather than
// cfg.Cluster.Seeds alone), and the Seeder's own Known() set reflects what
// it bootstrapped from.
func TestNewNode_WithDiscoverySeedsGossipAndTracksKnownPeers(t *testing.T) {
	ports := dynaport.Get(2)

	cfg1 := config.New("node1", config.WithCluster(&config.ClusterConfig{
		BindAddr: "127.0.0.1",
		BindPort: ports[0],
	}))
	node1, err := config.NewNode(context.Background(), cfg1)
	require.NoError(t, err)
	defer func() { _ = node1.Shutdown(context.Background()) }()

	seedAddr := fmt.Sprintf("127.0.0.1:%d", ports[0])
	provider := discovery.NewStaticProvider([]string{seedAddr}, nil)
	cfg2 := config.New("node2", config.WithCluster(&config.ClusterConfig{
		BindAddr: "127.0.0.1",
		BindPort: ports[1],
	}), config.WithDiscovery(provider))

	node2, err := config.NewNode(context.Background(), cfg2)
	require.NoError(t, err)
	defer func() { _ = node2.Shutdown(context.Background()) }()

	require.NotNil(t, node2.Discovery)
	assert.Contains(t, node2.Discovery.Known(), seedAddr)

	require.Eventually(t, func() bool {
		members, err := node2.Gossiper.Members()
		return err == nil && len(members) == 2
	}, 3*time.Second, 20*time.Millisecond, "node2 never observed node1 via the discovery-seeded join")
}
