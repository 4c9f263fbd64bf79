package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaycore/relay/config"
	"github.com/relaycore/relay/supervisor"
)

func TestNew_AppliesDefaults(t *testing.T) {
	cfg := config.New("127.0.0.1:4000")
	assert.Equal(t, "127.0.0.1:4000", cfg.Address)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.SupervisorPolicy)
	assert.Equal(t, 5*time.Second, cfg.AskTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.ClusterEnabled())
}

func TestNew_OptionsOverrideDefaults(t *testing.T) {
	policy := supervisor.New(supervisor.WithStrategy(supervisor.AllForOne))
	cluster := &config.ClusterConfig{BindAddr: "127.0.0.1", BindPort: 7000, Fanout: 2, Interval: time.Second}

	cfg := config.New("127.0.0.1:4000",
		config.WithSupervisorPolicy(policy),
		config.WithAskTimeout(2*time.Second),
		config.WithShutdownTimeout(3*time.Second),
		config.WithWaitAfterEndpointTermination(500*time.Millisecond),
		config.WithCluster(cluster),
	)

	assert.Same(t, policy, cfg.SupervisorPolicy)
	assert.Equal(t, 2*time.Second, cfg.AskTimeout)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Remote.WaitAfterEndpointTermination)
	assert.True(t, cfg.ClusterEnabled())
	assert.Same(t, cluster, cfg.Cluster)
}
