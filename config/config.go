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

// Package config assembles one node's ActorSystem, remote Endpoint
// Manager, gossip layer, and discovery provider from a single
// functional-option configuration, the way goakt's actor/option.go lets a
// caller build one *system from a flat option list instead of wiring each
// collaborator by hand.
package config

import (
	"time"

	"github.com/relaycore/relay/discovery"
	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/remote"
	"github.com/relaycore/relay/supervisor"
)

// ClusterConfig controls the gossip layer a Config wires up, mirroring
// goakt's own *ClusterConfig passed to WithCluster.
type ClusterConfig struct {
	// BindAddr/BindPort are the local memberlist listener address.
	BindAddr string
	BindPort int
	// Seeds lists "host:port" addresses of existing cluster members to
	// join on Start; empty bootstraps a new cluster.
	Seeds []string
	// Fanout is how many peers each gossip round pushes deltas to.
	Fanout int
	// Interval is the gossip round period.
	Interval time.Duration
}

// Config is the flat set of knobs a node is built from.
type Config struct {
	Address string
	Logger  log.Logger

	SupervisorPolicy *supervisor.Policy
	AskTimeout       time.Duration
	ShutdownTimeout  time.Duration

	Remote  remote.ManagerConfig
	Cluster *ClusterConfig

	Discovery discovery.Provider
}

// Option applies one setting to a Config, mirroring goakt's Option/
// OptionFunc/Apply shape in actor/option.go.
type Option interface {
	Apply(cfg *Config)
}

// OptionFunc adapts a plain function to Option.
type OptionFunc func(*Config)

// Apply calls f.
func (f OptionFunc) Apply(cfg *Config) { f(cfg) }

var _ Option = OptionFunc(nil)

// WithLogger overrides the node-wide logger injected into every
// collaborator that accepts one.
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(cfg *Config) { cfg.Logger = logger })
}

// WithSupervisorPolicy overrides the default policy applied to top-level
// actors.
func WithSupervisorPolicy(policy *supervisor.Policy) Option {
	return OptionFunc(func(cfg *Config) { cfg.SupervisorPolicy = policy })
}

// WithAskTimeout sets Config.AskTimeout. Nothing in this module reads
// that field: NewNode does not pass it on, and ActorSystem.Ask takes its
// timeout on every call.
func WithAskTimeout(timeout time.Duration) Option {
	return OptionFunc(func(cfg *Config) { cfg.AskTimeout = timeout })
}

// WithShutdownTimeout sets Config.ShutdownTimeout. Nothing in this module
// reads that field: Node.Shutdown and ActorSystem.Shutdown are bounded
// only by the context their caller passes.
func WithShutdownTimeout(timeout time.Duration) Option {
	return OptionFunc(func(cfg *Config) { cfg.ShutdownTimeout = timeout })
}

// WithWaitAfterEndpointTermination sets the Endpoint Manager's
// post-termination delay (spec §9 Open Question, resolved: applies only
// together with a blocking termination).
func WithWaitAfterEndpointTermination(d time.Duration) Option {
	return OptionFunc(func(cfg *Config) { cfg.Remote.WaitAfterEndpointTermination = d })
}

// WithCluster enables the gossip layer with the given configuration.
func WithCluster(cluster *ClusterConfig) Option {
	return OptionFunc(func(cfg *Config) { cfg.Cluster = cluster })
}

// WithDiscovery installs the Provider used to seed cluster membership.
func WithDiscovery(provider discovery.Provider) Option {
	return OptionFunc(func(cfg *Config) { cfg.Discovery = provider })
}

// New builds a Config for address with defaults matching the teacher's own
// system defaults (OneForOne/AlwaysRestart supervision, a 5s ask timeout,
// a 10s shutdown timeout), then applies opts in order.
func New(address string, opts ...Option) *Config {
	cfg := &Config{
		Address:          address,
		Logger:           log.DiscardLogger,
		SupervisorPolicy: supervisor.New(),
		AskTimeout:       5 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	return cfg
}

// ClusterEnabled reports whether this Config wires up the gossip layer.
func (c *Config) ClusterEnabled() bool { return c.Cluster != nil }
