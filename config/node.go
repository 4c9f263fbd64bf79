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

package config

import (
	"context"
	"fmt"

	"github.com/relaycore/relay/actor"
	"github.com/relaycore/relay/cluster"
	"github.com/relaycore/relay/codec"
	"github.com/relaycore/relay/discovery"
	"github.com/relaycore/relay/remote"
)

// Node is one running instance assembled from a Config: an ActorSystem,
// its remote Endpoint Manager, and, when ClusterEnabled, a gossip layer
// and (if cfg.Discovery is set) a Seeder polling it for topology changes.
// This is the single place that wires every Component (A-I) together the
// way goakt's top-level NewActorSystem wires its own collaborators from
// one option list.
type Node struct {
	System    *actor.ActorSystem
	Remote    *remote.EndpointManager
	Gossiper  *cluster.Gossiper
	Discovery *discovery.Seeder
}

// NewNode builds and starts a Node from cfg. If cfg.Cluster is set, the
// gossip layer is started and, if cfg.Discovery is also set, a Seeder is
// started first: its initial snapshot seeds the join list, and its
// background poll loop keeps publishing MemberJoined/MemberLeft onto the
// event stream for as long as the Node runs (spec §4.I: "Bootstraps the
// initial peer set and publishes topology changes").
func NewNode(ctx context.Context, cfg *Config) (*Node, error) {
	sys := actor.New(cfg.Address,
		actor.WithLogger(cfg.Logger),
		actor.WithDefaultSupervisorPolicy(cfg.SupervisorPolicy),
	)

	mgr := remote.NewEndpointManager(
		cfg.Address,
		remote.NewNetChannelProvider(),
		codec.New(),
		sys.Registry(),
		sys.EventStream(),
		cfg.Logger,
		cfg.Remote,
	)

	node := &Node{System: sys, Remote: mgr}

	if cfg.Cluster == nil {
		return node, nil
	}

	seeds := append([]string(nil), cfg.Cluster.Seeds...)
	if cfg.Discovery != nil {
		seeder := discovery.NewSeeder(cfg.Discovery, sys.EventStream(), discovery.SeederConfig{
			Logger: cfg.Logger,
		})
		discovered, err := seeder.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("config: start discovery seeder: %w", err)
		}
		seeds = append(seeds, discovered...)
		node.Discovery = seeder
	}

	store := cluster.NewStore(cfg.Address)
	gossiper := cluster.NewGossiper(cluster.Member{ID: cfg.Address, Address: cfg.Cluster.BindAddr}, store, cluster.GossipConfig{
		BindAddr: cfg.Cluster.BindAddr,
		BindPort: cfg.Cluster.BindPort,
		Fanout:   cfg.Cluster.Fanout,
		Interval: cfg.Cluster.Interval,
		Logger:   cfg.Logger,
	})
	if err := gossiper.Start(ctx, seeds); err != nil {
		if node.Discovery != nil {
			_ = node.Discovery.Stop()
		}
		return nil, fmt.Errorf("config: start gossip layer: %w", err)
	}
	node.Gossiper = gossiper

	return node, nil
}

// Shutdown stops the discovery seeder (if running), the gossip layer (if
// running), the Endpoint Manager, and the actor system, in that order.
func (n *Node) Shutdown(ctx context.Context) error {
	if n.Discovery != nil {
		if err := n.Discovery.Stop(); err != nil {
			return err
		}
	}
	if n.Gossiper != nil {
		if err := n.Gossiper.Stop(ctx); err != nil {
			return err
		}
	}
	n.Remote.Stop()
	return n.System.Shutdown(ctx)
}
