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

// Package testkit provides an in-memory harness for exercising actors
// without a real remote endpoint or cluster, grounded on the teacher's own
// testkit package (TestKit/Probe) generalized from proto.Message payloads
// to this module's plain `any` message type.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/relaycore/relay/actor"
	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/pid"
)

// Harness wraps one freshly built ActorSystem for the lifetime of a test.
type Harness struct {
	t      *testing.T
	system *actor.ActorSystem
}

// New builds a Harness backed by a discard logger unless WithLogger is
// passed.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	h := &Harness{t: t, system: nil}
	cfg := &options{logger: log.DiscardLogger}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	h.system = actor.New("testkit", actor.WithLogger(cfg.logger))
	return h
}

// System returns the underlying ActorSystem, for assertions a Harness
// helper does not cover directly.
func (h *Harness) System() *actor.ActorSystem { return h.system }

// Spawn creates a top-level actor under the harness's system, failing the
// test immediately on error.
func (h *Harness) Spawn(name string, props actor.Props, opts ...actor.RefOption) *actor.Ref {
	h.t.Helper()
	ref, err := h.system.Spawn(name, props, opts...)
	if err != nil {
		h.t.Fatalf("testkit: spawn %s: %v", name, err)
	}
	return ref
}

// Ask sends msg to target and blocks for a reply, failing the test on
// error or timeout.
func (h *Harness) Ask(target pid.PID, msg any, timeout time.Duration) any {
	h.t.Helper()
	reply, err := h.system.Ask(context.Background(), target, msg, timeout)
	if err != nil {
		h.t.Fatalf("testkit: ask %s: %v", target, err)
	}
	return reply
}

// NewProbe spawns a fresh Probe under the harness's system.
func (h *Harness) NewProbe() Probe {
	h.t.Helper()
	return newProbe(h.t, h.system)
}

// Shutdown stops every actor spawned through this harness, failing the
// test if the tree does not drain within 5s.
func (h *Harness) Shutdown() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.system.Shutdown(ctx); err != nil {
		h.t.Fatalf("testkit: shutdown: %v", err)
	}
}

type options struct {
	logger log.Logger
}

// Option configures a Harness at construction time.
type Option interface{ apply(*options) }

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithLogger overrides the harness's discard-logger default.
func WithLogger(l log.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}
