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

package actor

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/relaycore/relay/errors"
	"github.com/relaycore/relay/eventstream"
	"github.com/relaycore/relay/internal/workerpool"
	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
	"github.com/relaycore/relay/registry"
	"github.com/relaycore/relay/supervisor"
)

// ActorSystem is the root of one node's actor kernel: it owns the process
// registry, the event stream, and every top-level actor. Grounded on
// actor_system.go's spawn/registry/event-stream/shutdown responsibilities.
type ActorSystem struct {
	address       string
	logger        log.Logger
	registry      *registry.Registry
	events        *eventstream.Stream
	defaultPolicy *supervisor.Policy
	workers       *workerpool.Group

	ctx    context.Context
	cancel context.CancelFunc

	topMu    sync.RWMutex
	topLevel map[string]*Ref

	stopping atomic.Bool
}

// Option configures an ActorSystem at construction time.
type Option func(*ActorSystem)

// WithLogger overrides the system-wide default logger.
func WithLogger(l log.Logger) Option { return func(s *ActorSystem) { s.logger = l } }

// WithDefaultSupervisorPolicy overrides the policy applied to top-level
// actors and any actor spawned without an explicit WithSupervisorPolicy.
func WithDefaultSupervisorPolicy(p *supervisor.Policy) Option {
	return func(s *ActorSystem) { s.defaultPolicy = p }
}

// New builds an ActorSystem bound to address, the identity every PID it
// mints will carry as its Address field.
func New(address string, opts ...Option) *ActorSystem {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ActorSystem{
		address:       address,
		logger:        log.DiscardLogger,
		defaultPolicy: supervisor.New(),
		workers:       workerpool.New(),
		ctx:           ctx,
		cancel:        cancel,
		topLevel:      make(map[string]*Ref),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = registry.New(address, registry.NewDeadLetter(s.logger))
	s.events = eventstream.New(s.logger)
	return s
}

// Address returns this system's local address.
func (s *ActorSystem) Address() string { return s.address }

// Registry returns the process registry backing Spawn/Tell resolution.
func (s *ActorSystem) Registry() *registry.Registry { return s.registry }

// EventStream returns the system's pub/sub bus.
func (s *ActorSystem) EventStream() *eventstream.Stream { return s.events }

// Logger returns the system-wide default logger.
func (s *ActorSystem) Logger() log.Logger { return s.logger }

// Workers returns the tracked-goroutine group components outside the actor
// kernel (the endpoint manager, the gossip layer, discovery pollers) should
// register their long-running loops on, so Shutdown can await them.
func (s *ActorSystem) Workers() *workerpool.Group { return s.workers }

// Context returns the system's base context, cancelled once Shutdown runs.
func (s *ActorSystem) Context() context.Context { return s.ctx }

func (s *ActorSystem) baseContext() context.Context { return s.ctx }

// Spawn creates a top-level actor under this system, identified by name.
func (s *ActorSystem) Spawn(name string, props Props, opts ...RefOption) (*Ref, error) {
	if s.stopping.Load() {
		return nil, errors.ErrSystemShuttingDown
	}
	ref := newRef(s, nil, pid.New(s.address, name), name, props, opts...)
	if _, added, err := s.registry.Add(name, ref); !added {
		return nil, err
	}
	s.topMu.Lock()
	s.topLevel[name] = ref
	s.topMu.Unlock()
	ref.kickoff()
	return ref, nil
}

func (s *ActorSystem) removeTopLevel(name string) {
	s.topMu.Lock()
	delete(s.topLevel, name)
	s.topMu.Unlock()
}

func (s *ActorSystem) reportTopLevelFailure(r *Ref, reason error) {
	s.logger.Errorf("top-level actor %s failed with no supervisor, stopping: %v", r.id, reason)
}

// Ask sends msg to target and waits for a reply, implementing request/reply
// correlation on top of async send (spec §1). It is the package-level
// equivalent of Context.Ask for callers outside any actor.
func (s *ActorSystem) Ask(std context.Context, target pid.PID, msg any, timeout time.Duration) (any, error) {
	return s.ask(std, pid.PID{}, target, msg, timeout)
}

func (s *ActorSystem) ask(std context.Context, from pid.PID, target pid.PID, msg any, timeout time.Duration) (any, error) {
	requestID := uuid.NewString()
	replyTo := pid.New(s.address, "$ask/"+requestID)

	waiter := &askWaiter{ch: make(chan any, 1)}
	if _, added, err := s.registry.Add(replyTo.ID, waiter); !added {
		return nil, err
	}
	defer s.registry.Remove(replyTo)

	if !from.IsZero() {
		s.logger.Debugf("ask: %s -> %s (request %s)", from, target, requestID)
	}
	env := message.NewEnvelope(target, &replyTo, msg)
	if err := s.registry.Get(target).SendUser(env); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-waiter.ch:
		return reply, nil
	case <-timer.C:
		return nil, errors.ErrRequestTimeout
	case <-std.Done():
		return nil, std.Err()
	case <-s.ctx.Done():
		return nil, errors.ErrSystemShuttingDown
	}
}

// askWaiter is a one-shot registry.Sink used only to capture an Ask reply.
type askWaiter struct{ ch chan any }

func (w *askWaiter) SendUser(env *message.Envelope) error {
	select {
	case w.ch <- env.Message:
	default:
	}
	return nil
}
func (w *askWaiter) SendSystem(*message.Envelope) {}
func (w *askWaiter) Stop() error                  { return nil }

// Shutdown stops every top-level actor and waits for the whole tree beneath
// each of them to reach Stopped, then shuts down the event stream and
// cancels the system's base context. Errors from stopping individual
// actors are aggregated with go.uber.org/multierr rather than abandoning
// the sweep on the first failure.
func (s *ActorSystem) Shutdown(ctx context.Context) error {
	if !s.stopping.CompareAndSwap(false, true) {
		return nil
	}

	s.topMu.RLock()
	tops := make([]*Ref, 0, len(s.topLevel))
	for _, r := range s.topLevel {
		tops = append(tops, r)
	}
	s.topMu.RUnlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs error
	for _, r := range tops {
		wg.Add(1)
		go func(r *Ref) {
			defer wg.Done()
			if err := r.Stop(); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return
			}
			select {
			case <-r.Stopped():
			case <-ctx.Done():
				mu.Lock()
				errs = multierr.Append(errs, ctx.Err())
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	s.events.Shutdown()
	s.cancel()
	if err := s.workers.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Diagnostics reports a coarse snapshot of system state, per spec §6
// Diagnostics capability.
func (s *ActorSystem) Diagnostics() map[string]string {
	return map[string]string{
		"address":       s.address,
		"localActors":   strconv.Itoa(s.registry.LocalCount()),
		"topLevelCount": strconv.Itoa(len(s.snapshotTopLevel())),
		"stopping":      strconv.FormatBool(s.stopping.Load()),
	}
}

func (s *ActorSystem) snapshotTopLevel() []*Ref {
	s.topMu.RLock()
	defer s.topMu.RUnlock()
	out := make([]*Ref, 0, len(s.topLevel))
	for _, r := range s.topLevel {
		out = append(out, r)
	}
	return out
}
