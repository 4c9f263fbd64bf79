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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaycore/relay/internal/syncmap"
	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/mailbox"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
	"github.com/relaycore/relay/supervisor"
)

// Ref is the live local process backing one actor instance: it owns a
// Mailbox, drives the lifecycle state machine, and tracks watchers and
// children. Grounded on the teacher's pid.go process/doReceive/
// freeWatchers/freeChildren split.
type Ref struct {
	id     pid.PID
	name   string
	props  Props
	system *ActorSystem
	parent *Ref
	logger log.Logger

	mbox  *mailbox.Mailbox
	state *lifecycle

	actor Actor

	policy *supervisor.Policy
	stats  *supervisor.RestartStatistics

	children *syncmap.Map[string, *Ref]

	// directives records the last directive applied to each named child,
	// grounded on the teacher's own per-actor directives table
	// (actor/supervisor.go's directives *syncmap.Map[string, Directive]);
	// exposed via LastDirective for diagnostics and tests.
	directives *syncmap.Map[string, supervisor.Directive]

	watchersMu sync.Mutex
	watchers   map[pid.PID]struct{}

	restartCount atomic.Int32
	stopped      chan struct{}
	stopOnce     sync.Once
}

// RefOption configures a Ref at spawn time.
type RefOption func(*refConfig)

type refConfig struct {
	mailboxOpts []mailbox.Option
	policy      *supervisor.Policy
	logger      log.Logger
}

// WithMailboxOptions passes through mailbox construction options (e.g.
// WithThroughput) to the actor's mailbox.
func WithMailboxOptions(opts ...mailbox.Option) RefOption {
	return func(c *refConfig) { c.mailboxOpts = opts }
}

// WithSupervisorPolicy overrides the default policy used to decide how
// this actor's own children's failures are handled.
func WithSupervisorPolicy(p *supervisor.Policy) RefOption {
	return func(c *refConfig) { c.policy = p }
}

// WithRefLogger overrides the logger this actor and its Context use.
func WithRefLogger(l log.Logger) RefOption {
	return func(c *refConfig) { c.logger = l }
}

func newRef(system *ActorSystem, parent *Ref, id pid.PID, name string, props Props, opts ...RefOption) *Ref {
	cfg := &refConfig{policy: system.defaultPolicy, logger: system.logger}
	for _, opt := range opts {
		opt(cfg)
	}
	r := &Ref{
		id:       id,
		name:     name,
		props:    props,
		system:   system,
		parent:   parent,
		logger:   cfg.logger.With(),
		state:    newLifecycle(),
		actor:    props(),
		policy:     cfg.policy,
		stats:      supervisor.NewRestartStatistics(),
		children:   syncmap.New[string, *Ref](),
		directives: syncmap.New[string, supervisor.Directive](),
		watchers:   make(map[pid.PID]struct{}),
		stopped:    make(chan struct{}),
	}
	r.mbox = mailbox.New(r, cfg.mailboxOpts...)
	return r
}

// kickoff posts the initial Started system message, entering PreStart.
func (r *Ref) kickoff() {
	r.mbox.PostSystemMessage(message.NewEnvelope(r.id, nil, &message.Started{}))
}

// PID returns this actor's identity.
func (r *Ref) PID() pid.PID { return r.id }

// State returns the current lifecycle state, for diagnostics/tests.
func (r *Ref) State() State { return r.state.Load() }

// RestartCount reports how many times this actor has been restarted.
func (r *Ref) RestartCount() int32 { return r.restartCount.Load() }

// Stopped returns a channel closed once this actor reaches the Stopped
// state.
func (r *Ref) Stopped() <-chan struct{} { return r.stopped }

// SendUser implements registry.Sink.
func (r *Ref) SendUser(env *message.Envelope) error {
	return r.mbox.PostUserMessage(env)
}

// SendSystem implements registry.Sink.
func (r *Ref) SendSystem(env *message.Envelope) { r.mbox.PostSystemMessage(env) }

// Stop implements registry.Sink: requests a graceful stop.
func (r *Ref) Stop() error {
	r.mbox.PostSystemMessage(message.NewEnvelope(r.id, nil, &message.Stop{}))
	return nil
}

func (r *Ref) childPIDs() []pid.PID {
	out := make([]pid.PID, 0, r.children.Len())
	r.children.Range(func(_ string, c *Ref) {
		out = append(out, c.id)
	})
	return out
}

func (r *Ref) addChild(c *Ref) {
	r.children.Set(c.name, c)
}

func (r *Ref) removeChild(name string) {
	r.children.Delete(name)
}

func (r *Ref) lookupChild(id string) *Ref {
	var found *Ref
	r.children.Range(func(_ string, c *Ref) {
		if found == nil && c.id.ID == id {
			found = c
		}
	})
	return found
}

// LastDirective reports the most recent supervision directive applied to
// the named child, for diagnostics.
func (r *Ref) LastDirective(childName string) (supervisor.Directive, bool) {
	return r.directives.Get(childName)
}

// SpawnChild creates a child actor under r from outside a Receive call
// (e.g. during setup or in tests); actor code should prefer Context.Spawn.
func (r *Ref) SpawnChild(name string, props Props, opts ...RefOption) (*Ref, error) {
	return r.spawnChild(name, props, opts...)
}

// spawnChild builds, registers and starts a child actor under r.
func (r *Ref) spawnChild(name string, props Props, opts ...RefOption) (*Ref, error) {
	fullID := r.id.ID + "/" + name
	child := newRef(r.system, r, pid.New(r.system.address, fullID), name, props, opts...)
	if _, added, err := r.system.registry.Add(fullID, child); !added {
		return nil, err
	}
	r.addChild(child)
	child.kickoff()
	return child, nil
}

// InvokeSystemMessage implements mailbox.Invoker. Per spec §4.A, errors in
// system-message handling are fatal to the actor: a panic anywhere in this
// method, including one surfaced through deliverToActor, stops the actor
// rather than merely being logged.
func (r *Ref) InvokeSystemMessage(env *message.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic handling system message %T: %v", env.Message, rec)
			r.logger.Errorf("%v", err)
			r.handleStop(err)
		}
	}()

	switch msg := env.Message.(type) {
	case *message.Started:
		r.handleStarted()
	case *message.Stop:
		r.handleStop(nil)
	case *message.PoisonPill:
		r.handleStop(nil)
	case *message.Watch:
		r.addWatcher(msg.Watcher)
	case *message.Unwatch:
		r.removeWatcher(msg.Watcher)
	case *message.Terminated:
		// A watched dependency died; default behavior is to ignore unless
		// the embedding actor observes it via Receive. Forwarded below.
		if err := r.deliverToActor(env); err != nil {
			r.handleStop(err)
		}
	case *message.Failure:
		r.handleChildFailure(msg)
	default:
		if err := r.deliverToActor(env); err != nil {
			r.handleStop(err)
		}
	}
}

// deliverToActor runs the actor's Receive for a message the Ref itself has
// no built-in handling for (used for Terminated notifications and any
// user-defined system-priority message types). A panic is recovered and
// returned rather than merely logged, so the caller can treat it as fatal.
func (r *Ref) deliverToActor(env *message.Envelope) (err error) {
	ctx := newContext(r.system.baseContext(), r, env)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Receive for %T: %v", env.Message, rec)
			r.logger.Errorf("%v", err)
		}
	}()
	r.actor.Receive(ctx)
	return nil
}

// InvokeUserMessage implements mailbox.Invoker.
func (r *Ref) InvokeUserMessage(env *message.Envelope) {
	if r.state.Load() == Stopped || r.state.Load() == Stopping {
		r.system.registry.DeadLetter().SendUser(env)
		return
	}
	r.state.transition(Receiving)

	ctx := newContext(r.system.baseContext(), r, env)
	var failure error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				failure = fmt.Errorf("panic in Receive: %v", rec)
			}
		}()
		r.actor.Receive(ctx)
		if ctx.err != nil {
			failure = ctx.err
		}
	}()

	r.state.transition(Idle)

	if failure != nil {
		r.fail(failure)
	}
}

func (r *Ref) handleStarted() {
	ctx := newContext(r.system.baseContext(), r, nil)
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic in PreStart: %v", rec)
			}
		}()
		return r.actor.PreStart(ctx)
	}()
	if err != nil {
		r.logger.Errorf("PreStart failed for %s: %v", r.id, err)
		r.fail(err)
		return
	}
	r.state.transition(Idle)
}

// fail reports reason to the supervising parent as a Failure system
// message, suspending this actor's mailbox until the parent decides a
// directive. An actor with no parent (a top-level actor) has no supervisor
// to escalate to, so it stops itself.
func (r *Ref) fail(reason error) {
	r.mbox.Suspend()
	if r.parent == nil {
		r.system.reportTopLevelFailure(r, reason)
		r.handleStop(reason)
		return
	}
	r.parent.mbox.PostSystemMessage(message.NewEnvelope(r.parent.id, nil, &message.Failure{Child: r.id, Reason: reason}))
}

func (r *Ref) handleChildFailure(msg *message.Failure) {
	child := r.lookupChild(childName(msg.Child.ID))
	if child == nil {
		return
	}
	directive := r.policy.DirectiveFor(time.Now(), msg.Reason, child.stats)
	r.directives.Set(child.name, directive)
	r.logger.Warnf("child %s failed (%v): directive=%s", msg.Child, msg.Reason, directive)

	switch directive {
	case supervisor.Resume:
		child.mbox.Resume()
	case supervisor.Restart:
		if r.policy.Strategy == supervisor.AllForOne {
			for _, sibling := range r.snapshotChildren() {
				sibling.restart(msg.Reason)
			}
		} else {
			child.restart(msg.Reason)
		}
	case supervisor.Stop:
		if r.policy.Strategy == supervisor.AllForOne {
			for _, sibling := range r.snapshotChildren() {
				_ = sibling.Stop()
			}
		} else {
			_ = child.Stop()
		}
	case supervisor.Escalate:
		r.fail(msg.Reason)
	}
}

func childName(fullID string) string {
	for i := len(fullID) - 1; i >= 0; i-- {
		if fullID[i] == '/' {
			return fullID[i+1:]
		}
	}
	return fullID
}

// restart tears the current actor instance down and replaces it with a
// fresh one from props, per spec §4.C: children are stopped, the old
// instance observes Restarting, a new instance observes Started, and
// queued user messages survive because the mailbox's user ring is never
// drained, only suspended for the duration.
func (r *Ref) restart(reason error) {
	if !r.state.transition(Restarting) {
		return
	}
	r.stopChildrenAndWait()

	ctx := newContext(r.system.baseContext(), r, message.NewEnvelope(r.id, nil, &message.Restarting{Reason: reason}))
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Errorf("panic in Receive(Restarting): %v", rec)
			}
		}()
		r.actor.Receive(ctx)
	}()

	r.actor = r.props()
	r.state.forceTransition(Starting)
	r.restartCount.Add(1)
	r.stats.RecordRestart()
	r.handleStarted()
	r.mbox.Resume()
}

func (r *Ref) snapshotChildren() []*Ref {
	out := make([]*Ref, 0, r.children.Len())
	r.children.Range(func(_ string, c *Ref) {
		out = append(out, c)
	})
	return out
}

func (r *Ref) stopChildrenAndWait() {
	children := r.snapshotChildren()
	var wg sync.WaitGroup
	for _, c := range children {
		wg.Add(1)
		go func(c *Ref) {
			defer wg.Done()
			_ = c.Stop()
			<-c.stopped
		}(c)
	}
	wg.Wait()
}

func (r *Ref) handleStop(reason error) {
	if !r.state.transition(Stopping) {
		return
	}
	r.stopChildrenAndWait()

	ctx := newContext(r.system.baseContext(), r, nil)
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic in PostStop: %v", rec)
			}
		}()
		return r.actor.PostStop(ctx)
	}()
	if err != nil {
		r.logger.Errorf("PostStop failed for %s: %v", r.id, err)
	}

	r.system.registry.Remove(r.id)
	r.mbox.Dispose()
	r.state.forceTransition(Stopped)
	r.stopOnce.Do(func() { close(r.stopped) })
	r.notifyWatchers(reason)

	if r.parent != nil {
		r.parent.removeChild(r.name)
	} else {
		r.system.removeTopLevel(r.name)
	}
}

func (r *Ref) addWatcher(w pid.PID) {
	r.watchersMu.Lock()
	defer r.watchersMu.Unlock()
	r.watchers[w] = struct{}{}
}

func (r *Ref) removeWatcher(w pid.PID) {
	r.watchersMu.Lock()
	defer r.watchersMu.Unlock()
	delete(r.watchers, w)
}

func (r *Ref) notifyWatchers(reason error) {
	r.watchersMu.Lock()
	watchers := make([]pid.PID, 0, len(r.watchers))
	for w := range r.watchers {
		watchers = append(watchers, w)
	}
	r.watchersMu.Unlock()

	for _, w := range watchers {
		env := message.NewEnvelope(w, nil, &message.Terminated{Who: r.id, Why: reason})
		r.system.registry.Get(w).SendSystem(env)
	}
}
