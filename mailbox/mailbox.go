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

// Package mailbox implements Component A: the per-actor FIFO queue pair
// (system + user) with an at-most-one dispatch loop.
//
// Concurrency and ordering
//   - PostUserMessage and PostSystemMessage are thread-safe and
//     non-blocking, safe for many concurrent producers.
//   - Exactly one dispatch loop runs per Mailbox at a time, scheduled via a
//     CAS on an internal running flag.
//   - System messages are always drained ahead of the next user message.
//   - When Suspend()'d, user messages keep accumulating but system
//     messages still run.
package mailbox

import (
	"sync/atomic"

	"github.com/relaycore/relay/message"
)

// Invoker is the callback pair a Mailbox drives messages into. It plays
// the role of the actor runtime in goakt's pid.go process() loop: exactly
// one of these two methods is called per dequeued envelope.
type Invoker interface {
	// InvokeSystemMessage handles a system-priority envelope. A failure
	// while handling it is fatal to the actor (spec §4.A).
	InvokeSystemMessage(env *message.Envelope)
	// InvokeUserMessage handles a user envelope. An error raised while
	// processing transitions the mailbox to suspended and is reported to
	// the actor's supervisor as a Failure system message.
	InvokeUserMessage(env *message.Envelope)
}

// Scheduler abstracts where the dispatch loop's goroutine runs, so tests
// can substitute a synchronous scheduler. The default is "go fn()".
type Scheduler func(fn func())

// GoScheduler runs fn on a freshly spawned goroutine.
func GoScheduler(fn func()) { go fn() }

const defaultThroughput = 300

// Mailbox is the default, lock-free, unbounded dual-queue mailbox.
//
// Its zero value is not usable; always construct via New.
type Mailbox struct {
	sys  *ring
	user *ring

	invoker   Invoker
	scheduler Scheduler
	throughput int

	running   atomic.Bool
	suspended atomic.Bool
	disposed  atomic.Bool
}

// Option configures a Mailbox at construction time.
type Option func(*Mailbox)

// WithThroughput overrides the number of messages drained per dispatch
// pass before the loop cooperatively reschedules itself, so no single
// actor can starve the rest of the system (spec §4.A).
func WithThroughput(n int) Option {
	return func(m *Mailbox) {
		if n > 0 {
			m.throughput = n
		}
	}
}

// WithScheduler overrides how the dispatch loop's goroutine is launched.
func WithScheduler(s Scheduler) Option {
	return func(m *Mailbox) { m.scheduler = s }
}

// New builds a Mailbox bound to invoker. The mailbox will not process any
// message until the first PostUserMessage/PostSystemMessage call arrives.
func New(invoker Invoker, opts ...Option) *Mailbox {
	m := &Mailbox{
		sys:        newRing(),
		user:       newRing(),
		invoker:    invoker,
		scheduler:  GoScheduler,
		throughput: defaultThroughput,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PostUserMessage enqueues a user envelope and schedules the dispatch loop
// if it is not already running.
func (m *Mailbox) PostUserMessage(env *message.Envelope) error {
	if m.disposed.Load() {
		return nil
	}
	m.user.push(env)
	m.schedule()
	return nil
}

// PostSystemMessage enqueues a system envelope and schedules the dispatch
// loop if it is not already running. Like PostUserMessage, it drops the
// envelope once the mailbox is disposed.
func (m *Mailbox) PostSystemMessage(env *message.Envelope) {
	if m.disposed.Load() {
		return
	}
	m.sys.push(env)
	m.schedule()
}

// Suspend stops user-message delivery; system messages keep flowing.
func (m *Mailbox) Suspend() { m.suspended.Store(true) }

// Resume re-enables user-message delivery and kicks the dispatch loop in
// case messages piled up while suspended.
func (m *Mailbox) Resume() {
	m.suspended.Store(false)
	m.schedule()
}

// Suspended reports the current suspension state.
func (m *Mailbox) Suspended() bool { return m.suspended.Load() }

// Len returns systemQueue.len + userQueue.len, per spec §3.
func (m *Mailbox) Len() int64 { return m.sys.len() + m.user.len() }

// IsEmpty reports Length == 0.
func (m *Mailbox) IsEmpty() bool { return m.Len() == 0 }

// Dispose marks the mailbox unusable; further Post* calls are ignored and
// any in-flight dispatch loop finishes draining what it already has.
func (m *Mailbox) Dispose() { m.disposed.Store(true) }

// hasDeliverableWork reports whether calling run() again would deliver at
// least one message, honoring suspension: a suspended mailbox only has
// deliverable work when its system queue is non-empty.
func (m *Mailbox) hasDeliverableWork() bool {
	if !m.sys.isEmpty() {
		return true
	}
	return !m.suspended.Load() && !m.user.isEmpty()
}

// schedule performs the CAS that guarantees at most one dispatch loop runs
// per mailbox at a time (spec §4.A).
func (m *Mailbox) schedule() {
	if m.running.CompareAndSwap(false, true) {
		m.scheduler(m.run)
	}
}

// run is the dispatch loop body. It drains up to throughput messages,
// system queue first, then cooperatively reschedules so one busy actor
// cannot starve the rest of the executor. The outer loop replaces what
// would otherwise be a self-recursive reschedule, keeping the goroutine's
// stack flat across arbitrarily many reschedule passes.
func (m *Mailbox) run() {
	for {
		processed := 0
		for {
			if env := m.sys.pop(); env != nil {
				m.invoker.InvokeSystemMessage(env)
				processed++
			} else if !m.suspended.Load() {
				if env := m.user.pop(); env != nil {
					m.invoker.InvokeUserMessage(env)
					processed++
				} else {
					break
				}
			} else {
				break
			}

			if processed >= m.throughput {
				break
			}
		}

		m.running.Store(false)
		if !m.hasDeliverableWork() || !m.running.CompareAndSwap(false, true) {
			return
		}
	}
}
