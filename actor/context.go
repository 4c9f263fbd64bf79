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
	stdcontext "context"
	"time"

	"github.com/relaycore/relay/errors"
	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
)

// Context is handed to PreStart/Receive/PostStop for one lifecycle call or
// one dequeued user message. It is not safe to retain past the call it was
// passed into.
type Context struct {
	std     stdcontext.Context
	self    pid.PID
	sender  *pid.PID
	msg     any
	headers message.Header
	ref     *Ref
	system  *ActorSystem

	err       error
	unhandled bool
}

func newContext(std stdcontext.Context, ref *Ref, env *message.Envelope) *Context {
	c := &Context{std: std, self: ref.id, ref: ref, system: ref.system}
	if env != nil {
		c.sender = env.Sender
		c.msg = env.Message
		c.headers = env.Headers
	}
	return c
}

// Self returns the identity of the actor this Context belongs to.
func (c *Context) Self() pid.PID { return c.self }

// Sender returns the identity of the message's originator, or nil when the
// message was sent without a reply address (e.g. system-internal sends).
func (c *Context) Sender() *pid.PID { return c.sender }

// Message returns the payload delivered for this call; nil during
// PreStart/PostStop.
func (c *Context) Message() any { return c.msg }

// Headers returns the envelope's propagated headers, never nil.
func (c *Context) Headers() message.Header {
	if c.headers == nil {
		c.headers = message.Header{}
	}
	return c.headers
}

// Children returns the identities of this actor's live children.
func (c *Context) Children() []pid.PID { return c.ref.childPIDs() }

// ActorSystem returns the system this actor runs under.
func (c *Context) ActorSystem() *ActorSystem { return c.system }

// Context returns the standard library context governing this call,
// cancelled by ActorSystem.Shutdown once the top-level actors have
// stopped.
func (c *Context) Context() stdcontext.Context { return c.std }

// Logger returns a logger scoped to this actor's identity.
func (c *Context) Logger() log.Logger { return c.ref.logger }

// Err reports a processing failure for the current message. Calling it
// marks the message as failed; the mailbox suspends and a Failure system
// message is raised to the supervising parent. A panic recovered by the
// invoker has the same effect, so user code may call this or simply panic.
func (c *Context) Err(err error) { c.err = err }

// Unhandled marks the current message as one this actor did not recognize.
// By default this is treated as a no-op rather than a failure, mirroring
// Erlang/Akka "unhandled" semantics; callers that want unhandled messages to
// be fatal should instead call Err(errors.ErrUnhandled).
func (c *Context) Unhandled() { c.unhandled = true }

// Tell sends msg to target fire-and-forget, with this actor as the sender.
func (c *Context) Tell(target pid.PID, msg any) error {
	return c.system.Registry().Get(target).SendUser(message.NewEnvelope(target, &c.self, msg))
}

// Spawn creates a child actor under this context's actor.
func (c *Context) Spawn(id string, props Props, opts ...RefOption) (*Ref, error) {
	return c.ref.spawnChild(id, props, opts...)
}

// Ask sends msg to target and blocks for a reply or until ctx/timeout
// expires, implementing the spec's request/reply correlation on top of
// async send (spec §1 "built on top of async send + reply correlation").
func (c *Context) Ask(std stdcontext.Context, target pid.PID, msg any, timeout time.Duration) (any, error) {
	return c.system.ask(std, c.self, target, msg, timeout)
}

// Response sends msg back to the original sender of the current message
// with Tell; the sender's RequestID is not consulted. It is the usual way
// to answer an Ask call, whose sender is a one-shot reply identity. It
// returns errors.ErrUnhandled when the message has no sender.
func (c *Context) Response(msg any) error {
	if c.sender == nil {
		return errors.ErrUnhandled
	}
	return c.Tell(*c.sender, msg)
}
