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

// Package actor implements Component C: the actor interface, the
// per-message Context, and the PID lifecycle state machine that drives an
// actor instance through start/receive/stop.
package actor

// Actor is the behavior every user-defined entity implements. PreStart and
// PostStop bracket the actor instance's life; Receive handles every user
// message delivered while the actor is in the Receiving state.
type Actor interface {
	// PreStart runs once, before the first user message is delivered. An
	// error returned here escalates: the actor never reaches Receiving.
	PreStart(ctx *Context) error
	// Receive handles one user message. Call ctx.Err to report a
	// processing failure to the supervisor instead of panicking; a panic
	// is also recovered and reported the same way.
	Receive(ctx *Context)
	// PostStop runs once, while the actor is in the Stopping state, after
	// all children have been stopped.
	PostStop(ctx *Context) error
}

// Props is a factory for Actor instances. A fresh instance is created on
// first spawn and again on every supervisor-directed restart, so an actor's
// constructor closure must not assume it runs only once.
type Props func() Actor

// BaseActor provides no-op PreStart/PostStop so simple actors can embed it
// and implement only Receive.
type BaseActor struct{}

func (BaseActor) PreStart(*Context) error  { return nil }
func (BaseActor) PostStop(*Context) error { return nil }
