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

package message

import "github.com/relaycore/relay/pid"

// Started is delivered as the first system message an actor instance
// receives, before any user message.
type Started struct{}

// Stop requests a graceful stop of the actor and its children.
type Stop struct{}

// Restarting is delivered to an actor instance right before it is torn
// down for a supervisor-directed restart. Queued user messages survive the
// restart and are redelivered to the new instance after Started.
type Restarting struct {
	Reason error
}

// Terminated is delivered to every watcher once the watched actor reaches
// the Stopped state.
type Terminated struct {
	Who pid.PID
	Why error
}

// Watch requests that Watcher be notified with Terminated when Who stops.
type Watch struct {
	Watcher pid.PID
}

// Unwatch cancels a prior Watch request.
type Unwatch struct {
	Watcher pid.PID
}

// Failure is delivered to an actor's parent when one of its children's
// user-message handling raised an error.
type Failure struct {
	Child  pid.PID
	Reason error
}

// PoisonPill, once processed, stops the receiving actor gracefully -- it is
// a user-facing request but is treated with system-message priority so it
// cannot be starved by a saturated user queue.
type PoisonPill struct{}

// IsSystem reports whether msg belongs to the closed set of system
// messages that must be drained ahead of user messages and must survive
// a system in shutdown (spec §3 "system messages vs user messages").
func IsSystem(msg any) bool {
	switch msg.(type) {
	case *Started, *Stop, *Restarting, *Terminated, *Watch, *Unwatch, *Failure, *PoisonPill:
		return true
	default:
		return false
	}
}
