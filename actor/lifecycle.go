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

import "sync/atomic"

// State is one point in a Ref's lifecycle.
type State int32

const (
	Starting State = iota
	Idle
	Receiving
	Restarting
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Idle:
		return "idle"
	case Receiving:
		return "receiving"
	case Restarting:
		return "restarting"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// canTransition is the state machine's adjacency table: Starting -> Idle;
// Idle <-> Receiving; any of Starting/Idle/Receiving -> Restarting or
// Stopping; Restarting -> Starting (a restart re-enters at Starting);
// Stopping -> Stopped. Stopped is terminal.
func canTransition(from, to State) bool {
	switch from {
	case Starting:
		return to == Idle || to == Restarting || to == Stopping
	case Idle:
		return to == Receiving || to == Restarting || to == Stopping
	case Receiving:
		return to == Idle || to == Restarting || to == Stopping
	case Restarting:
		return to == Starting || to == Stopping
	case Stopping:
		return to == Stopped
	case Stopped:
		return false
	default:
		return false
	}
}

// lifecycle wraps an atomic State with validated transitions, grounded on
// the teacher's atomic pid-state field pattern.
type lifecycle struct {
	state atomic.Int32
}

func newLifecycle() *lifecycle {
	l := &lifecycle{}
	l.state.Store(int32(Starting))
	return l
}

func (l *lifecycle) Load() State { return State(l.state.Load()) }

// transition moves from the current state to to, if the move is legal. It
// reports whether the move happened; an illegal request is a caller bug,
// not a runtime condition, so callers log rather than fail loudly.
func (l *lifecycle) transition(to State) bool {
	for {
		from := State(l.state.Load())
		if !canTransition(from, to) {
			return false
		}
		if l.state.CompareAndSwap(int32(from), int32(to)) {
			return true
		}
	}
}

// forceTransition moves directly to to regardless of the adjacency table,
// used only for the Stopped terminal assignment during teardown once every
// precondition (children stopped, PostStop run) has already been met.
func (l *lifecycle) forceTransition(to State) { l.state.Store(int32(to)) }

func (l *lifecycle) isStopped() bool { return l.Load() == Stopped }
