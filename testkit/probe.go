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

package testkit

import (
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaycore/relay/actor"
	"github.com/relaycore/relay/pid"
)

var probeSeq atomic.Int64

// DefaultTimeout is how long Expect* waits when no explicit duration is
// given, mirroring the teacher's own Probe default.
const DefaultTimeout = 3 * time.Second

// Probe is a test double actors can Tell/Ask against, letting a test
// assert on messages a system-under-test actor sends out rather than only
// on its internal state.
type Probe interface {
	// ExpectMessage asserts the next message received equals want within
	// DefaultTimeout.
	ExpectMessage(want any)
	// ExpectMessageWithin is ExpectMessage with an explicit timeout.
	ExpectMessageWithin(timeout time.Duration, want any)
	// ExpectNoMessage asserts nothing arrives within DefaultTimeout.
	ExpectNoMessage()
	// ExpectAnyMessage returns the next message received within
	// DefaultTimeout, failing the test if none arrives.
	ExpectAnyMessage() any
	// ExpectAnyMessageWithin is ExpectAnyMessage with an explicit timeout.
	ExpectAnyMessageWithin(timeout time.Duration) any
	// Sender returns the sender of the last message received.
	Sender() *pid.PID
	// PID returns the probe actor's own identity, so a test can hand it
	// out as a reply address.
	PID() pid.PID
	// Stop stops the probe actor.
	Stop()
}

type probeMessage struct {
	sender *pid.PID
	value  any
}

type probeActor struct {
	queue chan probeMessage
}

var _ actor.Actor = (*probeActor)(nil)

func (p *probeActor) PreStart(*actor.Context) error { return nil }

func (p *probeActor) Receive(ctx *actor.Context) {
	select {
	case p.queue <- probeMessage{sender: ctx.Sender(), value: ctx.Message()}:
	default:
		ctx.Logger().Warnf("testkit: probe queue full, dropping message")
	}
}

func (p *probeActor) PostStop(*actor.Context) error { return nil }

type probe struct {
	t    *testing.T
	ref  *actor.Ref
	last *pid.PID
	ch   chan probeMessage
}

var _ Probe = (*probe)(nil)

func newProbe(t *testing.T, system *actor.ActorSystem) *probe {
	t.Helper()
	ch := make(chan probeMessage, 1000)
	name := "probe-" + strconv.FormatInt(probeSeq.Add(1), 10)
	ref, err := system.Spawn(name, func() actor.Actor {
		return &probeActor{queue: ch}
	})
	if err != nil {
		t.Fatalf("testkit: spawn probe: %v", err)
	}
	return &probe{t: t, ref: ref, ch: ch}
}

func (p *probe) ExpectMessage(want any) { p.ExpectMessageWithin(DefaultTimeout, want) }

func (p *probe) ExpectMessageWithin(timeout time.Duration, want any) {
	p.t.Helper()
	got := p.ExpectAnyMessageWithin(timeout)
	require.Equal(p.t, want, got, "expected %#v, found %#v", want, got)
}

func (p *probe) ExpectNoMessage() {
	p.t.Helper()
	select {
	case m := <-p.ch:
		p.t.Fatalf("testkit: probe expected no message, got %#v", m.value)
	case <-time.After(DefaultTimeout):
	}
}

func (p *probe) ExpectAnyMessage() any { return p.ExpectAnyMessageWithin(DefaultTimeout) }

func (p *probe) ExpectAnyMessageWithin(timeout time.Duration) any {
	p.t.Helper()
	select {
	case m := <-p.ch:
		p.last = m.sender
		return m.value
	case <-time.After(timeout):
		require.Fail(p.t, "testkit: probe timed out waiting for a message", "after %s", timeout)
		return nil
	}
}

func (p *probe) Sender() *pid.PID { return p.last }

func (p *probe) PID() pid.PID { return p.ref.PID() }

func (p *probe) Stop() { _ = p.ref.Stop() }
