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

package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/relay/errors"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
	"github.com/relaycore/relay/registry"
)

type fakeSink struct{ stopped bool }

func (f *fakeSink) SendUser(*message.Envelope) error { return nil }
func (f *fakeSink) SendSystem(*message.Envelope)     {}
func (f *fakeSink) Stop() error                      { f.stopped = true; return nil }

func TestRegistry_AddGetRemove(t *testing.T) {
	r := registry.New("local", registry.NewDeadLetter(nil))
	sink := &fakeSink{}

	p, added, err := r.Add("a", sink)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "local", p.Address)

	assert.Same(t, sink, r.Get(p).(*fakeSink))

	_, added2, err2 := r.Add("a", &fakeSink{})
	assert.ErrorIs(t, err2, errors.ErrNameTaken)
	assert.False(t, added2)

	r.Remove(p)
	assert.Equal(t, r.DeadLetter(), r.Get(p))
}

func TestRegistry_HostResolverChainInOrder(t *testing.T) {
	r := registry.New("local", registry.NewDeadLetter(nil))
	var calls []string

	r.RegisterHostResolver(func(p pid.PID) (registry.Sink, bool) {
		calls = append(calls, "first")
		return nil, false
	})
	second := &fakeSink{}
	r.RegisterHostResolver(func(p pid.PID) (registry.Sink, bool) {
		calls = append(calls, "second")
		return second, true
	})

	got := r.Get(pid.New("remote", "x"))
	assert.Same(t, second, got)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestRegistry_UnresolvedFallsBackToDeadLetter(t *testing.T) {
	r := registry.New("local", registry.NewDeadLetter(nil))
	r.RegisterHostResolver(func(p pid.PID) (registry.Sink, bool) { return nil, false })

	got := r.Get(pid.New("unknown-host:1234", "x"))
	assert.Equal(t, r.DeadLetter(), got)
}
