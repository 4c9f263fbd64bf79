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

package eventstream_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaycore/relay/eventstream"
)

func syncDispatcher(fn func()) { fn() }

func TestStream_PublishDeliversToSubscribers(t *testing.T) {
	s := eventstream.New(nil)
	var got []any
	var mu sync.Mutex
	s.Subscribe("topic", func(event any) {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
	}, syncDispatcher)

	s.Publish("topic", "hello")
	s.Publish("other", "ignored")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"hello"}, got)
}

func TestStream_UnsubscribeStopsDelivery(t *testing.T) {
	s := eventstream.New(nil)
	calls := 0
	token := s.Subscribe("topic", func(any) { calls++ }, syncDispatcher)
	s.Publish("topic", 1)
	s.Unsubscribe(token)
	s.Publish("topic", 2)
	assert.Equal(t, 1, calls)
}

func TestStream_SubscriberPanicDoesNotHaltPublication(t *testing.T) {
	s := eventstream.New(nil)
	var second bool
	s.Subscribe("topic", func(any) { panic("boom") }, syncDispatcher)
	s.Subscribe("topic", func(any) { second = true }, syncDispatcher)
	s.Publish("topic", 1)
	assert.True(t, second)
}

func TestStream_OrderingPerSubscriberMatchesPublication(t *testing.T) {
	s := eventstream.New(nil)
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	count := 0
	s.Subscribe("topic", func(event any) {
		mu.Lock()
		got = append(got, event.(int))
		count++
		if count == 5 {
			close(done)
		}
		mu.Unlock()
	}, eventstream.GoDispatcher)

	for i := 0; i < 5; i++ {
		s.Publish("topic", i)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestStream_ShutdownStopsFurtherPublication(t *testing.T) {
	s := eventstream.New(nil)
	calls := 0
	s.Subscribe("topic", func(any) { calls++ }, syncDispatcher)
	s.Shutdown()
	s.Publish("topic", 1)
	assert.Equal(t, 0, calls)
}
