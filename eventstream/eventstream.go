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

// Package eventstream implements Component E: a typed, in-process pub/sub
// bus used for lifecycle and cluster events.
package eventstream

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/relaycore/relay/log"
)

// Topic constants published across the runtime (spec §6 "Event stream
// topics").
const (
	TopicEndpointConnected  = "EndpointConnected"
	TopicEndpointTerminated = "EndpointTerminated"
	TopicMemberJoined       = "MemberJoined"
	TopicMemberLeft         = "MemberLeft"
	TopicDeadLetter         = "DeadLetter"
)

// Handler processes one published event. A panic inside Handler is
// recovered and logged; it never reaches the publisher (spec §4.E "a
// stray subscriber must not halt publication").
type Handler func(event any)

// Dispatcher decides where a Handler invocation runs. The default,
// GoDispatcher, runs it on a dedicated goroutine; tests can substitute a
// synchronous dispatcher to assert ordering deterministically.
type Dispatcher func(fn func())

// GoDispatcher runs fn on a freshly spawned goroutine.
func GoDispatcher(fn func()) { go fn() }

// Token is an opaque handle returned by Subscribe; Unsubscribe is a map
// removal, not finalization (Design Note: "weak references to
// subscriptions").
type Token string

type subscription struct {
	token      Token
	topic      string
	handler    Handler
	dispatcher Dispatcher
	// mu guards tail, the completion channel of the most recently
	// dispatched delivery. Each delivery waits for its predecessor's
	// channel before running the handler, preserving publication order
	// within one subscriber even when the dispatcher is concurrent (spec
	// §4.E: "Ordering within a single subscriber matches publication
	// order").
	mu   sync.Mutex
	tail chan struct{}
}

// Stream is the pub/sub bus itself.
type Stream struct {
	logger log.Logger

	mu   sync.RWMutex
	subs map[string]map[Token]*subscription

	closed atomic.Bool
}

// New builds an empty Stream.
func New(logger log.Logger) *Stream {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Stream{logger: logger, subs: make(map[string]map[Token]*subscription)}
}

// Subscribe registers handler for topic, delivered via dispatcher (or
// GoDispatcher if nil). It returns a Token usable with Unsubscribe.
func (s *Stream) Subscribe(topic string, handler Handler, dispatcher Dispatcher) Token {
	if dispatcher == nil {
		dispatcher = GoDispatcher
	}
	sub := &subscription{token: Token(uuid.NewString()), topic: topic, handler: handler, dispatcher: dispatcher}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[topic] == nil {
		s.subs[topic] = make(map[Token]*subscription)
	}
	s.subs[topic][sub.token] = sub
	return sub.token
}

// Unsubscribe removes the subscription identified by token from every
// topic it was registered under.
func (s *Stream) Unsubscribe(token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, subs := range s.subs {
		if _, ok := subs[token]; ok {
			delete(subs, token)
			if len(subs) == 0 {
				delete(s.subs, topic)
			}
		}
	}
}

// Publish fans event out to every subscriber of topic. Delivery is
// fire-and-forget on each subscriber's own dispatcher; a handler panic is
// recovered and logged, never propagated to the publisher.
func (s *Stream) Publish(topic string, event any) {
	if s.closed.Load() {
		return
	}
	s.mu.RLock()
	subs := make([]*subscription, 0, len(s.subs[topic]))
	for _, sub := range s.subs[topic] {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		sub := sub
		sub.mu.Lock()
		prev := sub.tail
		done := make(chan struct{})
		sub.tail = done
		sub.mu.Unlock()
		sub.dispatcher(func() {
			defer close(done)
			if prev != nil {
				<-prev
			}
			defer func() {
				if r := recover(); r != nil {
					s.logger.Errorf("eventstream: subscriber panicked on topic %s: %v", sub.topic, r)
				}
			}()
			sub.handler(event)
		})
	}
}

// SubscriberCount reports how many subscribers currently listen on topic,
// for diagnostics/tests.
func (s *Stream) SubscriberCount(topic string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[topic])
}

// Shutdown marks the stream closed; further Publish calls are no-ops.
func (s *Stream) Shutdown() {
	s.closed.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[string]map[Token]*subscription)
}
