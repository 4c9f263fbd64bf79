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

package remote

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowchartsman/retry"
	"google.golang.org/protobuf/proto"

	"github.com/relaycore/relay/codec"
	"github.com/relaycore/relay/errors"
	"github.com/relaycore/relay/eventstream"
	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/message"
)

// ConnectorState is one point in an Endpoint's connector lifecycle (spec
// §4.G): Connecting -> Connected -> Terminating -> Terminated.
type ConnectorState int32

const (
	Connecting ConnectorState = iota
	Connected
	Terminating
	Terminated
)

func (s ConnectorState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Terminating:
		return "terminating"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Kind distinguishes the four endpoint variants from spec §3's Data Model.
type Kind int

const (
	KindServerSide Kind = iota
	KindClientSide
	KindServerSideClient
	KindBlocked
)

const defaultOutboundQueueCapacity = 1024

// maxDialAttempts bounds the connect retry loop; once exhausted the
// endpoint terminates rather than retrying forever against a peer that
// may simply be gone for good. Kept small and the backoff window tight
// (see dialAndRun) so that a burst of connects against unreachable peers
// fails fast instead of piling up retries behind the coordination lock.
const maxDialAttempts = 3

// Endpoint is one logical link to a peer: an outbound queue, a connector
// state machine, and inbound dispatch through a Handler (spec §4.G).
type Endpoint struct {
	kind         Kind
	address      string // set for KindServerSide/KindClientSide
	peerSystemID string // set for KindServerSideClient

	provider ChannelProvider
	codec    codec.Codec
	handler  *Handler
	events   *eventstream.Stream
	logger   log.Logger

	state    atomic.Int32
	channel  Channel
	outbound chan *message.Envelope

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// EndpointOption configures an Endpoint at construction time.
type EndpointOption func(*Endpoint)

// WithOutboundQueueCapacity overrides the default bounded outbound queue
// size.
func WithOutboundQueueCapacity(n int) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.outbound = make(chan *message.Envelope, n)
		}
	}
}

func newEndpoint(kind Kind, address, peerSystemID string, provider ChannelProvider, c codec.Codec, handler *Handler, events *eventstream.Stream, logger log.Logger, opts ...EndpointOption) *Endpoint {
	if logger == nil {
		logger = log.DiscardLogger
	}
	e := &Endpoint{
		kind:         kind,
		address:      address,
		peerSystemID: peerSystemID,
		provider:     provider,
		codec:        c,
		handler:      handler,
		events:       events,
		logger:       logger,
		outbound:     make(chan *message.Envelope, defaultOutboundQueueCapacity),
		stopCh:       make(chan struct{}),
	}
	e.state.Store(int32(Connecting))
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newBlockedEndpoint builds the sentinel that drops or dead-letters all
// traffic, per spec §4.F.
func newBlockedEndpoint(logger log.Logger) *Endpoint {
	e := &Endpoint{kind: KindBlocked, logger: logger}
	e.state.Store(int32(Terminated))
	return e
}

// State returns the connector's current state.
func (e *Endpoint) State() ConnectorState { return ConnectorState(e.state.Load()) }

// Kind reports which of the four spec §3 Endpoint variants this instance
// is.
func (e *Endpoint) Kind() Kind { return e.kind }

// Key returns the map key this endpoint is (or was) reachable from in the
// Endpoint Manager: an address for server-side endpoints, a peer system id
// for client-style ones.
func (e *Endpoint) Key() string {
	if e.address != "" {
		return e.address
	}
	return e.peerSystemID
}

// dialAndRun connects (retrying with backoff while Connecting) and then
// runs the write/read loops until the connection fails or Terminate is
// called. Grounded on internal/cluster/group.go's joinCluster retry loop,
// using the teacher's only concrete backoff call site in the pack.
func (e *Endpoint) dialAndRun(ctx context.Context) {
	if e.kind == KindBlocked {
		return
	}

	retrier := retry.NewRetrier(maxDialAttempts, 50*time.Millisecond, 200*time.Millisecond)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		ch, err := e.provider.Dial(ctx, e.Key())
		if err != nil {
			return err
		}
		e.channel = ch
		return nil
	})
	if err != nil {
		e.logger.Warnf("endpoint %s: dial aborted: %v", e.Key(), err)
		e.Terminate(false)
		return
	}

	e.becomeConnected()
	e.runLoops(ctx)
}

// adopt wires an already-connected Channel (e.g. one accepted by a
// ChannelProvider's Serve callback) directly to Connected, skipping the
// dial/retry path.
func (e *Endpoint) adopt(ctx context.Context, ch Channel) {
	e.channel = ch
	e.becomeConnected()
	e.runLoops(ctx)
}

func (e *Endpoint) becomeConnected() {
	e.state.Store(int32(Connected))
	e.events.Publish(eventstream.TopicEndpointConnected, e.Key())
}

func (e *Endpoint) runLoops(ctx context.Context) {
	e.wg.Add(2)
	go e.writeLoop()
	go e.readLoop()

	select {
	case <-ctx.Done():
		e.Terminate(false)
	case <-e.stopCh:
	}
}

// Send enqueues env for transmission. It never blocks: once the bounded
// queue is full the send fails immediately (spec §4.G backpressure).
func (e *Endpoint) Send(env *message.Envelope) error {
	state := e.State()
	if e.kind == KindBlocked || (state != Connected && state != Connecting) {
		return errors.ErrEndpointBlocked
	}
	select {
	case e.outbound <- env:
		return nil
	default:
		return errors.ErrEndpointQueueFull
	}
}

func (e *Endpoint) writeLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case env, ok := <-e.outbound:
			if !ok {
				return
			}
			e.writeOne(env)
		}
	}
}

func (e *Endpoint) writeOne(env *message.Envelope) {
	pm, ok := env.Message.(proto.Message)
	if !ok {
		e.logger.Warnf("endpoint %s: dropping non-proto message %T", e.Key(), env.Message)
		return
	}
	data, typeTag, err := e.codec.Encode(pm)
	if err != nil {
		e.logger.Warnf("endpoint %s: encode failed: %v", e.Key(), err)
		return
	}
	frame, err := marshalFrame(env, data, typeTag)
	if err != nil {
		e.logger.Warnf("endpoint %s: frame marshal failed: %v", e.Key(), err)
		return
	}
	if err := e.channel.Send(frame); err != nil {
		e.logger.Warnf("endpoint %s: write failed, terminating: %v", e.Key(), err)
		go e.Terminate(true)
	}
}

func (e *Endpoint) readLoop() {
	defer e.wg.Done()
	for {
		frame, err := e.channel.Recv()
		if err != nil {
			select {
			case <-e.stopCh:
			default:
				e.logger.Warnf("endpoint %s: read failed, terminating: %v", e.Key(), err)
				go e.Terminate(true)
			}
			return
		}
		e.handler.Dispatch(frame)
	}
}

// Terminate transitions the connector to Terminated, closing the
// underlying channel and publishing EndpointTerminated exactly once, even
// if called concurrently from the read loop, the write loop, and the
// Endpoint Manager (spec's idempotence property: "double-publish ...
// performs disposal at most once"). It waits for both loops to exit, so
// the loops themselves invoke it on a separate goroutine.
func (e *Endpoint) Terminate(shouldBlock bool) {
	if !e.transitionToTerminating() {
		return
	}
	e.stopOnce.Do(func() { close(e.stopCh) })
	if e.channel != nil {
		_ = e.channel.Close()
	}
	e.wg.Wait()
	e.state.Store(int32(Terminated))

	event := EndpointTerminatedEvent{ShouldBlock: shouldBlock}
	if e.peerSystemID != "" {
		event.PeerSystemID = e.peerSystemID
	} else {
		event.Address = e.address
	}
	e.events.Publish(eventstream.TopicEndpointTerminated, event)
}

func (e *Endpoint) transitionToTerminating() bool {
	for {
		cur := ConnectorState(e.state.Load())
		if cur == Terminating || cur == Terminated {
			return false
		}
		if e.state.CompareAndSwap(int32(cur), int32(Terminating)) {
			return true
		}
	}
}

// EndpointTerminatedEvent is published on the event stream when an
// Endpoint's connector reaches Terminated (spec §6).
type EndpointTerminatedEvent struct {
	ShouldBlock  bool
	Address      string
	PeerSystemID string
}
