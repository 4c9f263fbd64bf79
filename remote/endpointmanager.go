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

// Package remote implements Components F and G: the Endpoint Manager, its
// Endpoints, the wire framing between nodes, and the Remote Message
// Handler that dispatches inbound frames to local registry targets.
package remote

import (
	"context"
	"sync"
	"time"

	"github.com/relaycore/relay/codec"
	"github.com/relaycore/relay/errors"
	"github.com/relaycore/relay/eventstream"
	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
	"github.com/relaycore/relay/registry"
)

// blocklistEntry records when an address or peer system id was blocked, so
// WaitAfterEndpointTermination-style callers can tell how long a peer has
// been unreachable.
type blocklistEntry struct {
	since time.Time
}

// ManagerConfig controls the Endpoint Manager's termination behavior.
type ManagerConfig struct {
	// WaitAfterEndpointTermination, when non-zero, is how long a
	// termination handler sleeps before returning when the endpoint is
	// also being blocked, giving in-flight sends on the old endpoint a
	// window to fail fast rather than race a same-address reconnect
	// (Open Question in spec §9, decided: sleep only when both
	// shouldBlock and this duration are non-zero).
	WaitAfterEndpointTermination time.Duration
}

// EndpointManager is Component F: the lazily-populated map from address
// (or peer system id) to Endpoint, with a blocklist of recently-terminated
// peers and a single coordination lock guarding only map and blocklist
// mutation, never I/O (spec §4.F).
type EndpointManager struct {
	localAddress string
	provider     ChannelProvider
	codec        codec.Codec
	handler      *Handler
	events       *eventstream.Stream
	logger       log.Logger
	cfg          ManagerConfig

	mu                      sync.Mutex
	serverEndpoints         map[string]*Endpoint // keyed by peer address
	clientEndpoints         map[string]*Endpoint // keyed by peer system id
	blockedAddresses        map[string]blocklistEntry
	blockedClientSystemIDs  map[string]blocklistEntry

	blocked *Endpoint // shared sentinel returned for blocked lookups

	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc

	subToken eventstream.Token
}

// NewEndpointManager builds a manager rooted at localAddress, dispatching
// inbound frames through reg via a Handler, and publishing connector
// lifecycle events onto events.
func NewEndpointManager(localAddress string, provider ChannelProvider, c codec.Codec, reg *registry.Registry, events *eventstream.Stream, logger log.Logger, cfg ManagerConfig) *EndpointManager {
	if logger == nil {
		logger = log.DiscardLogger
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &EndpointManager{
		localAddress:           localAddress,
		provider:               provider,
		codec:                  c,
		handler:                NewHandler(reg, c, logger),
		events:                 events,
		logger:                 logger,
		cfg:                    cfg,
		serverEndpoints:        make(map[string]*Endpoint),
		clientEndpoints:        make(map[string]*Endpoint),
		blockedAddresses:       make(map[string]blocklistEntry),
		blockedClientSystemIDs: make(map[string]blocklistEntry),
		blocked:                newBlockedEndpoint(logger),
		ctx:                    ctx,
		cancel:                 cancel,
	}
	m.subToken = events.Subscribe(eventstream.TopicEndpointTerminated, m.onEndpointTerminated, eventstream.GoDispatcher)

	reg.RegisterHostResolver(m.resolve)
	return m
}

// resolve is the registry.HostResolver the manager installs: any PID whose
// address is neither local nor unreachable resolves to a remoteProxy sink
// backed by a server-side (or client-side) Endpoint toward that peer.
func (m *EndpointManager) resolve(p pid.PID) (registry.Sink, bool) {
	if p.IsClient() {
		ep, err := m.GetOrAddClientTarget(p.Address)
		if err != nil {
			return nil, false
		}
		return &remoteProxy{endpoint: ep}, true
	}
	ep, err := m.GetOrAddServer(p.Address)
	if err != nil {
		return nil, false
	}
	return &remoteProxy{endpoint: ep}, true
}

// GetOrAddClientTarget resolves a client-style PID address (prefixed with
// pid.ClientPrefix) to its Endpoint, looking it up by the peer system id
// that follows the prefix. Unlike GetOrAddClient it never adopts a fresh
// Channel: a client-style peer is only reachable once it has dialed in,
// so absence here means the peer simply hasn't connected yet.
func (m *EndpointManager) GetOrAddClientTarget(address string) (*Endpoint, error) {
	peerSystemID := address[len(pid.ClientPrefix):]
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, errors.ErrEndpointManagerStopped
	}
	if _, blocked := m.blockedClientSystemIDs[peerSystemID]; blocked {
		return m.blocked, nil
	}
	if ep, ok := m.clientEndpoints[peerSystemID]; ok {
		return ep, nil
	}
	return nil, errors.NewAddressNotFoundError(address)
}

// remoteProxy adapts an Endpoint to the registry.Sink contract, so the
// registry's resolution chain can hand remote targets back out as plain
// sinks indistinguishable from local ones to callers.
type remoteProxy struct {
	endpoint *Endpoint
}

func (r *remoteProxy) SendUser(env *message.Envelope) error { return r.endpoint.Send(env) }

func (r *remoteProxy) SendSystem(env *message.Envelope) { _ = r.endpoint.Send(env) }

func (r *remoteProxy) Stop() error { return nil }

// GetOrAddServer implements get_or_add_server (spec §4.F): a null-check,
// then, under the coordination lock, the shutdown/blocklist check, the
// map lookup and construct-and-insert; the dial starts after the lock is
// released. Every lookup takes the lock: there is no lock-free lookup
// before it. The construct step picks the endpoint's own Kind by
// inspecting whether the local system itself is a client identity: a node
// with no stable, dialable address constructs KindClientSide endpoints for
// its outbound links, since it can never be the ServerSide of a connection.
func (m *EndpointManager) GetOrAddServer(address string) (*Endpoint, error) {
	if address == "" {
		return nil, errors.NewAddressNotFoundError(address)
	}
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, errors.ErrEndpointManagerStopped
	}
	if _, blocked := m.blockedAddresses[address]; blocked {
		m.mu.Unlock()
		return m.blocked, nil
	}
	if ep, ok := m.serverEndpoints[address]; ok {
		m.mu.Unlock()
		return ep, nil
	}

	ep := newEndpoint(m.localEndpointKind(), address, "", m.provider, m.codec, m.handler, m.events, m.logger)
	m.serverEndpoints[address] = ep
	m.mu.Unlock()

	go ep.dialAndRun(m.ctx)
	return ep, nil
}

// localEndpointKind reports which Kind an outbound endpoint constructed by
// this manager should carry: KindClientSide if the local system's own
// address uses pid.ClientPrefix (it connects outbound only and has no
// stable address of its own), KindServerSide otherwise.
func (m *EndpointManager) localEndpointKind() Kind {
	if pid.New(m.localAddress, "").IsClient() {
		return KindClientSide
	}
	return KindServerSide
}

// GetServer is the lookup-only variant of GetOrAddServer: it never
// constructs a new Endpoint.
func (m *EndpointManager) GetServer(address string) (*Endpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, blocked := m.blockedAddresses[address]; blocked {
		return m.blocked, true
	}
	ep, ok := m.serverEndpoints[address]
	return ep, ok
}

// GetOrAddClient is GetOrAddServer's counterpart for client-style peers,
// identified by peer system id rather than a dialable address (spec §3:
// "a special prefix marks client identities").
func (m *EndpointManager) GetOrAddClient(peerSystemID string, ch Channel) (*Endpoint, error) {
	if peerSystemID == "" {
		return nil, errors.NewAddressNotFoundError(peerSystemID)
	}
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, errors.ErrEndpointManagerStopped
	}
	if _, blocked := m.blockedClientSystemIDs[peerSystemID]; blocked {
		m.mu.Unlock()
		return m.blocked, nil
	}
	if ep, ok := m.clientEndpoints[peerSystemID]; ok {
		m.mu.Unlock()
		return ep, nil
	}

	ep := newEndpoint(KindServerSideClient, "", peerSystemID, m.provider, m.codec, m.handler, m.events, m.logger)
	m.clientEndpoints[peerSystemID] = ep
	m.mu.Unlock()

	go ep.adopt(m.ctx, ch)
	return ep, nil
}

// GetClient is the lookup-only variant of GetOrAddClient.
func (m *EndpointManager) GetClient(peerSystemID string) (*Endpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, blocked := m.blockedClientSystemIDs[peerSystemID]; blocked {
		return m.blocked, true
	}
	ep, ok := m.clientEndpoints[peerSystemID]
	return ep, ok
}

// Accept wires an inbound Channel from the ChannelProvider's Serve
// callback into a fresh server-side Endpoint, for peers that dialed us
// first.
func (m *EndpointManager) Accept(remoteAddress string, ch Channel) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = ch.Close()
		return
	}
	if _, blocked := m.blockedAddresses[remoteAddress]; blocked {
		m.mu.Unlock()
		_ = ch.Close()
		return
	}
	ep := newEndpoint(KindServerSide, remoteAddress, "", m.provider, m.codec, m.handler, m.events, m.logger)
	m.serverEndpoints[remoteAddress] = ep
	m.mu.Unlock()

	go ep.adopt(m.ctx, ch)
}

// onEndpointTerminated is the termination handler (spec §4.F): lock,
// remove the endpoint from its map and, if shouldBlock, add it to the
// blocklist, unlock, then perform the (non-locking) optional sleep
// outside the lock and finally invoke unblock unconditionally — even if
// the endpoint was already gone or the sleep never ran — so a blocked
// key never stays blocked past this one handler invocation (spec §8:
// "the entry is always removed in finite time").
func (m *EndpointManager) onEndpointTerminated(event any) {
	ev, ok := event.(EndpointTerminatedEvent)
	if !ok {
		return
	}

	key := ev.Address
	clientSide := key == ""
	if clientSide {
		key = ev.PeerSystemID
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	var alreadyGone bool
	if clientSide {
		if _, ok := m.clientEndpoints[key]; ok {
			delete(m.clientEndpoints, key)
		} else {
			alreadyGone = true
		}
		if ev.ShouldBlock {
			m.blockedClientSystemIDs[key] = blocklistEntry{since: time.Now()}
		}
	} else {
		if _, ok := m.serverEndpoints[key]; ok {
			delete(m.serverEndpoints, key)
		} else {
			alreadyGone = true
		}
		if ev.ShouldBlock {
			m.blockedAddresses[key] = blocklistEntry{since: time.Now()}
		}
	}
	m.mu.Unlock()

	if ev.ShouldBlock {
		defer m.Unblock(key)
	}

	if alreadyGone && !ev.ShouldBlock {
		// Idempotence: a second, non-blocking EndpointTerminated for the
		// same key has no endpoint left to remove and nothing to wait for.
		// A blocking one still keeps its blocklist entry for the full
		// WaitAfterEndpointTermination below before the deferred unblock.
		return
	}

	if ev.ShouldBlock && m.cfg.WaitAfterEndpointTermination > 0 {
		time.Sleep(m.cfg.WaitAfterEndpointTermination)
	}
}

// Unblock removes address (or peer system id) from the blocklist, letting
// the next GetOrAddServer/GetOrAddClient call construct a fresh Endpoint
// instead of returning the blocked sentinel.
func (m *EndpointManager) Unblock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blockedAddresses, key)
	delete(m.blockedClientSystemIDs, key)
}

// BlockedSince reports when key was blocked, if it currently is.
func (m *EndpointManager) BlockedSince(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.blockedAddresses[key]; ok {
		return e.since, true
	}
	if e, ok := m.blockedClientSystemIDs[key]; ok {
		return e.since, true
	}
	return time.Time{}, false
}

// Stop implements the Endpoint Manager's 2-step shutdown (spec §4.F):
// under the lock, raise the shutdown flag so no further endpoints are
// constructed, unsubscribe from the event stream and empty both maps;
// then, outside the lock, dispose every collected endpoint (servers
// before clients) and wait for each disposal.
func (m *EndpointManager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.events.Unsubscribe(m.subToken)
	servers := make([]*Endpoint, 0, len(m.serverEndpoints))
	for _, ep := range m.serverEndpoints {
		servers = append(servers, ep)
	}
	clients := make([]*Endpoint, 0, len(m.clientEndpoints))
	for _, ep := range m.clientEndpoints {
		clients = append(clients, ep)
	}
	m.serverEndpoints = make(map[string]*Endpoint)
	m.clientEndpoints = make(map[string]*Endpoint)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, ep := range servers {
		wg.Add(1)
		go func(ep *Endpoint) { defer wg.Done(); ep.Terminate(false) }(ep)
	}
	wg.Wait()
	wg = sync.WaitGroup{}
	for _, ep := range clients {
		wg.Add(1)
		go func(ep *Endpoint) { defer wg.Done(); ep.Terminate(false) }(ep)
	}
	wg.Wait()

	m.cancel()
}
