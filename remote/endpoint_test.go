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

package remote_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/relaycore/relay/codec"
	"github.com/relaycore/relay/eventstream"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
	"github.com/relaycore/relay/registry"
	"github.com/relaycore/relay/remote"
)

// TestEndpoint_TwoNodeDeliveryReachesPeerActor wires a real TCP loopback
// pair and confirms a message sent from one manager's server-side endpoint
// reaches the peer's registered actor with its sender intact. It checks
// one direction only; no reply is sent back.
func TestEndpoint_TwoNodeDeliveryReachesPeerActor(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	peerAddr := ln.Addr().String()

	received := make(chan *message.Envelope, 1)
	echoSink := &recordingSink{ch: received}

	peerReg := registry.New(peerAddr, registry.NewDeadLetter(nil))
	echoPID, _, err := peerReg.Add("echo", echoSink)
	require.NoError(t, err)

	peerHandler := remote.NewHandler(peerReg, codec.New(), nil)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ch := remote.NewNetChannel(conn)
		for {
			frame, err := ch.Recv()
			if err != nil {
				return
			}
			peerHandler.Dispatch(frame)
		}
	}()

	clientEvents := eventstream.New(nil)
	clientReg := registry.New("client-node", registry.NewDeadLetter(nil))
	mgr := remote.NewEndpointManager("client-node", remote.NewNetChannelProvider(), codec.New(), clientReg, clientEvents, nil, remote.ManagerConfig{})
	defer mgr.Stop()

	ep, err := mgr.GetOrAddServer(peerAddr)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return ep.State() == remote.Connected
	}, time.Second, 5*time.Millisecond)

	sender := pid.New("client-node", "sender")
	env := message.NewEnvelope(echoPID, &sender, wrappedHello())
	require.NoError(t, ep.Send(env))

	select {
	case got := <-received:
		assert.Equal(t, "sender", got.Sender.ID)
	case <-time.After(time.Second):
		t.Fatal("echo target never received the message")
	}
}

func TestEndpoint_SendFailsFastWhenQueueFull(t *testing.T) {
	events := eventstream.New(nil)
	reg := registry.New("local", registry.NewDeadLetter(nil))
	mgr := remote.NewEndpointManager("local", refusingProvider{}, codec.New(), reg, events, nil, remote.ManagerConfig{})
	defer mgr.Stop()

	ep, err := mgr.GetOrAddServer("10.0.9.9:9000")
	require.NoError(t, err)

	target := pid.New("10.0.9.9:9000", "x")
	var lastErr error
	for i := 0; i < 4096; i++ {
		lastErr = ep.Send(message.NewEnvelope(target, nil, wrappedHello()))
		if lastErr != nil {
			break
		}
	}
	assert.Error(t, lastErr)
}

func wrappedHello() proto.Message {
	return wrapperspb.String("hello")
}

type recordingSink struct {
	ch chan *message.Envelope
}

func (r *recordingSink) SendUser(env *message.Envelope) error {
	r.ch <- env
	return nil
}

func (r *recordingSink) SendSystem(env *message.Envelope) {}

func (r *recordingSink) Stop() error { return nil }
