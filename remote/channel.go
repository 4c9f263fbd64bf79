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
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// Channel is a bidirectional stream of opaque frames (spec §6 "Channel
// provider contract"). The real transport (HTTP/2 RPC binding, etc.) is
// deliberately out of scope; this is the one reference implementation.
type Channel interface {
	Send(frame []byte) error
	Recv() ([]byte, error)
	Close() error
	RemoteAddress() string
}

// ChannelProvider dials outbound channels and accepts inbound ones.
type ChannelProvider interface {
	Dial(ctx context.Context, address string) (Channel, error)
	Serve(ctx context.Context, bind string, onAccept func(Channel)) error
}

// netChannel frames messages over a net.Conn with a 4-byte big-endian
// length prefix, grounded on the teacher's internal/net connection
// wrapper idiom.
type netChannel struct {
	conn net.Conn

	writeMu sync.Mutex
}

const maxFrameSize = 64 << 20 // 64 MiB, generous enough for cluster gossip payloads

func newNetChannel(conn net.Conn) *netChannel { return &netChannel{conn: conn} }

// NewNetChannel wraps an already-established net.Conn as a Channel,
// letting a test or a custom listener hand off a connection it accepted
// itself without going through NetChannelProvider.Serve.
func NewNetChannel(conn net.Conn) Channel { return newNetChannel(conn) }

func (c *netChannel) Send(frame []byte) error {
	if len(frame) > maxFrameSize {
		return fmt.Errorf("remote: frame of %d bytes exceeds max %d", len(frame), maxFrameSize)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
	if _, err := c.conn.Write(header[:]); err != nil {
		return err
	}
	_, err := c.conn.Write(frame)
	return err
}

func (c *netChannel) Recv() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("remote: peer announced frame of %d bytes, exceeds max %d", size, maxFrameSize)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *netChannel) Close() error { return c.conn.Close() }

func (c *netChannel) RemoteAddress() string { return c.conn.RemoteAddr().String() }

// NetChannelProvider is the reference ChannelProvider over plain TCP.
type NetChannelProvider struct{}

// NewNetChannelProvider builds a NetChannelProvider.
func NewNetChannelProvider() *NetChannelProvider { return &NetChannelProvider{} }

func (p *NetChannelProvider) Dial(ctx context.Context, address string) (Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return newNetChannel(conn), nil
}

func (p *NetChannelProvider) Serve(ctx context.Context, bind string, onAccept func(Channel)) error {
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go onAccept(newNetChannel(conn))
	}
}
