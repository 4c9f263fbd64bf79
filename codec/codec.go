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

// Package codec implements the serialization façade: encode/decode typed
// messages, with an opt-in cached-encoding fast path. The wire encoding
// layer itself is deliberately out of scope (spec §1); this package is the
// narrow contract a remote endpoint consumes, backed by one concrete
// implementation over google.golang.org/protobuf.
package codec

import (
	"github.com/relaycore/relay/errors"
	"github.com/relaycore/relay/message"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// Codec is the serialization façade (spec §6 "Serialization façade").
// Remote message payloads must be proto.Message: this is the actor
// kernel's only requirement for a message type to cross a process
// boundary, mirroring the teacher's reliance on protobuf-generated actor
// messages for anything sent over the wire.
type Codec interface {
	// Encode returns the wire bytes for msg and a type tag identifying
	// its concrete type, used by Decode on the receiving side.
	Encode(msg proto.Message) (data []byte, typeTag string, err error)
	// Decode reconstructs a message from data and typeTag.
	Decode(data []byte, typeTag string) (proto.Message, error)
}

// ProtoCodec implements Codec by wrapping every message in an
// anypb.Any, grounded on internal/cluster/group.go's anypb.New usage: the
// Any's type URL doubles as the type tag, so Decode does not need a
// separate message registry lookup beyond what anypb already performs.
type ProtoCodec struct{}

// New builds a ProtoCodec.
func New() *ProtoCodec { return &ProtoCodec{} }

func (c *ProtoCodec) Encode(msg proto.Message) ([]byte, string, error) {
	if cm, ok := msg.(message.CachedMarshaler); ok {
		if cached, tag, found := cm.CachedEncoding(); found {
			return cached, tag, nil
		}
	}

	wrapped, err := anypb.New(msg)
	if err != nil {
		return nil, "", errors.NewProtocolError("failed to wrap message in Any", err)
	}
	data, err := proto.Marshal(wrapped)
	if err != nil {
		return nil, "", errors.NewProtocolError("failed to marshal Any", err)
	}

	typeTag := wrapped.TypeUrl
	if cm, ok := msg.(message.CachedMarshaler); ok {
		cm.SetCachedEncoding(data, typeTag)
	}
	return data, typeTag, nil
}

func (c *ProtoCodec) Decode(data []byte, typeTag string) (proto.Message, error) {
	var wrapped anypb.Any
	if err := proto.Unmarshal(data, &wrapped); err != nil {
		return nil, errors.NewProtocolError("malformed envelope payload", err)
	}
	if typeTag != "" && wrapped.TypeUrl != typeTag {
		return nil, errors.NewProtocolError("type tag mismatch: got "+wrapped.TypeUrl+", expected "+typeTag, nil)
	}
	msg, err := wrapped.UnmarshalNew()
	if err != nil {
		return nil, errors.NewProtocolError("unknown type tag "+wrapped.TypeUrl, err)
	}
	return msg, nil
}
