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
	"github.com/relaycore/relay/codec"
	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/registry"
)

// Handler is the Remote Message Handler (spec §2 data flow): it
// deserializes an inbound frame and dispatches it to the local target
// named in the envelope. Grounded on remote_server.go's request handlers.
type Handler struct {
	registry *registry.Registry
	codec    codec.Codec
	logger   log.Logger
}

// NewHandler builds a Handler routing decoded envelopes through reg.
func NewHandler(reg *registry.Registry, c codec.Codec, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Handler{registry: reg, codec: c, logger: logger}
}

// Dispatch decodes frame and delivers it to the local sink the envelope's
// target resolves to. A malformed frame or unknown type tag is logged and
// dropped (spec §7 kind 4 "protocol error") rather than returned as a
// fatal error, so one bad frame never kills the endpoint.
func (h *Handler) Dispatch(frame []byte) {
	target, sender, headers, payload, typeTag, err := unmarshalFrame(frame)
	if err != nil {
		h.logger.Warnf("remote: malformed frame: %v", err)
		return
	}
	msg, err := h.codec.Decode(payload, typeTag)
	if err != nil {
		h.logger.Warnf("remote: undecodable payload for %s: %v", target, err)
		return
	}

	env := &message.Envelope{Target: target, Sender: sender, Message: msg, Headers: headers}
	sink := h.registry.Get(target)
	if err := sink.SendUser(env); err != nil {
		h.logger.Warnf("remote: delivery to %s failed: %v", target, err)
	}
}
