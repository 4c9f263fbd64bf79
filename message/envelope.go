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

// Package message defines the envelope that travels between actors and the
// closed set of system messages the kernel uses to drive actor lifecycle.
package message

import "github.com/relaycore/relay/pid"

// Header carries context propagation such as trace ids, mirroring
// net/http.Header's shape since it is the idiom the teacher already uses
// at its HTTP/metadata boundary (internal/net Metadata).
type Header map[string][]string

// Get returns the first value associated with key, or "".
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	values := h[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set replaces the values associated with key.
func (h Header) Set(key, value string) {
	h[key] = []string{value}
}

// Add appends value to the values associated with key.
func (h Header) Add(key, value string) {
	h[key] = append(h[key], value)
}

// Envelope is the unit of transmission between actors: a target, an
// optional sender, a message payload, and optional headers.
type Envelope struct {
	Target  pid.PID
	Sender  *pid.PID
	Message any
	Headers Header
}

// NewEnvelope builds an Envelope with empty headers.
func NewEnvelope(target pid.PID, sender *pid.PID, msg any) *Envelope {
	return &Envelope{Target: target, Sender: sender, Message: msg, Headers: Header{}}
}

// CachedMarshaler is the opt-in capability a message type may implement to
// have its encoded bytes cached after the first Encode call, per spec §6
// "cached serialization marker".
type CachedMarshaler interface {
	CachedEncoding() ([]byte, string, bool)
	SetCachedEncoding(data []byte, typeTag string)
}
