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

package mailbox

import (
	"github.com/relaycore/relay/message"
	relayerrors "github.com/relaycore/relay/errors"
)

// Bounded wraps a Mailbox with a capacity on the user queue only: system
// messages are never rejected, matching the teacher's bounded_mailbox.go
// rationale that supervision/lifecycle traffic must never be subject to
// backpressure.
type Bounded struct {
	*Mailbox
	capacity int64
}

// NewBounded builds a Bounded mailbox. PostUserMessage returns
// errors.ErrMailboxFull once the user queue reaches capacity.
func NewBounded(invoker Invoker, capacity int64, opts ...Option) *Bounded {
	return &Bounded{Mailbox: New(invoker, opts...), capacity: capacity}
}

// PostUserMessage enqueues env unless the user queue is at capacity.
func (b *Bounded) PostUserMessage(env *message.Envelope) error {
	if b.disposed.Load() {
		return nil
	}
	if b.user.len() >= b.capacity {
		return relayerrors.ErrMailboxFull
	}
	b.user.push(env)
	b.schedule()
	return nil
}
