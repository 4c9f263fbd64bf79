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

package registry

import (
	"sync/atomic"

	"github.com/relaycore/relay/log"
	"github.com/relaycore/relay/message"
)

// DeadLetter is the sink for messages whose target does not exist or is
// blocked. It never errors and is always total, per the External
// Interfaces contract.
type DeadLetter struct {
	logger log.Logger
	count  atomic.Int64
}

// NewDeadLetter builds a DeadLetter sink that logs every message it
// receives at warn level.
func NewDeadLetter(logger log.Logger) *DeadLetter {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &DeadLetter{logger: logger}
}

// SendUser records and logs the undeliverable envelope.
func (d *DeadLetter) SendUser(env *message.Envelope) error {
	d.count.Add(1)
	d.logger.Warnf("dead letter: undeliverable user message to %s: %T", env.Target, env.Message)
	return nil
}

// SendSystem records and logs the undeliverable system envelope.
func (d *DeadLetter) SendSystem(env *message.Envelope) {
	d.count.Add(1)
	d.logger.Warnf("dead letter: undeliverable system message to %s: %T", env.Target, env.Message)
}

// Stop is a no-op; the dead-letter sink has no lifecycle of its own.
func (d *DeadLetter) Stop() error { return nil }

// Count returns the number of messages routed to dead-letter so far.
func (d *DeadLetter) Count() int64 { return d.count.Load() }
