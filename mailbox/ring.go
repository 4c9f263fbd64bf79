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
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/relaycore/relay/message"
)

// cacheLinePad prevents false sharing between the head and tail pointers of
// a ring, mirroring the teacher's CacheLinePadding in
// actor/unbounded_mailbox.go.
type cacheLinePad [64]byte

type ringNode struct {
	value atomic.Pointer[message.Envelope]
	next  unsafe.Pointer
}

var ringNodePool = sync.Pool{New: func() any { return new(ringNode) }}

// ring is a lock-free multi-producer, single-consumer FIFO queue of
// envelopes. It is the building block both the system and the user queue
// of a Mailbox are made of; the duplication the teacher carries between
// UnboundedMailbox and a hypothetical second instance is collapsed here
// into one reusable type.
type ring struct {
	head unsafe.Pointer // *ringNode
	_    cacheLinePad
	tail unsafe.Pointer // *ringNode
	_    cacheLinePad
	size atomic.Int64
}

func newRing() *ring {
	n := new(ringNode)
	return &ring{head: unsafe.Pointer(n), tail: unsafe.Pointer(n)}
}

func (r *ring) push(env *message.Envelope) {
	n := ringNodePool.Get().(*ringNode)
	n.value.Store(env)
	atomic.StorePointer(&n.next, nil)

	prev := (*ringNode)(atomic.SwapPointer(&r.tail, unsafe.Pointer(n)))
	atomic.StorePointer(&prev.next, unsafe.Pointer(n))
	r.size.Add(1)
}

func (r *ring) pop() *message.Envelope {
	head := (*ringNode)(atomic.LoadPointer(&r.head))
	next := (*ringNode)(atomic.LoadPointer(&head.next))
	if next == nil {
		return nil
	}
	atomic.StorePointer(&r.head, unsafe.Pointer(next))
	value := next.value.Load()
	next.value.Store(nil)
	ringNodePool.Put(head)
	r.size.Add(-1)
	return value
}

func (r *ring) isEmpty() bool {
	head := (*ringNode)(atomic.LoadPointer(&r.head))
	return atomic.LoadPointer(&head.next) == nil
}

func (r *ring) len() int64 {
	n := r.size.Load()
	if n < 0 {
		return 0
	}
	return n
}
