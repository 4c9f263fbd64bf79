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

// Package workerpool tracks fire-and-forget goroutines so a shutdown path
// can await every one of them instead of leaking a goroutine that outlives
// the component that started it (Design Note: "fire-and-forget tasks
// should be tracked").
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group tracks goroutines spawned with Go and lets a caller wait for all of
// them to return.
type Group struct {
	eg *errgroup.Group
}

// New builds an empty Group.
func New() *Group {
	return &Group{eg: &errgroup.Group{}}
}

// Go runs fn on a tracked goroutine. A panic inside fn is recovered and
// surfaced as the error Wait eventually returns, rather than crashing the
// process, mirroring the teacher's recover-and-log convention for
// fire-and-forget work.
func (g *Group) Go(fn func() error) {
	g.eg.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError{r}
			}
		}()
		return fn()
	})
}

// GoContext runs fn with ctx on a tracked goroutine. The Group passes ctx
// through unchanged: it is not cancelled when another tracked goroutine
// returns an error.
func (g *Group) GoContext(ctx context.Context, fn func(context.Context) error) {
	g.Go(func() error { return fn(ctx) })
}

// Wait blocks until every tracked goroutine has returned, then returns the
// first non-nil error, if any.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

type panicError struct{ recovered any }

func (p panicError) Error() string {
	return "workerpool: recovered panic in tracked goroutine"
}
