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

// Package supervisor implements Component D: parent-scoped failure policy.
package supervisor

import (
	"sync"
	"time"
)

// Strategy selects whether a directive applies to the failing child alone
// or to all of its siblings.
type Strategy int

const (
	// OneForOne applies the directive only to the failing child.
	OneForOne Strategy = iota
	// AllForOne applies the directive to every sibling under the same
	// supervisor.
	AllForOne
)

// Directive is the outcome a decision function yields for a given
// failure.
type Directive int

const (
	// Resume leaves the actor running, discarding the failed message.
	Resume Directive = iota
	// Restart stops and reinitializes the actor, replaying queued user
	// messages.
	Restart
	// Stop terminates the actor permanently.
	Stop
	// Escalate re-raises the failure to the supervisor's own parent.
	Escalate
)

func (d Directive) String() string {
	switch d {
	case Resume:
		return "resume"
	case Restart:
		return "restart"
	case Stop:
		return "stop"
	case Escalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// RestartStatistics records recent failure timestamps for one actor so a
// Supervisor can promote a directive to Stop once failures exceed
// MaxRetries within a time window.
type RestartStatistics struct {
	mu         sync.Mutex
	failures   []time.Time
	restarts   int
}

// NewRestartStatistics builds an empty RestartStatistics.
func NewRestartStatistics() *RestartStatistics {
	return &RestartStatistics{}
}

// RecordFailure appends now to the failure history.
func (s *RestartStatistics) RecordFailure(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, now)
}

// RecordRestart increments the restart counter, used by callers that want
// to report RestartCount() to diagnostics/tests.
func (s *RestartStatistics) RecordRestart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts++
}

// RestartCount returns the number of restarts recorded so far.
func (s *RestartStatistics) RestartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// FailuresWithin reports how many recorded failures fall within the last
// `within` duration measured from now, pruning older entries as a side
// effect so the slice does not grow without bound.
func (s *RestartStatistics) FailuresWithin(now time.Time, within time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if within <= 0 {
		return len(s.failures)
	}
	cutoff := now.Add(-within)
	kept := s.failures[:0]
	for _, t := range s.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.failures = kept
	return len(s.failures)
}

// DecisionFunc maps a failure reason and that actor's statistics to a
// directive. The zero value is never used directly; Policy.Decide always
// has a DecisionFunc installed, defaulting to AlwaysRestartDecision.
type DecisionFunc func(reason error, stats *RestartStatistics) Directive

// AlwaysRestartDecision unconditionally returns Restart, implementing the
// spec's AlwaysRestart variant.
func AlwaysRestartDecision(error, *RestartStatistics) Directive { return Restart }

// StopDecision unconditionally returns Stop, implementing the spec's Stop
// variant.
func StopDecision(error, *RestartStatistics) Directive { return Stop }

// EscalateDecision unconditionally returns Escalate, implementing the
// spec's Escalate variant.
func EscalateDecision(error, *RestartStatistics) Directive { return Escalate }

// Policy is a supervisor's configured failure policy: a Strategy (who the
// directive applies to) plus a retry-aware DecisionFunc (what directive to
// apply).
type Policy struct {
	Strategy   Strategy
	MaxRetries uint32
	Within     time.Duration
	Decide     DecisionFunc
}

// Option configures a Policy at construction time.
type Option func(*Policy)

// WithStrategy overrides the default OneForOne strategy.
func WithStrategy(s Strategy) Option { return func(p *Policy) { p.Strategy = s } }

// WithRetry configures the maxRetries/within retry window used to promote
// a Restart directive to Stop once exceeded.
func WithRetry(maxRetries uint32, within time.Duration) Option {
	return func(p *Policy) {
		p.MaxRetries = maxRetries
		p.Within = within
	}
}

// WithDecision overrides the decision function; the default is
// AlwaysRestartDecision.
func WithDecision(fn DecisionFunc) Option { return func(p *Policy) { p.Decide = fn } }

// New builds a Policy with the spec's AlwaysRestart default.
func New(opts ...Option) *Policy {
	p := &Policy{Strategy: OneForOne, Decide: AlwaysRestartDecision}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DirectiveFor applies the policy's decision function to reason and stats,
// then promotes Restart to Stop once the retry budget is exhausted, per
// spec §4.D: "when failures exceed maxRetries within `within`, the
// directive is promoted to Stop."
func (p *Policy) DirectiveFor(now time.Time, reason error, stats *RestartStatistics) Directive {
	directive := p.Decide(reason, stats)
	if directive != Restart {
		return directive
	}
	stats.RecordFailure(now)
	if p.MaxRetries > 0 && stats.FailuresWithin(now, p.Within) > int(p.MaxRetries) {
		return Stop
	}
	return directive
}
