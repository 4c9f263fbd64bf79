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

package supervisor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaycore/relay/supervisor"
)

func TestPolicy_AlwaysRestartDefault(t *testing.T) {
	p := supervisor.New()
	stats := supervisor.NewRestartStatistics()
	d := p.DirectiveFor(time.Now(), errors.New("boom"), stats)
	assert.Equal(t, supervisor.Restart, d)
}

func TestPolicy_PromotesToStopAfterMaxRetries(t *testing.T) {
	p := supervisor.New(supervisor.WithRetry(2, time.Minute))
	stats := supervisor.NewRestartStatistics()
	now := time.Now()

	assert.Equal(t, supervisor.Restart, p.DirectiveFor(now, errors.New("e"), stats))
	assert.Equal(t, supervisor.Restart, p.DirectiveFor(now, errors.New("e"), stats))
	assert.Equal(t, supervisor.Stop, p.DirectiveFor(now, errors.New("e"), stats))
}

func TestPolicy_RetryWindowExpires(t *testing.T) {
	p := supervisor.New(supervisor.WithRetry(1, 10*time.Millisecond))
	stats := supervisor.NewRestartStatistics()
	now := time.Now()

	assert.Equal(t, supervisor.Restart, p.DirectiveFor(now, errors.New("e"), stats))
	later := now.Add(50 * time.Millisecond)
	// first failure has aged out of the window, so this is only the first
	// failure within the window again
	assert.Equal(t, supervisor.Restart, p.DirectiveFor(later, errors.New("e"), stats))
}

func TestStopAndEscalateDecisions(t *testing.T) {
	stats := supervisor.NewRestartStatistics()
	assert.Equal(t, supervisor.Stop, supervisor.StopDecision(nil, stats))
	assert.Equal(t, supervisor.Escalate, supervisor.EscalateDecision(nil, stats))
}
