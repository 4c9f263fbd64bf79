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

package cluster

import (
	"bytes"
	"io"
	"regexp"

	"github.com/relaycore/relay/log"
)

// logWriter adapts memberlist's bracketed "[INFO] ..." log lines onto the
// injected structured Logger, so gossip transport logging goes through
// the same façade as everything else instead of memberlist's own
// stdlib-log default.
type logWriter struct {
	logger log.Logger
	info   *regexp.Regexp
	debug  *regexp.Regexp
	warn   *regexp.Regexp
	error  *regexp.Regexp
}

var _ io.Writer = (*logWriter)(nil)

func newLogWriter(logger log.Logger) *logWriter {
	return &logWriter{
		logger: logger,
		info:   regexp.MustCompile(`\[INFO\] (.+)`),
		debug:  regexp.MustCompile(`\[DEBUG\] (.+)`),
		warn:   regexp.MustCompile(`\[WARN\] (.+)`),
		error:  regexp.MustCompile(`\[ERROR\] (.+)`),
	}
}

func (l *logWriter) Write(message []byte) (n int, err error) {
	text := string(bytes.TrimSpace(message))

	if m := l.info.FindStringSubmatch(text); len(m) > 1 {
		l.logger.Info(m[1])
		return len(message), nil
	}
	if m := l.debug.FindStringSubmatch(text); len(m) > 1 {
		l.logger.Debug(m[1])
		return len(message), nil
	}
	if m := l.warn.FindStringSubmatch(text); len(m) > 1 {
		l.logger.Warn(m[1])
		return len(message), nil
	}
	if m := l.error.FindStringSubmatch(text); len(m) > 1 {
		l.logger.Error(m[1])
		return len(message), nil
	}
	return len(message), nil
}
