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

package discovery

import "errors"

var (
	// ErrAlreadyInitialized is returned by Initialize when called twice.
	ErrAlreadyInitialized = errors.New("discovery: provider already initialized")
	// ErrNotInitialized is returned by Register/DiscoverPeers before
	// Initialize has run.
	ErrNotInitialized = errors.New("discovery: provider not initialized")
	// ErrAlreadyRegistered is returned by Register when called twice.
	ErrAlreadyRegistered = errors.New("discovery: provider already registered")
	// ErrNotRegistered is returned by Deregister before Register has run.
	ErrNotRegistered = errors.New("discovery: provider not registered")
	// ErrInvalidConfig is returned by SetConfig for a malformed Config.
	ErrInvalidConfig = errors.New("discovery: invalid provider configuration")
)
