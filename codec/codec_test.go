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

package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/relaycore/relay/codec"
)

func TestProtoCodec_RoundTripIsIdentity(t *testing.T) {
	c := codec.New()
	original := wrapperspb.String("hello cluster")

	data, typeTag, err := c.Encode(original)
	require.NoError(t, err)
	assert.NotEmpty(t, typeTag)

	decoded, err := c.Decode(data, typeTag)
	require.NoError(t, err)

	got, ok := decoded.(*wrapperspb.StringValue)
	require.True(t, ok)
	assert.Equal(t, original.GetValue(), got.GetValue())
}

func TestProtoCodec_TypeTagMismatchIsProtocolError(t *testing.T) {
	c := codec.New()
	data, _, err := c.Encode(wrapperspb.String("hi"))
	require.NoError(t, err)

	_, err = c.Decode(data, "type.googleapis.com/google.protobuf.Int64Value")
	assert.Error(t, err)
}
