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

package remote

import (
	"bytes"
	"encoding/gob"

	"github.com/relaycore/relay/message"
	"github.com/relaycore/relay/pid"
)

// wireFrame is the outer transport framing around one codec-encoded
// payload. Only the outer envelope (target/sender/headers/type tag) is
// gob-encoded here; the message payload itself always goes through the
// codec façade (google.golang.org/protobuf), since that is the boundary
// spec §6 actually specifies. The transport channel provider is
// deliberately out of scope (spec §1), so its framing format is not held
// to the same "use the ecosystem library" bar as the codec.
type wireFrame struct {
	TargetAddress string
	TargetID      string
	HasSender     bool
	SenderAddress string
	SenderID      string
	Headers       message.Header
	TypeTag       string
	Payload       []byte
}

func marshalFrame(env *message.Envelope, payload []byte, typeTag string) ([]byte, error) {
	f := wireFrame{
		TargetAddress: env.Target.Address,
		TargetID:      env.Target.ID,
		Headers:       env.Headers,
		TypeTag:       typeTag,
		Payload:       payload,
	}
	if env.Sender != nil {
		f.HasSender = true
		f.SenderAddress = env.Sender.Address
		f.SenderID = env.Sender.ID
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalFrame(data []byte) (target pid.PID, sender *pid.PID, headers message.Header, payload []byte, typeTag string, err error) {
	var f wireFrame
	if err = gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return
	}
	target = pid.New(f.TargetAddress, f.TargetID)
	if f.HasSender {
		s := pid.New(f.SenderAddress, f.SenderID)
		sender = &s
	}
	headers = f.Headers
	payload = f.Payload
	typeTag = f.TypeTag
	return
}
