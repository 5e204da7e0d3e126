// Package lengthprefix implements the simplest framer that satisfies
// the framer.Framer contract: each frame is a 4-byte big-endian
// length prefix followed by that many bytes of body. It performs no
// cryptography or obfuscation and is intended for trusted or local
// links, typically paired with masquerade.Null.
package lengthprefix

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pulsecloak/pulsecloak-node/framer"
)

const (
	lengthFieldBytes = 4

	// MaxFrameBodyLength bounds the declared length field so that a
	// corrupt or adversarial prefix cannot make the framer attempt to
	// buffer an unbounded amount of data before giving up.
	MaxFrameBodyLength = 16 * 1024 * 1024
)

// Framer implements framer.Framer with 4-byte-length-prefixed
// framing.
type Framer struct {
	buf       bytes.Buffer
	lastError error
}

// New constructs a fresh, empty Framer.
func New() *Framer { return &Framer{} }

// AddData implements framer.Framer.
func (f *Framer) AddData(data []byte) {
	f.buf.Write(data)
}

// TakeFrame implements framer.Framer. It never sets Terminal: this is
// a pure streaming framer with no end-of-stream signal of its own.
func (f *Framer) TakeFrame() (framer.FrameChunk, bool) {
	raw := f.buf.Bytes()
	if len(raw) < lengthFieldBytes {
		return framer.FrameChunk{}, false
	}

	declared := binary.BigEndian.Uint32(raw[:lengthFieldBytes])
	if declared > MaxFrameBodyLength {
		f.lastError = fmt.Errorf("lengthprefix: declared frame length %d exceeds maximum %d", declared, MaxFrameBodyLength)
		return framer.FrameChunk{}, false
	}

	total := lengthFieldBytes + int(declared)
	if len(raw) < total {
		return framer.FrameChunk{}, false
	}

	body := make([]byte, declared)
	copy(body, raw[lengthFieldBytes:total])
	f.buf.Next(total)

	return framer.FrameChunk{Bytes: body}, true
}

// LastError reports the most recent irrecoverable stream condition
// this framer detected, e.g. a declared frame length beyond
// MaxFrameBodyLength. The framer contract has no error return on
// TakeFrame itself; per spec, "irrecoverable stream corruption must be
// handled out-of-band by the transport" — this accessor is that
// out-of-band signal. Once it is set, TakeFrame keeps returning false
// for this stream. cmd/pulsecloak-node does not read it: a Discriminator
// does not expose its framer, so such a connection stays open until the
// peer closes it or a read fails.
func (f *Framer) LastError() error { return f.lastError }

// Encode produces the wire bytes for one frame carrying body. It is
// the encoder-side counterpart to TakeFrame, used by callers (tests,
// or an outbound connection) that need to produce frames this Framer
// can decode.
func Encode(body []byte) []byte {
	out := make([]byte, lengthFieldBytes+len(body))
	binary.BigEndian.PutUint32(out[:lengthFieldBytes], uint32(len(body)))
	copy(out[lengthFieldBytes:], body)
	return out
}
