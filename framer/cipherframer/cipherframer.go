// Package cipherframer implements a concrete framer.Framer that seals
// every frame in a NaCl SecretBox and obfuscates the wire length field
// with a SipHash digest, so that passive observation of a connection
// reveals neither frame boundaries nor content. The wire format and
// obfuscation scheme are taken directly from the teacher's framing
// package:
//
//	uint16_t length (obfuscated, big endian)
//	NaCl SecretBox (Poly1305/XSalsa20) containing the frame payload
//
// The length field is the length of the NaCl SecretBox XORed with the
// truncated SipHash-2-4 digest of the nonce used to seal that box. The
// nonce is a fixed per-session prefix concatenated with a big-endian
// counter that starts at 1 and increments every frame; since the
// counter is never transmitted, both ends must derive it identically
// from frame order, which is why this framer (like the core it plugs
// into) requires a reliable, ordered transport.
//
// This lives outside the masquerade/discriminator core, exactly as
// spec.md anticipates for concrete framer implementations: the bytes
// it emits from TakeFrame are still just frame bytes, handed to the
// discriminator's codec list unmodified. The core itself still never
// touches payload cryptography.
package cipherframer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/dchest/siphash"

	"github.com/pulsecloak/pulsecloak-node/framer"
)

const (
	keyLength         = 32
	noncePrefixLength = 16
	sipKeyLength      = 16

	// KeyLength is the length of the shared secret this framer
	// requires: the SecretBox key, the nonce prefix, and the SipHash
	// key, concatenated.
	KeyLength = keyLength + noncePrefixLength + sipKeyLength

	lengthFieldBytes = 2

	// maximumSegmentLength is the teacher's MTU-sized ceiling on a
	// single frame's total wire footprint: a 1500-byte Ethernet frame
	// minus a typical 40 bytes of IP/TCP header. The wire length
	// field's own 16-bit range goes much higher than this, so bounding
	// frames at the field's maximum instead of at a real link budget
	// would let a single frame demand tens of kilobytes nothing
	// legitimate ever sends in one piece.
	maximumSegmentLength = 1500 - 40

	// frameOverhead is the non-payload portion of an on-wire frame:
	// the length field plus the SecretBox's authentication overhead.
	frameOverhead = lengthFieldBytes + secretbox.Overhead

	// MaxFrameBodyLength bounds how large a single frame's plaintext
	// payload may be; Encode rejects anything larger.
	MaxFrameBodyLength = maximumSegmentLength - frameOverhead

	// maxBoxLength and minBoxLength bound the sealed box length
	// carried by the (deobfuscated) wire length field: no smaller than
	// the authentication overhead alone, no larger than the segment
	// budget allows.
	maxBoxLength = maximumSegmentLength - lengthFieldBytes
	minBoxLength = frameOverhead - lengthFieldBytes
)

// ErrNonceCounterWrapped is the fatal condition signaled via
// LastError when a session's frame counter would wrap past its
// 64-bit range. The security guarantee of the underlying AEAD is
// broken if a nonce is ever reused for a given key, so a session that
// hits this must be torn down, never rekeyed in place.
var ErrNonceCounterWrapped = errors.New("cipherframer: nonce counter wrapped")

// ErrTagMismatch is the fatal condition signaled via LastError when a
// sealed frame fails authentication — the wire bytes were corrupted
// or the peer does not hold the expected key.
var ErrTagMismatch = errors.New("cipherframer: authentication tag mismatch")

type nonce struct {
	prefix  [noncePrefixLength]byte
	counter uint64
}

func (n *nonce) init(prefix []byte) {
	copy(n.prefix[:], prefix)
	n.counter = 1
}

func (n *nonce) bytes(out *[24]byte) error {
	if n.counter == 0 {
		return ErrNonceCounterWrapped
	}
	copy(out[:], n.prefix[:])
	binary.BigEndian.PutUint64(out[noncePrefixLength:], n.counter)
	return nil
}

// Framer implements framer.Framer over the sealed, length-obfuscated
// wire format described in the package doc. A Framer is single-owner,
// single-thread, like every Framer: it holds per-session nonce and
// SipHash state that only makes sense consumed in frame order.
type Framer struct {
	key [keyLength]byte
	n   nonce
	sip hash.Hash64
	buf bytes.Buffer

	pendingLength uint16
	havePending   bool

	lastError error
}

// New constructs a Framer from exactly KeyLength bytes of keying
// material shared out of band with the peer. It panics if key is the
// wrong length — a misconfigured connection class is a programmer
// error, not a runtime condition to recover from, mirroring the
// teacher's NewEncoder/NewDecoder.
func New(key []byte) *Framer {
	if len(key) != KeyLength {
		panic(fmt.Sprintf("cipherframer: invalid key length: %d", len(key)))
	}
	f := &Framer{}
	copy(f.key[:], key[:keyLength])
	f.n.init(key[keyLength : keyLength+noncePrefixLength])
	f.sip = siphash.New(key[keyLength+noncePrefixLength:])
	return f
}

// AddData implements framer.Framer.
func (f *Framer) AddData(data []byte) {
	f.buf.Write(data)
}

// TakeFrame implements framer.Framer.
func (f *Framer) TakeFrame() (framer.FrameChunk, bool) {
	if !f.havePending {
		raw := f.buf.Bytes()
		if len(raw) < lengthFieldBytes {
			return framer.FrameChunk{}, false
		}

		obfuscated := binary.BigEndian.Uint16(raw[:lengthFieldBytes])

		var nb [24]byte
		if err := f.n.bytes(&nb); err != nil {
			f.lastError = err
			return framer.FrameChunk{}, false
		}

		f.sip.Reset()
		f.sip.Write(nb[:])
		mask := f.sip.Sum(nil)
		length := obfuscated ^ binary.BigEndian.Uint16(mask)

		if int(length) < minBoxLength || int(length) > maxBoxLength {
			f.lastError = fmt.Errorf("cipherframer: invalid frame length: %d", length)
			return framer.FrameChunk{}, false
		}

		f.pendingLength = length
		f.havePending = true
		f.buf.Next(lengthFieldBytes)
	}

	raw := f.buf.Bytes()
	if len(raw) < int(f.pendingLength) {
		return framer.FrameChunk{}, false
	}

	box := make([]byte, f.pendingLength)
	copy(box, raw[:f.pendingLength])
	f.buf.Next(int(f.pendingLength))
	f.havePending = false

	// The counter has not advanced since the length field for this
	// frame was decoded, so this reproduces the exact same nonce.
	var nb [24]byte
	if err := f.n.bytes(&nb); err != nil {
		f.lastError = err
		return framer.FrameChunk{}, false
	}

	out, ok := secretbox.Open(nil, box, &nb, &f.key)
	if !ok {
		f.lastError = ErrTagMismatch
		return framer.FrameChunk{}, false
	}

	f.sip.Reset()
	f.sip.Write(box)
	f.n.counter++

	return framer.FrameChunk{Bytes: out}, true
}

// LastError reports the most recent fatal stream condition this
// framer detected: a nonce counter wraparound, an authentication tag
// mismatch, or a frame length outside the valid range. Per the framer
// contract, TakeFrame itself never returns an error; a non-nil value
// here means the session cannot recover, and more bytes will never
// resolve the corruption. cmd/pulsecloak-node does not read it: a
// Discriminator does not expose its framer, so such a connection stays
// open until the peer closes it or a read fails.
func (f *Framer) LastError() error { return f.lastError }

// Encoder seals outbound frames for a session using the same shared
// secret a peer's Framer decodes with.
type Encoder struct {
	key [keyLength]byte
	n   nonce
	sip hash.Hash64
}

// NewEncoder constructs an Encoder from exactly KeyLength bytes of
// keying material.
func NewEncoder(key []byte) *Encoder {
	if len(key) != KeyLength {
		panic(fmt.Sprintf("cipherframer: invalid key length: %d", len(key)))
	}
	e := &Encoder{}
	copy(e.key[:], key[:keyLength])
	e.n.init(key[keyLength : keyLength+noncePrefixLength])
	e.sip = siphash.New(key[keyLength+noncePrefixLength:])
	return e
}

// Encode seals body and returns the wire bytes of one frame: the
// obfuscated length field followed by the sealed box.
func (e *Encoder) Encode(body []byte) ([]byte, error) {
	if len(body) > MaxFrameBodyLength {
		return nil, fmt.Errorf("cipherframer: body too large: %d bytes", len(body))
	}

	var nb [24]byte
	if err := e.n.bytes(&nb); err != nil {
		return nil, err
	}
	e.n.counter++

	box := secretbox.Seal(nil, body, &nb, &e.key)

	e.sip.Reset()
	e.sip.Write(nb[:])
	mask := e.sip.Sum(nil)
	length := uint16(len(box)) ^ binary.BigEndian.Uint16(mask)

	var lengthField [lengthFieldBytes]byte
	binary.BigEndian.PutUint16(lengthField[:], length)

	e.sip.Reset()
	e.sip.Write(box)

	return append(lengthField[:], box...), nil
}
