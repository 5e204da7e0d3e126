package cipherframer

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return key
}

func TestRoundTripSingleFrame(t *testing.T) {
	key := testKey(t)
	enc := NewEncoder(key)
	dec := New(key)

	wire, err := enc.Encode([]byte("booga"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec.AddData(wire)

	chunk, ok := dec.TakeFrame()
	if !ok {
		t.Fatalf("expected a frame, LastError = %v", dec.LastError())
	}
	if string(chunk.Bytes) != "booga" {
		t.Errorf("chunk.Bytes = %q", chunk.Bytes)
	}
}

func TestRoundTripMultipleFramesInOrder(t *testing.T) {
	key := testKey(t)
	enc := NewEncoder(key)
	dec := New(key)

	var wire bytes.Buffer
	for _, body := range []string{"one", "two", "three"} {
		frame, err := enc.Encode([]byte(body))
		if err != nil {
			t.Fatalf("Encode(%q): %v", body, err)
		}
		wire.Write(frame)
	}
	dec.AddData(wire.Bytes())

	for _, want := range []string{"one", "two", "three"} {
		chunk, ok := dec.TakeFrame()
		if !ok {
			t.Fatalf("expected a frame for %q, LastError = %v", want, dec.LastError())
		}
		if string(chunk.Bytes) != want {
			t.Errorf("chunk.Bytes = %q, want %q", chunk.Bytes, want)
		}
	}
	if _, ok := dec.TakeFrame(); ok {
		t.Fatal("expected no fourth frame")
	}
}

func TestTakeFrameWaitsForCompleteFrame(t *testing.T) {
	key := testKey(t)
	enc := NewEncoder(key)
	dec := New(key)

	frame, err := enc.Encode([]byte("booga"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec.AddData(frame[:len(frame)-1])

	if _, ok := dec.TakeFrame(); ok {
		t.Fatal("expected no frame with a truncated buffer")
	}
	if dec.LastError() != nil {
		t.Errorf("LastError = %v, want nil while still waiting for bytes", dec.LastError())
	}
}

func TestTamperedFrameFailsAuthentication(t *testing.T) {
	key := testKey(t)
	enc := NewEncoder(key)
	dec := New(key)

	frame, err := enc.Encode([]byte("booga"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame[len(frame)-1] ^= 0xff
	dec.AddData(frame)

	if _, ok := dec.TakeFrame(); ok {
		t.Fatal("expected no frame from a tampered box")
	}
	if dec.LastError() != ErrTagMismatch {
		t.Errorf("LastError = %v, want ErrTagMismatch", dec.LastError())
	}
}

func TestDecoderRejectsWrongKey(t *testing.T) {
	key := testKey(t)
	otherKey := testKey(t)
	enc := NewEncoder(key)
	dec := New(otherKey)

	frame, err := enc.Encode([]byte("booga"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec.AddData(frame)

	if _, ok := dec.TakeFrame(); ok {
		t.Fatal("expected no frame when keys differ")
	}
}

func TestNewPanicsOnWrongKeyLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	New(make([]byte, KeyLength-1))
}

func TestEncodeRejectsOversizedBody(t *testing.T) {
	key := testKey(t)
	enc := NewEncoder(key)

	_, err := enc.Encode(make([]byte, MaxFrameBodyLength+1))
	if err == nil {
		t.Fatal("expected an error for an oversized body")
	}
}

func TestTakeFrameRejectsFrameLengthAboveSegmentBudget(t *testing.T) {
	key := testKey(t)
	dec := New(key)

	// Craft a length field that deobfuscates to a box length just
	// above maxBoxLength — within the wire field's 16-bit range, but
	// larger than this framer's MTU-sized segment budget allows.
	tooLarge := uint16(maxBoxLength + 1)

	var nb [24]byte
	if err := dec.n.bytes(&nb); err != nil {
		t.Fatalf("nonce.bytes: %v", err)
	}
	dec.sip.Reset()
	dec.sip.Write(nb[:])
	mask := dec.sip.Sum(nil)
	dec.sip.Reset()

	wireLength := tooLarge ^ binary.BigEndian.Uint16(mask)
	var lengthField [2]byte
	binary.BigEndian.PutUint16(lengthField[:], wireLength)

	dec.AddData(lengthField[:])
	if _, ok := dec.TakeFrame(); ok {
		t.Fatal("expected no frame for a length above the segment budget")
	}
	if dec.LastError() == nil {
		t.Error("expected LastError to report the invalid frame length")
	}
}

func TestRoundTripEmptyBody(t *testing.T) {
	key := testKey(t)
	enc := NewEncoder(key)
	dec := New(key)

	frame, err := enc.Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec.AddData(frame)

	chunk, ok := dec.TakeFrame()
	if !ok {
		t.Fatalf("expected a frame, LastError = %v", dec.LastError())
	}
	if len(chunk.Bytes) != 0 {
		t.Errorf("chunk.Bytes = %v, want empty", chunk.Bytes)
	}
}
