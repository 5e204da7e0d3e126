package lengthprefix

import (
	"reflect"
	"testing"
)

func TestTakeFrameWaitsForCompleteFrame(t *testing.T) {
	f := New()
	frame := Encode([]byte("booga"))

	f.AddData(frame[:3])
	if _, ok := f.TakeFrame(); ok {
		t.Fatal("expected no frame with a partial buffer")
	}

	f.AddData(frame[3:])
	chunk, ok := f.TakeFrame()
	if !ok {
		t.Fatal("expected a frame once all bytes arrived")
	}
	if string(chunk.Bytes) != "booga" {
		t.Errorf("chunk.Bytes = %q", chunk.Bytes)
	}
}

func TestTakeFrameAdvancesBufferByExactlyOneFrame(t *testing.T) {
	f := New()
	f.AddData(Encode([]byte("one")))
	f.AddData(Encode([]byte("two")))

	first, ok := f.TakeFrame()
	if !ok || string(first.Bytes) != "one" {
		t.Fatalf("first = %v, ok = %v", first, ok)
	}
	second, ok := f.TakeFrame()
	if !ok || string(second.Bytes) != "two" {
		t.Fatalf("second = %v, ok = %v", second, ok)
	}
	if _, ok := f.TakeFrame(); ok {
		t.Fatal("expected no third frame")
	}
}

func TestTakeFrameIsDeterministic(t *testing.T) {
	f := New()
	f.AddData(Encode([]byte("x"))[:2])

	r1, ok1 := f.TakeFrame()
	r2, ok2 := f.TakeFrame()
	if ok1 != ok2 || !reflect.DeepEqual(r1, r2) {
		t.Errorf("non-deterministic result: (%v,%v) vs (%v,%v)", r1, ok1, r2, ok2)
	}
}

func TestTakeFrameRejectsOversizedDeclaredLength(t *testing.T) {
	f := New()
	oversized := make([]byte, lengthFieldBytes)
	for i := range oversized {
		oversized[i] = 0xff
	}
	f.AddData(oversized)

	if _, ok := f.TakeFrame(); ok {
		t.Fatal("expected no frame")
	}
	if f.LastError() == nil {
		t.Fatal("expected LastError to be set")
	}
}

func TestRoundTripEmptyBody(t *testing.T) {
	f := New()
	f.AddData(Encode(nil))

	chunk, ok := f.TakeFrame()
	if !ok {
		t.Fatal("expected a frame")
	}
	if len(chunk.Bytes) != 0 {
		t.Errorf("chunk.Bytes = %v, want empty", chunk.Bytes)
	}
}
