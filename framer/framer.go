// Package framer defines the contract for reassembling a raw byte
// stream into discrete frames.
//
// A Framer owns an internal reassembly buffer. AddData appends to it;
// TakeFrame consumes the prefix of the buffer that constitutes the
// next complete frame, if one is available. Concrete framers (length
// prefixed, line terminated, ciphertext sealed, ...) live in their own
// packages and are wired in per connection class by a
// discriminator.Factory; this package only states the shape they must
// have.
package framer

// FrameChunk is an immutable window of bytes handed from a Framer to
// the masquerade discriminator, representing one wire message
// according to the framer's rules.
type FrameChunk struct {
	// Bytes is the frame payload exactly as it appeared on the wire,
	// framing overhead already stripped.
	Bytes []byte

	// Terminal is true when the framer considers the framing session
	// closed after this frame (e.g. a length-prefixed stream that has
	// just delivered its final declared frame).
	Terminal bool
}

// Framer reassembles a byte stream into frames.
//
// TakeFrame must be deterministic: given the same buffered state, it
// must always return the same result. A successful TakeFrame advances
// the internal buffer by exactly the bytes consumed; TakeFrame must
// leave the buffer untouched when it has nothing to return.
//
// Framers are single-owner, single-thread objects: the connection task
// that owns a Framer mutates it exclusively and never shares it with
// another task.
type Framer interface {
	// AddData appends data to the framer's internal reassembly
	// buffer. It is a pure side effect and cannot fail.
	AddData(data []byte)

	// TakeFrame consumes and returns the next complete frame, if the
	// buffer currently holds one. The second return value is false
	// when no complete frame is available yet; in that case the
	// returned FrameChunk is the zero value and the buffer is
	// unchanged.
	TakeFrame() (FrameChunk, bool)
}
