// Package masquerade defines the pluggable codec contract that
// disguises and undisguises a frame payload on the wire, and the
// error taxonomy a codec uses to report why it could not undisguise a
// given frame.
package masquerade

import "errors"

// UnmaskedChunk is the decoded payload a Masquerader produces from a
// frame, plus the flags the discriminator passes upstream unchanged.
type UnmaskedChunk struct {
	// Payload is the decoded octet sequence.
	Payload []byte

	// LastChunk is true when the producing codec regards this as the
	// final logical message in the stream.
	LastChunk bool

	// Sequenced declares whether the higher layer must assign a
	// sequence number to Payload. False means the payload is itself
	// self-ordering.
	Sequenced bool
}

// ErrNotThisMasquerader is returned by TryUnmask when the codec can
// say with certainty that the frame is not in its format. It carries
// no data; it is a pure control signal, never logged, and the caller
// is expected to try the next codec in its list.
var ErrNotThisMasquerader = errors.New("Data not for this masquerader")

// kind classifies the remaining three levels of masquerade failure.
type kind int

const (
	lowLevel kind = iota
	midLevel
	highLevel
)

// Error is a diagnostic masquerade failure: the codec recognized (or
// partially recognized) the envelope but found it corrupt. Unlike
// ErrNotThisMasquerader, every Error is logged by the discriminator.
type Error struct {
	kind   kind
	reason string
}

// LowLevel reports an octet-level violation, e.g. non-UTF-8 data where
// UTF-8 is required.
func LowLevel(reason string) error { return &Error{kind: lowLevel, reason: reason} }

// MidLevel reports a syntactic or semantic violation at the codec's
// envelope level, e.g. malformed JSON.
func MidLevel(reason string) error { return &Error{kind: midLevel, reason: reason} }

// HighLevel reports an envelope that parsed correctly but whose inner
// contract was violated, e.g. a base64 payload that failed to decode.
func HighLevel(reason string) error { return &Error{kind: highLevel, reason: reason} }

// Error renders the fixed, testable display strings. These strings
// are observable by log-scraping tests and must remain exact.
func (e *Error) Error() string {
	switch e.kind {
	case lowLevel:
		return "Low-level data error: " + e.reason
	case midLevel:
		return "Mid-level data error: " + e.reason
	case highLevel:
		return "High-level data error: " + e.reason
	default:
		return e.reason
	}
}

// Masquerader is a pluggable codec that disguises (Mask) and
// undisguises (TryUnmask) frame payloads.
//
// Round-trip law: for every codec C and every octet sequence X,
// C.TryUnmask(C.Mask(X)).Payload must equal X (flags may vary per
// codec). Masqueraders must be stateless and safe to invoke from
// multiple goroutines concurrently.
type Masquerader interface {
	// Name identifies the codec in log output, per the
	// "<codec-name>: <error-display>" line format.
	Name() string

	// TryUnmask attempts to interpret data as a frame of this codec.
	// ErrNotThisMasquerader indicates the bytes are unambiguously not
	// this codec's format and the caller should try another codec.
	// Any other error indicates this codec recognized the envelope
	// but found it corrupt.
	TryUnmask(data []byte) (UnmaskedChunk, error)

	// Mask produces the wire encoding of data under this codec. Mask
	// must be deterministic.
	Mask(data []byte) ([]byte, error)
}
