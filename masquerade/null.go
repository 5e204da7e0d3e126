package masquerade

// Null is the identity codec: it disguises nothing. It is intended
// for trusted links where obfuscation would add nothing but latency.
//
// Null never returns ErrNotThisMasquerader, so if it appears in a
// discriminator's codec list it must be last, or it will mask every
// codec positioned after it.
type Null struct{}

// NewNull constructs a Null masquerader.
func NewNull() *Null { return &Null{} }

// Name implements Masquerader.
func (*Null) Name() string { return "NullMasquerader" }

// TryUnmask implements Masquerader. It always succeeds and returns
// the input unchanged, marked as the final chunk of a stream that
// needs upstream sequencing.
func (*Null) TryUnmask(data []byte) (UnmaskedChunk, error) {
	return UnmaskedChunk{
		Payload:   append([]byte(nil), data...),
		LastChunk: true,
		Sequenced: true,
	}, nil
}

// Mask implements Masquerader. It returns the input unchanged.
func (*Null) Mask(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}
