// Package classconfig turns a small, signed descriptor string into a
// discriminator.Factory: the concrete mechanism behind spec.md's
// "pre-wired ... for a connection class" factory behavior. A
// descriptor looks like a pluggable-transport argument line —
//
//	class=mesh-relay;codec=json,null;framer=cipher;nonce-seed=<base64>
//
// — parsed with the same key/value grammar and Args type goptlib uses
// for ServerTransportOptions / Bridge lines, because that grammar is
// already the idiom this codebase's dependency graph reaches for
// whenever small config needs to travel as one string.
package classconfig

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"git.torproject.org/pluggable-transports/goptlib.git"
	"github.com/agl/ed25519"

	"github.com/pulsecloak/pulsecloak-node/csrand"
	"github.com/pulsecloak/pulsecloak-node/discriminator"
	"github.com/pulsecloak/pulsecloak-node/framer"
	"github.com/pulsecloak/pulsecloak-node/framer/cipherframer"
	"github.com/pulsecloak/pulsecloak-node/framer/lengthprefix"
	"github.com/pulsecloak/pulsecloak-node/masquerade"
	"github.com/pulsecloak/pulsecloak-node/pulselog"
)

// Descriptor is a parsed connection-class line.
type Descriptor struct {
	Class      string
	CodecNames []string
	FramerName string
	NonceSeed  []byte
}

// ErrUnsignedDescriptor is returned by Verify when a directory key is
// configured but the descriptor carried no signature at all.
var ErrUnsignedDescriptor = fmt.Errorf("classconfig: descriptor is not signed")

// ErrBadSignature is returned by Verify when a descriptor's signature
// does not verify against the configured directory key.
var ErrBadSignature = fmt.Errorf("classconfig: signature does not verify")

// Parse splits a descriptor line of the form
// "key=value;key=value;..." into a goptlib Args map and then into a
// Descriptor. Unknown keys are ignored, matching the JSON envelope's
// "extra members are ignored" posture elsewhere in this codebase.
func Parse(line string) (Descriptor, error) {
	args := make(pt.Args)
	for _, pair := range strings.Split(line, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return Descriptor{}, fmt.Errorf("classconfig: malformed key=value pair: %q", pair)
		}
		args.Add(kv[0], kv[1])
	}

	class, ok := args.Get("class")
	if !ok || class == "" {
		return Descriptor{}, fmt.Errorf("classconfig: missing required key %q", "class")
	}

	codecField, ok := args.Get("codec")
	if !ok || codecField == "" {
		return Descriptor{}, fmt.Errorf("classconfig: missing required key %q", "codec")
	}

	framerName, ok := args.Get("framer")
	if !ok || framerName == "" {
		framerName = "length"
	}

	desc := Descriptor{
		Class:      class,
		CodecNames: strings.Split(codecField, ","),
		FramerName: framerName,
	}

	if seed, ok := args.Get("nonce-seed"); ok {
		decoded, err := base64.StdEncoding.DecodeString(seed)
		if err != nil {
			return Descriptor{}, fmt.Errorf("classconfig: invalid nonce-seed: %w", err)
		}
		desc.NonceSeed = decoded
	}

	return desc, nil
}

// VerifySignature checks a base64-encoded Ed25519 signature over the
// SHA-256 digest of line, exactly as given, against directoryKey. No
// field is stripped from line first; the signature travels separately
// as signatureB64. A
// nil directoryKey means no directory is configured and every
// descriptor is accepted unsigned.
func VerifySignature(line string, signatureB64 string, directoryKey *[32]byte) error {
	if directoryKey == nil {
		return nil
	}
	if signatureB64 == "" {
		return ErrUnsignedDescriptor
	}
	sigBytes, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return ErrBadSignature
	}
	var sig [ed25519.SignatureSize]byte
	copy(sig[:], sigBytes)

	digest := sha256.Sum256([]byte(line))
	if !ed25519.Verify(directoryKey, digest[:], &sig) {
		return ErrBadSignature
	}
	return nil
}

// Sign produces a base64-encoded Ed25519 signature of line suitable
// for VerifySignature, using a node's private key. Intended for a
// directory service minting descriptors, not for the node itself.
func Sign(line string, privateKey *[64]byte) string {
	digest := sha256.Sum256([]byte(line))
	sig := ed25519.Sign(privateKey, digest[:])
	return base64.StdEncoding.EncodeToString(sig[:])
}

// GenerateNonceSeed returns a fresh, random base64-encoded nonce-seed
// suitable for a "framer=cipher" descriptor's nonce-seed field. A
// directory service calls this once per connection class it mints,
// rather than ever reusing key material across classes.
func GenerateNonceSeed() (string, error) {
	seed := make([]byte, cipherframer.KeyLength)
	if err := csrand.Bytes(seed); err != nil {
		return "", fmt.Errorf("classconfig: could not generate nonce-seed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(seed), nil
}

// newFramer builds the framer.Framer this descriptor requests. "length"
// needs no keying material; "cipher" requires desc.NonceSeed to carry
// exactly cipherframer.KeyLength bytes of shared secret.
func newFramer(desc Descriptor) (discriminator.NewFramerFunc, error) {
	switch desc.FramerName {
	case "length", "":
		return func() framer.Framer { return lengthprefix.New() }, nil
	case "cipher":
		if len(desc.NonceSeed) != cipherframer.KeyLength {
			return nil, fmt.Errorf("classconfig: framer %q needs a %d-byte nonce-seed, got %d", desc.FramerName, cipherframer.KeyLength, len(desc.NonceSeed))
		}
		key := desc.NonceSeed
		return func() framer.Framer { return cipherframer.New(key) }, nil
	default:
		return nil, fmt.Errorf("classconfig: unknown framer %q", desc.FramerName)
	}
}

// codecByName maps a descriptor's codec names onto masquerade.Masquerader
// instances. Order is preserved exactly as written, since codec
// priority in a Discriminator is positional.
//
// "json" is ordered-sensitive: it never returns
// masquerade.ErrNotThisMasquerader, so placing it before a codec meant
// to claim non-JSON traffic causes that traffic to be logged as a
// JSON error even when the later codec accepts it. This is documented
// upstream behavior (spec.md §9's open question), not a bug in this
// registry.
func codecByName(name string, logger pulselog.Logger) (masquerade.Masquerader, error) {
	switch name {
	case "null":
		return masquerade.NewNull(), nil
	case "json":
		return masquerade.NewJSONWithLogger(logger), nil
	default:
		return nil, fmt.Errorf("classconfig: unknown codec %q", name)
	}
}

// Build turns a Descriptor into a discriminator.Factory, wiring the
// framer and codec list it names and sharing logger across every
// Discriminator the factory eventually produces.
func Build(desc Descriptor, logger pulselog.Logger) (discriminator.Factory, error) {
	newFr, err := newFramer(desc)
	if err != nil {
		return nil, err
	}

	codecs := make([]masquerade.Masquerader, 0, len(desc.CodecNames))
	for _, name := range desc.CodecNames {
		codec, err := codecByName(strings.TrimSpace(name), logger)
		if err != nil {
			return nil, err
		}
		codecs = append(codecs, codec)
	}

	return discriminator.NewStaticFactory(newFr, codecs, logger), nil
}

// Registry maps connection-class names to factories, built once at
// startup from a set of descriptor lines and handed out to acceptor
// goroutines, each of which calls Factory.Duplicate to get its own
// handle before accepting connections concurrently.
type Registry struct {
	factories    map[string]discriminator.Factory
	directoryKey *[32]byte
}

// NewRegistry constructs an empty Registry. A nil directoryKey accepts
// unsigned descriptors; a non-nil one requires every descriptor passed
// to Register to carry a valid signature.
func NewRegistry(directoryKey *[32]byte) *Registry {
	return &Registry{
		factories:    make(map[string]discriminator.Factory),
		directoryKey: directoryKey,
	}
}

// Register parses, verifies, and builds the factory for one descriptor
// line, storing it under its class name.
func (r *Registry) Register(line string, signatureB64 string, logger pulselog.Logger) error {
	if err := VerifySignature(line, signatureB64, r.directoryKey); err != nil {
		return err
	}
	desc, err := Parse(line)
	if err != nil {
		return err
	}
	factory, err := Build(desc, logger)
	if err != nil {
		return err
	}
	r.factories[desc.Class] = factory
	return nil
}

// Factory returns the registered factory for class, and whether one
// was found. Callers should call Duplicate on the result before
// handing it to a new acceptor goroutine.
func (r *Registry) Factory(class string) (discriminator.Factory, bool) {
	f, ok := r.factories[class]
	return f, ok
}
