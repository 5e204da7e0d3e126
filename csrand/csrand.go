// Package csrand provides crypto/rand-backed byte generation for the
// keying material classconfig mints: connection-class nonce-seeds need
// a CSPRNG, not math/rand.
package csrand

import (
	"crypto/rand"
	"io"
)

// Bytes fills buf with random data read from the operating system's
// CSPRNG.
func Bytes(buf []byte) error {
	_, err := io.ReadFull(rand.Reader, buf)
	return err
}
