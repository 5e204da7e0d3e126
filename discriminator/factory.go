package discriminator

import (
	"github.com/pulsecloak/pulsecloak-node/framer"
	"github.com/pulsecloak/pulsecloak-node/masquerade"
	"github.com/pulsecloak/pulsecloak-node/pulselog"
)

// Factory spawns fresh Discriminators, each pre-wired with the
// appropriate framer and codec list for a connection class. A Factory
// is itself duplicable without deep-copying its configuration — the
// duplicate must produce discriminators indistinguishable from the
// original's — and is safe to share across threads, since acceptor
// goroutines create connections concurrently.
type Factory interface {
	// Make returns a fresh Discriminator for one new connection. The
	// framer it wraps is owned exclusively by that Discriminator and is
	// never shared with another one; codec instances are stateless and
	// may be shared across the Discriminators a Factory makes.
	Make() *Discriminator

	// Duplicate returns a Factory configured identically to this one.
	Duplicate() Factory
}

// NewFramerFunc builds a fresh, unshared Framer instance for one
// connection. Every call to a Factory's Make must invoke this so that
// no two Discriminators ever see the same Framer.
type NewFramerFunc func() framer.Framer

// StaticFactory is the simplest conforming Factory: a fixed ordered
// codec list (codecs are stateless and may be shared across the
// Discriminators this factory produces) plus a constructor for a
// fresh Framer per connection.
type StaticFactory struct {
	newFramer NewFramerFunc
	codecs    []masquerade.Masquerader
	logger    pulselog.Logger
}

// NewStaticFactory builds a Factory that hands every Discriminator it
// makes a freshly constructed framer (via newFramer) and the same
// ordered, stateless codec list.
func NewStaticFactory(newFramer NewFramerFunc, codecs []masquerade.Masquerader, logger pulselog.Logger) *StaticFactory {
	return &StaticFactory{
		newFramer: newFramer,
		codecs:    append([]masquerade.Masquerader(nil), codecs...),
		logger:    logger,
	}
}

// Make implements Factory.
func (f *StaticFactory) Make() *Discriminator {
	return New(f.newFramer(), f.codecs, f.logger)
}

// Duplicate implements Factory. Because StaticFactory holds only
// immutable configuration (a constructor function and a slice of
// stateless, shared-ownership codecs), duplication is a shallow copy;
// the clone produces Discriminators indistinguishable from the
// original's.
func (f *StaticFactory) Duplicate() Factory {
	return &StaticFactory{
		newFramer: f.newFramer,
		codecs:    f.codecs,
		logger:    f.logger,
	}
}
