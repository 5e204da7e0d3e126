// Package discriminator multiplexes one framer with an ordered list
// of masqueraders, arbitrating which codec claims each frame that
// comes off the wire.
package discriminator

import (
	"errors"

	"github.com/pulsecloak/pulsecloak-node/framer"
	"github.com/pulsecloak/pulsecloak-node/masquerade"
	"github.com/pulsecloak/pulsecloak-node/pulselog"
)

// componentName is the log-line prefix used for every WARN this
// package emits, per the stable log line format
// "<codec-name>: <error-display>" — here the "codec" is the
// discriminator itself, reporting a codec's error on its behalf.
const componentName = "Discriminator"

// Discriminator owns exactly one Framer and an ordered, non-empty list
// of Masqueraders. It is a single-owner, single-thread object: the
// connection task that creates one mutates it exclusively and never
// shares it with another task.
type Discriminator struct {
	fr     framer.Framer
	codecs []masquerade.Masquerader
	logger pulselog.Logger
}

// New constructs a Discriminator from a framer and an ordered codec
// list. It panics if codecs is empty — an empty codec list is a
// programmer error, not a runtime condition this component can
// recover from.
func New(fr framer.Framer, codecs []masquerade.Masquerader, logger pulselog.Logger) *Discriminator {
	if len(codecs) == 0 {
		panic("Discriminator must be given at least one masquerader")
	}
	return &Discriminator{
		fr:     fr,
		codecs: append([]masquerade.Masquerader(nil), codecs...),
		logger: logger,
	}
}

// AddData delegates unchanged to the framer.
func (d *Discriminator) AddData(data []byte) {
	d.fr.AddData(data)
}

// TakeChunk asks the framer for the next frame and offers it to each
// codec in order. The first codec to succeed wins; remaining codecs
// are not tried on that frame. A codec's ErrNotThisMasquerader is
// consumed silently; every other codec error is logged at WARN and
// the scan continues to the next codec. If every codec is exhausted
// without success, the frame is dropped and TakeChunk returns
// (UnmaskedChunk{}, false) — it is not re-offered on a later call.
func (d *Discriminator) TakeChunk() (masquerade.UnmaskedChunk, bool) {
	frame, ok := d.fr.TakeFrame()
	if !ok {
		return masquerade.UnmaskedChunk{}, false
	}

	for _, codec := range d.codecs {
		chunk, err := codec.TryUnmask(frame.Bytes)
		if err == nil {
			return chunk, true
		}
		if errors.Is(err, masquerade.ErrNotThisMasquerader) {
			continue
		}
		d.logger.Warn(componentName, "%s", err.Error())
	}
	return masquerade.UnmaskedChunk{}, false
}
