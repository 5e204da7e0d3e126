package masquerade

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"
)

// errorLogger is the minimal logging capability JSON needs to report
// its own errors at its own name, independent of whatever component
// (a Discriminator or a direct caller) ends up consuming them. It is
// satisfied by *pulselog.BufferLogger and pulselog's process logger
// without masquerade importing pulselog directly, avoiding a package
// cycle (pulselog has no reason to depend on masquerade).
type errorLogger interface {
	Error(component, format string, args ...interface{})
}

// JSON wraps a payload as a JSON object carrying either UTF-8 text
// under "bodyText" or base64-encoded binary under "bodyData". It
// produces exactly one of the two shapes; it never emits both or
// neither.
//
// JSON never returns ErrNotThisMasquerader: any input that is not its
// envelope produces a Low/Mid/High level error instead, so it is
// logged even when a codec positioned after it in a discriminator's
// list would have happily consumed the same frame. This is documented,
// known behavior, not a defect; order any codec meant to claim
// non-JSON traffic before JSON in a discriminator's list if that noise
// matters.
type JSON struct {
	logger errorLogger
}

// jsonName is both the Masquerader.Name() value and the component
// name this codec logs its own errors under.
const jsonName = "JsonMasquerader"

// NewJSON constructs a JSON masquerader that does not self-log.
func NewJSON() *JSON { return &JSON{} }

// NewJSONWithLogger constructs a JSON masquerader that logs every
// TryUnmask failure at ERROR under its own name before returning it,
// independently of whatever discriminator (if any) also logs the same
// error at WARN once it receives it back.
func NewJSONWithLogger(logger errorLogger) *JSON { return &JSON{logger: logger} }

// Name implements Masquerader.
func (*JSON) Name() string { return jsonName }

// bodyTextEnvelope is the wire shape used when the payload is valid
// UTF-8 text.
type bodyTextEnvelope struct {
	BodyText string `json:"bodyText"`
}

// bodyDataEnvelope is the wire shape used when the payload is not
// valid UTF-8 and must be carried as base64.
type bodyDataEnvelope struct {
	BodyData string `json:"bodyData"`
}

// unmaskEnvelope is used to parse an incoming frame. Both fields are
// optional; extra members on the wire (e.g. "component") are ignored
// by virtue of not being declared here.
type unmaskEnvelope struct {
	BodyText *string `json:"bodyText"`
	BodyData *string `json:"bodyData"`
}

// Mask implements Masquerader. If data is valid UTF-8 it is wrapped as
// {"bodyText": <string>}; otherwise it is base64-encoded (standard
// alphabet, padded) and wrapped as {"bodyData": <string>}.
func (*JSON) Mask(data []byte) ([]byte, error) {
	var out []byte
	var err error
	if utf8.Valid(data) {
		out, err = json.Marshal(bodyTextEnvelope{BodyText: string(data)})
	} else {
		out, err = json.Marshal(bodyDataEnvelope{BodyData: base64.StdEncoding.EncodeToString(data)})
	}
	if err != nil {
		// Marshaling a flat struct of a string field cannot fail in
		// practice; treat it as an unreachable high-level error
		// rather than panicking on data this codec fully controls.
		return nil, HighLevel(fmt.Sprintf("could not build JSON envelope: %s", err))
	}
	return out, nil
}

// TryUnmask implements Masquerader. Every failure is logged under this
// codec's own name before being returned, independently of any
// discriminator that also logs the same error once it gets it back.
func (j *JSON) TryUnmask(data []byte) (UnmaskedChunk, error) {
	chunk, err := j.unmask(data)
	if err != nil {
		if j.logger != nil {
			j.logger.Error(jsonName, "%s", err.Error())
		}
		return UnmaskedChunk{}, err
	}
	return chunk, nil
}

func (j *JSON) unmask(data []byte) (UnmaskedChunk, error) {
	if !utf8.Valid(data) {
		return UnmaskedChunk{}, LowLevel("Data is not a UTF-8 string")
	}

	var env unmaskEnvelope
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&env); err != nil {
		return UnmaskedChunk{}, MidLevel(classifyJSONError(err))
	}

	payload, err := payloadFromEnvelope(env)
	if err != nil {
		return UnmaskedChunk{}, err
	}

	return UnmaskedChunk{
		Payload:   payload,
		LastChunk: true,
		Sequenced: false,
	}, nil
}

// classifyJSONError maps encoding/json's error taxonomy onto the three
// mid-level reasons the wire format distinguishes. Both io.EOF (no
// bytes at all, or only whitespace, so the decoder never left its
// initial "begin value" state) and io.ErrUnexpectedEOF (input ended
// partway through a value) count as "truncated" — they are the same
// condition at different points in the frame.
func classifyJSONError(err error) string {
	switch err.(type) {
	case *json.SyntaxError:
		return "Data is not JSON"
	case *json.UnmarshalTypeError:
		return "JSON does not match schema"
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return "JSON was truncated"
	}
	return fmt.Sprintf("Unexpected JSON parsing error: %s", err)
}

// payloadFromEnvelope extracts exactly one of bodyText/bodyData.
func payloadFromEnvelope(env unmaskEnvelope) ([]byte, error) {
	switch {
	case env.BodyText != nil && env.BodyData != nil:
		return nil, HighLevel("Found both bodyText and bodyData; can't choose")
	case env.BodyText != nil:
		return []byte(*env.BodyText), nil
	case env.BodyData != nil:
		decoded, err := base64.StdEncoding.DecodeString(*env.BodyData)
		if err != nil {
			return nil, HighLevel(fmt.Sprintf("Can't decode Base64: '%s'", *env.BodyData))
		}
		return decoded, nil
	default:
		return nil, HighLevel("Found neither bodyText nor bodyData; need one")
	}
}
