// Package rpc provides JSON-RPC envelope helpers for the control interceptor.
//
// Request envelopes are kept as raw bytes and inspected by path, so edits
// touch only the addressed field and every other byte is forwarded as the
// client sent it. Envelopes without a "jsonrpc" member are still accepted:
// remote controls in the wild omit it and the upstream tolerates that.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrMalformed is returned when a body is not a JSON object.
	ErrMalformed = errors.New("malformed JSON-RPC envelope")

	// ErrNoMethod is returned when an envelope carries no string method.
	ErrNoMethod = errors.New("JSON-RPC envelope has no method")
)

// Envelope wraps a JSON-RPC request body with proxy metadata.
type Envelope struct {
	// Raw contains the current encoding of the envelope. Edits replace it.
	Raw []byte

	// Timestamp records when the envelope was decoded.
	Timestamp time.Time
}

// Decode parses raw as a request envelope.
// Returns ErrMalformed for anything but a JSON object and ErrNoMethod when
// "method" is absent, empty, or not a string.
func Decode(raw []byte) (*Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformed
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrMalformed
	}
	method := root.Get("method")
	if method.Type != gjson.String || method.Str == "" {
		return nil, ErrNoMethod
	}
	return &Envelope{Raw: raw, Timestamp: time.Now()}, nil
}

// Method returns the envelope's method name.
func (e *Envelope) Method() string {
	return gjson.GetBytes(e.Raw, "method").Str
}

// Version returns the "jsonrpc" member, or "" when the client omitted it.
func (e *Envelope) Version() string {
	return gjson.GetBytes(e.Raw, "jsonrpc").Str
}

// ID returns the raw "id" member, or nil for notifications.
func (e *Envelope) ID() json.RawMessage {
	id := gjson.GetBytes(e.Raw, "id")
	if !id.Exists() {
		return nil
	}
	return json.RawMessage(id.Raw)
}

// Get looks up a value by gjson path, e.g. "params.item.file".
func (e *Envelope) Get(path string) gjson.Result {
	return gjson.GetBytes(e.Raw, path)
}

// SetMethod replaces the envelope's method name.
func (e *Envelope) SetMethod(method string) error {
	return e.SetString("method", method)
}

// SetString replaces the value at path with a JSON string.
func (e *Envelope) SetString(path, value string) error {
	out, err := sjson.SetBytes(e.Raw, path, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	e.Raw = out
	return nil
}

// Bytes returns the envelope's current encoding.
func (e *Envelope) Bytes() []byte {
	return e.Raw
}
