package toolcall

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// object is a JSON object that keeps its keys in insertion order.
type object struct {
	keys   []string
	values map[string]any
}

func newObject() *object {
	return &object{values: make(map[string]any)}
}

// Set stores value under key. Re-setting a key replaces the value but keeps
// the key at its first position.
func (o *object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (o *object) Keys() []string {
	return o.keys
}

// Len returns the number of keys.
func (o *object) Len() int {
	return len(o.keys)
}

// MarshalJSON writes the members in insertion order.
func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := encodeCompact(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := encodeCompact(o.values[key])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// parseJSON parses exactly one JSON value. Objects become *object, arrays
// []any and numbers json.Number, so that re-serializing reproduces the key
// order and number literals of the input.
//
// The text is validated first: json.Valid caps nesting depth, which the
// recursive token walk below relies on.
func parseJSON(text string) (any, error) {
	if !json.Valid([]byte(text)) {
		return nil, errInvalidSyntax(text)
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	value, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}

	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("extra data after JSON value: %v", tok)
	}
	return value, nil
}

// errInvalidSyntax recovers a descriptive error for text json.Valid
// rejected. json.Unmarshal into RawMessage fails fast without recursion.
func errInvalidSyntax(text string) error {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return err
	}
	return errors.New("invalid JSON")
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		// string, json.Number, bool or nil
		return tok, nil
	}

	switch delim {
	case '{':
		obj := newObject()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("invalid object key: %v", keyTok)
			}
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, value)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		items := []any{}
		for dec.More() {
			value, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
		return items, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %q", rune(delim))
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", rune(want), tok)
	}
	return nil
}

// encodeCompact marshals v without HTML escaping and without the trailing
// newline json.Encoder appends.
func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// marshalCanonical renders v as canonical argument text: source key order,
// ", " between members and ": " after keys.
func marshalCanonical(v any) (string, error) {
	compact, err := encodeCompact(v)
	if err != nil {
		return "", err
	}
	return spaceSeparators(compact), nil
}

func spaceSeparators(compact []byte) string {
	var b strings.Builder
	b.Grow(len(compact) + len(compact)/8)

	inString := false
	for i := 0; i < len(compact); i++ {
		c := compact[i]
		b.WriteByte(c)
		switch {
		case inString && c == '\\':
			i++
			if i < len(compact) {
				b.WriteByte(compact[i])
			}
		case c == '"':
			inString = !inString
		case !inString && (c == ',' || c == ':'):
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// coerceValue turns a raw parameter value into a JSON value when it parses
// as one, and keeps the trimmed text otherwise.
func coerceValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if v, err := parseJSON(trimmed); err == nil {
		return v
	}
	return trimmed
}
