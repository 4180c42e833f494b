package codec

import (
	"bytes"
	"encoding/json"
)

// JSON encodes with HTML escaping disabled: '<', '>' and '&' are written
// as-is instead of as \u003c, \u003e and \u0026, so entries compare equal to
// what other clients sharing the keys write. encoding/json already leaves
// slashes and non-ASCII text unescaped.
type JSON[V any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

func (JSON[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder terminates every value with '\n'
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
