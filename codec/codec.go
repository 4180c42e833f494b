// Package codec converts cache values to and from the bytes stored under a
// cache key. JSON is the default used by the single-flight cache.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Implementations must be safe for concurrent use.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
