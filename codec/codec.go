// Package codec defines how memoized values are turned into the bytes stored
// on disk and back. Any Codec[V] works; the built-ins cover passthrough
// (already-storable values), JSON, CBOR, Msgpack and Protobuf.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Encode is the marshall step run before publishing an entry; Decode runs on
// every disk hit and must reject truncated or otherwise invalid input.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
