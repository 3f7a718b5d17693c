package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack stores values as MessagePack. The zero value is ready to use.
// Field names follow `msgpack:"..."` tags, not json tags.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode fails on truncated input and on bytes left after the value, so a
// file that was appended to counts as corrupt.
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	r := bytes.NewReader(b)
	if err := msgpack.NewDecoder(r).Decode(&v); err != nil {
		return v, err
	}
	if r.Len() != 0 {
		var zero V
		return zero, fmt.Errorf("msgpack: %d trailing bytes", r.Len())
	}
	return v, nil
}
