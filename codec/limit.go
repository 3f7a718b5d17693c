package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by LimitCodec for payloads over its limits.
var ErrTooLarge = errors.New("codec: payload too large")

// LimitCodec bounds entry sizes around Inner. A value whose encoding exceeds
// MaxEncode is never published; a file over MaxDecode is treated as corrupt
// and repopulated instead of decoded. Zero or negative limits are off.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxEncode int
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("%w: encoded %d > %d", ErrTooLarge, len(b), c.MaxEncode)
	}
	return b, nil
}

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: stored %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
