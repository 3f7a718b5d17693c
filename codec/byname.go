package codec

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCodec = errors.New("codec: unknown codec")

// ByName resolves a codec from its configuration name:
//
//	"" / "none" / "raw"  passthrough (V must be []byte or string)
//	"json"               JSON[V]
//	"cbor"               CBOR[V] with preferred (non-deterministic) encoding
//	"msgpack"            Msgpack[V]
func ByName[V any](name string) (Codec[V], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "raw":
		if c, ok := Identity[V](); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: passthrough needs []byte or string values, got %T", ErrUnknownCodec, *new(V))
	case "json":
		return JSON[V]{}, nil
	case "cbor":
		c, err := NewCBOR[V](false)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Identity returns the passthrough codec when V is []byte or string.
func Identity[V any]() (Codec[V], bool) {
	if c, ok := any(Bytes{}).(Codec[V]); ok {
		return c, true
	}
	if c, ok := any(String{}).(Codec[V]); ok {
		return c, true
	}
	return nil, false
}
