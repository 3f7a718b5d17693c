package codec

import "encoding/json"

// JSON stores values as UTF-8 JSON text. The zero value is ready to use.
//
// Decoding with V = json.RawMessage hands back the stored text unchanged,
// which is the way to keep already-encoded documents as they are.
type JSON[V any] struct{}

var _ Codec[map[string]any] = JSON[map[string]any]{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
