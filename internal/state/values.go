package state

import (
	"encoding/json"

	"github.com/samber/mo"
)

// GetJSON decodes the value stored under key. Missing keys, read errors and
// malformed JSON all read as absent.
func GetJSON[T any](s Interface, key string) mo.Option[T] {
	raw, err := s.Get(key)
	if err != nil {
		return mo.None[T]()
	}
	b, ok := raw.Get()
	if !ok {
		return mo.None[T]()
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return mo.None[T]()
	}
	return mo.Some(v)
}

// Encode marshals v for storage.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// PutJSON encodes v and writes it under key.
func PutJSON(s Interface, key string, v any) error {
	b, err := Encode(v)
	if err != nil {
		return err
	}
	return s.Put(key, b)
}
