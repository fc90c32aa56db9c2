package model

import "encoding/json"

// Field carries a value together with an explicit presence marker.
// The zero Field is absent.
type Field[T any] struct {
	Value   T
	Present bool
}

// Some returns a present Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Present: true}
}

// None returns an absent Field.
func None[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Present
}

// OrElse returns the value if present, otherwise def.
func (f Field[T]) OrElse(def T) T {
	if f.Present {
		return f.Value
	}
	return def
}

// MarshalJSON renders an absent field as null.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON treats null as absent.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Field[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Some(v)
	return nil
}
