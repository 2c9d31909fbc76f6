package entity

import "encoding/json"

// Optional tracks whether a field was supplied at all, independently of its value.
// Decoding a JSON null into a present Optional[*T] yields a set field holding nil.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Get returns the value and whether it was supplied.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

// UnmarshalJSON marks the field present. encoding/json only calls it for keys found in the input.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &o.value); err != nil {
		return err
	}

	o.set = true
	return nil
}
