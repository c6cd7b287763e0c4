package storage

import (
	"bytes"
	"encoding/json"
)

type patchState uint8

const (
	patchUnchanged patchState = iota
	patchClear
	patchSet
)

// Patch is an update of a nullable field: leave unchanged, clear, or set.
// The zero value leaves the field unchanged.
type Patch[T any] struct {
	state patchState
	value T
}

// Set returns a patch that stores v.
func Set[T any](v T) Patch[T] {
	return Patch[T]{state: patchSet, value: v}
}

// Clear returns a patch that resets the field to NULL.
func Clear[T any]() Patch[T] {
	return Patch[T]{state: patchClear}
}

// PatchFromPtr maps nil to Clear and a non-nil pointer to Set.
func PatchFromPtr[T any](v *T) Patch[T] {
	if v == nil {
		return Clear[T]()
	}
	return Set(*v)
}

func (p Patch[T]) IsUnchanged() bool { return p.state == patchUnchanged }
func (p Patch[T]) IsClear() bool     { return p.state == patchClear }
func (p Patch[T]) IsSet() bool       { return p.state == patchSet }

// Value returns the stored value and whether the patch sets one.
func (p Patch[T]) Value() (T, bool) {
	return p.value, p.state == patchSet
}

// Apply returns the new value of a field currently holding cur.
func (p Patch[T]) Apply(cur *T) *T {
	switch p.state {
	case patchClear:
		return nil
	case patchSet:
		v := p.value
		return &v
	default:
		return cur
	}
}

// MarshalJSON encodes Clear as null and Set as the value. Unchanged patches
// should be omitted by the caller with omitempty on a pointer field.
func (p Patch[T]) MarshalJSON() ([]byte, error) {
	if p.state != patchSet {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON maps an explicit null to Clear and a value to Set.
// A key absent from the document never reaches this method and stays Unchanged.
func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Clear[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Set(v)
	return nil
}
