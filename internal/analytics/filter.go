package analytics

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Filter selects values of T. The zero value (and All) includes everything;
// Subset includes only the listed values, so an empty Subset includes nothing.
type Filter[T comparable] struct {
	subset bool
	values map[T]struct{}
}

// All returns a filter that includes every value.
func All[T comparable]() Filter[T] {
	return Filter[T]{}
}

// Subset returns a filter restricted to values.
func Subset[T comparable](values ...T) Filter[T] {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return Filter[T]{subset: true, values: set}
}

// IsAll reports whether the filter includes every value.
func (f Filter[T]) IsAll() bool {
	return !f.subset
}

// Includes reports whether v passes the filter.
func (f Filter[T]) Includes(v T) bool {
	if !f.subset {
		return true
	}
	_, ok := f.values[v]
	return ok
}

// Len returns the subset size, or -1 for All.
func (f Filter[T]) Len() int {
	if !f.subset {
		return -1
	}
	return len(f.values)
}

// SortedStrings returns the members of a string filter in ascending order.
// It returns nil for All.
func SortedStrings(f Filter[string]) []string {
	if f.IsAll() {
		return nil
	}
	out := make([]string, 0, len(f.values))
	for v := range f.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes All as null and a subset as a sorted array, so equal
// filters always encode identically.
func (f Filter[T]) MarshalJSON() ([]byte, error) {
	if !f.subset {
		return []byte("null"), nil
	}
	encoded := make([][]byte, 0, len(f.values))
	for v := range f.values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, raw)
	}
	sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })

	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(bytes.Join(encoded, []byte(",")))
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes null as All and an array as a subset.
func (f *Filter[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = All[T]()
		return nil
	}
	var values []T
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*f = Subset(values...)
	return nil
}
