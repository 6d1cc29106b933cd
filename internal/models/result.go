package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Result is a JSON object whose keys keep insertion order on the wire.
// Values are float64, *Result, or anything encoding/json can marshal.
type Result struct {
	keys   []string
	values map[string]any
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{values: make(map[string]any)}
}

// Set stores value under key. Re-setting an existing key keeps its position.
func (r *Result) Set(key string, value any) *Result {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return r
}

// Get returns the value stored under key.
func (r *Result) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (r *Result) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of entries.
func (r *Result) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the result as an object in insertion order.
// NaN and infinite floats (means over empty sets) encode as null.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := marshalValue(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(val)
	case *Result:
		if val == nil {
			return []byte("null"), nil
		}
		return val.MarshalJSON()
	default:
		return json.Marshal(val)
	}
}
