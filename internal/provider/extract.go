package provider

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is one typed slot of a provider data point. Exactly one of the fields
// is populated for a well-formed point; both may be absent.
type Value struct {
	IntVal *int64   `json:"intVal,omitempty"`
	FpVal  *float64 `json:"fpVal,omitempty"`
}

// Float returns the numeric value of the slot and ok=false when neither
// representation is present.
func (v Value) Float() (float64, bool) {
	switch {
	case v.FpVal != nil:
		return *v.FpVal, true
	case v.IntVal != nil:
		return float64(*v.IntVal), true
	default:
		return 0, false
	}
}

// Int returns the integer value of the slot, truncating floating values.
func (v Value) Int() (int64, bool) {
	switch {
	case v.IntVal != nil:
		return *v.IntVal, true
	case v.FpVal != nil:
		return int64(*v.FpVal), true
	default:
		return 0, false
	}
}

// ExtractValue returns slot idx of a point's values.
func ExtractValue(values []Value, idx int) (float64, bool) {
	if idx < 0 || idx >= len(values) {
		return 0, false
	}
	return values[idx].Float()
}

// Int64String decodes int64 fields that providers serialize either as JSON
// numbers or as decimal strings ("1700000000000").
type Int64String int64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Int64String) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("decode int64 %s: %w", b, err)
	}
	*n = Int64String(v)
	return nil
}

// MarshalJSON encodes as a decimal string, matching the provider format.
func (n Int64String) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(n), 10))
}
