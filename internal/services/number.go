package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric request field that accepts a JSON number or a numeric
// string ("45", " 26.14 "). null and "" leave it unset; any other value marks
// it Invalid so validation can report the field instead of failing the decode.
type Number struct {
	Value   float64
	Set     bool
	Invalid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			n.Invalid = true
			return nil
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	} else {
		raw = string(data)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		n.Invalid = true
		return nil
	}
	n.Value, n.Set = v, true
	return nil
}

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// NumberOf builds a set Number, mostly for tests and internal callers
func NumberOf(v float64) Number { return Number{Value: v, Set: true} }

// count converts n into a non-negative whole number
func (n Number) count() (int, bool) {
	if !n.Set || n.Invalid || n.Value < 0 || n.Value != math.Trunc(n.Value) || n.Value > math.MaxInt32 {
		return 0, false
	}
	return int(n.Value), true
}

// coordinate converts n into a pointer within [-limit, limit]; unset yields nil
func (n Number) coordinate(limit float64) (*float64, bool) {
	if n.Invalid {
		return nil, false
	}
	if !n.Set {
		return nil, true
	}
	if n.Value < -limit || n.Value > limit {
		return nil, false
	}
	v := n.Value
	return &v, true
}
