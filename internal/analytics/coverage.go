package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

const unboundedToken = "unbounded"

// Coverage is the number of months current stock lasts at the current
// consumption rate. Unbounded means stock on hand with no consumption.
type Coverage struct {
	months    float64
	unbounded bool
}

// Finite returns a bounded coverage of months.
func Finite(months float64) Coverage {
	return Coverage{months: months}
}

// Unbounded returns the infinite coverage sentinel.
func Unbounded() Coverage {
	return Coverage{unbounded: true}
}

// IsUnbounded reports whether c is the infinite sentinel.
func (c Coverage) IsUnbounded() bool {
	return c.unbounded
}

// Months returns the bounded value, or +Inf when unbounded.
func (c Coverage) Months() float64 {
	if c.unbounded {
		return math.Inf(1)
	}
	return c.months
}

// AtMost reports whether the coverage is less than or equal to months.
func (c Coverage) AtMost(months float64) bool {
	if c.unbounded {
		return false
	}
	return c.months <= months
}

func (c Coverage) String() string {
	if c.unbounded {
		return unboundedToken
	}
	return strconv.FormatFloat(c.months, 'f', -1, 64)
}

// MarshalJSON encodes finite coverage as a number and unbounded as "unbounded".
func (c Coverage) MarshalJSON() ([]byte, error) {
	if c.unbounded {
		return json.Marshal(unboundedToken)
	}
	if math.IsNaN(c.months) || math.IsInf(c.months, 0) {
		return nil, fmt.Errorf("coverage: non-finite months %v", c.months)
	}
	return json.Marshal(c.months)
}

// UnmarshalJSON accepts the encodings produced by MarshalJSON.
func (c *Coverage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != unboundedToken {
			return fmt.Errorf("coverage: unexpected token %q", s)
		}
		*c = Unbounded()
		return nil
	}
	var months float64
	if err := json.Unmarshal(data, &months); err != nil {
		return fmt.Errorf("coverage: %w", err)
	}
	*c = Finite(months)
	return nil
}
