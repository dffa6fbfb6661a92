package automation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Holds reports whether value compares to threshold under the condition.
// Equality is exact.
//
// Returns ErrUnknownCondition for anything other than gt, lt or eq.
func (c Condition) Holds(value, threshold float64) (bool, error) {
	switch c {
	case ConditionGreater:
		return value > threshold, nil
	case ConditionLess:
		return value < threshold, nil
	case ConditionEqual:
		return value == threshold, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCondition, string(c))
	}
}

// Valid reports whether the condition is one of gt, lt or eq.
func (c Condition) Valid() bool {
	switch c {
	case ConditionGreater, ConditionLess, ConditionEqual:
		return true
	}
	return false
}

// toFloat converts a peripheral value to a comparable number.
// Booleans compare as 1 and 0.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotComparable, v)
	}
}

// toNumber converts a threshold to a number. Numeric strings are parsed.
func toNumber(v any) (float64, error) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotComparable, s)
		}
		return f, nil
	}
	return toFloat(v)
}

// GenerateID creates a new rule ID.
func GenerateID() string {
	return uuid.New().String()
}
