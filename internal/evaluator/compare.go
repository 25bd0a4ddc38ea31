// Package evaluator implements pure condition evaluation: declarative
// comparators over fact values plus optional search-style aggregation.
package evaluator

import (
	"strconv"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// Compare applies one comparator to a fact value. Values and targets are
// coerced per typ. "in" is set membership across all targets, "eq" is
// equality against the first target; gt/lt/ge/le are numeric only. Any other
// operator/type combination is false by policy, not an error.
func Compare(op, value string, targets []string, typ string) bool {
	switch typ {
	case model.TypeNumber:
		return compareNumber(op, value, targets)
	case model.TypeString:
		return compareString(op, value, targets)
	default:
		return false
	}
}

func compareNumber(op, value string, targets []string) bool {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	switch op {
	case model.CompareIn:
		for _, target := range targets {
			if t, err := strconv.ParseFloat(target, 64); err == nil && t == v {
				return true
			}
		}
		return false
	case model.CompareEq:
		t, ok := firstNumber(targets)
		return ok && v == t
	case model.CompareGt:
		t, ok := firstNumber(targets)
		return ok && v > t
	case model.CompareLt:
		t, ok := firstNumber(targets)
		return ok && v < t
	case model.CompareGe:
		t, ok := firstNumber(targets)
		return ok && v >= t
	case model.CompareLe:
		t, ok := firstNumber(targets)
		return ok && v <= t
	default:
		return false
	}
}

func compareString(op, value string, targets []string) bool {
	switch op {
	case model.CompareIn:
		for _, target := range targets {
			if target == value {
				return true
			}
		}
		return false
	case model.CompareEq:
		return len(targets) > 0 && targets[0] == value
	default:
		return false
	}
}

func firstNumber(targets []string) (float64, bool) {
	if len(targets) == 0 {
		return 0, false
	}
	t, err := strconv.ParseFloat(targets[0], 64)
	if err != nil {
		return 0, false
	}
	return t, true
}
