package audience

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
)

var (
	errMissingValue = errors.New("value is missing")
	errBoolean      = errors.New("boolean is not a number")
	errEmptyNumber  = errors.New("empty string is not a number")
	errNotFinite    = errors.New("number is not finite")
)

// Comparator evaluates rules against single records. Now is the evaluation
// instant used to turn date fields into elapsed days.
type Comparator struct {
	Registry *Registry
	Now      time.Time
}

// Evaluate applies one rule to one record
func (c Comparator) Evaluate(rec Record, rule Rule) (bool, error) {
	desc, ok := c.Registry.fields[rule.Field]
	if !ok {
		return false, &UnknownFieldError{Field: rule.Field}
	}
	if !desc.Allows(rule.Operator) {
		return false, &InvalidOperatorError{Field: desc.Name, Type: desc.Type, Operator: rule.Operator}
	}

	want, err := coerceRuleValue(desc, rule.Value)
	if err != nil {
		return false, err
	}
	raw := rec.Fields[desc.Name]

	switch desc.Type {
	case TypeNumber:
		got, err := toNumber(raw)
		if err != nil {
			return false, &TypeConversionError{Field: desc.Name, Type: desc.Type, Value: raw, Err: err}
		}
		return compareNumbers(desc, rule.Operator, got, want.(float64))

	case TypeDate:
		at, err := toTime(raw)
		if err != nil {
			return false, &TypeConversionError{Field: desc.Name, Type: desc.Type, Value: raw, Err: err}
		}
		return compareNumbers(desc, rule.Operator, elapsedDays(at, c.Now), float64(want.(int)))

	case TypeString:
		got, err := toText(raw)
		if err != nil {
			return false, &TypeConversionError{Field: desc.Name, Type: desc.Type, Value: raw, Err: err}
		}
		return compareText(desc, rule.Operator, got, want.(string))
	}

	return false, &InvalidOperatorError{Field: desc.Name, Type: desc.Type, Operator: rule.Operator}
}

// coerceRuleValue converts a rule's comparison text to the field's Go type:
// float64 for numbers, int day offset for dates, string for strings
func coerceRuleValue(desc FieldDescriptor, value string) (any, error) {
	switch desc.Type {
	case TypeNumber:
		n, err := toNumber(value)
		if err != nil {
			return nil, &TypeConversionError{Field: desc.Name, Type: desc.Type, Value: value, Err: err}
		}
		return n, nil
	case TypeDate:
		days, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, &TypeConversionError{Field: desc.Name, Type: desc.Type, Value: value, Err: errors.New("day offset must be an integer")}
		}
		return days, nil
	default:
		return value, nil
	}
}

func compareNumbers(desc FieldDescriptor, op Operator, got, want float64) (bool, error) {
	switch op {
	case OpGreater:
		return got > want, nil
	case OpLess:
		return got < want, nil
	case OpEqual:
		return got == want, nil
	case OpNotEqual:
		return got != want, nil
	}
	return false, &InvalidOperatorError{Field: desc.Name, Type: desc.Type, Operator: op}
}

func compareText(desc FieldDescriptor, op Operator, got, want string) (bool, error) {
	switch op {
	case OpEqual:
		return got == want, nil
	case OpNotEqual:
		return got != want, nil
	case OpContains:
		return containsFold(got, want), nil
	}
	return false, &InvalidOperatorError{Field: desc.Name, Type: desc.Type, Operator: op}
}

// containsFold reports whether sub occurs in s under Unicode case folding
func containsFold(s, sub string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(sub))
}

func toNumber(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, errMissingValue
	case bool:
		return 0, errBoolean
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return 0, errEmptyNumber
		}
		v = val
	}

	n, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, errNotFinite
	}
	return n, nil
}

func toText(v any) (string, error) {
	if v == nil {
		return "", errMissingValue
	}
	return cast.ToStringE(v)
}

func toTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, errMissingValue
	case *time.Time:
		if val == nil {
			return time.Time{}, errMissingValue
		}
		return *val, nil
	case string:
		val = strings.TrimSpace(val)
		if t, err := time.Parse(time.DateOnly, val); err == nil {
			return t, nil
		}
		return cast.ToTimeE(val)
	}
	return cast.ToTimeE(v)
}

// elapsedDays returns whole days from at to now, rounded down
func elapsedDays(at, now time.Time) float64 {
	return math.Floor(now.Sub(at).Hours() / 24)
}
