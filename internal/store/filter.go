package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Op is a filter operator
type Op string

const (
	OpEq            Op = "eq"
	OpArrayContains Op = "contains"
)

// Filter is one query predicate over a top-level document field
type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Eq matches documents whose field equals value
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// ArrayContains matches documents whose array field holds value
func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

func (f Filter) String() string {
	return fmt.Sprintf("%s:%s:%v", f.Op, f.Field, f.Value)
}

// ParseFilter reads the "field:value" query form used on the wire
func ParseFilter(op Op, raw string) (Filter, error) {
	field, value, ok := strings.Cut(raw, ":")
	if !ok || field == "" {
		return Filter{}, fmt.Errorf("invalid %s filter %q", op, raw)
	}
	switch op {
	case OpEq, OpArrayContains:
	default:
		return Filter{}, fmt.Errorf("unknown filter op %q", op)
	}
	return Filter{Field: field, Op: op, Value: value}, nil
}

// Matches evaluates the filter against document data
func (f Filter) Matches(data map[string]any) bool {
	v, ok := data[f.Field]
	if !ok {
		return false
	}
	want := normalize(f.Value)
	switch f.Op {
	case OpEq:
		return reflect.DeepEqual(normalize(v), want)
	case OpArrayContains:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if reflect.DeepEqual(normalize(item), want) {
				return true
			}
		}
	}
	return false
}

// Match reports whether data satisfies every filter
func Match(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(data) {
			return false
		}
	}
	return true
}

// normalize coerces a value to its decoded-JSON form so typed values
// compare equal to what came back from storage.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
