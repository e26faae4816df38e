package domain

import (
	"fmt"
	"strings"
)

// Record is one immutable document reported by a source. Fields hold strings, numbers,
// booleans and timestamps as decoded from the record store.
type Record struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type,omitempty" yaml:"type"`
	Fields map[string]any `json:"fields,omitempty" yaml:"fields"`
}

// Value returns the raw field value and whether it is present
func (r Record) Value(name string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns field value formatted as a string, empty if missing
func (r Record) String(name string) string {
	v, ok := r.Value(name)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

// Bool returns field value as a boolean. Strings "true", "yes" and "1" are treated as true.
func (r Record) Bool(name string) bool {
	v, ok := r.Value(name)
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "1":
			return true
		}
		return false
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	default:
		return false
	}
}

// FirstString returns the first non-empty string value among the given fields
func (r Record) FirstString(names ...string) string {
	for _, name := range names {
		if s := strings.TrimSpace(r.String(name)); s != "" {
			return s
		}
	}
	return ""
}
