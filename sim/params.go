package sim

import (
	"fmt"
	"maps"
	"strconv"
)

// Parameters are the experimental parameters a model is built from.
type Parameters map[string]any

// Results is the mapping a finished run reports. Keys are strings; values must be
// JSON-serialisable.
type Results map[string]any

// Float returns the parameter as a float64. Integer and numeric-string values convert.
func (p Parameters) Float(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("parameter %q not set", key)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parameter %q: expected a number, got %T", key, v)
	}
}

// FloatOr returns the parameter as a float64, or def when it is not set.
func (p Parameters) FloatOr(key string, def float64) (float64, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Float(key)
}

// Int returns the parameter as an int. Float values must be integral.
func (p Parameters) Int(key string) (int, error) {
	f, err := p.Float(key)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("parameter %q: expected an integer, got %v", key, f)
	}
	return int(f), nil
}

// Has reports whether key is set.
func (p Parameters) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Clone returns a shallow copy.
func (p Parameters) Clone() Parameters {
	return maps.Clone(p)
}

// Merge copies every entry of other into r, overwriting on collision.
func (r Results) Merge(other Results) {
	maps.Copy(r, other)
}
