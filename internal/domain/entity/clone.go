package entity

import (
	"errors"
	"fmt"
)

var ErrUnsupportedValue = errors.New("unsupported value type")

// CloneMap returns a structural deep copy of m. Only string, bool, numeric,
// nil, map[string]any and []any values are permitted; anything else fails
// instead of being silently dropped. A nil map clones to an empty one.
func CloneMap(m map[string]any) (map[string]any, error) {
	ret := make(map[string]any, len(m))

	for key, value := range m {
		cloned, err := cloneValue(value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}

		ret[key] = cloned
	}

	return ret, nil
}

// CloneSlice returns a structural deep copy of s under the same value rules
// as CloneMap. A nil slice clones to an empty one.
func CloneSlice(s []any) ([]any, error) {
	ret := make([]any, 0, len(s))

	for i, value := range s {
		cloned, err := cloneValue(value)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}

		ret = append(ret, cloned)
	}

	return ret, nil
}

func cloneValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case map[string]any:
		return CloneMap(v)
	case []any:
		return CloneSlice(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}
