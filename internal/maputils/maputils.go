package maputils

import "fmt"

// StrVal returns the value of the key as string.
// If the key does not exist an empty string is returned.
// If they key exist but has a different type an error is returned.
func StrVal(m map[string]any, key string) (string, error) {
	val, ok := m[key]
	if !ok {
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("value of key %q has type %T, expected string", key, val)
	}

	return str, nil
}

// StrSliceVal returns the value of the key as []string.
// If the key does not exist nil is returned.
// If they key exist but has a different type an error is returned.
// Values decoded from JSON arrive as []any, elements must be strings.
func StrSliceVal(m map[string]any, key string) ([]string, error) {
	val, ok := m[key]
	if !ok {
		return nil, nil
	}

	switch v := val.(type) {
	case []string:
		return v, nil

	case []any:
		result := make([]string, 0, len(v))
		for i, elem := range v {
			str, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("element %d of key %q has type %T, expected string", i, key, elem)
			}

			result = append(result, str)
		}

		return result, nil

	default:
		return nil, fmt.Errorf("value of key %q has type %T, expected string slice", key, val)
	}
}
