package diff

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Flatten converts a nested string-keyed document into a single-level map
// with dot-joined keys.
// Nested objects are recursed into, arrays and all other non-object values
// are treated as opaque leaf values.
// Non-string leaves are recorded as their compact JSON encoding so that value
// comparison is structural, not positional.
func Flatten(doc map[string]any) map[string]string {
	result := map[string]string{}
	flattenInto(result, "", doc)
	return result
}

func flattenInto(result map[string]string, prefix string, doc map[string]any) {
	for key, val := range doc {
		flatKey := key
		if prefix != "" {
			flatKey = prefix + "." + key
		}

		if nested, ok := val.(map[string]any); ok {
			flattenInto(result, flatKey, nested)
			continue
		}

		result[flatKey] = leafValue(val)
	}
}

func leafValue(val any) string {
	if str, ok := val.(string); ok {
		return str
	}

	raw, err := json.Marshal(val)
	if err != nil {
		// json.Marshal can not fail for values that were decoded from
		// JSON, fall back to the fmt representation
		return fmt.Sprintf("%v", val)
	}

	return string(raw)
}

// ParseDocument unmarshals a JSON localization document and flattens it.
func ParseDocument(raw []byte) (map[string]string, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}

	return Flatten(doc), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
