// Package translate obtains translated values for changed localization keys.
package translate

import (
	"context"
	"sort"
)

// Request is one batch translation of all changed keys into all target
// locales.
type Request struct {
	// Strings maps changed keys to their source-locale value.
	Strings      map[string]string
	SourceLocale string
	// TargetLocales determines which locales appear in the Result.
	TargetLocales []string
	// APIKey is the per-repository project key of the translation
	// provider.
	APIKey string
}

// Result maps locale -> key -> translated value.
type Result map[string]map[string]string

// Gateway translates a batch of source strings.
// A failed translation is reported as an error, partial results are never
// returned.
type Gateway interface {
	Translate(ctx context.Context, req *Request) (Result, error)
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
