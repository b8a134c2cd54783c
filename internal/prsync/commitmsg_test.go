package prsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vocoder/vocoder/internal/diff"
)

func TestCommitMessage(t *testing.T) {
	testcases := []struct {
		name     string
		changes  *diff.ChangeSet
		locales  []string
		expected string
	}{
		{
			name: "addedOnly",
			changes: &diff.ChangeSet{
				Added: map[string]string{"a": "1", "b": "2"},
			},
			locales:  []string{"de", "es"},
			expected: "\U0001F310 Localization: Add 2 new strings\n\nLocales: de, es\n\nGenerated by vocoder.",
		},
		{
			name: "allCategories",
			changes: &diff.ChangeSet{
				Added:   map[string]string{"a": "1"},
				Updated: map[string]diff.Change{"b": {Old: "2", New: "3"}},
				Deleted: map[string]string{"c": "4"},
			},
			locales:  []string{"fr"},
			expected: "\U0001F310 Localization: Add 1 new strings, Update 1 strings, Remove 1 strings\n\nLocales: fr\n\nGenerated by vocoder.",
		},
		{
			name: "updatedOnly",
			changes: &diff.ChangeSet{
				Updated: map[string]diff.Change{"b": {Old: "2", New: "3"}},
			},
			locales:  []string{"de"},
			expected: "\U0001F310 Localization: Update 1 strings\n\nLocales: de\n\nGenerated by vocoder.",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, commitMessage(tc.changes, tc.locales))
		})
	}
}
