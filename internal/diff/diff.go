// Package diff computes structural change-sets between two revisions of a
// flattened localization document.
package diff

import "sort"

// Change records the value of an updated key in both revisions.
type Change struct {
	Old string
	New string
}

// ChangeSet categorizes the keys that differ between a base and a head
// document. The three key-sets are pairwise disjoint, a key that exists in
// both revisions with an equal value appears in none of them.
type ChangeSet struct {
	Added   map[string]string
	Updated map[string]Change
	Deleted map[string]string
}

// Diff compares two flattened documents.
// Keys are processed in lexicographic order, the ordering only affects
// log and commit-message readability.
func Diff(base, head map[string]string) *ChangeSet {
	result := ChangeSet{
		Added:   map[string]string{},
		Updated: map[string]Change{},
		Deleted: map[string]string{},
	}

	for _, key := range sortedKeys(head) {
		headVal := head[key]

		baseVal, inBase := base[key]
		if !inBase {
			result.Added[key] = headVal
			continue
		}

		if baseVal != headVal {
			result.Updated[key] = Change{Old: baseVal, New: headVal}
		}
	}

	for _, key := range sortedKeys(base) {
		if _, inHead := head[key]; !inHead {
			result.Deleted[key] = base[key]
		}
	}

	return &result
}

// IsEmpty returns true when no key was added, updated or deleted.
func (c *ChangeSet) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Len returns the total number of changed keys.
func (c *ChangeSet) Len() int {
	return len(c.Added) + len(c.Updated) + len(c.Deleted)
}

// SourceStrings returns the keys that need translation, added and updated
// ones with their head-revision value. Deleted keys are excluded.
func (c *ChangeSet) SourceStrings() map[string]string {
	result := make(map[string]string, len(c.Added)+len(c.Updated))

	for key, val := range c.Added {
		result[key] = val
	}

	for key, change := range c.Updated {
		result[key] = change.New
	}

	return result
}

// SortedSourceKeys returns the keys of SourceStrings in lexicographic order.
func (c *ChangeSet) SortedSourceKeys() []string {
	keys := make([]string, 0, len(c.Added)+len(c.Updated))

	for key := range c.Added {
		keys = append(keys, key)
	}

	for key := range c.Updated {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
