package prsync

import (
	"fmt"
	"strings"

	"github.com/vocoder/vocoder/internal/diff"
)

const appName = "vocoder"

const commitMessageEmoji = "\U0001F310" // 🌐

// commitMessage generates the deterministic commit message for a change-set.
// Change-summary clauses are included only when their count is non-zero.
func commitMessage(changes *diff.ChangeSet, locales []string) string {
	var clauses []string

	if n := len(changes.Added); n > 0 {
		clauses = append(clauses, fmt.Sprintf("Add %d new strings", n))
	}

	if n := len(changes.Updated); n > 0 {
		clauses = append(clauses, fmt.Sprintf("Update %d strings", n))
	}

	if n := len(changes.Deleted); n > 0 {
		clauses = append(clauses, fmt.Sprintf("Remove %d strings", n))
	}

	return fmt.Sprintf(
		"%s Localization: %s\n\nLocales: %s\n\nGenerated by %s.",
		commitMessageEmoji,
		strings.Join(clauses, ", "),
		strings.Join(locales, ", "),
		appName,
	)
}
