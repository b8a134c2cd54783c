// Package repocfg loads and validates the per-repository localization
// configuration document.
package repocfg

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/vocoder/vocoder/internal/maputils"
)

// Path is the fixed repository-relative path of the configuration file.
const Path = ".vocoder/config.json"

// Config is the localization configuration of a repository.
type Config struct {
	TargetBranches []string
	SourceFile     string
	SourceLocale   string
	TargetLocales  []string
	OutputDir      string
	ProjectAPIKey  string
}

// Default returns the hard-coded configuration defaults.
// Validate replaces absent or mistyped fields with these values.
func Default() *Config {
	return &Config{
		TargetBranches: []string{"main"},
		SourceFile:     "locales/en.json",
		SourceLocale:   "en",
		TargetLocales:  []string{"es", "fr", "de"},
		OutputDir:      "locales",
		ProjectAPIKey:  "",
	}
}

// Defaulted records that a configuration field was replaced by its default
// value during validation.
type Defaulted struct {
	Field  string
	Reason string
}

func (d *Defaulted) String() string {
	return fmt.Sprintf("%s: %s", d.Field, d.Reason)
}

// Validate merges the parsed configuration document over the hard-coded
// defaults field-by-field.
// A field of the wrong type or an absent field is replaced by its default,
// validation never fails. The returned Defaulted list records every
// replacement decision.
func Validate(raw map[string]any) (*Config, []Defaulted) {
	cfg := Default()
	var decisions []Defaulted

	defaulted := func(field, format string, args ...any) {
		decisions = append(decisions, Defaulted{
			Field:  field,
			Reason: fmt.Sprintf(format, args...),
		})
	}

	strField := func(field string, dest *string, allowEmpty bool) {
		val, err := maputils.StrVal(raw, field)
		if err != nil {
			defaulted(field, "%s", err)
			return
		}

		if val == "" {
			if _, exist := raw[field]; exist && allowEmpty {
				*dest = ""
				return
			}

			defaulted(field, "field is absent or empty")
			return
		}

		*dest = val
	}

	strField("sourceFile", &cfg.SourceFile, false)
	strField("sourceLocale", &cfg.SourceLocale, false)
	strField("outputDir", &cfg.OutputDir, false)
	strField("projectApiKey", &cfg.ProjectAPIKey, true)

	branches, err := maputils.StrSliceVal(raw, "targetBranches")
	switch {
	case err != nil:
		defaulted("targetBranches", "%s", err)
	case len(branches) == 0:
		defaulted("targetBranches", "field is absent or empty")
	default:
		cfg.TargetBranches = branches
	}

	locales, err := maputils.StrSliceVal(raw, "targetLocales")
	switch {
	case err != nil:
		defaulted("targetLocales", "%s", err)
	case len(locales) == 0:
		defaulted("targetLocales", "field is absent or empty")
	default:
		valid := validLocales(locales, func(locale string, parseErr error) {
			defaulted("targetLocales", "dropped invalid locale tag %q: %s", locale, parseErr)
		})
		if len(valid) == 0 {
			defaulted("targetLocales", "no valid locale tag left")
		} else {
			cfg.TargetLocales = valid
		}
	}

	return cfg, decisions
}

// validLocales filters out entries that are not parseable BCP 47 tags.
// The configured spelling of valid tags is kept unaltered, it determines
// output filenames.
func validLocales(locales []string, onInvalid func(string, error)) []string {
	result := make([]string, 0, len(locales))

	for _, locale := range locales {
		if _, err := language.Parse(locale); err != nil {
			onInvalid(locale, err)
			continue
		}

		result = append(result, locale)
	}

	return result
}

// IsTargetBranch returns true if the branch name matches one of the
// configured branch patterns.
// A pattern matches by exact string equality or, if it contains a '*', as a
// glob anchored at both ends with the wildcard matching any substring.
func (c *Config) IsTargetBranch(branch string) bool {
	for _, pattern := range c.TargetBranches {
		if matchBranchPattern(pattern, branch) {
			return true
		}
	}

	return false
}

func matchBranchPattern(pattern, branch string) bool {
	prefix, suffix, wildcard := strings.Cut(pattern, "*")
	if !wildcard {
		return pattern == branch
	}

	return len(branch) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(branch, prefix) &&
		strings.HasSuffix(branch, suffix)
}
