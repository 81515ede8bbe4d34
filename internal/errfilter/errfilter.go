// Package errfilter classifies and filters captured console log entries
// (spec.md §4.5): pattern/level filtering, error categorization, and
// summary generation, independent of any single checkpoint's assertions.
package errfilter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

// Category is a coarse classification of an error-level console message.
type Category string

const (
	CategoryCORS     Category = "cors"
	CategoryNetwork  Category = "network"
	CategoryScript   Category = "script"
	CategoryResource Category = "resource"
	CategoryOther    Category = "other"
)

// categoryPatterns is checked in order; CORS is checked first since CORS
// failures are also network failures and would otherwise be misclassified.
var categoryPatterns = []struct {
	category Category
	re       *regexp.Regexp
}{
	{CategoryCORS, regexp.MustCompile(`(?i)cors|cross-origin`)},
	{CategoryNetwork, regexp.MustCompile(`(?i)net::|failed to fetch|networkerror|err_connection|err_name_not_resolved`)},
	{CategoryScript, regexp.MustCompile(`(?i)typeerror|referenceerror|syntaxerror|rangeerror|uncaught`)},
	{CategoryResource, regexp.MustCompile(`(?i)failed to load resource|404|net::err_file_not_found`)},
}

// Categorize classifies a single error message. Messages matching none of
// the known patterns are CategoryOther.
func Categorize(message string) Category {
	for _, cp := range categoryPatterns {
		if cp.re.MatchString(message) {
			return cp.category
		}
	}
	return CategoryOther
}

// FilterByLevel returns the entries whose level is in levels.
func FilterByLevel(entries []oracle.ConsoleLogEntry, levels ...oracle.ConsoleLogLevel) []oracle.ConsoleLogEntry {
	set := map[oracle.ConsoleLogLevel]bool{}
	for _, l := range levels {
		set[l] = true
	}
	var out []oracle.ConsoleLogEntry
	for _, e := range entries {
		if set[e.Level] {
			out = append(out, e)
		}
	}
	return out
}

// GetErrors returns every error-level entry.
func GetErrors(entries []oracle.ConsoleLogEntry) []oracle.ConsoleLogEntry {
	return FilterByLevel(entries, oracle.LevelError)
}

// GetWarnings returns every warn-level entry.
func GetWarnings(entries []oracle.ConsoleLogEntry) []oracle.ConsoleLogEntry {
	return FilterByLevel(entries, oracle.LevelWarn)
}

// FilterByPattern returns the entries whose message matches pattern.
func FilterByPattern(entries []oracle.ConsoleLogEntry, pattern oracle.Pattern) ([]oracle.ConsoleLogEntry, error) {
	matcher, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []oracle.ConsoleLogEntry
	for _, e := range entries {
		if matcher(e.Message) {
			out = append(out, e)
		}
	}
	return out, nil
}

// MatchType selects how FilterByPatternMatch compares a message against a
// plain-string pattern; it is a finer-grained alternative to oracle.Pattern's
// substring-or-regex flag for callers that need an exact-match mode too.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchRegex    MatchType = "regex"
)

// FilterByPatternMatch returns the entries whose message matches pattern
// under matchType.
func FilterByPatternMatch(entries []oracle.ConsoleLogEntry, pattern string, matchType MatchType) ([]oracle.ConsoleLogEntry, error) {
	var matcher func(string) bool
	switch matchType {
	case MatchExact:
		matcher = func(s string) bool { return s == pattern }
	case MatchRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		matcher = re.MatchString
	case MatchContains, "":
		needle := strings.ToLower(pattern)
		matcher = func(s string) bool { return strings.Contains(strings.ToLower(s), needle) }
	default:
		return nil, fmt.Errorf("unknown match type %q", matchType)
	}
	var out []oracle.ConsoleLogEntry
	for _, e := range entries {
		if matcher(e.Message) {
			out = append(out, e)
		}
	}
	return out, nil
}

// FilterByPatterns returns the entries matching any of patterns.
func FilterByPatterns(entries []oracle.ConsoleLogEntry, patterns []oracle.Pattern) ([]oracle.ConsoleLogEntry, error) {
	matchers, err := compileAll(patterns)
	if err != nil {
		return nil, err
	}
	var out []oracle.ConsoleLogEntry
	for _, e := range entries {
		if anyMatch(matchers, e.Message) {
			out = append(out, e)
		}
	}
	return out, nil
}

// FilterAllowedPatterns returns the entries that do NOT match any of the
// allowed patterns. Entries of every level are returned, not only errors
// and warnings.
func FilterAllowedPatterns(entries []oracle.ConsoleLogEntry, allowed []oracle.Pattern) ([]oracle.ConsoleLogEntry, error) {
	matchers, err := compileAll(allowed)
	if err != nil {
		return nil, err
	}
	var out []oracle.ConsoleLogEntry
	for _, e := range entries {
		if !anyMatch(matchers, e.Message) {
			out = append(out, e)
		}
	}
	return out, nil
}

// FilterForbiddenPatterns returns the entries that match any of the
// forbidden patterns.
func FilterForbiddenPatterns(entries []oracle.ConsoleLogEntry, forbidden []oracle.Pattern) ([]oracle.ConsoleLogEntry, error) {
	return FilterByPatterns(entries, forbidden)
}

// Summary is a generated overview of a set of console entries.
type Summary struct {
	Total      int                      `json:"total"`
	ByLevel    map[oracle.ConsoleLogLevel]int `json:"by_level"`
	ByCategory map[Category]int         `json:"by_category"`
}

// GenerateSummary computes per-level counts plus, for error-level entries
// only, per-category counts.
func GenerateSummary(entries []oracle.ConsoleLogEntry) Summary {
	s := Summary{
		Total:      len(entries),
		ByLevel:    map[oracle.ConsoleLogLevel]int{},
		ByCategory: map[Category]int{},
	}
	for _, e := range entries {
		s.ByLevel[e.Level]++
		if e.Level == oracle.LevelError {
			s.ByCategory[Categorize(e.Message)]++
		}
	}
	return s
}

func compile(p oracle.Pattern) (func(string) bool, error) {
	if p.Regex {
		re, err := regexp.Compile(p.Value)
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	}
	needle := strings.ToLower(p.Value)
	return func(s string) bool { return strings.Contains(strings.ToLower(s), needle) }, nil
}

func compileAll(patterns []oracle.Pattern) ([]func(string) bool, error) {
	matchers := make([]func(string) bool, 0, len(patterns))
	for _, p := range patterns {
		m, err := compile(p)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func anyMatch(matchers []func(string) bool, s string) bool {
	for _, m := range matchers {
		if m(s) {
			return true
		}
	}
	return false
}
