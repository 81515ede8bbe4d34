package assertion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

// EvaluateConsole evaluates one ConsoleAssertion against a checkpoint's
// captured console entries. Dispatch order matches oracle.ConsoleAssertion's
// documented field precedence.
func EvaluateConsole(entries []oracle.ConsoleLogEntry, a oracle.ConsoleAssertion) oracle.ValidationResult {
	// Allowed patterns filter the error/warning set before any count-based
	// predicate runs, so noErrors+allowed can be declared as one validation
	// the way spec.md's worked examples do (a deprecation warning allow-
	// listed alongside a noErrors check).
	counted := entries
	if len(a.Allowed) > 0 && (a.NoErrors || a.NoWarnings || a.MaxErrors != nil || a.MaxWarnings != nil || len(a.Forbidden) > 0) {
		filtered, err := filterAllowed(entries, a.Allowed)
		if err != nil {
			return errResult("allowed", err)
		}
		counted = filtered
	}

	switch {
	case a.NoErrors:
		return evalMaxLevel(counted, oracle.LevelError, 0, "no_errors")
	case a.NoWarnings:
		return evalMaxLevel(counted, oracle.LevelWarn, 0, "no_warnings")
	case a.MaxErrors != nil:
		return evalMaxLevel(counted, oracle.LevelError, *a.MaxErrors, "max_errors")
	case a.MaxWarnings != nil:
		return evalMaxLevel(counted, oracle.LevelWarn, *a.MaxWarnings, "max_warnings")
	case len(a.Forbidden) > 0:
		return evalForbidden(counted, a.Forbidden)
	case len(a.Required) > 0:
		return evalRequired(entries, a.Required)
	case len(a.Allowed) > 0:
		return evalAllowed(entries, a.Allowed)
	default:
		return oracle.ValidationResult{
			Assertion: "console",
			Passed:    false,
			Message:   "console assertion has no recognized predicate set",
		}
	}
}

func evalMaxLevel(entries []oracle.ConsoleLogEntry, level oracle.ConsoleLogLevel, max int, name string) oracle.ValidationResult {
	n := countLevel(entries, level)
	passed := n <= max
	return oracle.ValidationResult{
		Assertion: name,
		Passed:    passed,
		Expected:  max,
		Actual:    n,
		Message:   fmt.Sprintf("%s: expected at most %d %s message(s), got %d", name, max, level, n),
	}
}

func countLevel(entries []oracle.ConsoleLogEntry, level oracle.ConsoleLogLevel) int {
	n := 0
	for _, e := range entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

func evalForbidden(entries []oracle.ConsoleLogEntry, patterns []oracle.Pattern) oracle.ValidationResult {
	for _, p := range patterns {
		matcher, err := compilePattern(p)
		if err != nil {
			return errResult("forbidden", err)
		}
		for _, e := range entries {
			if matcher(e.Message) {
				return oracle.ValidationResult{
					Assertion: "forbidden",
					Passed:    false,
					Expected:  p.Value,
					Actual:    e.Message,
					Message:   fmt.Sprintf("forbidden pattern %q matched message %q", p.Value, e.Message),
				}
			}
		}
	}
	return oracle.ValidationResult{Assertion: "forbidden", Passed: true, Message: "no forbidden pattern matched"}
}

func evalRequired(entries []oracle.ConsoleLogEntry, patterns []oracle.Pattern) oracle.ValidationResult {
	for _, p := range patterns {
		matcher, err := compilePattern(p)
		if err != nil {
			return errResult("required", err)
		}
		found := false
		for _, e := range entries {
			if matcher(e.Message) {
				found = true
				break
			}
		}
		if !found {
			return oracle.ValidationResult{
				Assertion: "required",
				Passed:    false,
				Expected:  p.Value,
				Message:   fmt.Sprintf("required pattern %q did not match any message", p.Value),
			}
		}
	}
	return oracle.ValidationResult{Assertion: "required", Passed: true, Message: "every required pattern matched"}
}

func evalAllowed(entries []oracle.ConsoleLogEntry, patterns []oracle.Pattern) oracle.ValidationResult {
	matchers := make([]func(string) bool, 0, len(patterns))
	for _, p := range patterns {
		m, err := compilePattern(p)
		if err != nil {
			return errResult("allowed", err)
		}
		matchers = append(matchers, m)
	}
	for _, e := range entries {
		if e.Level != oracle.LevelError && e.Level != oracle.LevelWarn {
			continue
		}
		allowed := false
		for _, m := range matchers {
			if m(e.Message) {
				allowed = true
				break
			}
		}
		if !allowed {
			return oracle.ValidationResult{
				Assertion: "allowed",
				Passed:    false,
				Actual:    e.Message,
				Message:   fmt.Sprintf("message %q matched no allowed pattern", e.Message),
			}
		}
	}
	return oracle.ValidationResult{Assertion: "allowed", Passed: true, Message: "every warning/error matched an allowed pattern"}
}

// filterAllowed removes error and warning entries matching any of patterns,
// leaving every other entry (including non-matching errors/warnings and
// all log/info/debug entries) untouched.
func filterAllowed(entries []oracle.ConsoleLogEntry, patterns []oracle.Pattern) ([]oracle.ConsoleLogEntry, error) {
	matchers := make([]func(string) bool, 0, len(patterns))
	for _, p := range patterns {
		m, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}

	out := make([]oracle.ConsoleLogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Level != oracle.LevelError && e.Level != oracle.LevelWarn {
			out = append(out, e)
			continue
		}
		allowed := false
		for _, m := range matchers {
			if m(e.Message) {
				allowed = true
				break
			}
		}
		if !allowed {
			out = append(out, e)
		}
	}
	return out, nil
}

func errResult(name string, err error) oracle.ValidationResult {
	return oracle.ValidationResult{Assertion: name, Passed: false, Message: err.Error()}
}

func compilePattern(p oracle.Pattern) (func(string) bool, error) {
	if p.Regex {
		re, err := regexp.Compile(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid pattern regex %q: %v", oracle.ErrConfiguration, p.Value, err)
		}
		return re.MatchString, nil
	}
	needle := strings.ToLower(p.Value)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}, nil
}
