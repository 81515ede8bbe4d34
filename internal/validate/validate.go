// Package validate runs a checkpoint's declared ValidationsConfig against
// its captured DOM and console artifacts, producing the ValidationResults
// a CheckpointState stores.
package validate

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/corvid-labs/smoketest/internal/assertion"
	"github.com/corvid-labs/smoketest/internal/oracle"
)

// Checkpoint evaluates every DOM and console assertion declared for a
// checkpoint, returning the full set of results and whether all of them
// passed. A nil config (no validations declared) passes trivially.
func Checkpoint(cfg *oracle.ValidationsConfig, doc *goquery.Document, console []oracle.ConsoleLogEntry) (bool, []oracle.ValidationResult) {
	if cfg == nil {
		return true, nil
	}

	var results []oracle.ValidationResult
	for _, a := range cfg.DOM {
		if doc == nil {
			results = append(results, oracle.ValidationResult{
				Assertion: "dom",
				Passed:    false,
				Message:   "checkpoint declares dom validations but no HTML was captured",
			})
			continue
		}
		results = append(results, assertion.EvaluateDOM(doc, a))
	}
	for _, a := range cfg.Console {
		results = append(results, assertion.EvaluateConsole(console, a))
	}

	passed := true
	for _, r := range results {
		if !r.Passed {
			passed = false
			break
		}
	}
	return passed, results
}
