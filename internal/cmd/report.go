package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/corvid-labs/smoketest/internal/batchrun"
	"github.com/corvid-labs/smoketest/internal/oracle"
)

// printResult renders a single TestResult in the requested format: text,
// json, or markdown. An unrecognized format is a configuration error, not a
// silent fallback.
func printResult(w io.Writer, format string, result oracle.TestResult) error {
	switch format {
	case "", "text":
		writeResultText(w, result)
		return nil
	case "json":
		return writeJSON(w, result)
	case "markdown":
		writeResultMarkdown(w, result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json, or markdown)", format)
	}
}

// printBatchResult renders a batchrun.Result in the requested format.
func printBatchResult(w io.Writer, format string, result batchrun.Result) error {
	switch format {
	case "", "text":
		writeBatchText(w, result)
		return nil
	case "json":
		return writeJSON(w, result)
	case "markdown":
		writeBatchMarkdown(w, result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json, or markdown)", format)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResultText(w io.Writer, result oracle.TestResult) {
	fmt.Fprintf(w, "%s: %s (%s, run %s)\n", result.TestID, result.Status, result.Duration, result.RunID)
	for _, cp := range result.Checkpoints {
		fmt.Fprintf(w, "  checkpoint %q: %s\n", cp.Name, cp.Status)
		for _, v := range cp.Validations {
			mark := "ok"
			if !v.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(w, "    [%s] %s: %s\n", mark, v.Assertion, v.Message)
		}
	}
	if result.Error != nil {
		fmt.Fprintf(w, "  error: %s\n", result.Error.Message)
	}
	fmt.Fprintf(w, "  artifacts: %d\n", len(result.Artifacts))
}

func writeResultMarkdown(w io.Writer, result oracle.TestResult) {
	fmt.Fprintf(w, "## %s — %s\n\n", result.TestID, result.Status)
	fmt.Fprintf(w, "run `%s`, duration %s, %d artifact(s)\n\n", result.RunID, result.Duration, len(result.Artifacts))
	for _, cp := range result.Checkpoints {
		fmt.Fprintf(w, "### %s — %s\n\n", cp.Name, cp.Status)
		if len(cp.Validations) == 0 {
			fmt.Fprintf(w, "_no validations declared_\n\n")
			continue
		}
		for _, v := range cp.Validations {
			mark := "✅"
			if !v.Passed {
				mark = "❌"
			}
			fmt.Fprintf(w, "- %s **%s** — %s\n", mark, v.Assertion, v.Message)
		}
		fmt.Fprintln(w)
	}
	if result.Error != nil {
		fmt.Fprintf(w, "> error: %s\n", result.Error.Message)
	}
}

func writeBatchText(w io.Writer, result batchrun.Result) {
	passed, failed, flaky := len(result.Passed()), result.Failed(), result.Flaky()
	fmt.Fprintf(w, "%d passed, %d failed, %d flaky\n", passed, len(failed), len(flaky))
	for _, o := range result.Outcomes {
		status := "PASS"
		if !o.Passed() {
			status = "FAIL"
		}
		extra := ""
		if o.Flaky {
			extra = " (flaky)"
		}
		fmt.Fprintf(w, "  %s %s%s — %d attempt(s)\n", status, o.TestID, extra, len(o.Attempts))
	}
}

func writeBatchMarkdown(w io.Writer, result batchrun.Result) {
	passed, failed, flaky := len(result.Passed()), result.Failed(), result.Flaky()
	fmt.Fprintf(w, "# Batch result\n\n%d passed, %d failed, %d flaky\n\n", passed, len(failed), len(flaky))
	fmt.Fprintf(w, "| Test | Status | Attempts |\n|---|---|---|\n")
	for _, o := range result.Outcomes {
		status := "passed"
		if !o.Passed() {
			status = "failed"
		}
		if o.Flaky {
			status += " (flaky)"
		}
		fmt.Fprintf(w, "| %s | %s | %d |\n", o.TestID, status, len(o.Attempts))
	}
}
