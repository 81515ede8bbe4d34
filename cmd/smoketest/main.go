// Command smoketest is the CLI front door for the browser smoke-test
// oracle: it parses a TestDefinition YAML file, runs it (or a batch of
// them) through the orchestrator, and prints the resulting TestResult.
package main

import "github.com/corvid-labs/smoketest/internal/cmd"

func main() {
	cmd.Execute()
}
