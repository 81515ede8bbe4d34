package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

var runOutputFormat string

var runCmd = &cobra.Command{
	Use:   "run <definition.yaml>",
	Short: "Run a single test definition",
	Long: `Run a single smoke-test definition end to end: open a browser, execute
beforeAll/steps/afterAll, capture and validate every checkpoint, and print
the result.

Examples:
  smoketest run scenarios/homepage.yaml
  smoketest run scenarios/homepage.yaml --headed
  smoketest run scenarios/homepage.yaml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runOutputFormat, "format", "text", "output format: text, json, or markdown")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	def, err := oracle.LoadTestDefinitionFile(args[0])
	if err != nil {
		return err
	}
	if headed {
		def.Headless = false
	}

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	o, err := newOrchestrator(cfg)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	result := o.Run(cmd.Context(), def)
	if err := printResult(cmd.OutOrStdout(), runOutputFormat, result); err != nil {
		return err
	}
	if result.Status != oracle.StatusPassed {
		return fmt.Errorf("%s %s", def.ID, result.Status)
	}
	return nil
}
