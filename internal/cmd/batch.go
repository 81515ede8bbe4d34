package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/smoketest/internal/batchrun"
	"github.com/corvid-labs/smoketest/internal/notify"
	"github.com/corvid-labs/smoketest/internal/oracle"
)

var (
	batchOutputFormat string
	batchNotify       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <pattern>",
	Short: "Run every test definition matching a glob pattern",
	Long: `Run every YAML test definition matching pattern sequentially,
retrying a failing definition up to its declared retries and flagging it
flaky if attempts disagreed before settling.

Examples:
  smoketest batch "scenarios/*.yaml"
  smoketest batch "scenarios/*.yaml" --notify`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchOutputFormat, "format", "text", "output format: text, json, or markdown")
	batchCmd.Flags().BoolVar(&batchNotify, "notify", false, "send a Telegram summary of failures (SMOKETEST_TELEGRAM_TOKEN / SMOKETEST_TELEGRAM_CHAT_ID)")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	matches, err := filepath.Glob(args[0])
	if err != nil {
		return fmt.Errorf("expanding pattern %q: %w", args[0], err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no test definitions matched %q", args[0])
	}

	var defs []*oracle.TestDefinition
	for _, path := range matches {
		def, err := oracle.LoadTestDefinitionFile(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		if headed {
			def.Headless = false
		}
		defs = append(defs, def)
	}

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	o, err := newOrchestrator(cfg)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	result := batchrun.NewRunner(o).RunAll(cmd.Context(), defs)

	if batchNotify {
		if err := notify.BatchFailures(result); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "telegram notification failed: %v\n", err)
		}
	}

	if err := printBatchResult(cmd.OutOrStdout(), batchOutputFormat, result); err != nil {
		return err
	}
	if len(result.Failed()) > 0 {
		return fmt.Errorf("%d of %d test(s) failed", len(result.Failed()), len(result.Outcomes))
	}
	return nil
}
