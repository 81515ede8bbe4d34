// Package cmd implements the smoketest CLI, mirroring the teacher's own
// internal/cmd cobra command tree (internal/cmd/tester.go and its run/batch/
// preflight subcommands) but pointed at running TestDefinitions through the
// orchestrator instead of spawning AI persona agents.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/smoketest/internal/driver/rod"
	"github.com/corvid-labs/smoketest/internal/oracle"
	"github.com/corvid-labs/smoketest/internal/orchestrator"
)

var (
	engineConfigPath string
	baseDirOverride  string
	headed           bool
)

var rootCmd = &cobra.Command{
	Use:   "smoketest",
	Short: "Browser smoke-test oracle",
	Long: `smoketest drives a browser through declared interaction steps, pauses
at named checkpoints to capture screenshots, DOM, and console artifacts,
validates them against assertions, and persists everything for later diffing.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&engineConfigPath, "config", "", "path to a TOML engine config file")
	rootCmd.PersistentFlags().StringVar(&baseDirOverride, "base-dir", "", "override the engine config's artifact base directory")
	rootCmd.PersistentFlags().BoolVar(&headed, "headed", false, "run the browser with a visible window instead of headless")
}

// Execute runs the CLI, exiting the process with a nonzero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadEngineConfig() (oracle.EngineConfig, error) {
	cfg := oracle.DefaultEngineConfig()
	if engineConfigPath != "" {
		var err error
		cfg, err = oracle.LoadEngineConfigFile(engineConfigPath)
		if err != nil {
			return oracle.EngineConfig{}, err
		}
	}
	if baseDirOverride != "" {
		cfg.BaseDir = baseDirOverride
	}
	return cfg, nil
}

func newOrchestrator(cfg oracle.EngineConfig) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(rod.NewFactory(), cfg.BaseDir, cfg.DOMChunkSize)
}
