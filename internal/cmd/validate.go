package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/smoketest/internal/oracle"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition.yaml>",
	Short: "Parse and validate a test definition without running it",
	Long: `Load, default, and validate a test definition file, reporting any
configuration error (unknown step kind, duplicate checkpoint name,
unsupported capture flag) without opening a browser.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	def, err := oracle.LoadTestDefinitionFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d step(s), %d checkpoint(s))\n",
		def.ID, len(def.Steps), countCheckpoints(def))
	return nil
}

func countCheckpoints(def *oracle.TestDefinition) int {
	n := 0
	for _, s := range def.Steps {
		if s.Kind == oracle.StepCheckpoint {
			n++
		}
	}
	return n
}
