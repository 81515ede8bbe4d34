package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var repairIndexCmd = &cobra.Command{
	Use:   "repair-index",
	Short: "Rebuild every artifact store's index files from on-disk content",
	Long: `repair-index walks the screenshot, DOM, console, and checkpoint store
directories and rebuilds their index.json (and, for the console store, its
per-level and error indexes) from each artifact's content and metadata
sidecar. Use it after an interrupted write or any manual edit of the
artifact base directory — the content files are always the source of
truth, every index is a disposable cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		o, err := newOrchestrator(cfg)
		if err != nil {
			return fmt.Errorf("initializing stores: %w", err)
		}
		if err := o.RepairIndexes(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "indexes repaired")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repairIndexCmd)
}
