package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCreatorID int64

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed a creator's catalog into the vector store",
	Long: `index embeds every new or changed content item of a creator into the
per-creator vector store. Unchanged items are skipped, so re-running after
a scrape only embeds what the scrape added.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().Int64VarP(&indexCreatorID, "creator", "c", 0, "creator id to index (required)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexCreatorID == 0 {
		return errors.New("--creator is required")
	}

	ctx := context.Background()
	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	report, err := a.Indexer.IndexCreator(ctx, indexCreatorID)
	if err != nil {
		return fmt.Errorf("indexing creator %d: %w", indexCreatorID, err)
	}

	fmt.Printf("Indexed creator %d: %d items total, %d embedded, %d skipped.\n",
		indexCreatorID, report.Total, report.Embedded, report.Skipped)
	return nil
}
