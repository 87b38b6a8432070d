package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pageza/alchemorsel-v2/search/internal/service"
)

func newReindexCmd() *cobra.Command {
	var (
		force   bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Embed recipes that are new or changed",
		Long: `Compute recipe embeddings with the configured provider.

Recipes whose embedded text is unchanged since the last run are skipped
unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			stats, err := service.NewEmbeddingIndexer(env.svcs.Recipes, env.svcs.Embedder, workers).Run(cmd.Context(), force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "embedded %d, skipped %d, failed %d in %s\n",
				stats.Embedded, stats.Skipped, stats.Failed, stats.Duration.Round(time.Millisecond))
			for _, e := range stats.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d recipes failed to embed", stats.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-embed every recipe")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent embedding requests")
	return cmd
}
