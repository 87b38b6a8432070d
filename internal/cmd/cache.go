package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pageza/alchemorsel-v2/search/internal/embedding"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the query embedding cache",
	}
	cmd.AddCommand(newCachePruneCmd())
	return cmd
}

func newCachePruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached query embeddings older than a duration",
		Long: `Delete rows of the query embedding cache table older than --older-than.

Stale entries are never served, so pruning only reclaims space. Redis
entries expire on their own.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < embedding.FreshnessWindow {
				return fmt.Errorf("--older-than must be at least %s", embedding.FreshnessWindow)
			}

			env, err := openEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			n, err := embedding.NewGormStore(env.deps.DB).Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d cached query embeddings\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "minimum age of the entries to delete")
	return cmd
}
