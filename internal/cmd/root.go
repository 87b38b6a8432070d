package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pageza/alchemorsel-v2/search/config"
	"github.com/pageza/alchemorsel-v2/search/internal/app"
)

var rootCmd = newRootCmd()

// Execute runs the root command. Interrupts cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recipectl",
		Short: "Operate the recipe search service",
		Long: `recipectl - operator tooling for recipe search
  - run a search against the configured database
  - dump or check the scoring constants
  - re-embed recipes and prune the query embedding cache`,
		SilenceUsage: true,
	}
	root.AddCommand(newSearchCmd())
	root.AddCommand(newConstantsCmd())
	root.AddCommand(newReindexCmd())
	root.AddCommand(newCacheCmd())
	return root
}

// environment is what the database-backed commands run on.
type environment struct {
	cfg  *config.Config
	deps *app.Deps
	svcs *app.Services
}

func (e *environment) Close() {
	e.deps.Close()
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	deps, err := app.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	svcs, err := app.NewServices(ctx, cfg, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}
	return &environment{cfg: cfg, deps: deps, svcs: svcs}, nil
}
