package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pageza/alchemorsel-v2/search/config"
)

func newConstantsCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "constants",
		Short: "Inspect the scoring weights and thresholds",
		Long: `Inspect the scoring weights and thresholds the engine runs with.

The values are the built-in defaults overlaid with the YAML file named by
--config or SEARCH_CONFIG_FILE.`,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("SEARCH_CONFIG_FILE"), "search config overlay")

	load := func() (config.SearchConfig, error) {
		return config.LoadSearchConfig(configFile)
	}
	cmd.AddCommand(newConstantsDumpCmd(load))
	cmd.AddCommand(newConstantsCheckCmd(load))
	return cmd
}

func newConstantsDumpCmd(load func() (config.SearchConfig, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the constants as flat dotted keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			var out []byte
			switch format {
			case "yaml":
				out, err = yaml.Marshal(cfg.Constants())
			case "json":
				out, err = json.MarshalIndent(cfg.Constants(), "", "  ")
				out = append(out, '\n')
			default:
				return fmt.Errorf("unknown format %q, want yaml or json", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}

func newConstantsCheckCmd(load func() (config.SearchConfig, error)) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare a client constants file against the engine",
		Long: `Compare an externally maintained constants file against the engine's
constants. Every key is compared; a different value or a key present on only
one side is drift and the command exits non-zero.

Examples:
  recipectl constants check --file web/src/search-constants.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			actual, err := config.ReadConstantsFile(file)
			if err != nil {
				return err
			}

			drifts := config.CompareConstants(cfg.Constants(), actual)
			out := cmd.OutOrStdout()
			if len(drifts) == 0 {
				fmt.Fprintf(out, "%s matches all %d constants\n", file, len(actual))
				return nil
			}
			for _, d := range drifts {
				fmt.Fprintln(out, d.String())
			}
			return fmt.Errorf("%d constants out of parity in %s", len(drifts), file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "constants file to check (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
