package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pageza/alchemorsel-v2/search/internal/search"
)

type searchOptions struct {
	params []string
	body   string
	json   bool
	debug  bool
}

func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a recipe search against the configured database",
		Long: `Run a recipe search through the same engine the API serves.

Parameters use the RPC names. Sets are comma separated.

Examples:
  recipectl search 番茄牛腩
  recipectl search -p cuisines=sichuan -p sort_field=cooking_time
  recipectl search --body '{"required_ingredients":["鸡蛋"],"page_size":5}'
  recipectl search --body @request.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, args)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "search parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.body, "body", "", "RPC request body, or @file to read it from a file")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the response envelope as JSON")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "include score breakdowns and stage timings")
	return cmd
}

func runSearch(cmd *cobra.Command, opts *searchOptions, args []string) error {
	req, err := buildSearchRequest(opts, args)
	if err != nil {
		return err
	}

	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	resp, err := env.svcs.Engine.Search(cmd.Context(), req)
	if err != nil {
		return err
	}
	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printSearchResponse(cmd.OutOrStdout(), resp)
	return nil
}

// buildSearchRequest turns the command line into a normalized request.
// A body takes precedence; positional words become search_query.
func buildSearchRequest(opts *searchOptions, args []string) (*search.Request, error) {
	var (
		req *search.Request
		err error
	)
	if opts.body != "" {
		body := []byte(opts.body)
		if path, ok := strings.CutPrefix(opts.body, "@"); ok {
			if body, err = os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("failed to read request body: %w", err)
			}
		}
		req, err = search.ParseRequest(body)
	} else {
		values := url.Values{}
		for _, p := range opts.params {
			key, value, ok := strings.Cut(p, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("invalid parameter %q, want key=value", p)
			}
			values.Add(strings.TrimSpace(key), value)
		}
		if len(args) > 0 {
			values.Set("search_query", strings.Join(args, " "))
		}
		req, err = search.ParseQuery(values)
	}
	if err != nil {
		return nil, err
	}

	if opts.debug {
		req.DebugMode = true
	}
	return req, nil
}

func printSearchResponse(w io.Writer, resp *search.Response) {
	if len(resp.Rows) == 0 {
		fmt.Fprintf(w, "No recipes on page %d (%d matched of %d).\n", resp.Page, resp.FilteredCount, resp.TotalCount)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tNAME\tCUISINE\tDIFFICULTY\tMINUTES")
	offset := (resp.Page - 1) * resp.PageSize
	for i, row := range resp.Rows {
		fmt.Fprintf(tw, "%d\t%.2f\t%s\t%s\t%s\t%d\n",
			offset+i+1, row.Score, row.Name, row.Cuisine, row.Difficulty, row.CookingTime)
	}
	tw.Flush()

	fmt.Fprintf(w, "\npage %d/%d, %d matched of %d recipes\n", resp.Page, resp.TotalPages, resp.FilteredCount, resp.TotalCount)
	if resp.Debug != nil {
		for _, note := range resp.Debug.Notes {
			fmt.Fprintf(w, "note: %s\n", note)
		}
		for _, st := range resp.Debug.Stages {
			fmt.Fprintf(w, "stage %s: %d -> %d\n", st.Stage, st.In, st.Out)
		}
	}
}
