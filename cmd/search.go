package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
	"github.com/JakeFAU/adhesive-catalog/internal/server"
)

func newSearchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Run the header search against the configured catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			infra := server.NewInfra(cfg, toolLogger(cfg))
			defer infra.Close()

			loader, err := infra.Loader(cmd.Context())
			if err != nil {
				return err
			}
			snap := loader.Load(cmd.Context())
			res := snap.Search(strings.Join(args, " "))

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printSearch(cmd, res, snap.Meta())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw search payload")
	return cmd
}

func printSearch(cmd *cobra.Command, res catalog.SearchResult, meta catalog.SnapshotMeta) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "catalog: %s (%d products matched, showing %d)\n", meta.Source, res.TotalProducts, len(res.Products))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tCHEMISTRY")
	for _, p := range res.Products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Chemistry)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	for _, a := range res.Articles {
		fmt.Fprintf(out, "article: %s (%s)\n", a.Title, a.ID)
	}
	return nil
}
