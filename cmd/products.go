package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
	"github.com/JakeFAU/adhesive-catalog/internal/hash/sha256"
	"github.com/JakeFAU/adhesive-catalog/internal/server"
)

func newProductsCmd() *cobra.Command {
	var (
		query  string
		save   string
		syncDB bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Fetch the upstream product list once and report how it was obtained",
		Long: `products runs the same upstream fetch as GET /api/products: pagination is
followed when the upstream signals it, and query variants are probed when the
result falls short of upstream.expected_count. With --save the array is written
to the configured blob store; with --sync-db it replaces the Postgres table.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			infra := server.NewInfra(cfg, toolLogger(cfg))
			defer infra.Close()

			prober, err := infra.Prober()
			if err != nil {
				return err
			}
			if prober == nil {
				return errors.New("upstream.base_url is not configured")
			}
			if query == "" {
				query = cfg.Upstream.DefaultQuery
			}
			res, err := prober.Fetch(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("fetch products: %w", err)
			}
			variant := res.Variant
			if variant == "" {
				variant = "base"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "products: %d\nvariant: %s\npages: %d\n", res.Count(), variant, res.Pages)
			if cfg.Upstream.ExpectedCount > 0 && res.Count() < cfg.Upstream.ExpectedCount {
				fmt.Fprintf(out, "warning: expected %d products\n", cfg.Upstream.ExpectedCount)
			}

			body, err := res.Body()
			if err != nil {
				return err
			}
			if save != "" {
				blobs, err := infra.BlobStore(cmd.Context())
				if err != nil {
					return err
				}
				uri, err := blobs.PutObject(cmd.Context(), save, "application/json", bytes.NewReader(body))
				if err != nil {
					return fmt.Errorf("save products: %w", err)
				}
				digest, err := sha256.New().HashReader(bytes.NewReader(body))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "saved: %s\nsha256: %s\n", uri, digest)
			}
			if syncDB {
				products, err := catalog.DecodeProducts(body)
				if err != nil {
					return fmt.Errorf("decode products: %w", err)
				}
				store, err := infra.ProductStore(cmd.Context())
				if err != nil {
					return err
				}
				if err := store.ReplaceProducts(cmd.Context(), products); err != nil {
					return fmt.Errorf("sync products: %w", err)
				}
				fmt.Fprintf(out, "synced: %d rows to %s\n", len(products), cfg.DB.Table)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "query string passed to the upstream (default upstream.default_query)")
	cmd.Flags().StringVar(&save, "save", "", "blob path to write the product array to")
	cmd.Flags().BoolVar(&syncDB, "sync-db", false, "replace the Postgres product table with the result")
	return cmd
}
