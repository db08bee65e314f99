// Package cmd defines the catalogsite command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/config"
	"github.com/JakeFAU/adhesive-catalog/internal/logging"
)

type configKeyType struct{}

var configKey configKeyType

// newRootCmd creates the root command. Subcommands read the loaded Config
// from the command context.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "catalogsite",
		Short: "Industrial adhesives catalog service and tools.",
		Long: `catalogsite serves the product catalog, facet filtering, global search and
the upstream product proxy of the adhesives marketing site. The search and
products subcommands exercise the same pipeline from the terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, &cfg))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env CATALOG_* overrides")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newProductsCmd())
	return cmd
}

func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// toolLogger logs warnings and errors only, so command output stays readable.
func toolLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return zap.NewNop()
	}
	return logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
