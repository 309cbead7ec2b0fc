// Command fetch calls Breeze once and prints the JSON the server would
// return. Useful for checking credentials and field mappings.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"breezerelay/internal/app"
	"breezerelay/internal/config"
	"breezerelay/internal/logging"
	"breezerelay/internal/market"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	envFile    string
	timeout    int
	verbose    bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	var g globals
	root := &cobra.Command{
		Use:          "fetch",
		Short:        "One-shot Breeze market data dump",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("CONFIG_FILE"), "config file (JSON or YAML)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().IntVar(&g.timeout, "timeout", 0, "request timeout seconds, overrides config")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log partial failures to stderr")

	root.AddCommand(&cobra.Command{
		Use:   "indices",
		Short: "Print the index snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, ctx, done, err := setup(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer done()
			quotes, err := svc.Indices(ctx)
			if err != nil {
				return err
			}
			return printJSON(out, quotes)
		},
	})

	var overrides market.ChainOverrides
	chainCmd := &cobra.Command{
		Use:   "option-chain",
		Short: "Print the option chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, ctx, done, err := setup(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer done()
			chain, err := svc.OptionChain(ctx, overrides)
			if err != nil {
				return err
			}
			return printJSON(out, chain)
		},
	}
	chainCmd.Flags().StringVar(&overrides.StockCode, "stock-code", "", "underlying stock code, overrides config")
	chainCmd.Flags().StringVar(&overrides.ExpiryDate, "expiry", "", "expiry date as Breeze expects it, e.g. 2025-06-26T06:00:00.000Z")
	root.AddCommand(chainCmd)
	return root
}

// setup loads config and builds the service with a deadline applied to ctx.
func setup(ctx context.Context, g globals) (*market.Service, context.Context, func(), error) {
	if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil, fmt.Errorf("load %s: %w", g.envFile, err)
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}
	if g.timeout > 0 {
		cfg.Server.RequestTimeoutSec = g.timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}

	log := logging.Discard()
	if g.verbose {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{})
	}
	svc, cleanup, err := app.NewService(cfg, log, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return svc, ctx, func() { cancel(); _ = cleanup() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
