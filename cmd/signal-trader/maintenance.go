package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trogers1052/signal-trader/internal/database"
	"github.com/trogers1052/signal-trader/internal/marketdata"
	"github.com/trogers1052/signal-trader/internal/models"
)

func pruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete price bars and indicator snapshots past retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withDB(cmd.Context(), func(ctx context.Context, db *database.DB, log *zap.Logger) error {
				cutoff := time.Now().UTC().Add(-olderThan)

				bars, err := db.DeletePriceBarsOlderThan(ctx, cutoff)
				if err != nil {
					return err
				}
				rows, err := db.DeleteIndicatorsOlderThan(ctx, cutoff)
				if err != nil {
					return err
				}
				log.Info("Pruned market history",
					zap.Time("cutoff", cutoff),
					zap.Int64("price_bars", bars),
					zap.Int64("indicators", rows))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Retention window")
	return cmd
}

func backfillCmd() *cobra.Command {
	var (
		seed int64
		bars int
	)

	cmd := &cobra.Command{
		Use:   "backfill SYMBOL...",
		Short: "Write simulated bars into price_bars for the given symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *database.DB, log *zap.Logger) error {
				sim := marketdata.NewSimulated(seed, bars)
				for _, arg := range args {
					symbol := strings.ToUpper(arg)
					if !models.ValidSymbol(symbol) {
						return fmt.Errorf("invalid symbol %q", arg)
					}

					series, err := sim.GetBars(ctx, symbol)
					if err != nil {
						return err
					}
					rows := make([]*models.PriceBar, 0, len(series))
					for _, b := range series {
						rows = append(rows, models.NewPriceBar(symbol, b))
					}
					if err := db.UpsertPriceBarBatch(ctx, rows); err != nil {
						return err
					}
					log.Info("Backfilled bars", zap.String("symbol", symbol), zap.Int("bars", len(rows)))
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "Random walk seed")
	cmd.Flags().IntVar(&bars, "bars", 100, "Bars per symbol")
	return cmd
}

// withDB runs fn against a database connection built from the configuration
func withDB(ctx context.Context, fn func(context.Context, *database.DB, *zap.Logger) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return fn(ctx, db, log)
}
