package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/signal-trader/internal/api"
	"github.com/trogers1052/signal-trader/internal/database"
	"github.com/trogers1052/signal-trader/internal/jobs"
	"github.com/trogers1052/signal-trader/internal/kafka"
	"github.com/trogers1052/signal-trader/internal/monitor"
	"github.com/trogers1052/signal-trader/internal/scanner"
)

func passCmd(use, short, pass string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.runner.Run(ctx, pass)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func serveCmd() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run passes on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.db.Migrate(); err != nil {
				return err
			}

			handler := api.NewHandler(a.db, a.runner, a.executor, a.market, a.cfg.Engine.Lookback, a.logger.Named("api"), api.WithSessions(a.scanner))
			srv := &http.Server{
				Addr:              a.cfg.Server.Address(),
				Handler:           api.SetupRoutes(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				a.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if a.cfg.Kafka.Enabled {
				consumer := kafka.NewConsumer(a.cfg.Kafka.Brokers, a.cfg.Kafka.MarketTopic, a.cfg.Kafka.GroupID, a.db, a.logger.Named("consumer"))
				if a.quotes != nil {
					consumer.WithQuoteSink(a.quotes)
				}
				g.Go(func() error { return consumer.Start(gctx) })
			}

			if !noScheduler {
				intervals := map[string]time.Duration{
					scanner.PassSignalScan:   a.cfg.Engine.ScanInterval,
					scanner.PassRiskCheck:    a.cfg.Engine.ScanInterval,
					monitor.PassTrailingStop: a.cfg.Engine.MonitorInterval,
				}
				for _, pass := range jobs.Passes {
					pass, every := pass, intervals[pass]
					g.Go(func() error {
						a.runner.Schedule(gctx, pass, every)
						return nil
					})
				}
			}

			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve HTTP only; passes run on request")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *database.DB, log *zap.Logger) error {
				action := "up"
				if len(args) == 1 {
					action = args[0]
				}

				var err error
				switch action {
				case "down":
					err = db.MigrateDown()
				case "version":
					version, dirty, verr := db.MigrationVersion()
					if verr != nil {
						return verr
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				default:
					err = db.Migrate()
				}
				if err != nil {
					return err
				}
				log.Info("Migration complete", zap.String("action", action))
				return nil
			})
		},
	}
	return cmd
}
