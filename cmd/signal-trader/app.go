package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trogers1052/signal-trader/internal/broker"
	"github.com/trogers1052/signal-trader/internal/cache"
	"github.com/trogers1052/signal-trader/internal/config"
	"github.com/trogers1052/signal-trader/internal/database"
	"github.com/trogers1052/signal-trader/internal/execution"
	"github.com/trogers1052/signal-trader/internal/jobs"
	"github.com/trogers1052/signal-trader/internal/kafka"
	"github.com/trogers1052/signal-trader/internal/logger"
	"github.com/trogers1052/signal-trader/internal/marketdata"
	"github.com/trogers1052/signal-trader/internal/monitor"
	"github.com/trogers1052/signal-trader/internal/risk"
	"github.com/trogers1052/signal-trader/internal/scanner"
)

// app holds the wired collaborators of one process
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	quotes   *cache.QuoteCache
	market   marketdata.Provider
	executor *execution.Executor
	scanner  *scanner.Scanner
	runner   *jobs.Runner
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log}

	a.db, err = database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	switch cfg.Engine.MarketData {
	case config.MarketDataSimulated:
		a.market = marketdata.NewSimulated(cfg.Engine.SimulatedSeed, cfg.Engine.Lookback)
	default:
		a.market = marketdata.NewStore(a.db, cfg.Engine.Lookback)
	}

	var lock jobs.Locker
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.quotes = cache.NewQuoteCache(a.redis, a.market, cfg.Redis.QuoteTTL, log.Named("cache"))
		a.market = a.quotes
		lock = cache.NewPassLock(a.redis, 0)
	}

	execOpts := []execution.Option{execution.WithLogger(log.Named("execution"))}
	scanOpts := []scanner.Option{scanner.WithLogger(log.Named("scanner"))}
	if cfg.Kafka.Enabled {
		a.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		execOpts = append(execOpts, execution.WithPublisher(a.producer))
		scanOpts = append(scanOpts, scanner.WithPublisher(a.producer))
	}

	account, _ := cfg.Engine.Account()
	loc, _ := cfg.Engine.Location()

	a.executor = execution.NewExecutor(a.db, broker.NewPaper(), execOpts...)
	a.scanner = scanner.New(a.db, a.market, a.executor, risk.NewGate(loc), scanner.Config{
		Workers:      cfg.Engine.Workers,
		UnitTimeout:  cfg.Engine.UnitTimeout,
		AccountValue: account,
		Lookback:     cfg.Engine.Lookback,
	}, scanOpts...)
	mon := monitor.New(a.db, a.market, a.executor, monitor.Config{
		Workers:     cfg.Engine.Workers,
		UnitTimeout: cfg.Engine.UnitTimeout,
	}, monitor.WithLogger(log.Named("monitor")))

	a.runner = jobs.NewRunner(a.scanner, mon, lock, log.Named("jobs"))
	return a, nil
}

// Close releases every connection the app opened
func (a *app) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("Failed to close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
