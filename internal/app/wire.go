package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/trustscope/trustscope/internal/aggregator"
	"github.com/trustscope/trustscope/internal/ai"
	s3blob "github.com/trustscope/trustscope/internal/blob/s3"
	"github.com/trustscope/trustscope/internal/cache/memory"
	"github.com/trustscope/trustscope/internal/cache/redis"
	"github.com/trustscope/trustscope/internal/chains"
	"github.com/trustscope/trustscope/internal/config"
	"github.com/trustscope/trustscope/internal/domain"
	"github.com/trustscope/trustscope/internal/market"
	"github.com/trustscope/trustscope/internal/notify"
	"github.com/trustscope/trustscope/internal/pipeline"
	"github.com/trustscope/trustscope/internal/social"
	"github.com/trustscope/trustscope/internal/store/file"
	"github.com/trustscope/trustscope/internal/store/postgres"
)

// Dependencies bundles every component the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry *chains.Registry

	// Cache tier: in-memory by default, Redis when enabled.
	Cache       domain.KVCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Persistence
	AuditStore domain.AuditStore
	Archiver   *s3blob.Archiver

	// Pipeline
	Pipeline     *pipeline.Pipeline
	MultiScanner *pipeline.MultiScanner

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function to be called on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Cache tier ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Cache = redis.NewKVCache(redisClient, "ts")
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.Cache = memory.NewKVCache()
		deps.RateLimiter = memory.NewRateLimiter()
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- Audit store ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
	} else {
		store, err := file.NewAuditStore(cfg.Audit.Dir)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: audit store: %w", err)
		}
		deps.AuditStore = store
	}

	// --- S3 archiver ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.AuditStore, logger)
	}

	// --- Chain registry and resolvers ---
	deps.Registry = chains.NewRegistry(cfg.Chains.RPCOverrides, logger)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	prices := market.NewResolver(httpClient, deps.Cache, logger)
	if cfg.Market.CoinGeckoURL != "" {
		prices.CoinGeckoURL = cfg.Market.CoinGeckoURL
	}
	if cfg.Market.CoinbaseURL != "" {
		prices.CoinbaseURL = cfg.Market.CoinbaseURL
	}
	if cfg.Market.CryptoCompareURL != "" {
		prices.CryptoCompareURL = cfg.Market.CryptoCompareURL
	}

	agg := aggregator.New(deps.Registry, prices, social.NewMultiSourceResolver(), deps.Cache, logger)
	if cfg.Pipeline.AggregateTTL.Duration > 0 {
		agg.WithTTL(cfg.Pipeline.AggregateTTL.Duration)
	}

	// --- AI refiner ---
	model := ai.NewClient(ai.ClientConfig{
		AnthropicAPIKey: cfg.AI.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.AI.OpenAIAPIKey,
		OllamaURL:       cfg.AI.OllamaURL,
		Model:           cfg.AI.Model,
	}, logger)
	refiner := ai.NewRefiner(model, deps.Cache, logger)

	// --- Pipeline ---
	deps.Pipeline = pipeline.New(agg, refiner, deps.Cache, deps.RateLimiter, deps.AuditStore, deps.SignalBus, logger).
		WithResultTTL(cfg.Pipeline.ResultTTL.Duration)
	deps.MultiScanner = pipeline.NewMultiScanner(deps.Registry, refiner, deps.AuditStore, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)
		deps.Pipeline.WithNotifier(deps.Notifier)
	}

	return deps, cleanup, nil
}
