package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/kolwager/kolwager/internal/blob/s3"
	cachememory "github.com/kolwager/kolwager/internal/cache/memory"
	cacheredis "github.com/kolwager/kolwager/internal/cache/redis"
	"github.com/kolwager/kolwager/internal/config"
	"github.com/kolwager/kolwager/internal/crypto"
	"github.com/kolwager/kolwager/internal/domain"
	"github.com/kolwager/kolwager/internal/notify"
	storememory "github.com/kolwager/kolwager/internal/store/memory"
	"github.com/kolwager/kolwager/internal/store/postgres"
)

// quoteCacheTTL bounds how long a cached quote can outlive the pools it was
// derived from.
const quoteCacheTTL = 5 * time.Minute

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore     domain.MarketStore
	PositionStore   domain.PositionStore
	SettlementStore domain.SettlementStore
	AuditStore      domain.AuditStore

	// Caches
	QuoteCache  domain.QuoteCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage (nil unless archiving is enabled)
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Admin API key resolved from config (possibly decrypted).
	AdminAPIKey string
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	memoryMode := strings.ToLower(cfg.Mode) == "memory"

	// --- Stores ---
	if memoryMode {
		positions := storememory.NewPositionStore()
		deps.PositionStore = positions
		deps.MarketStore = storememory.NewMarketStore(positions)
		deps.SettlementStore = storememory.NewSettlementStore()
		deps.AuditStore = storememory.NewAuditStore()
	} else {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.PositionStore = postgres.NewPositionStore(pool)
		deps.SettlementStore = postgres.NewSettlementStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Caches, locks, bus ---
	if memoryMode {
		deps.QuoteCache = cachememory.NewQuoteCache()
		deps.RateLimiter = cachememory.NewRateLimiter()
		deps.LockManager = cachememory.NewLockManager()
		deps.SignalBus = cachememory.NewSignalBus()
	} else {
		redisClient, err := cacheredis.New(ctx, cacheredis.ClientConfig{
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

		deps.QuoteCache = cacheredis.NewQuoteCache(redisClient, quoteCacheTTL)
		deps.RateLimiter = cacheredis.NewRateLimiter(redisClient)
		deps.LockManager = cacheredis.NewLockManager(redisClient)
		deps.SignalBus = cacheredis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage (only when archiving is enabled) ---
	if cfg.Archive.Enabled {
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

		deps.Archiver = s3blob.NewArchiver(
			deps.MarketStore,
			deps.PositionStore,
			deps.SettlementStore,
			s3blob.NewWriter(s3Client),
			cfg.Archive.Retention.Duration,
			logger,
		)
	}

	// --- Admin credential ---
	apiKey, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:     cfg.Admin.APIKey,
		EncryptedPath: cfg.Admin.EncryptedKeyPath,
		Password:      cfg.Admin.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: admin credential: %w", err)
	}
	deps.AdminAPIKey = apiKey

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
