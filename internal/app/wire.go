package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/uday68/VyaparMitra-sub003/internal/blob/s3"
	cachememory "github.com/uday68/VyaparMitra-sub003/internal/cache/memory"
	"github.com/uday68/VyaparMitra-sub003/internal/cache/redis"
	"github.com/uday68/VyaparMitra-sub003/internal/config"
	"github.com/uday68/VyaparMitra-sub003/internal/domain"
	"github.com/uday68/VyaparMitra-sub003/internal/notify"
	"github.com/uday68/VyaparMitra-sub003/internal/payment"
	"github.com/uday68/VyaparMitra-sub003/internal/speech"
	storememory "github.com/uday68/VyaparMitra-sub003/internal/store/memory"
	"github.com/uday68/VyaparMitra-sub003/internal/store/postgres"
	"github.com/uday68/VyaparMitra-sub003/internal/translate"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	NegotiationStore domain.NegotiationStore
	BidStore         domain.BidStore
	ProductStore     domain.ProductStore
	AuditStore       domain.AuditStore

	// Cache-backed infrastructure
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter // nil when the memory cache is selected

	// Blob storage (nil unless the archive is enabled)
	BlobWriter domain.BlobWriter

	// Collaborator clients (each nil when unconfigured)
	Translator domain.Translator
	Speech     domain.SpeechSynthesizer
	Payments   domain.PaymentGateway

	// Notifications
	Notifier *notify.Notifier
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

	// --- Primary store ---
	switch strings.ToLower(cfg.Storage) {
	case "postgres":
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

		pool := pgClient.Pool()
		deps.NegotiationStore = postgres.NewNegotiationStore(pool)
		deps.BidStore = postgres.NewBidStore(pool)
		deps.ProductStore = postgres.NewProductStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)

	case "memory":
		deps.NegotiationStore = storememory.NewNegotiationStore()
		deps.BidStore = storememory.NewBidStore()
		deps.ProductStore = storememory.NewProductStore()
		deps.AuditStore = storememory.NewAuditStore()

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown storage %q", cfg.Storage)
	}

	// --- Lock manager and signal bus ---
	switch strings.ToLower(cfg.Cache) {
	case "redis":
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

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)

	case "memory":
		deps.LockManager = cachememory.NewLockManager()
		deps.SignalBus = cachememory.NewSignalBus()

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown cache %q", cfg.Cache)
	}

	// --- S3 blob storage (only when the archive runs) ---
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Collaborator clients ---
	if cfg.Translate.BaseURL != "" {
		deps.Translator = translate.New(cfg.Translate.BaseURL, cfg.Translate.APIKey)
	}
	if cfg.Speech.BaseURL != "" {
		deps.Speech = speech.New(cfg.Speech.BaseURL, cfg.Speech.APIKey, cfg.Speech.Voice)
	}
	if cfg.Payment.BaseURL != "" {
		deps.Payments = payment.New(cfg.Payment.BaseURL, cfg.Payment.KeyID, cfg.Payment.Secret)
	}

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
