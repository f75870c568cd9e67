package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"prepcuet/internal/app"
	"prepcuet/internal/config"
	"prepcuet/internal/domain"
	"prepcuet/internal/infra/memory"
	"prepcuet/internal/infra/postgres"
	redisstore "prepcuet/internal/infra/redis"
	"prepcuet/internal/logger"
	"prepcuet/internal/mailer"
)

// loadConfig reads the config file and initializes the global logger from it.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// backend is the set of stores chosen from config, plus what must be closed.
type backend struct {
	attempts app.AttemptStore
	outbox   app.Outbox
	users    app.UserDirectory
	catalog  app.TestCatalog
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend picks postgres when a URL is set, else redis, else memory.
// The outbox lives in redis whenever redis is configured.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
	}

	var loader memory.TestLoader = memory.NewStaticTestLoader(sampleTests())
	switch {
	case pool != nil:
		b.attempts = postgres.NewAttemptStore(pool)
		b.users = postgres.NewUserDirectory(pool)
		loader = postgres.NewTestLoader(pool)
		log.Info().Msg("using postgres attempt store")
	case redisClient != nil:
		b.attempts = redisstore.NewAttemptStore(redisClient)
		b.users = memory.NewUserDirectory(sampleUsers())
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis attempt store")
	default:
		b.attempts = memory.NewAttemptStore()
		b.users = memory.NewUserDirectory(sampleUsers())
		log.Warn().Msg("using in-memory attempt store; data is lost on restart")
	}
	b.catalog = memory.NewTestCatalog(loader, config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute))

	if redisClient != nil {
		b.outbox = redisstore.NewOutbox(redisClient)
	} else {
		b.outbox = memory.NewOutbox()
	}
	return b, nil
}

// newNotifier builds the mailer for the configured provider.
func newNotifier(cfg config.NotificationsConfig) (*mailer.Notifier, error) {
	renderer, err := mailer.NewRenderer(cfg.AppName, cfg.SiteURL)
	if err != nil {
		return nil, err
	}
	var sender mailer.Sender
	switch cfg.Provider {
	case "sendgrid":
		sender = mailer.NewSendgridSender(cfg.SendgridKey, cfg.AppName, cfg.FromName, cfg.FromEmail)
	default:
		sender = mailer.NewConsoleSender()
	}
	return mailer.NewNotifier(sender, renderer, config.TTLDuration(cfg.Timeout, 10*time.Second)), nil
}

func newScanner(cfg config.Config, b *backend, notifier app.Notifier, hub *app.ReleaseHub) *app.ReleaseScanner {
	return app.NewReleaseScanner(b.attempts, notifier, b.outbox, hub, app.ScannerConfig{
		Concurrency:   cfg.Scanner.Concurrency,
		Retry:         cfg.Notifications.Retry.Enabled,
		MaxDeliveries: cfg.Notifications.Retry.MaxAttempts,
	})
}

// sampleTests seeds the catalogue when no database is configured.
func sampleTests() map[string]domain.TestSeries {
	return map[string]domain.TestSeries{
		"cuet-gt-1":  {ID: "cuet-gt-1", Title: "CUET General Test: Mock 1", Description: "Quantitative aptitude, reasoning and general awareness."},
		"cuet-eng-1": {ID: "cuet-eng-1", Title: "CUET English: Mock 1", Description: "Reading comprehension and verbal ability."},
	}
}

func sampleUsers() []domain.User {
	return []domain.User{
		{ID: "demo-1", Name: "Demo Student", Email: "student@example.com"},
	}
}
