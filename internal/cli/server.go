package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"prepcuet/internal/app"
	"prepcuet/internal/config"
	transport "prepcuet/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server and the release scanner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	notifier, err := newNotifier(cfg.Notifications)
	if err != nil {
		return err
	}
	hub := app.NewReleaseHub()
	submissions := app.NewSubmissionService(b.attempts, b.catalog, notifier)
	scanner := newScanner(cfg, b, notifier, hub)
	broadcasts := app.NewBroadcastService(b.users, notifier, cfg.Notifications.Concurrency)

	scanAuth := app.NewScanAuthorizer(cfg.Scanner.Secret)
	if scanAuth.Open() {
		log.Warn().Msg("scanner.secret is empty; /api/process-results accepts unauthenticated calls")
	}
	if cfg.Admin.JWTSecret == "" {
		log.Warn().Msg("admin.jwtSecret is empty; /api/send-test-notification is open")
	}

	if cfg.Log.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := transport.NewHandler(submissions, scanner, scanAuth, broadcasts)
	router := transport.NewRouter(handler, transport.NewWSHandler(hub), cfg.Admin.JWTSecret)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	scanCtx, stopScanner := context.WithCancel(ctx)
	defer stopScanner()
	if interval := config.TTLDuration(cfg.Scanner.Interval, 0); interval > 0 {
		go scanner.RunEvery(scanCtx, interval)
		log.Info().Dur("interval", interval).Msg("release scanner scheduled")
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting prepcuet server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}
	stopScanner()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
