package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/auth"
	"velora-scenario-service/internal/config"
	"velora-scenario-service/internal/infra/memory"
	redisinfra "velora-scenario-service/internal/infra/redis"
	transport "velora-scenario-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scenario server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	authority, err := auth.NewJWTAuthority(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	sessionTTL := config.TTLDuration(cfg.Quiz.SessionTTL, 2*time.Hour)
	var store app.SessionRepository
	var quotas app.QuotaFactory
	if b.redis != nil {
		store = redisinfra.NewSessionStore(b.redis, sessionTTL)
		quotas = redisinfra.QuotaFactory(b.redis)
	} else {
		store = memory.NewSessionStore(sessionTTL)
		quotas = memory.NewQuotaLedger().Device
	}

	writer := app.NewAsyncProgressWriter(b.progress, log, 256, 3, 200*time.Millisecond)
	sessions := app.NewSessionService(app.SessionConfig{
		Sessions:       store,
		Scenarios:      b.scenarios,
		Identities:     authority,
		Quotas:         quotas,
		Progress:       writer,
		AnonymousLimit: cfg.Quiz.AnonymousLimit,
		Logger:         log,
	})
	router := transport.NewRouter(transport.Config{
		Sessions: sessions,
		Catalog:  app.NewCatalogService(b.catalog, b.scenarios, b.progress),
		Tokens:   authority,
		Logger:   log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting scenario service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// flush queued progress writes before the stores close
	return writer.Close(shutdownCtx)
}
