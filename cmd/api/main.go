package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fee-engine/config"
	"fee-engine/internal/app"
	httpHandler "fee-engine/internal/adapter/http/handler"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/logger"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Getenv("FEE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("fee-engine", cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("jobs", cfg.Jobs.Driver).
		Msg("Starting fee engine")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fee engine stopped")
	}
	log.Info().Msg("Server exited")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	svcs, err := app.Build(cfg, infra, log)
	if err != nil {
		return err
	}

	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:         svcs.Auth,
		BusinessSvc:     svcs.Business,
		ChargeSvc:       svcs.Charge,
		CollectionSvc:   svcs.Collection,
		PayoutSvc:       svcs.Payout,
		RefundSvc:       svcs.Refund,
		ReconcileSvc:    svcs.Reconcile,
		ReportingSvc:    svcs.Reporting,
		Idempotency:     svcs.Idempotency,
		SigSvc:          svcs.Signatures,
		TokenSvc:        svcs.Tokens,
		RateLimiter:     svcs.RateLimiter,
		ProviderSecrets: app.ProviderSecrets(cfg.Providers),
		HealthCheckers:  infra.Health,
		Logger:          log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return infra.Jobs.ConsumeWithRetry(gctx, ports.JobWebhookDelivery, svcs.Notifier.HandleJob)
	})
	g.Go(func() error {
		return infra.Jobs.Consume(gctx, ports.JobReconcile, svcs.Reconcile.HandleJob)
	})
	g.Go(func() error {
		return infra.Jobs.Consume(gctx, ports.JobSettlement, svcs.Settlement.HandleJob)
	})

	if cfg.Reconcile.Interval > 0 {
		g.Go(func() error {
			scheduleReconcile(gctx, infra.Jobs, infra.Gateways.Names(), cfg.Reconcile.Interval, log)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// scheduleReconcile enqueues one sweep per provider every interval until ctx ends.
func scheduleReconcile(ctx context.Context, jobs ports.JobRunner, providers []string, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			batch := make([]ports.Job, 0, len(providers))
			for _, name := range providers {
				batch = append(batch, ports.Job{
					ID:      fmt.Sprintf("reconcile:%s:%d", name, now.Unix()),
					Kind:    ports.JobReconcile,
					Payload: []byte(name),
				})
			}
			if err := jobs.Enqueue(ctx, batch...); err != nil {
				log.Error().Err(err).Msg("failed to schedule reconcile sweep")
			}
		}
	}
}
