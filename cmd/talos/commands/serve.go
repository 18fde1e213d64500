package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/talos/internal/approval"
	"github.com/example/talos/internal/auth"
	"github.com/example/talos/internal/cache"
	"github.com/example/talos/internal/handlers"
	apihttp "github.com/example/talos/internal/http"
	"github.com/example/talos/internal/rate"
	"github.com/example/talos/internal/vault"
	sol "github.com/gagliardetto/solana-go"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operator API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	programID, err := sol.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("program id: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	keys, err := auth.NewMongoAPIKeyStore(connectCtx, mongoClient, cfg.MongoDB, cfg.KeyCacheTTL)
	if err != nil {
		return fmt.Errorf("api key store: %w", err)
	}
	approvals, err := approval.NewMongoStore(connectCtx, mongoClient, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("approval store: %w", err)
	}

	provider, err := paymentProvider(cfg)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engine, err := newEngine(cfg, provider, approvals, reg)
	if err != nil {
		return err
	}

	lm := rate.NewLimiterMap(cfg.RateLimitRPM, cfg.RateLimitRPM, 5*time.Minute)
	defer lm.Stop()

	router := apihttp.NewRouter(apihttp.Deps{
		Vaults: handlers.NewVaultHandler(handlers.VaultDeps{
			Cache:          cache.New[handlers.Snapshot](cfg.CacheTTL),
			Fetcher:        vault.NewClient(provider, programID, logger),
			Timeout:        cfg.FetchTimeout,
			MaxConcurrency: cfg.MaxConcurrency,
			Logger:         logger,
		}),
		Payments:   handlers.NewPaymentHandler(engine, logger),
		Admin:      handlers.NewAdminHandler(keys),
		Approvals:  handlers.NewApprovalHandler(approvals),
		Limiter:    lm,
		Keys:       keys,
		AdminToken: cfg.AdminToken,
		Checks: map[string]apihttp.Check{
			"mongo":     keys.Ping,
			"approvals": approvals.Ping,
			"rpc":       provider.Health,
		},
		Gatherer: reg,
		Logger:   logger,
	})
	if cfg.AdminToken == "" {
		logger.Warn("admin_disabled", "reason", "ADMIN_TOKEN is empty")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ConfirmTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "mode", string(engine.Mode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting_down")
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	return srv.Shutdown(shCtx)
}
