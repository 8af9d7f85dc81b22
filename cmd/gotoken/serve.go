package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/httpapi"
	"github.com/MrEthical07/goToken/keystore"
	promexport "github.com/MrEthical07/goToken/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	var devRedis bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), devRedis)
		},
	}
	cmd.Flags().BoolVar(&devRedis, "dev-redis", false, "run an embedded in-memory Redis for rate-limit counters")
	return cmd
}

func (a *app) serve(ctx context.Context, devRedis bool) error {
	cfg := a.cfg
	logger := a.logger

	keys, err := buildKeyStore(cfg.Keys, logger)
	if err != nil {
		return fmt.Errorf("building key store: %w", err)
	}

	users, closeUsers, err := buildUserProvider(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("building user store: %w", err)
	}
	defer closeUsers()

	builder := goToken.New().
		WithConfig(cfg.Engine()).
		WithKeyStore(keys).
		WithUserProvider(users).
		WithLogger(logger)

	redisAddr := cfg.Redis.Addr
	if devRedis && redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("starting embedded redis: %w", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		logger.Info("embedded redis started", zap.String("addr", redisAddr))
	}
	if redisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{redisAddr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder = builder.WithRedis(client)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		zap.String("kid", report.CurrentKeyID),
		zap.String("alg", report.CurrentKeyAlgorithm),
		zap.Duration("token_lifetime", report.TokenLifetime),
		zap.Bool("login_throttle", report.LoginThrottleActive),
		zap.Bool("audit", report.AuditActive),
	)

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promexport.NewPrometheusExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Engine:       engine,
			Metrics:      metricsHandler,
			Logger:       logger,
			DefaultRoles: cfg.Users.DefaultRoles,
		}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Keys.RotationInterval > 0 {
		rotator, err := keystore.NewRotator(keys, keystore.RotatorConfig{
			Interval:    cfg.Keys.RotationInterval,
			Overlap:     cfg.Keys.RotationOverlap,
			KeyIDPrefix: cfg.Keys.ID + "-",
		}, logger.Named("rotator"))
		if err != nil {
			return err
		}
		g.Go(func() error {
			rotator.Start(gctx)
			<-gctx.Done()
			return rotator.Close()
		})
	}

	return g.Wait()
}
