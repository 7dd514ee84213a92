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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fescue/config"
	"github.com/Ramsey-B/fescue/pkg/database"
	"github.com/Ramsey-B/fescue/pkg/kafka"
	"github.com/Ramsey-B/fescue/pkg/middleware"
	"github.com/Ramsey-B/fescue/pkg/redis"
	"github.com/Ramsey-B/fescue/pkg/routes/health"
	"github.com/Ramsey-B/fescue/pkg/routes/profilematch"
	"github.com/Ramsey-B/fescue/pkg/routes/vip"
	"github.com/Ramsey-B/fescue/pkg/startup"
	"github.com/Ramsey-B/fescue/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.logger

	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, tracing.OTLPConfig{
			Endpoint: cfg.TracingEndpoint,
			Protocol: cfg.TracingProtocol,
			Insecure: cfg.TracingInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				log.WithError(err).Warn("Failed to flush traces")
			}
		}()
	}

	var (
		db          database.DB
		redisClient *redis.Client
		producer    *kafka.Producer
	)

	deps := startup.NewStartup(log, cfg.StartupMaxAttempts)
	deps.AddDependency(&startup.Func{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			conn, err := database.Connect(ctx, databaseConfig(cfg), log)
			if err != nil {
				return err
			}
			db = conn
			if cfg.DatabaseMigrateOnStart {
				return a.migrate(db)
			}
			return nil
		},
		StopFunc: func(context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})
	if cfg.StatusCacheBackend == config.StatusCacheRedis {
		deps.AddDependency(&startup.Func{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redisConfig(cfg), log)
				if err != nil {
					return err
				}
				redisClient = client
				return nil
			},
			StopFunc: func(context.Context) error {
				if redisClient == nil {
					return nil
				}
				return redisClient.Close()
			},
		})
	}
	if cfg.KafkaEnabled {
		deps.AddDependency(&startup.Func{
			Name: "kafka",
			StartFunc: func(context.Context) error {
				producer = kafka.NewProducer(producerConfig(cfg), log)
				return nil
			},
			StopFunc: func(context.Context) error {
				if producer == nil {
					return nil
				}
				return producer.Close()
			},
		})
	}

	if err := deps.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := deps.Stop(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to stop dependencies")
		}
	}()

	c, err := wire(ctx, cfg, log, db, redisClient, producer)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(log)
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(log))

	var redisPinger health.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	checker := health.NewChecker(health.PingFunc(db.PingContext), redisPinger, cfg.Version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	var authn []echo.MiddlewareFunc
	if cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return fmt.Errorf("failed to create token verifier: %w", err)
		}
		authn = append(authn, middleware.Authentication(log, verifier))
	}

	vip.NewHandler(c.matcher, log).Register(api.Group("/vip", append(authn, middleware.RequireSubject())...))
	profilematch.NewHandler(c.matcher).Register(api.Group("/profiles", authn...))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	checker.SetReady(true)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to shut down HTTP server cleanly")
	}
	c.matcher.Wait()

	return nil
}
