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

	ginapi "github.com/pilab-dev/pagepost/api/gin"
	"github.com/pilab-dev/pagepost/cache"
	cacheredis "github.com/pilab-dev/pagepost/cache/redis"
	"github.com/pilab-dev/pagepost/config"
	"github.com/pilab-dev/pagepost/internal/audit"
	"github.com/pilab-dev/pagepost/internal/linkedin"
	"github.com/pilab-dev/pagepost/internal/metrics"
	"github.com/pilab-dev/pagepost/internal/server"
	"github.com/pilab-dev/pagepost/log"
	"github.com/pilab-dev/pagepost/services"
	"github.com/pilab-dev/pagepost/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := log.ParseLevel(cfg.LogLevel)
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)
	if parseErr != nil {
		appLogger.Warn(context.Background(), "Invalid LOG_LEVEL configured, defaulting to 'info'", log.Fields{
			"configured_log_level": cfg.LogLevel,
		})
	}

	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal(ctx, "Invalid configuration", err)
	}

	appLogger.Info(ctx, "Configuration loaded successfully", log.Fields{
		"http_port":      cfg.HTTPPort,
		"redirect_uri":   cfg.RedirectURI,
		"scopes":         cfg.Scopes,
		"state_store":    cfg.StateStore,
		"validate_state": cfg.ValidateState,
		"auto_post":      cfg.CallbackAutoPost,
		"log_level":      cfg.LogLevel,
		"tracing":        cfg.TracingEnabled,
	})

	var tracerProvider *sdktrace.TracerProvider
	if cfg.TracingEnabled {
		tracerProvider, err = tracing.InitTracerProvider(cfg.OtelServiceName, nil)
		if err != nil {
			appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		appLogger.Fatal(ctx, "Failed to register metrics", err)
	}

	states, err := newStateStore(ctx, cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize state store", err)
	}

	client := linkedin.NewClient(cfg.Credentials(),
		linkedin.WithDefaultTimeout(cfg.HTTPTimeout),
		linkedin.WithUploadTimeout(cfg.UploadTimeout),
		linkedin.WithLogger(appLogger),
	)

	flow := services.NewPublishService(client, states, services.PublishConfig{
		RedirectURI:   cfg.RedirectURI,
		ValidateState: cfg.ValidateState,
		StateTTL:      cfg.StateTTL,
		AutoPost:      cfg.CallbackAutoPost,
		AutoPostText:  cfg.CallbackAutoPostText,
	}, appLogger, audit.New(os.Stdout))

	api := ginapi.NewLinkedInAPI(flow, cfg.UploadDir, cfg.UploadMaxBytes, appLogger)
	httpServer := server.NewHTTPServer(cfg, appLogger, api, reg)

	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}

	if err := states.Close(); err != nil {
		appLogger.Error(shutdownCtx, "State store close error", err)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err)
		}
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

func newStateStore(ctx context.Context, cfg *config.ServerConfig) (cache.StateStore, error) {
	switch cfg.StateStore {
	case config.StateStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return cacheredis.NewStateStore(rdb, "pagepost", cfg.StateTTL), nil
	default:
		return cache.NewMemoryStateStore(cfg.StateTTL), nil
	}
}
