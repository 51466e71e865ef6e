package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corvusHold/notify/internal/config"
	"github.com/corvusHold/notify/internal/directory"
	"github.com/corvusHold/notify/internal/feed"
	imw "github.com/corvusHold/notify/internal/identity/middleware"
	isvc "github.com/corvusHold/notify/internal/identity/service"
	"github.com/corvusHold/notify/internal/logger"
	"github.com/corvusHold/notify/internal/metrics"
	"github.com/corvusHold/notify/internal/notify"
	nsvc "github.com/corvusHold/notify/internal/notify/service"
	"github.com/corvusHold/notify/internal/platform/validation"
	"github.com/corvusHold/notify/internal/settings"
	"github.com/corvusHold/notify/internal/version"
)

func main() {
	if handleCLICommand(os.Args[1:]) {
		return
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewFor("api", cfg.AppEnv)
	log.Info().Str("addr", cfg.AppAddr).Str("version", version.String()).Str("config", cfg.String()).Msg("starting api server")

	b, err := openBackends(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to open backends")
	}
	defer b.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middlewares
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return matchCORSOrigin(origin, cfg.CORSAllowedOrigins), nil
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	if cfg.MetricsEnabled {
		e.Use(metrics.HTTPMiddleware(func(c echo.Context) string {
			if id, ok := imw.Identity(c); ok {
				return id.Tenant.ClientID
			}
			return ""
		}))
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	// Validator
	e.Validator = validation.New()

	jwt := imw.NewJWT(cfg)

	// Register domain routes via factories
	sets := settings.Register(e, b.settings, jwt, b.rlStore, log)
	dir := directory.Register(e, b.directory, jwt)

	dispatcher := nsvc.New(b.store, dir, b.guard, isvc.NewContextProvider(cfg.IdentityTimeout), cfg)
	dispatcher.SetLogger(log)
	dispatcher.SetReporter(b.reporter)
	if b.handoff != nil {
		dispatcher.SetHandoff(b.handoff)
	}
	notify.Register(e, dispatcher, jwt, b.rlStore, sets)
	feed.Register(e, b.feed, cfg.FeedLimit, jwt, sets, b.reporter, log)

	// Health endpoint pings DB and Redis
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 500*time.Millisecond)
		defer cancel()

		dbStatus := "memory"
		if b.pool != nil {
			dbStatus = metrics.CheckDependency(ctx, "postgres", b.pool.Ping)
		}
		cacheStatus := metrics.CheckDependency(ctx, "redis", func(ctx context.Context) error {
			return b.redis.Ping(ctx).Err()
		})

		return c.JSON(http.StatusOK, map[string]any{
			"status":        "ok",
			"time":          time.Now().UTC().Format(time.RFC3339),
			"version":       version.String(),
			"db":            dbStatus,
			"cache":         cacheStatus,
			"dispatch_mode": cfg.DispatchMode,
		})
	})

	// Start server
	go func() {
		if err := e.Start(cfg.AppAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// Open streams end through the feed controller's shutdown hook.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDrain()
	if err := dispatcher.Drain(drainCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight emissions not drained")
	}
	log.Info().Msg("server stopped")
}
