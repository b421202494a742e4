package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/iliyamo/meeting-stake-calendar/internal/calendar"
	"github.com/iliyamo/meeting-stake-calendar/internal/config"
	"github.com/iliyamo/meeting-stake-calendar/internal/currency"
	"github.com/iliyamo/meeting-stake-calendar/internal/database"
	"github.com/iliyamo/meeting-stake-calendar/internal/handler"
	"github.com/iliyamo/meeting-stake-calendar/internal/middleware"
	"github.com/iliyamo/meeting-stake-calendar/internal/queue"
	"github.com/iliyamo/meeting-stake-calendar/internal/repository"
	"github.com/iliyamo/meeting-stake-calendar/internal/router"
	"github.com/iliyamo/meeting-stake-calendar/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().
		Timestamp().
		Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.DefaultContextLogger = &logger

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("schema migration failed")
	}
	cancel()

	// The calendar definition file describes this calendar instance.  A
	// missing file is written with defaults so a fresh checkout boots.
	calFile, err := config.LoadCalendarFile(cfg.CalendarFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.CalendarFile).Msg("calendar file unreadable")
	}

	var resolver calendar.DenomResolver
	if cfg.AssetRegistryURL != "" {
		resolver = currency.NewRegistryClient(cfg.AssetRegistryURL)
		logger.Info().Str("registry", cfg.AssetRegistryURL).Msg("using external asset registry")
	} else {
		resolver = currency.NewStaticResolver(calFile.Assets)
	}

	store := repository.NewCalendarStore(db, logger)
	if err := seedConfig(store, resolver, calFile, logger); err != nil {
		logger.Fatal().Err(err).Msg("calendar bootstrap failed")
	}

	authority := calendar.NewStaticAuthority(calFile.Authority)
	engine := calendar.NewEngine(store, authority, resolver)
	publisher := service.NewPublisher(logger)

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	meetingHandler := handler.NewMeetingHandler(engine, store, publisher, logger)
	authorityHandler := handler.NewAuthorityHandler(engine, store, publisher, logger)
	publicHandler := handler.NewPublicHandler(engine, logger)

	// Redis backs the response cache and the rate limiter.  Both degrade to
	// pass-through when Redis is unreachable.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn().Msg("redis unavailable; caching and rate limiting disabled")
	}
	var cacheMW, limiterMW echo.MiddlewareFunc
	if rdb != nil {
		cacheMW = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
		limiterMW = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echo.WrapMiddleware(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret, limiterMW)
	router.RegisterPublic(e, publicHandler, cacheMW)
	router.RegisterMember(e, meetingHandler, cfg.JWTSecret, limiterMW)
	router.RegisterAuthority(e, authorityHandler, cfg.JWTSecret)

	// Background workers: the ledger consumer executes payout instructions
	// from stake.resolved, the sweeper announces overdue settlements.
	go queue.StartLedgerConsumer(logger)
	sweeper := service.NewSweeper(store, publisher, logger)
	if err := sweeper.Start(cfg.SweepCron); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.SweepCron).Msg("sweep schedule invalid")
	}

	addr := ":" + cfg.Port
	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		errChan <- e.Start(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	sweeper.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}

// seedConfig stores the calendar definition as the configuration singleton
// on first boot.  The currency symbol is resolved to a concrete denom here;
// once a configuration exists the file is no longer consulted, and further
// changes go through the authority config endpoint.
func seedConfig(store *repository.CalendarStore, resolver calendar.DenomResolver, calFile *config.CalendarFile, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := store.LoadConfig(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, calendar.ErrConfigNotFound) {
		return err
	}

	denom, err := resolver.Resolve(ctx, calFile.CurrencySymbol)
	if err != nil {
		return err
	}
	sh, sm, ss, err := config.ParseClock(calFile.DayStart)
	if err != nil {
		return err
	}
	eh, em, es, err := config.ParseClock(calFile.DayEnd)
	if err != nil {
		return err
	}

	cfg := calendar.Config{
		PricePerMinute: calFile.PricePerMinute,
		UTCOffset:      calFile.UTCOffsetSeconds,
		DayStart:       calendar.NewTimeOfDay(sh, sm, ss),
		DayEnd:         calendar.NewTimeOfDay(eh, em, es),
		Denom:          denom,
	}
	if err := store.SaveConfig(ctx, cfg); err != nil {
		return err
	}
	logger.Info().
		Str("symbol", calFile.CurrencySymbol).
		Str("denom", denom).
		Uint64("price_per_minute", cfg.PricePerMinute).
		Msg("calendar configuration seeded")
	return nil
}
