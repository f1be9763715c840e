// Command server runs the QRIS donation backend: notification ingestion,
// the donation feed, the QRIS donor flow and the background matcher.
//
//	@title						QRIS Donation Backend API
//	@version					1.0
//	@description				Payment notification ingestion, dynamic QRIS generation and donation matching.
//	@BasePath					/
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-Api-Key
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/qris-donation-backend/docs"
	"github.com/tbourn/qris-donation-backend/internal/config"
	"github.com/tbourn/qris-donation-backend/internal/events"
	"github.com/tbourn/qris-donation-backend/internal/feed"
	httpapi "github.com/tbourn/qris-donation-backend/internal/http"
	"github.com/tbourn/qris-donation-backend/internal/matcher"
	"github.com/tbourn/qris-donation-backend/internal/observability"
	"github.com/tbourn/qris-donation-backend/internal/repo"
	"github.com/tbourn/qris-donation-backend/internal/services"
	"github.com/tbourn/qris-donation-backend/internal/state"
	"github.com/tbourn/qris-donation-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := sysutil.SetupLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName, cfg.ClientID)
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	docs.SwaggerInfo.Version = ver

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver, cfg.ClientID)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			logger.Warn().Err(err).Msg("gorm tracing disabled")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}

	store := state.New(db, cfg.ClientID)
	seedBasePayload(ctx, store, cfg.QRIS.BasePayload)

	hub := events.NewHub(32)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, store, hub, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("version", ver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down http server")
		return srv.Shutdown(sctx)
	})

	if cfg.Matcher.Enabled {
		runner, worker, err := newMatcher(cfg, store, hub)
		if err != nil {
			logger.Fatal().Err(err).Msg("matcher setup failed")
		}
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
		g.Go(func() error {
			if err := runner.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return
	}
	logger.Info().Msg("server stopped")
}

// newMatcher assembles the polling matcher over the configured feed. Matches
// are published to hub for live subscribers.
func newMatcher(cfg config.Config, store *state.Store, hub *events.Hub) (*matcher.Runner, *matcher.PersistWorker, error) {
	mode, err := matcher.ParseMode(cfg.Matcher.Mode)
	if err != nil {
		return nil, nil, err
	}
	mlog := log.Logger.With().Str("component", "matcher").Logger()

	client := feed.New(cfg.Matcher.FeedURL, cfg.APIKey, 10*time.Second)
	worker := matcher.NewPersistWorker(client, mlog, 32, 10*time.Second)

	runner := &matcher.Runner{
		Source:   client,
		Store:    store,
		Persist:  worker,
		Filter:   matcher.NewPhraseFilter(cfg.Matcher.Locale, cfg.Matcher.Phrases),
		Options:  matcher.Options{Mode: mode, Skew: cfg.Matcher.Skew},
		Interval: cfg.Matcher.Interval,
		Limit:    cfg.Matcher.Limit,
		Log:      mlog,
		OnMatch: func(m matcher.Match) {
			hub.Publish(events.New(events.TypeDonationMatched, m))
		},
	}
	return runner, worker, nil
}

// seedBasePayload stores payload when none is configured yet. A stored
// payload always wins over the environment.
func seedBasePayload(ctx context.Context, store *state.Store, payload string) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return
	}
	if _, err := store.BasePayload(ctx); !errors.Is(err, state.ErrNoBasePayload) {
		return
	}
	if err := services.ValidateBasePayload(payload); err != nil {
		log.Warn().Err(err).Msg("ignoring invalid QRIS_BASE_PAYLOAD")
		return
	}
	if err := store.SetBasePayload(ctx, payload); err != nil {
		log.Warn().Err(err).Msg("seed base payload failed")
		return
	}
	log.Info().Msg("base payload seeded from environment")
}
