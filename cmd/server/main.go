// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/blindtest/internal/cache"
	"github.com/jason-s-yu/blindtest/internal/catalog"
	"github.com/jason-s-yu/blindtest/internal/config"
	"github.com/jason-s-yu/blindtest/internal/database"
	"github.com/jason-s-yu/blindtest/internal/game"
	"github.com/jason-s-yu/blindtest/internal/handlers"
	"github.com/jason-s-yu/blindtest/internal/metrics"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "blindtest-server",
		Short:   "Two-player real-time music guessing server.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	config.RegisterServer(fs, cfg)
	config.BindEnv(fs)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logrus.New()
	logger.SetLevel(cfg.Level())

	m := metrics.New("blindtest")
	songs := catalog.NewClient(cfg.CatalogURL, logger)
	songs.CacheTTL = cfg.CatalogCacheTTL

	var opts []game.Option
	opts = append(opts, game.WithMetrics(m))

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		opts = append(opts, game.WithResultRecorder(database.NewGameResultStore(pool)))
		logger.Info("game results will be stored in postgres")
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, game.WithEventPublisher(cache.NewEventLog(rdb, cfg.EventQueue)))
		songs.Cache = cache.NewTrackCache(rdb)
		logger.Infof("room events will be pushed to redis list %s", cfg.EventQueue)
	}

	hub := handlers.NewHub(logger, m)
	coord := game.NewCoordinator(game.NewRoomStore(), hub, logger, opts...)

	gw := handlers.NewGateway(coord, hub, logger, m)
	gw.OriginPatterns = cfg.AllowedOrigins
	gw.MaxSongs = cfg.MaxSongs
	api := handlers.NewAPI(coord, songs, m, cfg.ShareURL, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(gw, api, logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		hub.CloseAll(handlers.ServerShutdownError, "server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
