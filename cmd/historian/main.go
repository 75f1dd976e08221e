// cmd/historian/main.go drains the Redis room event queue into Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/blindtest/internal/cache"
	"github.com/jason-s-yu/blindtest/internal/config"
	"github.com/jason-s-yu/blindtest/internal/database"
	"github.com/jason-s-yu/blindtest/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:   "blindtest-historian",
		Short: "Persists blindtest room events from Redis into Postgres.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateHistorian(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	config.RegisterHistorian(cmd.Flags(), cfg)
	config.BindEnv(cmd.Flags())
	cobra.CheckErr(cmd.Execute())
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logrus.New()
	logger.SetLevel(cfg.Level())

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := historian.New(cache.NewEventLog(rdb, cfg.EventQueue), database.NewRoomEventStore(pool), logger)
	svc.BatchSize = cfg.HistorianBatchSize
	svc.FlushDelay = cfg.HistorianFlushDelay
	return svc.Run(ctx)
}
