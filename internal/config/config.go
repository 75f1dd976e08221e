// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every flag name to form its environment variable.
const EnvPrefix = "BLINDTEST"

// Config holds the settings of both the server and the historian.
type Config struct {
	Bind           string
	Port           int
	PublicURL      string
	AllowedOrigins []string
	LogLevel       string

	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	EventQueue  string

	CatalogURL      string
	CatalogCacheTTL time.Duration
	MaxSongs        int

	ShutdownTimeout time.Duration

	HistorianBatchSize  int
	HistorianFlushDelay time.Duration
}

func (c *Config) validateStorage() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis db: %d", c.RedisDB)
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.MaxSongs < 1 {
		return fmt.Errorf("max-songs must be positive: %d", c.MaxSongs)
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public url %q", c.PublicURL)
		}
	}
	return nil
}

// ValidateHistorian rejects settings the historian cannot run with. Unlike the
// server it needs both Redis and Postgres.
func (c *Config) ValidateHistorian() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.DatabaseURL == "" || c.RedisAddr == "" {
		return errors.New("historian needs both --database-url and --redis-addr")
	}
	if c.HistorianBatchSize < 1 {
		return fmt.Errorf("batch-size must be positive: %d", c.HistorianBatchSize)
	}
	if c.HistorianFlushDelay <= 0 {
		return fmt.Errorf("flush-delay must be positive: %s", c.HistorianFlushDelay)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Level is the parsed log level. Call after Validate.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// ShareURL is the link a second player opens to join code.
func (c *Config) ShareURL(code string) string {
	return strings.TrimRight(c.PublicURL, "/") + "/join/" + code
}

// RegisterStorage defines the flags shared by the server and the historian.
func RegisterStorage(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: trace, debug, info, warn, error (env: BLINDTEST_LOG_LEVEL)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres connection url, empty disables persistence (env: BLINDTEST_DATABASE_URL)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address, empty disables the event log and catalog cache (env: BLINDTEST_REDIS_ADDR)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database index (env: BLINDTEST_REDIS_DB)")
	fs.StringVar(&cfg.EventQueue, "event-queue", "blindtest_room_events", "redis list for room events (env: BLINDTEST_EVENT_QUEUE)")
}

// RegisterServer defines the server flags.
func RegisterServer(fs *pflag.FlagSet, cfg *Config) {
	RegisterStorage(fs, cfg)
	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: BLINDTEST_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: BLINDTEST_PORT)")
	fs.StringVar(&cfg.PublicURL, "public-url", "http://localhost:3000", "base url of the web client, used in share links (env: BLINDTEST_PUBLIC_URL)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"*"}, "websocket origin patterns (env: BLINDTEST_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.CatalogURL, "catalog-url", "https://api.deezer.com", "song catalog api base url (env: BLINDTEST_CATALOG_URL)")
	fs.DurationVar(&cfg.CatalogCacheTTL, "catalog-cache-ttl", 10*time.Minute, "how long fetched tracklists are cached (env: BLINDTEST_CATALOG_CACHE_TTL)")
	fs.IntVar(&cfg.MaxSongs, "max-songs", 50, "maximum songs accepted in startGame (env: BLINDTEST_MAX_SONGS)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for open requests on shutdown (env: BLINDTEST_SHUTDOWN_TIMEOUT)")
}

// RegisterHistorian defines the historian flags.
func RegisterHistorian(fs *pflag.FlagSet, cfg *Config) {
	RegisterStorage(fs, cfg)
	fs.IntVar(&cfg.HistorianBatchSize, "batch-size", 20, "records per database flush (env: BLINDTEST_BATCH_SIZE)")
	fs.DurationVar(&cfg.HistorianFlushDelay, "flush-delay", 500*time.Millisecond, "maximum time records wait before a flush (env: BLINDTEST_FLUSH_DELAY)")
}

// BindEnv lets BLINDTEST_* environment variables fill every flag not given on the
// command line.
func BindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
