package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/rescp17/sneakvlc/pkg/transfer"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	// EnvPrefix prefixes every environment override, e.g. SNEAKVLC_LISTEN.
	EnvPrefix = "SNEAKVLC_"

	DefaultListen = "0.0.0.0:8080"
	DefaultServer = "http://localhost:8080"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the whole configuration surface. Durations are whole seconds.
type Config struct {
	Listen   string `yaml:"listen"`
	Server   string `yaml:"server"`
	LogLevel string `yaml:"log_level"`

	MaxTableSize    int  `yaml:"max_table_size"`
	CleanupInterval int  `yaml:"cleanup_interval"`
	TTLFactor       int  `yaml:"ttl_factor"`
	Rotate          bool `yaml:"rotate"`

	ConnectTimeout    int     `yaml:"connect_timeout"`
	ReconnectDelay    int     `yaml:"reconnect_delay"`
	ReconnectBackoff  float64 `yaml:"reconnect_backoff"`
	ReconnectMaxDelay int     `yaml:"reconnect_max_delay"`

	RedisURL string `yaml:"redis_url"`
	MDNS     bool   `yaml:"mdns"`
}

func Default() Config {
	return Config{
		Listen:            DefaultListen,
		Server:            DefaultServer,
		LogLevel:          LogLevelInfo,
		MaxTableSize:      rendezvous.DefaultTableSize,
		CleanupInterval:   int(rendezvous.DefaultCleanupInterval / time.Second),
		TTLFactor:         rendezvous.DefaultTTLFactor,
		ConnectTimeout:    int(transfer.DefaultConnectTimeout / time.Second),
		ReconnectDelay:    5,
		ReconnectBackoff:  1.0,
		ReconnectMaxDelay: 60,
		MDNS:              true,
	}
}

// Load builds a configuration from defaults, the optional YAML file at path,
// then the optional dotenv file and SNEAKVLC_* environment variables. Real
// environment variables win over the dotenv file. Flags are applied by the
// caller afterwards.
func Load(fs afero.Fs, path, dotenvPath string) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := afero.ReadFile(fs, path)
		if err != nil {
			return Config{}, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return Config{}, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	env, err := readDotenv(fs, dotenvPath)
	if err != nil {
		return Config{}, err
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	if err := cfg.applyEnv(env); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func readDotenv(fs afero.Fs, path string) (map[string]string, error) {
	env := make(map[string]string)
	if path == "" {
		return env, nil
	}
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return env, nil
		}
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	for k, v := range parsed {
		if strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := env[EnvPrefix+key]; ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := env[EnvPrefix+key]; ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v, ok := env[EnvPrefix+key]; ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := env[EnvPrefix+key]; ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("LISTEN", &c.Listen)
	str("SERVER", &c.Server)
	str("LOG_LEVEL", &c.LogLevel)
	num("MAX_TABLE_SIZE", &c.MaxTableSize)
	num("CLEANUP_INTERVAL", &c.CleanupInterval)
	num("TTL_FACTOR", &c.TTLFactor)
	boolean("ROTATE", &c.Rotate)
	num("CONNECT_TIMEOUT", &c.ConnectTimeout)
	num("RECONNECT_DELAY", &c.ReconnectDelay)
	flt("RECONNECT_BACKOFF", &c.ReconnectBackoff)
	num("RECONNECT_MAX_DELAY", &c.ReconnectMaxDelay)
	str("REDIS_URL", &c.RedisURL)
	boolean("MDNS", &c.MDNS)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks every value against its allowed range.
func (c Config) Validate() error {
	var errs []error

	if err := c.TableConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("connect_timeout must be positive, got %d", c.ConnectTimeout))
	}
	if c.ReconnectDelay <= 0 {
		errs = append(errs, fmt.Errorf("reconnect_delay must be positive, got %d", c.ReconnectDelay))
	}
	if c.ReconnectBackoff < 1 {
		errs = append(errs, fmt.Errorf("reconnect_backoff must be at least 1, got %g", c.ReconnectBackoff))
	}
	if c.ReconnectMaxDelay < c.ReconnectDelay {
		errs = append(errs, fmt.Errorf("reconnect_max_delay (%d) must not be below reconnect_delay (%d)", c.ReconnectMaxDelay, c.ReconnectDelay))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// TableConfig returns the rendezvous table settings.
func (c Config) TableConfig() rendezvous.Config {
	return rendezvous.Config{
		MaxSize:         c.MaxTableSize,
		CleanupInterval: time.Duration(c.CleanupInterval) * time.Second,
		TTLFactor:       c.TTLFactor,
		Rotate:          c.Rotate,
	}
}

// TransferConfig returns the receiver session settings.
func (c Config) TransferConfig() transfer.Config {
	return transfer.Config{
		ConnectTimeout: time.Duration(c.ConnectTimeout) * time.Second,
	}
}

// ReconnectPolicy returns the feed client reconnect settings.
func (c Config) ReconnectPolicy() feed.ReconnectPolicy {
	return feed.ReconnectPolicy{
		InitialDelay:  time.Duration(c.ReconnectDelay) * time.Second,
		BackoffFactor: c.ReconnectBackoff,
		MaxDelay:      time.Duration(c.ReconnectMaxDelay) * time.Second,
	}
}

// ParseLevel maps a log_level value onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case LogLevelDebug:
		return slog.LevelDebug, nil
	case LogLevelInfo, "":
		return slog.LevelInfo, nil
	case LogLevelWarn:
		return slog.LevelWarn, nil
	case LogLevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
