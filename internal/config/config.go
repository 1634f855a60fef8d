package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/fahctl/internal/logging"
	"github.com/danmuck/fahctl/internal/protocol/session"
)

// DefaultPath is where fahctl looks for its config when --config is unset.
const DefaultPath = "fahctl.toml"

// Config is the resolved fahctl configuration.
type Config struct {
	Address         string
	Timeout         time.Duration
	ConnectAttempts int
	LogLevel        string
	MaxMessageBytes int
	Backoff         session.BackoffConfig
	Exporter        ExporterConfig
}

type ExporterConfig struct {
	Listen       string
	PollInterval time.Duration
	CORSOrigins  []string
}

type fileConfig struct {
	Address         string       `toml:"address"`
	Timeout         string       `toml:"timeout"`
	ConnectAttempts int          `toml:"connect_attempts"`
	LogLevel        string       `toml:"log_level"`
	MaxMessageBytes int          `toml:"max_message_bytes"`
	Backoff         fileBackoff  `toml:"backoff"`
	Exporter        fileExporter `toml:"exporter"`
}

type fileBackoff struct {
	Initial    string  `toml:"initial"`
	Multiplier float64 `toml:"multiplier"`
	Max        string  `toml:"max"`
	Jitter     bool    `toml:"jitter"`
}

type fileExporter struct {
	Listen       string   `toml:"listen"`
	PollInterval string   `toml:"poll_interval"`
	CORSOrigins  []string `toml:"cors_origins"`
}

func Default() Config {
	sess := session.DefaultConfig()
	return Config{
		Address:         sess.Address,
		Timeout:         sess.Timeout,
		ConnectAttempts: 3,
		LogLevel:        "info",
		Backoff:         sess.Backoff,
		Exporter: ExporterConfig{
			Listen:       "127.0.0.1:9360",
			PollInterval: 15 * time.Second,
			CORSOrigins:  []string{"http://localhost:3000"},
		},
	}
}

// Load overlays the keys defined in the TOML file at path onto Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("timeout") {
		if cfg.Timeout, err = parseDuration("timeout", raw.Timeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("connect_attempts") {
		cfg.ConnectAttempts = raw.ConnectAttempts
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("max_message_bytes") {
		cfg.MaxMessageBytes = raw.MaxMessageBytes
	}

	if meta.IsDefined("backoff", "initial") {
		if cfg.Backoff.InitialDelay, err = parseDuration("backoff.initial", raw.Backoff.Initial); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("backoff", "multiplier") {
		cfg.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "max") {
		if cfg.Backoff.MaxDelay, err = parseDuration("backoff.max", raw.Backoff.Max); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("backoff", "jitter") {
		cfg.Backoff.Jitter = raw.Backoff.Jitter
	}

	if meta.IsDefined("exporter", "listen") {
		cfg.Exporter.Listen = strings.TrimSpace(raw.Exporter.Listen)
	}
	if meta.IsDefined("exporter", "poll_interval") {
		if cfg.Exporter.PollInterval, err = parseDuration("exporter.poll_interval", raw.Exporter.PollInterval); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("exporter", "cors_origins") {
		cfg.Exporter.CORSOrigins = normalizeOrigins(raw.Exporter.CORSOrigins)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields Default.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if cfg.ConnectAttempts < 1 {
		return fmt.Errorf("connect_attempts must be at least 1")
	}
	if cfg.MaxMessageBytes < 0 {
		return fmt.Errorf("max_message_bytes must not be negative")
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if cfg.Backoff.InitialDelay < 0 || cfg.Backoff.MaxDelay < 0 {
		return fmt.Errorf("backoff delays must not be negative")
	}
	if strings.TrimSpace(cfg.Exporter.Listen) == "" {
		return fmt.Errorf("exporter.listen is required")
	}
	if cfg.Exporter.PollInterval <= 0 {
		return fmt.Errorf("exporter.poll_interval must be positive")
	}
	for _, origin := range cfg.Exporter.CORSOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("exporter.cors_origins: %q needs an http:// or https:// scheme", origin)
		}
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
