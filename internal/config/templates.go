package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// WriteTemplate writes the annotated default config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}

// Encode writes cfg as TOML in the same layout Load reads.
func Encode(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(fileConfig{
		Address:         cfg.Address,
		Timeout:         cfg.Timeout.String(),
		ConnectAttempts: cfg.ConnectAttempts,
		LogLevel:        cfg.LogLevel,
		MaxMessageBytes: cfg.MaxMessageBytes,
		Backoff: fileBackoff{
			Initial:    cfg.Backoff.InitialDelay.String(),
			Multiplier: cfg.Backoff.Multiplier,
			Max:        cfg.Backoff.MaxDelay.String(),
			Jitter:     cfg.Backoff.Jitter,
		},
		Exporter: fileExporter{
			Listen:       cfg.Exporter.Listen,
			PollInterval: cfg.Exporter.PollInterval.String(),
			CORSOrigins:  cfg.Exporter.CORSOrigins,
		},
	})
}

// Template is a config file that spells out every default.
const Template = `# FAHClient command port
address = "127.0.0.1:36330"
# dial timeout and per read/write idle timeout
timeout = "5s"
connect_attempts = 3
log_level = "info"
# 0 means no limit
max_message_bytes = 0

[backoff]
initial = "250ms"
multiplier = 2.0
max = "5s"
jitter = true

[exporter]
listen = "127.0.0.1:9360"
poll_interval = "15s"
cors_origins = ["http://localhost:3000"]
`
