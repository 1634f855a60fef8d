package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/fahctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fahctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplateMatchesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, Template))
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("template drifted from defaults:\n got=%+v\nwant=%+v", cfg, Default())
	}
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, `
address = "10.0.0.5:36330"
timeout = "750ms"

[backoff]
jitter = false

[exporter]
poll_interval = "1m"
cors_origins = [" http://a ", ""]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "10.0.0.5:36330" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if cfg.Timeout != 750*time.Millisecond {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout)
	}
	if cfg.ConnectAttempts != 3 || cfg.LogLevel != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Backoff.Jitter || cfg.Backoff.InitialDelay != 250*time.Millisecond {
		t.Fatalf("unexpected backoff: %+v", cfg.Backoff)
	}
	if cfg.Exporter.PollInterval != time.Minute || cfg.Exporter.Listen != "127.0.0.1:9360" {
		t.Fatalf("unexpected exporter: %+v", cfg.Exporter)
	}
	if len(cfg.Exporter.CORSOrigins) != 1 || cfg.Exporter.CORSOrigins[0] != "http://a" {
		t.Fatalf("unexpected origins: %+v", cfg.Exporter.CORSOrigins)
	}

	sess := cfg.Session()
	if sess.Address != cfg.Address || sess.Timeout != cfg.Timeout || sess.Backoff != cfg.Backoff {
		t.Fatalf("session config mismatch: %+v", sess)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad duration":  `timeout = "soon"`,
		"unknown key":   `adress = "x"`,
		"bad attempts":  `connect_attempts = 0`,
		"bad level":     `log_level = "loud"`,
		"bad poll":      "[exporter]\npoll_interval = \"0s\"",
		"empty address": `address = " "`,
		"not toml":      `address = `,
		"bad origin":    "[exporter]\ncors_origins = [\"localhost:3000\"]",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error from Load")
	}
}

func TestWriteTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "fahctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := WriteTemplate(path, false)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected exists error, got %v", err)
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	testlog.Start(t)
	want := Default()
	want.Address = "192.168.1.20:36330"
	want.Timeout = 1500 * time.Millisecond
	want.MaxMessageBytes = 1 << 20
	want.Exporter.CORSOrigins = []string{"http://a", "http://b"}

	var buf strings.Builder
	if err := Encode(&buf, want); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Load(writeConfig(t, buf.String()))
	if err != nil {
		t.Fatalf("load encoded config: %v\n%s", err, buf.String())
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, want)
	}
}
