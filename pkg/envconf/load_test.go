package envconf

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

type nested struct {
	DSN      string        `env:"TEST_DSN"`
	IdleTime time.Duration `env:"TEST_IDLE" envDefault:"30s"`
}

type testConfig struct {
	Port     uint16     `env:"TEST_PORT" envDefault:"8080"`
	Name     string     `env:"TEST_NAME"`
	Debug    bool       `env:"TEST_DEBUG" envDefault:"false"`
	LogLevel slog.Level `env:"TEST_LOG_LEVEL" envDefault:"INFO"`
	Nested   nested
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_NAME", "api")
	t.Setenv("TEST_DSN", "postgres://localhost/test")
	t.Setenv("TEST_PORT", "9090")

	cfg := new(testConfig)

	err := Load(cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port: got %d, want 9090", cfg.Port)
	}
	if cfg.Name != "api" {
		t.Errorf("Name: got %q, want %q", cfg.Name, "api")
	}
	if cfg.Debug {
		t.Error("Debug: got true, want default false")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: got %v, want INFO", cfg.LogLevel)
	}
	if cfg.Nested.DSN != "postgres://localhost/test" {
		t.Errorf("Nested.DSN: got %q", cfg.Nested.DSN)
	}
	if cfg.Nested.IdleTime != 30*time.Second {
		t.Errorf("Nested.IdleTime: got %v, want 30s", cfg.Nested.IdleTime)
	}
}

func TestLoadDefaultApplied(t *testing.T) {
	t.Setenv("TEST_NAME", "api")
	t.Setenv("TEST_DSN", "x")

	cfg := new(testConfig)

	err := Load(cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port default: got %d, want 8080", cfg.Port)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("TEST_DSN", "x")
	// TEST_NAME not set and has no default

	err := Load(new(testConfig))
	if !errors.Is(err, ErrMissingRequired) {
		t.Fatalf("want ErrMissingRequired, got %v", err)
	}
}

func TestLoadTextUnmarshaler(t *testing.T) {
	t.Setenv("TEST_NAME", "api")
	t.Setenv("TEST_DSN", "x")
	t.Setenv("TEST_LOG_LEVEL", "DEBUG")

	cfg := new(testConfig)

	err := Load(cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: got %v, want DEBUG", cfg.LogLevel)
	}
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("TEST_NAME", "api")
	t.Setenv("TEST_DSN", "x")
	t.Setenv("TEST_PORT", "not-a-number")

	err := Load(new(testConfig))
	if err == nil {
		t.Fatal("want parse error, got nil")
	}
}
