package main

import (
	"log/slog"
	"time"

	"github.com/starsduel/backend/internal/config"
)

type apiConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	AppEnv          string        `env:"APP_ENV" envDefault:"DEV"`
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	BotToken        string        `env:"TELEGRAM_BOT_TOKEN"`

	Postgres config.PostgresConfig
	Game     config.GameConfig
}
