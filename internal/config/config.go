package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// GameConfig carries the wagering rules. Defaults match the deployed game:
// stakes between 15 and 100 stars, 100 starting stars, 100 more claimable
// every 3 hours.
type GameConfig struct {
	MinStake        int64         `env:"GAME_MIN_STAKE" envDefault:"15"`
	MaxStake        int64         `env:"GAME_MAX_STAKE" envDefault:"100"`
	StartingBalance int64         `env:"GAME_STARTING_BALANCE" envDefault:"100"`
	ClaimInterval   time.Duration `env:"GAME_CLAIM_INTERVAL" envDefault:"3h"`
	ClaimAmount     int64         `env:"GAME_CLAIM_AMOUNT" envDefault:"100"`
	// TicketTTL is how long a waiting ticket may sit in the pool before it
	// is auto-cancelled. Zero disables expiry.
	TicketTTL time.Duration `env:"GAME_TICKET_TTL" envDefault:"2m"`
}
