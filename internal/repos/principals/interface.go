package principals

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient stars")
	ErrNotFound          = errors.New("principal not found")
	ErrClaimNotReady     = errors.New("claim interval has not elapsed")
)

// Principal is a durable account row. Stars never go negative; the balance
// is mutated only through the repo operations below.
type Principal struct {
	ID            int64
	Username      string
	FirstName     string
	PhotoURL      string
	Stars         int64
	TotalWins     int64
	TotalLosses   int64
	TotalEarnings int64
	IsPremium     bool
	LastActive    time.Time
	LastClaim     *time.Time
	CreatedAt     time.Time
}

// Profile is the subset of identity attributes refreshed on each login.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	PhotoURL  string
	IsPremium bool
}

type Principals interface {
	Get(ctx context.Context, id int64) (*Principal, error)
	GetBalance(ctx context.Context, id int64) (int64, error)
	// Upsert creates the principal on first sight with startingBalance and
	// refreshes profile fields plus last_active on every later call.
	Upsert(ctx context.Context, p Profile, startingBalance int64) (*Principal, error)

	LockAndGetBalance(tx *sql.Tx, id int64) (int64, error)
	// TryDebit decrements stars only when the balance covers amount,
	// otherwise it returns ErrInsufficientFunds without partial effect.
	TryDebit(tx *sql.Tx, id int64, amount int64) error
	Credit(tx *sql.Tx, id int64, amount int64) error
	// RecordOutcome bumps the win/loss counters; a win also adds amount to
	// lifetime earnings.
	RecordOutcome(tx *sql.Tx, id int64, won bool, amount int64) error

	// Claim applies the periodic stars grant when interval has elapsed since
	// the previous claim, returning ErrClaimNotReady otherwise.
	Claim(ctx context.Context, id int64, amount int64, interval time.Duration) (*Principal, error)
	// Leaderboard returns the top principals by lifetime earnings,
	// ties broken by earliest account creation.
	Leaderboard(ctx context.Context, limit int) ([]Principal, error)
}
