// Package ledger owns every stars-balance mutation. All operations on a
// single principal linearize through Postgres row locking, and multi-row
// settlement effects commit in one transaction.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/starsduel/backend/internal/infra/pgutils"
	"github.com/starsduel/backend/internal/repos/principals"
	pgprincipals "github.com/starsduel/backend/internal/repos/principals/postgres"
)

const (
	// bounded retry for transient store faults
	retryAttempts = 3
	retryBackoff  = 100 * time.Millisecond
)

type Ledger struct {
	db         *sql.DB
	principals principals.Principals
}

func New(db *sql.DB) *Ledger {
	return &Ledger{
		db:         db,
		principals: pgprincipals.New(db),
	}
}

func (l *Ledger) GetBalance(ctx context.Context, id int64) (int64, error) {
	var balance int64

	err := pgutils.Retry(ctx, retryAttempts, retryBackoff, func() error {
		var gerr error
		balance, gerr = l.principals.GetBalance(ctx, id)
		return gerr
	})
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (*principals.Principal, error) {
	p, err := l.principals.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}

	return p, nil
}

// Provision creates or refreshes the principal after identity verification.
func (l *Ledger) Provision(ctx context.Context, profile principals.Profile, startingBalance int64) (*principals.Principal, error) {
	var p *principals.Principal

	err := pgutils.Retry(ctx, retryAttempts, retryBackoff, func() error {
		var uerr error
		p, uerr = l.principals.Upsert(ctx, profile, startingBalance)
		return uerr
	})
	if err != nil {
		return nil, fmt.Errorf("provision principal: %w", err)
	}

	return p, nil
}

// TryDebit atomically moves amount out of the principal's balance, failing
// with principals.ErrInsufficientFunds when the balance does not cover it.
func (l *Ledger) TryDebit(ctx context.Context, id int64, amount int64) error {
	err := pgutils.Retry(ctx, retryAttempts, retryBackoff, func() error {
		return pgutils.WithTx(ctx, l.db, func(tx *sql.Tx) error {
			return l.principals.TryDebit(tx, id, amount)
		})
	})
	if err != nil {
		return fmt.Errorf("try debit: %w", err)
	}

	return nil
}

// Credit atomically adds amount to the principal's balance.
func (l *Ledger) Credit(ctx context.Context, id int64, amount int64) error {
	err := pgutils.Retry(ctx, retryAttempts, retryBackoff, func() error {
		return pgutils.WithTx(ctx, l.db, func(tx *sql.Tx) error {
			return l.principals.Credit(tx, id, amount)
		})
	})
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}

	return nil
}

// SettleWin pays out a resolved contest in a single transaction: the winner
// is credited the full pot, both principals' lifetime counters are updated,
// and record (typically the contest completion) commits alongside. Either
// every effect lands or none does.
func (l *Ledger) SettleWin(ctx context.Context, winner, loser, stake int64, record func(tx *sql.Tx) error) error {
	err := pgutils.Retry(ctx, retryAttempts, retryBackoff, func() error {
		return pgutils.WithTx(ctx, l.db, func(tx *sql.Tx) error {
			err := l.principals.Credit(tx, winner, stake*2)
			if err != nil {
				return fmt.Errorf("credit winner: %w", err)
			}

			err = l.principals.RecordOutcome(tx, winner, true, stake)
			if err != nil {
				return fmt.Errorf("record win: %w", err)
			}

			err = l.principals.RecordOutcome(tx, loser, false, stake)
			if err != nil {
				return fmt.Errorf("record loss: %w", err)
			}

			if record != nil {
				err = record(tx)
				if err != nil {
					return fmt.Errorf("record settlement: %w", err)
				}
			}

			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("settle win: %w", err)
	}

	return nil
}

// Claim applies the periodic stars grant.
func (l *Ledger) Claim(ctx context.Context, id int64, amount int64, interval time.Duration) (*principals.Principal, error) {
	p, err := l.principals.Claim(ctx, id, amount, interval)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}

	return p, nil
}

// Leaderboard returns the top principals by lifetime earnings.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]principals.Principal, error) {
	out, err := l.principals.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	return out, nil
}
