package contests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/starsduel/backend/internal/repos/contests"
)

var _ contests.Contests = (*contestsRepo)(nil)

type contestsRepo struct{ db *sql.DB }

func New(db *sql.DB) *contestsRepo {
	return &contestsRepo{db: db}
}

func (r *contestsRepo) Insert(ctx context.Context, c *contests.Contest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contests (id, player1, player2, stake, status)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Player1, c.Player2, c.Stake, c.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return contests.ErrDuplicateContest
			}
		}

		return fmt.Errorf("insert contest: %w", err)
	}

	return nil
}

func (r *contestsRepo) Get(ctx context.Context, id uuid.UUID) (*contests.Contest, error) {
	var c contests.Contest

	err := r.db.QueryRowContext(ctx, `
		SELECT id, player1, player2, stake, status, winner, outcome,
		       abort_reason, needs_reconciliation, created_at, completed_at
		FROM contests
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Player1, &c.Player2, &c.Stake, &c.Status, &c.Winner,
		&c.Outcome, &c.AbortReason, &c.NeedsReconciliation,
		&c.CreatedAt, &c.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contests.ErrNotFound
		}

		return nil, fmt.Errorf("get contest: %w", err)
	}

	return &c, nil
}

// MarkSettling succeeds only from matched status; the WHERE clause enforces
// the transition-once guarantee.
func (r *contestsRepo) MarkSettling(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, `
		UPDATE contests
		SET status = 'settling'
		WHERE id = $1
		  AND status = 'matched'
	`)
}

func (r *contestsRepo) Complete(tx *sql.Tx, id uuid.UUID, winner int64, outcome string) error {
	res, err := tx.Exec(`
		UPDATE contests
		SET status = 'completed',
		    winner = $2,
		    outcome = $3,
		    completed_at = now()
		WHERE id = $1
		  AND status = 'settling'
	`, id, winner, outcome)
	if err != nil {
		return fmt.Errorf("complete contest: %w", err)
	}

	return checkTransition(res)
}

func (r *contestsRepo) Abort(ctx context.Context, id uuid.UUID, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contests
		SET status = 'aborted',
		    abort_reason = $2,
		    completed_at = now()
		WHERE id = $1
		  AND status IN ('matched', 'settling')
	`, id, reason)
	if err != nil {
		return fmt.Errorf("abort contest: %w", err)
	}

	return checkTransition(res)
}

func (r *contestsRepo) FlagReconciliation(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contests
		SET needs_reconciliation = TRUE
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("flag reconciliation: %w", err)
	}

	return nil
}

func (r *contestsRepo) transition(ctx context.Context, id uuid.UUID, query string) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("transition contest: %w", err)
	}

	return checkTransition(res)
}

func checkTransition(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return contests.ErrInvalidTransition
	}

	return nil
}
