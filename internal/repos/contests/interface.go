package contests

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("contest not found")
	ErrDuplicateContest  = errors.New("duplicate contest")
	ErrInvalidTransition = errors.New("invalid contest status transition")
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusMatched   Status = "matched"
	StatusSettling  Status = "settling"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Abort reasons recorded when escrow fails.
const (
	AbortPlayer1InsufficientFunds = "player1_insufficient_funds"
	AbortPlayer2InsufficientFunds = "player2_insufficient_funds"
)

// Contest is one wager between two distinct principals. Rows transition
// matched -> settling -> completed (or -> aborted) exactly once and are
// immutable afterwards; the table doubles as the audit session log.
type Contest struct {
	ID                  uuid.UUID
	Player1             int64
	Player2             int64
	Stake               int64
	Status              Status
	Winner              *int64
	Outcome             string
	AbortReason         string
	NeedsReconciliation bool
	CreatedAt           time.Time
	CompletedAt         *time.Time
}

type Contests interface {
	// Insert appends a new contest in matched status.
	Insert(ctx context.Context, c *Contest) error
	Get(ctx context.Context, id uuid.UUID) (*Contest, error)
	// MarkSettling guards the matched -> settling transition.
	MarkSettling(ctx context.Context, id uuid.UUID) error
	// Complete finalizes a settling contest with winner and outcome. It is
	// tx-scoped so the settlement record commits atomically with the
	// winner's credit.
	Complete(tx *sql.Tx, id uuid.UUID, winner int64, outcome string) error
	// Abort finalizes a matched/settling contest without a winner.
	Abort(ctx context.Context, id uuid.UUID, reason string) error
	// FlagReconciliation marks a contest whose escrowed stake could not be
	// settled or reversed automatically.
	FlagReconciliation(ctx context.Context, id uuid.UUID) error
}
