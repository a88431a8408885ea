// Package settlement resolves a matched pair into a completed contest.
//
// The protocol is escrow-then-resolve-then-credit: both stakes are debited
// up front, the outcome is drawn, and the winner takes the whole pot in one
// transaction together with the contest record. Stars are conserved exactly:
// stake leaves each side, 2*stake lands on exactly one.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starsduel/backend/internal/metrics"
	"github.com/starsduel/backend/internal/notify"
	"github.com/starsduel/backend/internal/repos/contests"
	"github.com/starsduel/backend/internal/repos/principals"
)

// Ledger is the slice of the account ledger the engine settles through. The
// engine never mutates balances directly.
type Ledger interface {
	GetBalance(ctx context.Context, id int64) (int64, error)
	TryDebit(ctx context.Context, id int64, amount int64) error
	Credit(ctx context.Context, id int64, amount int64) error
	SettleWin(ctx context.Context, winner, loser, stake int64, record func(tx *sql.Tx) error) error
}

type Notifier interface {
	Push(principalID int64, ev notify.Event)
}

type Engine struct {
	ledger   Ledger
	contests contests.Contests
	notifier Notifier
}

func New(ledger Ledger, contestsRepo contests.Contests, notifier Notifier) *Engine {
	return &Engine{
		ledger:   ledger,
		contests: contestsRepo,
		notifier: notifier,
	}
}

// Resolve escrows both stakes, draws a winner and settles the pot.
// Insufficient funds at escrow time abort the contest (a normal outcome, not
// an error); only store faults surface as errors.
func (e *Engine) Resolve(ctx context.Context, player1, player2, stake int64) (*contests.Contest, error) {
	if player1 == player2 {
		return nil, fmt.Errorf("contest requires two distinct principals, got %d twice", player1)
	}

	contest := &contests.Contest{
		ID:      uuid.New(),
		Player1: player1,
		Player2: player2,
		Stake:   stake,
		Status:  contests.StatusMatched,
	}

	err := e.contests.Insert(ctx, contest)
	if err != nil {
		return nil, fmt.Errorf("insert contest: %w", err)
	}

	// Escrow player1's stake.
	err = e.ledger.TryDebit(ctx, player1, stake)
	if err != nil {
		if errors.Is(err, principals.ErrInsufficientFunds) {
			e.abort(ctx, contest, contests.AbortPlayer1InsufficientFunds)
			return contest, nil
		}

		e.abort(ctx, contest, "store_failure_before_escrow")

		return nil, fmt.Errorf("escrow player1: %w", err)
	}

	// Escrow player2's stake; on failure reverse player1's debit.
	err = e.ledger.TryDebit(ctx, player2, stake)
	if err != nil {
		e.reverse(ctx, contest, player1, stake)

		if errors.Is(err, principals.ErrInsufficientFunds) {
			e.abort(ctx, contest, contests.AbortPlayer2InsufficientFunds)
			return contest, nil
		}

		e.abort(ctx, contest, "store_failure_during_escrow")

		return nil, fmt.Errorf("escrow player2: %w", err)
	}

	err = e.contests.MarkSettling(ctx, contest.ID)
	if err != nil {
		// both escrows are held; give the stakes back before aborting
		e.reverse(ctx, contest, player1, stake)
		e.reverse(ctx, contest, player2, stake)
		e.abort(ctx, contest, "store_failure_before_draw")

		return nil, fmt.Errorf("mark settling: %w", err)
	}
	contest.Status = contests.StatusSettling

	// Uniform draw, unpredictable to either client: two independent rolls,
	// higher wins, ties redrawn.
	roll1, roll2, err := drawRolls()
	if err != nil {
		e.reverse(ctx, contest, player1, stake)
		e.reverse(ctx, contest, player2, stake)
		e.abort(ctx, contest, "draw_failure")

		return nil, fmt.Errorf("draw outcome: %w", err)
	}

	winner, loser := player1, player2
	if roll2 > roll1 {
		winner, loser = player2, player1
	}

	outcome := fmt.Sprintf("%d:%d", roll1, roll2)

	err = e.ledger.SettleWin(ctx, winner, loser, stake, func(tx *sql.Tx) error {
		return e.contests.Complete(tx, contest.ID, winner, outcome)
	})
	if err != nil {
		// The pot is escrowed but could not be paid out; this is the one
		// state that must never be dropped silently.
		e.flagForReconciliation(ctx, contest, err)

		return nil, fmt.Errorf("settle win: %w", err)
	}

	contest.Status = contests.StatusCompleted
	contest.Winner = &winner
	contest.Outcome = outcome

	metrics.ContestsTotal.WithLabelValues(string(contests.StatusCompleted)).Inc()
	metrics.StarsWageredTotal.Add(float64(stake * 2))

	e.notifySettled(ctx, contest, winner, loser)

	slog.Info("contest settled",
		"contest_id", contest.ID,
		"player1", player1,
		"player2", player2,
		"stake", stake,
		"winner", winner,
		"outcome", outcome,
	)

	return contest, nil
}

// abort finalizes the contest without a winner and notifies both sides.
// The unaffected participant is not re-queued: both tickets already left
// the pool, and the abort push tells the client to enqueue again.
func (e *Engine) abort(ctx context.Context, contest *contests.Contest, reason string) {
	err := e.contests.Abort(ctx, contest.ID, reason)
	if err != nil {
		slog.Error("failed to record contest abort",
			"contest_id", contest.ID,
			"reason", reason,
			"error", err,
		)

		e.flagForReconciliation(ctx, contest, err)
	}

	contest.Status = contests.StatusAborted
	contest.AbortReason = reason

	metrics.ContestsTotal.WithLabelValues(string(contests.StatusAborted)).Inc()

	ev := notify.Event{
		Kind:      notify.KindAborted,
		ContestID: contest.ID.String(),
		Status:    string(contests.StatusAborted),
		Stake:     contest.Stake,
		Reason:    reason,
	}
	e.notifier.Push(contest.Player1, ev)
	e.notifier.Push(contest.Player2, ev)
}

// reverse returns an escrowed stake to its owner. A failed reversal is the
// single case where infrastructure failure could break conservation, so it
// is flagged for manual reconciliation instead of being dropped.
func (e *Engine) reverse(ctx context.Context, contest *contests.Contest, id int64, stake int64) {
	err := e.ledger.Credit(ctx, id, stake)
	if err != nil {
		slog.Error("escrow reversal failed, manual reconciliation required",
			"contest_id", contest.ID,
			"principal_id", id,
			"stake", stake,
			"error", err,
		)

		e.flagForReconciliation(ctx, contest, err)
	}
}

func (e *Engine) flagForReconciliation(ctx context.Context, contest *contests.Contest, cause error) {
	contest.NeedsReconciliation = true

	err := e.contests.FlagReconciliation(ctx, contest.ID)
	if err != nil {
		slog.Error("failed to flag contest for reconciliation",
			"contest_id", contest.ID,
			"cause", cause,
			"error", err,
		)
	}
}

func (e *Engine) notifySettled(ctx context.Context, contest *contests.Contest, winner, loser int64) {
	balances := map[string]int64{}

	for key, id := range map[string]int64{"player1": contest.Player1, "player2": contest.Player2} {
		bal, err := e.ledger.GetBalance(ctx, id)
		if err != nil {
			slog.Warn("could not read balance for settlement event",
				"principal_id", id,
				"error", err,
			)
			continue
		}
		balances[key] = bal
	}

	ev := notify.Event{
		Kind:      notify.KindSettled,
		ContestID: contest.ID.String(),
		Status:    string(contests.StatusCompleted),
		Stake:     contest.Stake,
		Winner:    winner,
		Outcome:   contest.Outcome,
		Balances:  balances,
	}

	e.notifier.Push(winner, ev)
	e.notifier.Push(loser, ev)
}
