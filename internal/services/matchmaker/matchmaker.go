// Package matchmaker pairs wagering principals by stake amount.
//
// The waiting pool is a purely in-memory structure guarded by one mutex:
// enqueue, cancel and the match scan are each a single critical section, so
// two concurrent enqueues can never claim the same ticket and a cancel
// racing a match resolves by whoever takes the lock first. Nothing inside
// the lock touches I/O; the pre-insertion funds check happens before it.
package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starsduel/backend/internal/notify"
	"github.com/starsduel/backend/internal/repos/principals"
)

var (
	ErrInvalidStake      = errors.New("stake outside allowed bounds")
	ErrAlreadyQueued     = errors.New("principal already has an open ticket")
	ErrContestInProgress = errors.New("principal has an unresolved contest")
)

// BalanceReader is the slice of the account ledger the matchmaker needs to
// keep unfunded stakes out of the pool.
type BalanceReader interface {
	GetBalance(ctx context.Context, id int64) (int64, error)
}

type Notifier interface {
	Push(principalID int64, ev notify.Event)
}

// Ticket is one principal waiting to be paired at a given stake.
type Ticket struct {
	PrincipalID int64
	Stake       int64
	EnqueuedAt  time.Time
}

// Match is a formed pair. Player1 is the earlier-enqueued side.
type Match struct {
	Player1 int64
	Player2 int64
	Stake   int64
}

type Config struct {
	MinStake int64
	MaxStake int64
	// TicketTTL bounds how long a ticket waits before auto-cancel;
	// zero means tickets wait indefinitely.
	TicketTTL time.Duration
}

type Matchmaker struct {
	cfg      Config
	ledger   BalanceReader
	notifier Notifier

	mu       sync.Mutex
	buckets  map[int64][]*Ticket
	byPlayer map[int64]*Ticket
	// inFlight holds principals whose match left the pool but whose contest
	// has not been released yet; they may hold no second ticket meanwhile.
	inFlight map[int64]struct{}
}

func New(cfg Config, ledger BalanceReader, notifier Notifier) *Matchmaker {
	return &Matchmaker{
		cfg:      cfg,
		ledger:   ledger,
		notifier: notifier,
		buckets:  make(map[int64][]*Ticket),
		byPlayer: make(map[int64]*Ticket),
		inFlight: make(map[int64]struct{}),
	}
}

// Enqueue admits principalID to the pool at the given stake. It returns a
// Match when an opponent was already waiting, or nil when the caller became
// the waiter. Validation failures are terminal; the caller is never queued
// partially.
func (m *Matchmaker) Enqueue(ctx context.Context, principalID int64, stake int64) (*Match, error) {
	if stake <= 0 || stake < m.cfg.MinStake || stake > m.cfg.MaxStake {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidStake, stake, m.cfg.MinStake, m.cfg.MaxStake)
	}

	// Funds check before the pool is touched: an unfunded principal must
	// never occupy a waiting slot. This is the only suspension point.
	balance, err := m.ledger.GetBalance(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("funds check: %w", err)
	}

	if balance < stake {
		return nil, fmt.Errorf("funds check: %w", principals.ErrInsufficientFunds)
	}

	m.mu.Lock()

	if _, busy := m.inFlight[principalID]; busy {
		m.mu.Unlock()
		return nil, ErrContestInProgress
	}

	if _, queued := m.byPlayer[principalID]; queued {
		m.mu.Unlock()
		return nil, ErrAlreadyQueued
	}

	// FIFO scan of the stake bucket: the earliest compatible ticket wins.
	bucket := m.buckets[stake]
	for i, tk := range bucket {
		if tk.PrincipalID == principalID {
			continue
		}

		m.buckets[stake] = append(bucket[:i], bucket[i+1:]...)
		delete(m.byPlayer, tk.PrincipalID)

		// both sides stay reserved until the contest is released, so
		// neither can enter a second active contest meanwhile
		m.inFlight[tk.PrincipalID] = struct{}{}
		m.inFlight[principalID] = struct{}{}

		m.mu.Unlock()

		m.notifier.Push(tk.PrincipalID, notify.Event{
			Kind:     notify.KindMatchFound,
			Stake:    stake,
			Opponent: principalID,
		})

		return &Match{Player1: tk.PrincipalID, Player2: principalID, Stake: stake}, nil
	}

	m.byPlayer[principalID] = &Ticket{
		PrincipalID: principalID,
		Stake:       stake,
		EnqueuedAt:  time.Now(),
	}
	m.buckets[stake] = append(m.buckets[stake], m.byPlayer[principalID])

	m.mu.Unlock()

	return nil, nil
}

// Cancel removes the caller's own ticket if present. Cancelling twice, or
// after the ticket was matched away, is a no-op.
func (m *Matchmaker) Cancel(principalID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(principalID)
}

// Release frees matched principals for new wagers once their contest has
// reached a terminal state. Releasing an unreserved principal is a no-op.
func (m *Matchmaker) Release(principalIDs ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range principalIDs {
		delete(m.inFlight, id)
	}
}

// Waiting reports whether principalID currently holds a ticket.
func (m *Matchmaker) Waiting(principalID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.byPlayer[principalID]
	return ok
}

func (m *Matchmaker) removeLocked(principalID int64) bool {
	tk, ok := m.byPlayer[principalID]
	if !ok {
		return false
	}

	delete(m.byPlayer, principalID)

	bucket := m.buckets[tk.Stake]
	for i, bt := range bucket {
		if bt.PrincipalID == principalID {
			m.buckets[tk.Stake] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}

	if len(m.buckets[tk.Stake]) == 0 {
		delete(m.buckets, tk.Stake)
	}

	return true
}

// expireTickets removes every ticket older than the configured TTL and
// notifies its owner. Called by the sweeper job.
func (m *Matchmaker) expireTickets() int {
	if m.cfg.TicketTTL <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-m.cfg.TicketTTL)

	m.mu.Lock()

	var expired []*Ticket
	for _, tk := range m.byPlayer {
		if tk.EnqueuedAt.Before(cutoff) {
			expired = append(expired, tk)
		}
	}

	for _, tk := range expired {
		m.removeLocked(tk.PrincipalID)
	}

	m.mu.Unlock()

	for _, tk := range expired {
		m.notifier.Push(tk.PrincipalID, notify.Event{
			Kind:  notify.KindQueueTimeout,
			Stake: tk.Stake,
		})

		slog.Info("waiting ticket expired",
			"principal_id", tk.PrincipalID,
			"stake", tk.Stake,
			"waited", time.Since(tk.EnqueuedAt),
		)
	}

	return len(expired)
}
