package matchmaker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/starsduel/backend/internal/metrics"
)

const sweepInterval = 30 * time.Second

// StartSweeper runs the periodic TTL sweep and returns a stop func for the
// shutdown queue. With TTL disabled it is a no-op.
func (m *Matchmaker) StartSweeper() (func(context.Context) error, error) {
	if m.cfg.TicketTTL <= 0 {
		return func(context.Context) error { return nil }, nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			n := m.expireTickets()
			if n > 0 {
				metrics.TicketsExpiredTotal.Add(float64(n))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule sweep job: %w", err)
	}

	sched.Start()
	slog.Info("ticket sweeper started", "ttl", m.cfg.TicketTTL, "interval", sweepInterval)

	return func(context.Context) error {
		return sched.Shutdown()
	}, nil
}
