package pgutils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Retry runs op up to attempts times, backing off between tries. Only
// transient store faults are retried; logic errors surface immediately.
// Callers must make op safe to re-run (single statement or full transaction).
func Retry(ctx context.Context, attempts int, backoff time.Duration, op func() error) error {
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if !IsTransient(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		slog.Warn("transient store error, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	return fmt.Errorf("store unavailable after %d attempts: %w", attempts, err)
}

// IsTransient reports whether err looks like a recoverable infrastructure
// fault rather than a logic error.
func IsTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception; 40001/40P01: retryable aborts;
		// 57P01: admin shutdown
		switch {
		case strings.HasPrefix(pgErr.Code, "08"):
			return true
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return true
		case pgErr.Code == "57P01":
			return true
		}
	}

	return pgconn.SafeToRetry(err)
}
