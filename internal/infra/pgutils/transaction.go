// Package pgutils bundles the Postgres plumbing shared by the repos and
// services: connection setup, transaction scoping and transient-fault retry.
package pgutils

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx scopes fn to one transaction at the default isolation level: commit
// when fn returns nil, roll back otherwise. Balance mutations and their
// settlement records go through here so partial effects never land.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	err = fn(tx)
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			return fmt.Errorf("rollback after fn error: %v (fn err: %w)", rbErr, err)
		}

		return fmt.Errorf("fn: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
