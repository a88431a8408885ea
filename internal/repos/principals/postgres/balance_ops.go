package principals

import (
	"database/sql"
	"fmt"

	"github.com/starsduel/backend/internal/repos/principals"
)

func (r *principalsRepo) LockAndGetBalance(tx *sql.Tx, id int64) (int64, error) {
	var balance int64

	err := tx.QueryRow(`
		SELECT stars
		FROM principals
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}

// TryDebit is race-free against concurrent debits and credits: the balance
// condition and the decrement are one statement, so two wagers can never both
// spend the same stars.
func (r *principalsRepo) TryDebit(tx *sql.Tx, id int64, amount int64) error {
	res, err := tx.Exec(`
		UPDATE principals
		SET stars = stars - $2
		WHERE id = $1
		  AND stars >= $2
	`, id, amount)
	if err != nil {
		return fmt.Errorf("debit stars: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return principals.ErrInsufficientFunds
	}

	return nil
}

func (r *principalsRepo) Credit(tx *sql.Tx, id int64, amount int64) error {
	res, err := tx.Exec(`
		UPDATE principals
		SET stars = stars + $2
		WHERE id = $1
	`, id, amount)
	if err != nil {
		return fmt.Errorf("credit stars: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return principals.ErrNotFound
	}

	return nil
}

func (r *principalsRepo) RecordOutcome(tx *sql.Tx, id int64, won bool, amount int64) error {
	var err error

	if won {
		_, err = tx.Exec(`
			UPDATE principals
			SET total_wins = total_wins + 1,
			    total_earnings = total_earnings + $2
			WHERE id = $1
		`, id, amount)
	} else {
		// lifetime earnings only grow with wins; a loss moves stars but
		// leaves the earnings ranking untouched
		_, err = tx.Exec(`
			UPDATE principals
			SET total_losses = total_losses + 1
			WHERE id = $1
		`, id)
	}

	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	return nil
}
