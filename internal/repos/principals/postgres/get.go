package principals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starsduel/backend/internal/repos/principals"
)

func (r *principalsRepo) Get(ctx context.Context, id int64) (*principals.Principal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE id = $1
	`, id)

	p, err := scanPrincipal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, principals.ErrNotFound
		}

		return nil, fmt.Errorf("get principal: %w", err)
	}

	return p, nil
}

func (r *principalsRepo) GetBalance(ctx context.Context, id int64) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx, `
		SELECT stars
		FROM principals
		WHERE id = $1
	`, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, principals.ErrNotFound
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}
