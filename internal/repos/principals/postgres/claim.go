package principals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starsduel/backend/internal/repos/principals"
)

// Claim applies the periodic grant with a conditional UPDATE so that two
// concurrent claims can never both succeed within one interval.
func (r *principalsRepo) Claim(ctx context.Context, id int64, amount int64, interval time.Duration) (*principals.Principal, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE principals
		SET stars = stars + $2,
		    last_claim = now()
		WHERE id = $1
		  AND (last_claim IS NULL OR last_claim <= now() - $3::interval)
		RETURNING `+principalColumns+`
	`, id, amount, fmt.Sprintf("%f seconds", interval.Seconds()))

	p, err := scanPrincipal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// either unknown principal or interval not elapsed
			_, gerr := r.GetBalance(ctx, id)
			if gerr != nil {
				return nil, gerr
			}

			return nil, principals.ErrClaimNotReady
		}

		return nil, fmt.Errorf("claim stars: %w", err)
	}

	return p, nil
}
