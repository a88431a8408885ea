package principals

import (
	"context"
	"fmt"

	"github.com/starsduel/backend/internal/repos/principals"
)

// Upsert provisions the account on first verified login. A conflicting row
// only refreshes profile fields and last_active; stars and counters are
// untouched so re-login can never mint or destroy balance.
func (r *principalsRepo) Upsert(ctx context.Context, p principals.Profile, startingBalance int64) (*principals.Principal, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO principals (id, username, first_name, photo_url, is_premium, stars)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET username    = EXCLUDED.username,
		    first_name  = EXCLUDED.first_name,
		    photo_url   = EXCLUDED.photo_url,
		    is_premium  = EXCLUDED.is_premium,
		    last_active = now()
		RETURNING `+principalColumns+`
	`, p.ID, p.Username, p.FirstName, p.PhotoURL, p.IsPremium, startingBalance)

	out, err := scanPrincipal(row)
	if err != nil {
		return nil, fmt.Errorf("upsert principal: %w", err)
	}

	return out, nil
}
