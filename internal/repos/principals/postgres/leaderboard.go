package principals

import (
	"context"
	"fmt"

	"github.com/starsduel/backend/internal/repos/principals"
)

func (r *principalsRepo) Leaderboard(ctx context.Context, limit int) ([]principals.Principal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		ORDER BY total_earnings DESC, created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []principals.Principal

	for rows.Next() {
		var p principals.Principal

		err = rows.Scan(
			&p.ID, &p.Username, &p.FirstName, &p.PhotoURL, &p.Stars,
			&p.TotalWins, &p.TotalLosses, &p.TotalEarnings,
			&p.IsPremium, &p.LastActive, &p.LastClaim, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}

		out = append(out, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}

	return out, nil
}
