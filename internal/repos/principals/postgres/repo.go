package principals

import (
	"database/sql"

	"github.com/starsduel/backend/internal/repos/principals"
)

var _ principals.Principals = (*principalsRepo)(nil)

type principalsRepo struct{ db *sql.DB }

func New(db *sql.DB) *principalsRepo {
	return &principalsRepo{db: db}
}

const principalColumns = `
	id, username, first_name, photo_url, stars,
	total_wins, total_losses, total_earnings,
	is_premium, last_active, last_claim, created_at
`

func scanPrincipal(row *sql.Row) (*principals.Principal, error) {
	var p principals.Principal

	err := row.Scan(
		&p.ID, &p.Username, &p.FirstName, &p.PhotoURL, &p.Stars,
		&p.TotalWins, &p.TotalLosses, &p.TotalEarnings,
		&p.IsPremium, &p.LastActive, &p.LastClaim, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
