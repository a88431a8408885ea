// Package api exposes the game over HTTP: Telegram-authenticated JSON
// endpoints plus a server-sent-events stream for live pushes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/starsduel/backend/internal/config"
	"github.com/starsduel/backend/internal/notify"
	"github.com/starsduel/backend/internal/repos/contests"
	"github.com/starsduel/backend/internal/repos/principals"
	"github.com/starsduel/backend/internal/services/matchmaker"
)

// LedgerService is the slice of the account ledger the handlers need.
type LedgerService interface {
	Get(ctx context.Context, id int64) (*principals.Principal, error)
	Provision(ctx context.Context, profile principals.Profile, startingBalance int64) (*principals.Principal, error)
	Claim(ctx context.Context, id int64, amount int64, interval time.Duration) (*principals.Principal, error)
	Leaderboard(ctx context.Context, limit int) ([]principals.Principal, error)
}

type MatchmakerService interface {
	Enqueue(ctx context.Context, principalID int64, stake int64) (*matchmaker.Match, error)
	Cancel(principalID int64)
	Release(principalIDs ...int64)
	Waiting(principalID int64) bool
}

type SettlementService interface {
	Resolve(ctx context.Context, player1, player2, stake int64) (*contests.Contest, error)
}

type Server struct {
	ledger     LedgerService
	pool       MatchmakerService
	settlement SettlementService
	contests   contests.Contests
	hub        *notify.Hub

	botToken string
	game     config.GameConfig
}

func NewServer(
	ledger LedgerService,
	pool MatchmakerService,
	settlement SettlementService,
	contestsRepo contests.Contests,
	hub *notify.Hub,
	botToken string,
	game config.GameConfig,
) *Server {
	return &Server{
		ledger:     ledger,
		pool:       pool,
		settlement: settlement,
		contests:   contestsRepo,
		hub:        hub,
		botToken:   botToken,
		game:       game,
	}
}

// NewHTTPServer wraps the router in an http.Server with sane timeouts.
// WriteTimeout is generous because the events stream holds its connection
// open; idle SSE clients are kept alive by heartbeats instead.
func NewHTTPServer(s *Server, port string) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}
}
