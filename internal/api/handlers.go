package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starsduel/backend/internal/metrics"
	"github.com/starsduel/backend/internal/repos/contests"
	"github.com/starsduel/backend/internal/repos/principals"
	"github.com/starsduel/backend/internal/services/matchmaker"
	"github.com/starsduel/backend/internal/telegram"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type profileResponse struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username,omitempty"`
	FirstName     string     `json:"firstName,omitempty"`
	PhotoURL      string     `json:"photoUrl,omitempty"`
	Stars         int64      `json:"stars"`
	TotalWins     int64      `json:"totalWins"`
	TotalLosses   int64      `json:"totalLosses"`
	TotalEarnings int64      `json:"totalEarnings"`
	IsPremium     bool       `json:"isPremium"`
	Badges        int64      `json:"badges"`
	NextClaimAt   *time.Time `json:"nextClaimAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

const starsPerBadge = 100

func (s *Server) toProfileResponse(p *principals.Principal) profileResponse {
	resp := profileResponse{
		ID:            p.ID,
		Username:      p.Username,
		FirstName:     p.FirstName,
		PhotoURL:      p.PhotoURL,
		Stars:         p.Stars,
		TotalWins:     p.TotalWins,
		TotalLosses:   p.TotalLosses,
		TotalEarnings: p.TotalEarnings,
		IsPremium:     p.IsPremium,
		CreatedAt:     p.CreatedAt,
	}

	if p.TotalEarnings > 0 {
		resp.Badges = p.TotalEarnings / starsPerBadge
	}

	if p.LastClaim != nil {
		next := p.LastClaim.Add(s.game.ClaimInterval)
		resp.NextClaimAt = &next
	}

	return resp
}

type contestResponse struct {
	ContestID   string     `json:"contestId"`
	Player1     int64      `json:"player1"`
	Player2     int64      `json:"player2"`
	Stake       int64      `json:"stake"`
	Status      string     `json:"status"`
	Winner      *int64     `json:"winner,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	AbortReason string     `json:"abortReason,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toContestResponse(c *contests.Contest) contestResponse {
	return contestResponse{
		ContestID:   c.ID.String(),
		Player1:     c.Player1,
		Player2:     c.Player2,
		Stake:       c.Stake,
		Status:      string(c.Status),
		Winner:      c.Winner,
		Outcome:     c.Outcome,
		AbortReason: c.AbortReason,
		CreatedAt:   c.CreatedAt,
		CompletedAt: c.CompletedAt,
	}
}

func profileFrom(user *telegram.WebAppUser) principals.Profile {
	return principals.Profile{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		PhotoURL:  user.PhotoURL,
		IsPremium: user.IsPremium,
	}
}

// handleAuthInit provisions the account for a freshly verified Telegram user.
// Re-initializing is safe: an existing account only gets its profile fields
// refreshed, never its balance.
func (s *Server) handleAuthInit(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	principal, err := s.ledger.Provision(r.Context(), profileFrom(user), s.game.StartingBalance)
	if err != nil {
		slog.Error("failed to provision principal", "principal_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, s.toProfileResponse(principal))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	principal, err := s.ledger.Get(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, principals.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not initialized")
			return
		}

		slog.Error("failed to load profile", "principal_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, s.toProfileResponse(principal))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	principal, err := s.ledger.Claim(r.Context(), user.ID, s.game.ClaimAmount, s.game.ClaimInterval)
	if err != nil {
		switch {
		case errors.Is(err, principals.ErrClaimNotReady):
			writeError(w, http.StatusConflict, "claim interval has not elapsed")
		case errors.Is(err, principals.ErrNotFound):
			writeError(w, http.StatusNotFound, "account not initialized")
		default:
			slog.Error("failed to process claim", "principal_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}

		return
	}

	writeJSON(w, http.StatusOK, s.toProfileResponse(principal))
}

type enqueueRequest struct {
	Stake int64 `json:"stake"`
}

type waitingResponse struct {
	Status string `json:"status"`
	Stake  int64  `json:"stake"`
}

// handleEnqueue puts the caller into the stake pool. When a compatible
// opponent is already waiting the whole contest resolves before the response
// is written, so the caller learns the outcome synchronously while the
// opponent hears about it on the events stream.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req enqueueRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	match, err := s.pool.Enqueue(r.Context(), user.ID, req.Stake)
	if err != nil {
		switch {
		case errors.Is(err, matchmaker.ErrInvalidStake):
			metrics.EnqueuesTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusBadRequest, "stake outside allowed bounds")
		case errors.Is(err, matchmaker.ErrAlreadyQueued):
			metrics.EnqueuesTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusConflict, "already queued")
		case errors.Is(err, matchmaker.ErrContestInProgress):
			metrics.EnqueuesTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusConflict, "contest still settling")
		case errors.Is(err, principals.ErrInsufficientFunds):
			metrics.EnqueuesTotal.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusPaymentRequired, "insufficient stars")
		default:
			slog.Error("failed to enqueue", "principal_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}

		return
	}

	if match == nil {
		metrics.EnqueuesTotal.WithLabelValues("waiting").Inc()
		writeJSON(w, http.StatusOK, waitingResponse{Status: "waiting", Stake: req.Stake})

		return
	}

	metrics.EnqueuesTotal.WithLabelValues("matched").Inc()

	// The reservation taken at match time ends only when the contest
	// reaches a terminal state.
	defer s.pool.Release(match.Player1, match.Player2)

	// The opponent's escrow must not die with this client's connection, so
	// settlement runs detached from request cancellation.
	contest, err := s.settlement.Resolve(context.WithoutCancel(r.Context()), match.Player1, match.Player2, match.Stake)
	if err != nil {
		slog.Error("failed to resolve contest",
			"player1", match.Player1,
			"player2", match.Player2,
			"stake", match.Stake,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, toContestResponse(contest))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	s.pool.Cancel(user.ID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleContest(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "contestID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed contest id")
		return
	}

	contest, err := s.contests.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, contests.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contest not found")
			return
		}

		slog.Error("failed to load contest", "contest_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	// Contest records are visible to their participants only.
	if contest.Player1 != user.ID && contest.Player2 != user.ID {
		writeError(w, http.StatusNotFound, "contest not found")
		return
	}

	writeJSON(w, http.StatusOK, toContestResponse(contest))
}

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type leaderboardEntry struct {
	Rank          int    `json:"rank"`
	ID            int64  `json:"id"`
	Username      string `json:"username,omitempty"`
	FirstName     string `json:"firstName,omitempty"`
	PhotoURL      string `json:"photoUrl,omitempty"`
	TotalWins     int64  `json:"totalWins"`
	TotalEarnings int64  `json:"totalEarnings"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "malformed limit")
			return
		}

		limit = min(parsed, maxLeaderboardLimit)
	}

	rows, err := s.ledger.Leaderboard(r.Context(), limit)
	if err != nil {
		slog.Error("failed to load leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	entries := make([]leaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, leaderboardEntry{
			Rank:          i + 1,
			ID:            row.ID,
			Username:      row.Username,
			FirstName:     row.FirstName,
			PhotoURL:      row.PhotoURL,
			TotalWins:     row.TotalWins,
			TotalEarnings: row.TotalEarnings,
		})
	}

	writeJSON(w, http.StatusOK, entries)
}
