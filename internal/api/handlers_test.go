package api

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starsduel/backend/internal/config"
	"github.com/starsduel/backend/internal/notify"
	"github.com/starsduel/backend/internal/repos/contests"
	"github.com/starsduel/backend/internal/repos/principals"
	"github.com/starsduel/backend/internal/services/matchmaker"
	"github.com/starsduel/backend/internal/telegram"
)

const testBotToken = "12345:test-token"

func signedInitData(t *testing.T, userID int64) string {
	t.Helper()

	userJSON, err := json.Marshal(map[string]any{
		"id":         userID,
		"username":   fmt.Sprintf("player%d", userID),
		"first_name": "Test",
	})
	if err != nil {
		t.Fatalf("marshal user: %v", err)
	}

	values := url.Values{}
	values.Set("user", string(userJSON))
	values.Set("auth_date", fmt.Sprint(time.Now().Unix()))
	values.Set("hash", telegram.Sign(values, testBotToken))

	return values.Encode()
}

type fakeLedgerSvc struct {
	principal *principals.Principal
	claimErr  error
	board     []principals.Principal
}

func (f *fakeLedgerSvc) Get(_ context.Context, id int64) (*principals.Principal, error) {
	if f.principal == nil || f.principal.ID != id {
		return nil, principals.ErrNotFound
	}

	return f.principal, nil
}

func (f *fakeLedgerSvc) Provision(_ context.Context, profile principals.Profile, startingBalance int64) (*principals.Principal, error) {
	if f.principal == nil {
		f.principal = &principals.Principal{
			ID:        profile.ID,
			Username:  profile.Username,
			FirstName: profile.FirstName,
			Stars:     startingBalance,
		}
	}

	return f.principal, nil
}

func (f *fakeLedgerSvc) Claim(_ context.Context, id int64, amount int64, _ time.Duration) (*principals.Principal, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}

	f.principal.Stars += amount

	return f.principal, nil
}

func (f *fakeLedgerSvc) Leaderboard(_ context.Context, limit int) ([]principals.Principal, error) {
	if limit > len(f.board) {
		limit = len(f.board)
	}

	return f.board[:limit], nil
}

type fakePool struct {
	match      *matchmaker.Match
	enqueueErr error
	cancelled  []int64
	released   []int64
}

func (f *fakePool) Enqueue(_ context.Context, _ int64, _ int64) (*matchmaker.Match, error) {
	return f.match, f.enqueueErr
}

func (f *fakePool) Cancel(principalID int64) {
	f.cancelled = append(f.cancelled, principalID)
}

func (f *fakePool) Release(principalIDs ...int64) {
	f.released = append(f.released, principalIDs...)
}

func (f *fakePool) Waiting(int64) bool { return false }

type fakeSettlement struct {
	contest *contests.Contest
	err     error
}

func (f *fakeSettlement) Resolve(_ context.Context, player1, player2, stake int64) (*contests.Contest, error) {
	if f.err != nil {
		return nil, f.err
	}

	if f.contest == nil {
		winner := player1
		f.contest = &contests.Contest{
			ID:      uuid.New(),
			Player1: player1,
			Player2: player2,
			Stake:   stake,
			Status:  contests.StatusCompleted,
			Winner:  &winner,
			Outcome: "88:17",
		}
	}

	return f.contest, nil
}

type fakeContestsRepo struct {
	contest *contests.Contest
}

func (f *fakeContestsRepo) Insert(context.Context, *contests.Contest) error { return nil }

func (f *fakeContestsRepo) Get(_ context.Context, id uuid.UUID) (*contests.Contest, error) {
	if f.contest == nil || f.contest.ID != id {
		return nil, contests.ErrNotFound
	}

	return f.contest, nil
}

func (f *fakeContestsRepo) MarkSettling(context.Context, uuid.UUID) error { return nil }

func (f *fakeContestsRepo) Complete(*sql.Tx, uuid.UUID, int64, string) error { return nil }

func (f *fakeContestsRepo) Abort(context.Context, uuid.UUID, string) error { return nil }

func (f *fakeContestsRepo) FlagReconciliation(context.Context, uuid.UUID) error { return nil }

func newTestServer(ledger *fakeLedgerSvc, pool *fakePool, settle SettlementService, repo contests.Contests) *Server {
	game := config.GameConfig{
		MinStake:        15,
		MaxStake:        100,
		StartingBalance: 100,
		ClaimInterval:   3 * time.Hour,
		ClaimAmount:     100,
	}

	return NewServer(ledger, pool, settle, repo, notify.NewHub(), testBotToken, game)
}

func doRequest(t *testing.T, handler http.Handler, method, target, initData string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, target, reader)
	if initData != "" {
		req.Header.Set(initDataHeader, initData)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeLedgerSvc{}, &fakePool{}, &fakeSettlement{}, &fakeContestsRepo{})
	routes := srv.Routes()

	rec := doRequest(t, routes, http.MethodGet, "/api/profile", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing init data: status = %d, want 401", rec.Code)
	}

	tampered := signedInitData(t, 1) + "x"

	rec = doRequest(t, routes, http.MethodGet, "/api/profile", tampered, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered init data: status = %d, want 401", rec.Code)
	}
}

func TestAuthInitProvisionsAccount(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedgerSvc{}
	srv := newTestServer(ledger, &fakePool{}, &fakeSettlement{}, &fakeContestsRepo{})

	rec := doRequest(t, srv.Routes(), http.MethodPost, "/api/auth/init", signedInitData(t, 42), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body)
	}

	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.ID != 42 {
		t.Errorf("id = %d, want 42", resp.ID)
	}

	if resp.Stars != 100 {
		t.Errorf("stars = %d, want the starting balance 100", resp.Stars)
	}
}

func TestEnqueueWaiting(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeLedgerSvc{}, &fakePool{}, &fakeSettlement{}, &fakeContestsRepo{})

	rec := doRequest(t, srv.Routes(), http.MethodPost, "/api/game/enqueue", signedInitData(t, 1), `{"stake":20}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body)
	}

	var resp waitingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Status != "waiting" {
		t.Errorf("status = %q, want waiting", resp.Status)
	}
}

func TestEnqueueMatchedResolvesContest(t *testing.T) {
	t.Parallel()

	pool := &fakePool{match: &matchmaker.Match{Player1: 2, Player2: 1, Stake: 20}}
	srv := newTestServer(&fakeLedgerSvc{}, pool, &fakeSettlement{}, &fakeContestsRepo{})

	rec := doRequest(t, srv.Routes(), http.MethodPost, "/api/game/enqueue", signedInitData(t, 1), `{"stake":20}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body)
	}

	var resp contestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Status != string(contests.StatusCompleted) {
		t.Errorf("status = %q, want completed", resp.Status)
	}

	if resp.Winner == nil {
		t.Error("completed contest response has no winner")
	}

	if len(pool.released) != 2 {
		t.Errorf("matched principals not released after settlement: %v", pool.released)
	}
}

// settlementCancellingClient drops the client connection mid-settlement and
// reports whether the settlement context survived it.
type settlementCancellingClient struct {
	cancel context.CancelFunc
}

func (d *settlementCancellingClient) Resolve(ctx context.Context, player1, player2, stake int64) (*contests.Contest, error) {
	d.cancel()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	winner := player1

	return &contests.Contest{
		ID:      uuid.New(),
		Player1: player1,
		Player2: player2,
		Stake:   stake,
		Status:  contests.StatusCompleted,
		Winner:  &winner,
		Outcome: "60:12",
	}, nil
}

func TestEnqueueSettlementSurvivesClientDisconnect(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := &fakePool{match: &matchmaker.Match{Player1: 2, Player2: 1, Stake: 20}}
	settle := &settlementCancellingClient{cancel: cancel}
	srv := newTestServer(&fakeLedgerSvc{}, pool, settle, &fakeContestsRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/game/enqueue", strings.NewReader(`{"stake":20}`))
	req = req.WithContext(ctx)
	req.Header.Set(initDataHeader, signedInitData(t, 1))

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite the disconnect, body %s", rec.Code, rec.Body)
	}

	var resp contestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Status != string(contests.StatusCompleted) {
		t.Errorf("status = %q, want completed", resp.Status)
	}
}

func TestEnqueueErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		enqueueErr error
		wantStatus int
	}{
		{"invalid stake", matchmaker.ErrInvalidStake, http.StatusBadRequest},
		{"already queued", matchmaker.ErrAlreadyQueued, http.StatusConflict},
		{"contest in progress", matchmaker.ErrContestInProgress, http.StatusConflict},
		{"insufficient funds", principals.ErrInsufficientFunds, http.StatusPaymentRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool := &fakePool{enqueueErr: tt.enqueueErr}
			srv := newTestServer(&fakeLedgerSvc{}, pool, &fakeSettlement{}, &fakeContestsRepo{})

			rec := doRequest(t, srv.Routes(), http.MethodPost, "/api/game/enqueue", signedInitData(t, 1), `{"stake":20}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestClaimNotReady(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedgerSvc{claimErr: principals.ErrClaimNotReady}
	srv := newTestServer(ledger, &fakePool{}, &fakeSettlement{}, &fakeContestsRepo{})

	rec := doRequest(t, srv.Routes(), http.MethodPost, "/api/stars/claim", signedInitData(t, 1), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestContestVisibleToParticipantsOnly(t *testing.T) {
	t.Parallel()

	winner := int64(1)
	contest := &contests.Contest{
		ID:      uuid.New(),
		Player1: 1,
		Player2: 2,
		Stake:   20,
		Status:  contests.StatusCompleted,
		Winner:  &winner,
	}

	srv := newTestServer(&fakeLedgerSvc{}, &fakePool{}, &fakeSettlement{}, &fakeContestsRepo{contest: contest})
	routes := srv.Routes()
	target := "/api/game/" + contest.ID.String()

	rec := doRequest(t, routes, http.MethodGet, target, signedInitData(t, 2), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("participant: status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, routes, http.MethodGet, target, signedInitData(t, 99), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("outsider: status = %d, want 404", rec.Code)
	}
}

func TestLeaderboardLimit(t *testing.T) {
	t.Parallel()

	board := make([]principals.Principal, 20)
	for i := range board {
		board[i] = principals.Principal{ID: int64(i + 1)}
	}

	srv := newTestServer(&fakeLedgerSvc{board: board}, &fakePool{}, &fakeSettlement{}, &fakeContestsRepo{})
	routes := srv.Routes()

	rec := doRequest(t, routes, http.MethodGet, "/api/leaderboard?limit=5", signedInitData(t, 1), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var entries []leaderboardEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(entries) != 5 {
		t.Errorf("entries = %d, want 5", len(entries))
	}

	if len(entries) > 0 && entries[0].Rank != 1 {
		t.Errorf("first rank = %d, want 1", entries[0].Rank)
	}

	rec = doRequest(t, routes, http.MethodGet, "/api/leaderboard?limit=bogus", signedInitData(t, 1), "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus limit: status = %d, want 400", rec.Code)
	}
}

func TestEventsStreamDeliversPush(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeLedgerSvc{}, &fakePool{}, &fakeSettlement{}, &fakeContestsRepo{})

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set(initDataHeader, signedInitData(t, 7))

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// Give the handler a moment to subscribe before pushing.
	time.Sleep(50 * time.Millisecond)
	srv.hub.Push(7, notify.Event{Kind: notify.KindSettled, Winner: 7})

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			var ev notify.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}

			if ev.Kind != notify.KindSettled || ev.Winner != 7 {
				t.Fatalf("unexpected event %+v", ev)
			}

			return
		}
	}

	t.Fatalf("stream closed without delivering the event: %v", scanner.Err())
}
