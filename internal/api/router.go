package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireTelegramAuth)

		r.Post("/auth/init", s.handleAuthInit)
		r.Get("/profile", s.handleProfile)
		r.Post("/stars/claim", s.handleClaim)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Post("/game/enqueue", s.handleEnqueue)
		r.Post("/game/cancel", s.handleCancel)
		r.Get("/game/{contestID}", s.handleContest)

		r.Get("/events", s.handleEvents)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
