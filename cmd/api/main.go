package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/starsduel/backend/internal/api"
	"github.com/starsduel/backend/internal/infra/logging"
	"github.com/starsduel/backend/internal/infra/pgutils"
	"github.com/starsduel/backend/internal/notify"
	contestspg "github.com/starsduel/backend/internal/repos/contests/postgres"
	"github.com/starsduel/backend/internal/services/ledger"
	"github.com/starsduel/backend/internal/services/matchmaker"
	"github.com/starsduel/backend/internal/services/settlement"
	"github.com/starsduel/backend/pkg/envconf"
	"github.com/starsduel/backend/pkg/shutdownqueue"
)

func main() {
	err := run()
	if err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional, real deployments pass the environment directly
	_ = godotenv.Load()

	var cfg apiConfig

	err := envconf.Load(&cfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.AppEnv == "DEV" {
		logging.SetupDev(cfg.LogLevel)
	} else {
		logging.SetupJSON(cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		return db.Close()
	})

	ledgerSvc := ledger.New(db)
	contestsRepo := contestspg.New(db)
	hub := notify.NewHub()

	pool := matchmaker.New(matchmaker.Config{
		MinStake:  cfg.Game.MinStake,
		MaxStake:  cfg.Game.MaxStake,
		TicketTTL: cfg.Game.TicketTTL,
	}, ledgerSvc, hub)

	stopSweeper, err := pool.StartSweeper()
	if err != nil {
		return fmt.Errorf("start ticket sweeper: %w", err)
	}

	shutdownqueue.Add(stopSweeper)

	engine := settlement.New(ledgerSvc, contestsRepo, hub)

	server := api.NewServer(ledgerSvc, pool, engine, contestsRepo, hub, cfg.BotToken, cfg.Game)
	httpServer := api.NewHTTPServer(server, cfg.Port)

	shutdownqueue.Add(httpServer.Shutdown)

	serveErr := make(chan error, 1)

	go func() {
		slog.Info("listening", "addr", httpServer.Addr, "env", cfg.AppEnv)

		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}

		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	err = shutdownqueue.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	slog.Info("shutdown complete")

	return nil
}
