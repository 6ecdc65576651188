package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vnmarket/internal/api"
	"github.com/wonny/vnmarket/internal/api/handlers"
	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/history"
	"github.com/wonny/vnmarket/internal/scheduler"
	"github.com/wonny/vnmarket/internal/scheduler/jobs"
	"github.com/wonny/vnmarket/pkg/database"
)

func (a *app) serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the REST and websocket API.

With DATABASE_URL set, stored history is served and, when
REFRESH_ENABLED=true, the watch list (REFRESH_WATCHLIST) is kept
current by the refresh scheduler.

Endpoints:
  GET  /health
  GET  /api/{stocks|crypto|forex}/ohlcv/{symbol}
  GET  /api/{stocks|crypto|forex}/symbols
  GET  /api/{crypto|forex}/info/{symbol}
  GET  /api/stocks/company/{symbol}
  GET  /api/stocks/financial/{symbol}
  GET  /api/stocks/indices
  GET  /api/history/{market}/{symbol}
  POST /api/indicators/{ema|rsi|macd|bollinger}
  GET  /api/jobs
  POST /api/jobs/{name}/run
  GET  /ws/quotes/{symbol}

Example:
  vnmarket serve
  vnmarket serve --port 8080`,
		Args: checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "API server port (default PORT)")
	return cmd
}

func (a *app) runServe(ctx context.Context, port string) error {
	cfg, log := a.cfg, a.log
	if port != "" {
		cfg.Port = port
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 1. Data layer
	svc, closeSvc, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer closeSvc()

	// 2. History store (optional)
	var store contracts.HistoryStore
	var repo *history.Repository
	var db *database.DB
	if cfg.Database.Enabled() {
		db, err = database.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		repo = history.NewRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		store = repo
		log.Info("Connected to database")
	}

	// 3. Handlers, plus the refresh scheduler when enabled
	h := api.Handlers{
		Market:     handlers.NewMarketHandler(svc, svc, store, log),
		Stream:     handlers.NewQuoteStreamHandler(svc, log),
		Indicators: handlers.NewIndicatorHandler(svc, log),
	}
	if db != nil {
		h.Database = db
	}
	if cfg.Refresh.Enabled && repo != nil {
		sched, err := a.refreshScheduler(svc, repo)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		h.Jobs = handlers.NewJobsHandler(sched, log)
	}

	// 4. Router and server
	server := api.New(cfg, log, api.NewRouter(h, log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")

	// Wait for interrupt signal or a listen failure
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// refreshScheduler registers one history refresh job per refreshed interval
// plus the intraday prune job
func (a *app) refreshScheduler(data refreshData, store *history.Repository) (*scheduler.Scheduler, error) {
	targets, err := jobs.ParseTargets(a.cfg.Refresh.Watchlist)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		a.log.Warn("REFRESH_WATCHLIST is empty, refresh jobs will do nothing")
	}

	loc, err := time.LoadLocation(a.cfg.Refresh.Timezone)
	if err != nil {
		a.log.WithError(err).Warn("Unknown REFRESH_TIMEZONE, using exchange time")
		loc = contracts.Location
	}

	sched := scheduler.New(a.log, scheduler.Options{
		Location:   loc,
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
	})

	for _, interval := range jobs.RefreshIntervals {
		job := jobs.NewHistoryRefreshJob(interval, targets, data, store, data, a.log)
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	if a.cfg.Refresh.IntradayRetention > 0 {
		if err := sched.AddJob(jobs.NewHistoryPruneJob(store, a.cfg.Refresh.IntradayRetention, a.log)); err != nil {
			return nil, err
		}
	}

	return sched, nil
}

// refreshData is the data layer surface the refresh jobs need
type refreshData interface {
	contracts.MarketData
	jobs.Invalidator
}
