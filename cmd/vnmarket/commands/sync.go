package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/history"
	"github.com/wonny/vnmarket/internal/scheduler/jobs"
	"github.com/wonny/vnmarket/pkg/database"
)

func (a *app) syncCmd() *cobra.Command {
	var (
		interval   string
		marketType string
	)

	cmd := &cobra.Command{
		Use:   "sync <symbol...>",
		Short: "Refresh stored history once",
		Long: `Bring the history store up to date for the given symbols and print
one JSON result per symbol. Requires DATABASE_URL.

A symbol may carry its own market ("crypto:BTC"); bare symbols use
--market-type.

Example:
  vnmarket sync FPT VCB HPG
  vnmarket sync BTC ETH --market-type crypto --interval 1W`,
		Args: checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			iv, err := contracts.ParseInterval(interval)
			if err != nil {
				return err
			}
			market, err := contracts.ParseMarketType(marketType)
			if err != nil {
				return err
			}

			entries := make([]string, len(args))
			for i, arg := range args {
				if !strings.Contains(arg, ":") {
					arg = string(market) + ":" + arg
				}
				entries[i] = arg
			}
			targets, err := jobs.ParseTargets(entries)
			if err != nil {
				return err
			}

			return a.runSync(cmd.Context(), iv, targets)
		},
	}

	cmd.Flags().StringVar(&interval, "interval", string(contracts.Interval1D), "candle interval")
	cmd.Flags().StringVar(&marketType, "market-type", string(contracts.MarketStock), "market type for bare symbols (stock|crypto|forex)")
	return cmd
}

func (a *app) runSync(ctx context.Context, interval contracts.Interval, targets []jobs.Target) error {
	if !a.cfg.Database.Enabled() {
		return fmt.Errorf("%w: sync requires DATABASE_URL", contracts.ErrInvalidArgument)
	}

	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := history.NewRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	svc, closeSvc, err := buildService(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer closeSvc()

	job := jobs.NewHistoryRefreshJob(interval, targets, svc, repo, svc, a.log)
	return writeJSON(a.opts.Stdout, job.RunOnce(ctx))
}
