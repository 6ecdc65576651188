package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/vnmarket/internal/contracts"
)

func (a *app) ohlcvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ohlcv <symbol> <start_date> <end_date> [interval] [market_type]",
		Short: "Historical candles",
		Long: `Print historical OHLCV candles as a JSON array.

Dates are YYYY-MM-DD (inclusive). interval is one of
1m 5m 15m 30m 1H 4H 1D 1W 1M (default 1D); market_type is
stock, crypto or forex (default stock).

Example:
  vnmarket ohlcv FPT 2024-01-01 2024-01-31
  vnmarket ohlcv USDVND 2024-01-01 2024-06-30 1W forex`,
		Args: checkArgs(cobra.RangeArgs(3, 5)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseHistoryArgs(args)
			if err != nil {
				return err
			}

			data, closeFn, err := a.data()
			if err != nil {
				return err
			}
			defer closeFn()

			candles, err := data.History(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(a.opts.Stdout, contracts.Quotes(candles))
		},
	}
}

// parseHistoryArgs builds a validated request from positional arguments
func parseHistoryArgs(args []string) (contracts.HistoryRequest, error) {
	req := contracts.HistoryRequest{
		Symbol:   args[0],
		Interval: contracts.Interval1D,
		Market:   contracts.MarketStock,
	}

	var err error
	if req.Start, err = contracts.ParseDate(args[1]); err != nil {
		return req, err
	}
	if req.End, err = contracts.ParseDate(args[2]); err != nil {
		return req, err
	}
	if len(args) > 3 {
		if req.Interval, err = contracts.ParseInterval(args[3]); err != nil {
			return req, err
		}
	}
	if len(args) > 4 {
		if req.Market, err = contracts.ParseMarketType(args[4]); err != nil {
			return req, err
		}
	}

	return req, req.Validate()
}
