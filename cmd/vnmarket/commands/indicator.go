package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/vnmarket/internal/indicators"
)

func (a *app) indicatorCmd() *cobra.Command {
	var p indicators.Params

	cmd := &cobra.Command{
		Use:   "indicator <ema|rsi|macd|bollinger> <symbol> <start_date> <end_date> [interval] [market_type]",
		Short: "Technical indicator over closing prices",
		Long: `Compute a technical indicator over the closes of a candle range and
print one JSON object per point, stamped with its candle timestamp.
The first points of the range are consumed by the warm-up window.

Defaults: ema period 20, rsi period 14, macd 12/26/9,
bollinger period 14 at 2 standard deviations.

Example:
  vnmarket indicator rsi FPT 2024-01-01 2024-06-30
  vnmarket indicator macd BTC 2024-01-01 2024-06-30 1D crypto
  vnmarket indicator bollinger VCB 2024-01-01 2024-06-30 --period 20 --std-dev 2.5`,
		Args: checkArgs(cobra.RangeArgs(4, 6)),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := indicators.ParseName(args[0])
			if err != nil {
				return err
			}
			req, err := parseHistoryArgs(args[1:])
			if err != nil {
				return err
			}
			// an empty series still validates the parameters
			if _, err := indicators.Compute(name, nil, p); err != nil {
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

			records, err := indicators.Compute(name, indicators.Closes(candles), p)
			if err != nil {
				return err
			}
			return writeJSON(a.opts.Stdout, indicators.WithTimestamps(records, candles))
		},
	}

	cmd.Flags().IntVar(&p.Period, "period", 0, "ema, rsi and bollinger period")
	cmd.Flags().IntVar(&p.FastPeriod, "fast", 0, "macd fast period")
	cmd.Flags().IntVar(&p.SlowPeriod, "slow", 0, "macd slow period")
	cmd.Flags().IntVar(&p.SignalPeriod, "signal", 0, "macd signal period")
	cmd.Flags().Float64Var(&p.StdDev, "std-dev", 0, "bollinger band width in standard deviations")
	return cmd
}
