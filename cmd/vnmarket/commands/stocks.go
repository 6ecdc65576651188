package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/frame"
)

func (a *app) companyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "company <symbol>",
		Short: "Company overview",
		Long: `Print the company overview of a listed stock as one JSON object.

Example:
  vnmarket company VCB`,
		Args: checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, closeFn, err := a.data()
			if err != nil {
				return err
			}
			defer closeFn()

			record, err := data.Company(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(a.opts.Stdout, coerceRecord(record, frame.CoerceAll))
		},
	}
}

func (a *app) financialCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "financial <symbol> <period_type> <statement_type>",
		Short: "Financial statement",
		Long: `Print one financial statement as a JSON array, one record per period.

period_type is year or quarter; statement_type is balance, income or cashflow.

Example:
  vnmarket financial VCB year balance
  vnmarket financial FPT quarter income`,
		Args: checkArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := contracts.ParsePeriodType(args[1])
			if err != nil {
				return err
			}
			statement, err := contracts.ParseStatementType(args[2])
			if err != nil {
				return err
			}

			data, closeFn, err := a.data()
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := data.Financial(cmd.Context(), args[0], period, statement)
			if err != nil {
				return err
			}
			return writeJSON(a.opts.Stdout, coerceRecords(records, frame.CoerceAll))
		},
	}
}

func (a *app) indicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "Market index listing",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, closeFn, err := a.data()
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := data.Indices(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(a.opts.Stdout, coerceRecords(records, frame.NumericOnly))
		},
	}
}

func (a *app) symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "Tradable symbol listing",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, closeFn, err := a.data()
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := data.Symbols(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(a.opts.Stdout, coerceRecords(records, frame.NumericOnly))
		},
	}
}
