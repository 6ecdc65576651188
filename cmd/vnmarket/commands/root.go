package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/config"
	"github.com/wonny/vnmarket/pkg/logger"
)

// DataFactory builds the data layer once arguments have been validated.
// The returned func releases its connections.
type DataFactory func(cfg *config.Config, log *logger.Logger) (contracts.MarketData, func(), error)

// Options configures one CLI invocation
type Options struct {
	Stdout io.Writer
	Stderr io.Writer

	// NewData defaults to the provider-backed market service
	NewData DataFactory
}

// app carries per-invocation state shared by the subcommands
type app struct {
	opts Options

	// Global flags
	configFile string
	env        string
	verbose    bool

	cfg *config.Config
	log *logger.Logger
}

// Run executes the CLI and returns the process exit code
// ⭐ SSOT: exit code와 에러 출력은 여기서만 결정
func Run(opts Options, args []string) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.NewData == nil {
		opts.NewData = newMarketData
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{opts: opts}
	root := a.rootCmd()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		return a.fail(err)
	}
	return 0
}

// rootCmd builds the command tree for one invocation
func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vnmarket",
		Short: "Vietnamese market data CLI",
		Long: `vnmarket fetches Vietnamese market data and prints it as JSON.

Stock candles, company overviews, financial statements, indices and
symbol listings come from Vietcap (VCI); crypto and forex candles come
from MSN Money. Diagnostics are logged to stderr.

Examples:
  vnmarket ohlcv FPT 2024-01-01 2024-01-31
  vnmarket ohlcv BTC 2024-01-01 2024-03-31 1W crypto
  vnmarket company VCB
  vnmarket financial VCB quarter income
  vnmarket indicator rsi FPT 2024-01-01 2024-06-30
  vnmarket serve --port 3003`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown command %q", contracts.ErrInvalidArgument, args[0])
			}
			return errMissingCommand
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.SetOut(a.opts.Stderr)
	root.SetErr(a.opts.Stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", contracts.ErrInvalidArgument, err)
	})
	root.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default is .env)")
	root.PersistentFlags().StringVar(&a.env, "env", "", "environment (development|staging|production)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		a.ohlcvCmd(),
		a.companyCmd(),
		a.financialCmd(),
		a.indicesCmd(),
		a.symbolsCmd(),
		a.indicatorCmd(),
		a.serveCmd(),
		a.syncCmd(),
	)

	return root
}

var errMissingCommand = fmt.Errorf("%w: missing command (ohlcv, company, financial, indices, symbols, indicator, serve, sync)", contracts.ErrInvalidArgument)

// checkArgs tags cobra's positional argument errors as invalid arguments
func checkArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", contracts.ErrInvalidArgument, err)
		}
		return nil
	}
}

// setup loads config and the logger before any subcommand runs
func (a *app) setup() error {
	cfg, err := config.LoadFrom(a.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if a.env != "" {
		cfg.Env = a.env
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}

	a.cfg = cfg
	a.log = logger.NewWithWriter(cfg, a.opts.Stderr)
	return nil
}

// diag returns the configured logger, or a stderr fallback when the
// failure happened before setup ran
func (a *app) diag() *logger.Logger {
	if a.log != nil {
		return a.log
	}
	return logger.NewWithWriter(&config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "json",
	}, a.opts.Stderr)
}

// data builds the data layer; called only after arguments are parsed
func (a *app) data() (contracts.MarketData, func(), error) {
	md, closeFn, err := a.opts.NewData(a.cfg, a.log)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize data layer: %w", err)
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return md, closeFn, nil
}

// fail writes the error payload and logs the wrapped chain
func (a *app) fail(err error) int {
	entry := a.diag().WithError(err).WithField("kind", errorKind(err))
	entry.Error("Command failed")

	writeError(a.opts.Stdout, err)
	return 1
}

// errorKind names the sentinel an error wraps
func errorKind(err error) string {
	switch {
	case errors.Is(err, contracts.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, contracts.ErrNotFound):
		return "not_found"
	case errors.Is(err, contracts.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, contracts.ErrProvider):
		return "provider"
	default:
		return "internal"
	}
}
