package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/txengine/internal/adapter/csvio"
	"github.com/iho/txengine/internal/adapter/repository/memory"
	"github.com/iho/txengine/internal/infrastructure/config"
	"github.com/iho/txengine/internal/infrastructure/idgen"
	"github.com/iho/txengine/internal/infrastructure/logger"
	"github.com/iho/txengine/internal/usecase"
)

// rootOptions mirror the ledger and logging settings of config.Config. A flag
// that is set on the command line wins over the environment.
type rootOptions struct {
	strict          bool
	rejectOverdraft bool
	freezeLocked    bool
	failFast        bool
	logLevel        string
	logFormat       string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "txengine [file|-]",
		Short: "Transaction ledger engine",
		Long: `Reads deposit, withdrawal, dispute, resolve and chargeback records as CSV
and prints the resulting client accounts as CSV.

Input defaults to stdin; "-" also means stdin. Logs go to stderr.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runProcess(cmd, opts, path)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&opts.strict, "strict", false, "report disputes, resolves and chargebacks that reference nothing")
	flags.BoolVar(&opts.rejectOverdraft, "reject-overdraft", false, "reject withdrawals larger than the available funds")
	flags.BoolVar(&opts.freezeLocked, "freeze-locked", false, "reject deposits and withdrawals on locked accounts")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled (env LOG_LEVEL)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: json, console (env LOG_FORMAT)")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "stop at the first record that is not applied cleanly")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRemoteCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads the environment and applies explicitly set flags.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("strict") {
		cfg.LedgerStrict = opts.strict
	}
	if flags.Changed("reject-overdraft") {
		cfg.LedgerRejectOverdraft = opts.rejectOverdraft
	}
	if flags.Changed("freeze-locked") {
		cfg.LedgerFreezeLocked = opts.freezeLocked
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}

	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
}

func policyFromConfig(cfg *config.Config) usecase.Policy {
	return usecase.Policy{
		Strict:          cfg.LedgerStrict,
		RejectOverdraft: cfg.LedgerRejectOverdraft,
		FreezeLocked:    cfg.LedgerFreezeLocked,
	}
}

func runProcess(cmd *cobra.Command, opts *rootOptions, path string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	input, closeInput, err := openInput(cmd, path)
	if err != nil {
		return err
	}
	defer closeInput()

	ledger := usecase.NewLedgerUseCase(
		memory.NewAccountRepository(),
		memory.NewJournalRepository(),
		memory.NewDisputeRepository(),
		usecase.WithPolicy(policyFromConfig(cfg)),
		usecase.WithLogger(log),
	)
	ingest := usecase.NewIngestUseCase(ledger, idgen.NewULIDGenerator(), nil, log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := ingest.Ingest(ctx, csvio.NewReader(input), usecase.IngestOptions{FailFast: opts.failFast}); err != nil {
		return err
	}

	return csvio.NewWriter(cmd.OutOrStdout()).WriteAccounts(ledger.Snapshot(ctx))
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}
