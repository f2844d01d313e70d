package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tecnicofs/tfs/internal/engine"
	"github.com/tecnicofs/tfs/internal/logger"
	"github.com/tecnicofs/tfs/internal/metrics"
	"github.com/tecnicofs/tfs/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [rendezvous_path]",
	Short: "Start the session server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return &cliError{code: 1, err: fmt.Errorf("load config: %w", err)}
	}
	if len(args) == 1 {
		cfg.RendezvousPath = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return &cliError{code: 1, err: err}
	}

	log := logger.New(logger.Config{
		Severity: logger.ParseSeverity(cfg.Log.Severity),
		Format:   cfg.Log.Format,
		FilePath: cfg.Log.Path,
	})

	eng, err := engine.New(engine.Config{SimulateStorageLatency: cfg.SimulateStorageLatency}, log)
	if err != nil {
		return &cliError{code: 1, err: fmt.Errorf("init engine: %w", err)}
	}

	m := metrics.New(eng)

	rendezvous, err := server.OpenRendezvous(cfg.RendezvousPath)
	if err != nil {
		return &cliError{code: 2, err: fmt.Errorf("open rendezvous: %w", err)}
	}
	defer rendezvous.Close()

	srv := server.New(eng, log, m, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsErr := make(chan error, 1)
	go func() { metricsErr <- metrics.Serve(ctx, cfg.MetricsAddr, m) }()

	log.Info("tfsd serving", "rendezvous_path", cfg.RendezvousPath, "max_sessions", server.MaxSessions)
	if err := srv.Run(ctx, rendezvous); err != nil {
		return &cliError{code: 2, err: fmt.Errorf("server run: %w", err)}
	}
	log.Info("tfsd stopped cleanly")
	return nil
}

// cliError carries the process exit code a failure should produce, per
// §6's CLI contract (0 clean shutdown, 1 init/config failure, 2
// unrecoverable I/O).
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	return 1
}
