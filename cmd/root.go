// Package cmd wires configuration, the database layer and the MCP transport
// into the sqlgate binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sqlgate/internal/action"
	"sqlgate/internal/config"
	"sqlgate/internal/db"
	"sqlgate/internal/dialect"
	"sqlgate/internal/executor"
	"sqlgate/internal/transport"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sqlgate",
	Short: "MCP gateway exposing SQL databases as callable actions",
	Long: "sqlgate serves a fixed set of database actions (queries, DDL, inserts)\n" +
		"over the Model Context Protocol, speaking to MySQL, PostgreSQL or SQLite.\n" +
		"All configuration comes from SQLGATE_* environment variables.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	// Stdout carries the protocol on the stdio transport; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	d, err := dialect.Get(cfg.Driver)
	if err != nil {
		return err
	}

	provider := db.NewProvider(d, cfg.ConnParams(), db.WithLogger(log))
	defer provider.Close()

	reg := action.NewRegistry()
	executor.New(provider, d, executor.Options{
		DefaultDatabase: cfg.Database,
		MaxResultRows:   cfg.MaxRows,
		QueryTimeout:    cfg.QueryTimeout,
		Logger:          log,
	}).Register(reg)

	disp := action.NewDispatcher(reg, log)
	srv := transport.NewServer(reg, disp, log)

	log.Info("starting gateway",
		"driver", cfg.Driver,
		"database", cfg.Database,
		"transport", cfg.Transport,
		"actions", len(reg.List()))

	if err := transport.Run(ctx, srv, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("gateway stopped")
	return nil
}
