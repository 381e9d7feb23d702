package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mcprouter/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the router engine and block until interrupted",
	Long: `serve brings up every engine component (cache, registry, metadata
store, adapters, health monitor, intelligent router, plugin manager),
registers any servers preconfigured in config.json, and runs until it
receives SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	dir, err := resolveDataDir()
	if err != nil {
		return err
	}

	eng, cfg, err := buildEngine(cmd, dir)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.facade.Initialize(ctx, preconfiguredServers(cfg)); err != nil {
		return err
	}
	logging.Info("routerd", "serving from %s", dir)

	<-ctx.Done()
	logging.Info("routerd", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return eng.facade.Shutdown(shutdownCtx)
}
