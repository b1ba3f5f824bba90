package main

import (
	"github.com/spf13/cobra"

	"bizbalance/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the web dashboard",
	Annotations: map[string]string{"logs": "stdout"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := cli.SignalContext(cmd.Context())
		defer stop()
		return cli.Serve(ctx, cfg, logger)
	},
}

var workerCmd = &cobra.Command{
	Use:         "worker",
	Short:       "Mirror new transactions to Google Sheets",
	Long:        "Consume transaction.recorded events and append each new transaction to the configured spreadsheet. Requires the sqlite backend.",
	Annotations: map[string]string{"logs": "stdout"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := cli.SignalContext(cmd.Context())
		defer stop()
		return cli.Worker(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd)
}
