// Command bizbalance-worker runs the Google Sheets sync worker as its own
// process, for deployments that ship the server and the worker separately.
package main

import (
	"context"
	"fmt"
	"os"

	"bizbalance/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := cli.Worker(ctx, cfg, logger); err != nil {
		logger.Error("Worker failed", "error", err)
		stop()
		os.Exit(1)
	}
}
