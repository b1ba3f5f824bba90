package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bizbalance/internal/cli"
	"bizbalance/internal/config"
	applog "bizbalance/internal/log"
)

var (
	flagConfig string
	flagOwner  string

	cfg    *config.Config
	logger *applog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "bizbalance",
	Short:         "Small-business finance tracker",
	Long:          "Record revenue, expenses and appointments, and review them from the web dashboard or the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd, true)
	},
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/bizbalance/config.toml)")
}

// setup loads .env and the layered config and builds the logger. Long
// running commands log to stdout, the others to stderr so their output can
// be piped.
func setup(cmd *cobra.Command, validate bool) error {
	cli.LoadEnvFile()
	if flagConfig != "" {
		if err := os.Setenv("BIZBALANCE_CONFIG", flagConfig); err != nil {
			return err
		}
	}

	var err error
	if validate {
		cfg, err = cli.LoadAndValidateConfig()
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if cmd.Annotations["logs"] == "stdout" {
		out = os.Stdout
	}
	logger, err = cli.SetupLogger(cfg, out)
	return err
}

// addOwnerFlag registers --owner on record commands.
func addOwnerFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagOwner, "owner", "o", "", "Owner id (default: DEFAULT_OWNER_ID)")
}

func ownerID() (string, error) {
	if flagOwner != "" {
		return flagOwner, nil
	}
	if cfg.DefaultOwnerID != "" {
		return cfg.DefaultOwnerID, nil
	}
	return "", errors.New("no owner: pass --owner or set DEFAULT_OWNER_ID")
}

// withApp builds the application for a batch command and releases it
// afterwards.
func withApp(ctx context.Context, fn func(app *cli.App, owner string) error) error {
	owner, err := ownerID()
	if err != nil {
		return err
	}
	app, err := cli.Build(ctx, cfg, logger, cli.WithoutAssistant())
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	}()
	return fn(app, owner)
}
