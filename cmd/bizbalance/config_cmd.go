package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"bizbalance/internal/config"
)

var flagForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
	// Config commands must work with a broken configuration.
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd, false)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		path := config.Path()
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "# Config file: %s\n", path)
		} else {
			fmt.Fprintf(out, "# Config file: %s (not found, using defaults and environment)\n", path)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "# %s\n", err.Error())
		}
		fmt.Fprintln(out)

		shown := *cfg
		shown.AIAPIKey = maskSecret(shown.AIAPIKey)
		shown.AMQPURL = maskSecret(shown.AMQPURL)
		return toml.NewEncoder(out).Encode(shown)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := config.Path()
		if _, err := os.Stat(path); err == nil && !flagForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.Save(path, config.Defaults()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func init() {
	configInitCmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
