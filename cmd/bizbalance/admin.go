package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bizbalance/internal/cli"
	gsheet "bizbalance/internal/sheets/google"
	"bizbalance/internal/storage"
)

var (
	flagClientFile string
	flagTokenFile  string
	flagPort       string
)

var oauthInitCmd = &cobra.Command{
	Use:   "oauth-init",
	Short: "Authorize Google Sheets access and save the OAuth token",
	Long: "Runs the installed-app OAuth flow: open the printed URL, approve access and the token is written " +
		"to the token file used by the worker (GOOGLE_OAUTH_TOKEN_FILE).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		clientJSON, err := clientCredentials()
		if err != nil {
			return err
		}
		oauthCfg, err := gsheet.OAuthConfig(clientJSON)
		if err != nil {
			return err
		}

		port := firstSet(flagPort, os.Getenv("OAUTH_REDIRECT_PORT"), "8085")
		tokenFile := firstSet(flagTokenFile, os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"), "token.json")

		ctx, stop := cli.SignalContext(cmd.Context())
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		tok, err := gsheet.Authorize(ctx, oauthCfg, port, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := gsheet.SaveToken(tokenFile, tok); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the SQLite schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := cfg.SQLiteDBPath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := storage.RunMigrations(path); err != nil {
			return err
		}
		v, dirty, err := storage.SchemaVersion(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s at schema version %d (dirty=%v)\n", path, v, dirty)
		return nil
	},
}

func clientCredentials() ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")); v != "" {
		return []byte(v), nil
	}
	file := firstSet(flagClientFile, os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))
	if file == "" {
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE, or pass --client-file")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read client file: %w", err)
	}
	return b, nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func init() {
	oauthInitCmd.Flags().StringVar(&flagClientFile, "client-file", "", "OAuth client JSON (default GOOGLE_OAUTH_CLIENT_FILE)")
	oauthInitCmd.Flags().StringVar(&flagTokenFile, "token-file", "", "Where to write the token (default GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	oauthInitCmd.Flags().StringVar(&flagPort, "port", "", "Local port for the OAuth callback (default OAUTH_REDIRECT_PORT or 8085)")
	rootCmd.AddCommand(oauthInitCmd, migrateCmd)
}
