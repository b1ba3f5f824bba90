package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bizbalance/internal/cli"
	"bizbalance/internal/csvio"
)

var (
	flagLang   string
	flagOutput string
	flagLimit  int
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show totals, expenses by category and recent transactions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *cli.App, owner string) error {
			txs, err := app.Ledger.Transactions(cmd.Context(), owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			fmt.Fprintln(out, cli.RenderSummary(owner, txs))
			if len(txs) > 0 {
				fmt.Fprint(out, cli.RenderTransactions(txs, flagLimit))
			}
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the owner's transactions as CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		loc := csvio.ParseLocale(flagLang)
		return withApp(cmd.Context(), func(app *cli.App, owner string) error {
			if flagOutput == "" || flagOutput == "-" {
				return app.Ledger.Export(cmd.Context(), owner, cmd.OutOrStdout(), loc)
			}
			f, err := os.Create(flagOutput)
			if err != nil {
				return fmt.Errorf("create %s: %w", flagOutput, err)
			}
			w := bufio.NewWriter(f)
			if err := app.Ledger.Export(cmd.Context(), owner, w, loc); err != nil {
				f.Close()
				return err
			}
			if err := w.Flush(); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", flagOutput)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Record the transactions of an exported CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return withApp(cmd.Context(), func(app *cli.App, owner string) error {
			report, err := app.Ledger.Import(cmd.Context(), owner, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d transaction(s) in %s\n", report.Imported, report.Duration.Round(time.Millisecond))
			for _, le := range report.Errors {
				fmt.Fprintf(out, "  %s\n", le.Error())
			}
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the sample transaction and appointment for a new owner",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *cli.App, owner string) error {
			return printCounts(cmd, app, owner)
		})
	},
}

// printCounts reads both collections, which seeds an empty owner first.
func printCounts(cmd *cobra.Command, app *cli.App, owner string) error {
	ctx := cmd.Context()
	txs, err := app.Ledger.Transactions(ctx, owner)
	if err != nil {
		return err
	}
	appts, err := app.Ledger.Appointments(ctx, owner)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Owner %s: %d transaction(s), %d appointment(s)\n", owner, len(txs), len(appts))
	return nil
}

func init() {
	for _, c := range []*cobra.Command{summaryCmd, exportCmd, importCmd, seedCmd} {
		addOwnerFlag(c)
		rootCmd.AddCommand(c)
	}
	summaryCmd.Flags().IntVarP(&flagLimit, "limit", "n", 10, "Recent transactions to list (0 for all)")
	exportCmd.Flags().StringVarP(&flagLang, "lang", "l", "en", "Column labels: en or pt")
	exportCmd.Flags().StringVarP(&flagOutput, "output", "f", "", "Output file (default stdout)")
}
