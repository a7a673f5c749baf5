package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/newthinker/stratdesk/internal/app"
	"github.com/newthinker/stratdesk/internal/core"
	"github.com/spf13/cobra"
)

var backtestFile string

var backtestCmd = &cobra.Command{
	Use:   "backtest <strategy-id>",
	Short: "Run backtest on a strategy",
	Long:  "Run a strategy against an uploaded dataset and show performance statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVarP(&backtestFile, "file", "f", "", "uploaded dataset filename (required)")
	backtestCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return withLogin(func(ctx context.Context, a *app.App) error {
		res, err := a.Backtest(ctx, core.BacktestRequest{
			StrategyID: id,
			Filename:   filepath.Base(backtestFile),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "=== Backtest ===")
		fmt.Fprintf(out, "Strategy:     %d\n", res.StrategyID)
		fmt.Fprintf(out, "Dataset:      %s\n", filepath.Base(backtestFile))
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Profit/Loss:  %+.2f\n", res.ProfitLoss)
		fmt.Fprintf(out, "Total return: %.4f\n", res.TotalReturn)
		fmt.Fprintf(out, "Win rate:     %.4f\n", res.WinRate)
		fmt.Fprintf(out, "Max drawdown: %.4f\n", res.MaxDrawdown)
		fmt.Fprintf(out, "Sharpe ratio: %.2f\n", res.SharpeRatio)
		fmt.Fprintf(out, "Trades:       %d\n", res.TotalTrades)
		fmt.Fprintln(out)
		switch {
		case res.IsProfitable():
			fmt.Fprintln(out, "Result: profit")
		case res.ProfitLoss < 0:
			fmt.Fprintln(out, "Result: loss")
		default:
			fmt.Fprintln(out, "Result: break-even")
		}
		return nil
	})
}
