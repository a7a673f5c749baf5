package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/newthinker/stratdesk/internal/app"
	"github.com/spf13/cobra"
)

var (
	datasetsDay    string
	datasetsOutput string
)

var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"dataset"},
	Short:   "Browse the dataset archive",
	Long: `Commands for the local or S3 dataset archive that upload --archive
writes to. They read the archive directly and need no login.`,
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived datasets",
	Args:  cobra.NoArgs,
	RunE:  runDatasetsList,
}

var datasetsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print or save an archived dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsGet,
}

var datasetsRmCmd = &cobra.Command{
	Use:     "rm <key>",
	Aliases: []string{"delete"},
	Short:   "Delete an archived dataset",
	Args:    cobra.ExactArgs(1),
	RunE:    runDatasetsRm,
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.AddCommand(datasetsListCmd)
	datasetsCmd.AddCommand(datasetsGetCmd)
	datasetsCmd.AddCommand(datasetsRmCmd)

	datasetsListCmd.Flags().StringVar(&datasetsDay, "day", "", "only datasets archived on this UTC day (YYYY-MM-DD)")
	datasetsGetCmd.Flags().StringVarP(&datasetsOutput, "output", "o", "", "write to this file instead of stdout")
}

func runDatasetsList(cmd *cobra.Command, args []string) error {
	var day time.Time
	if datasetsDay != "" {
		var err error
		if day, err = time.Parse(time.DateOnly, datasetsDay); err != nil {
			return fmt.Errorf("invalid --day %q, want YYYY-MM-DD", datasetsDay)
		}
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		datasets, err := a.Datasets()
		if err != nil {
			return err
		}
		keys, err := datasets.List(ctx, day)
		if err != nil {
			return fmt.Errorf("listing datasets: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(keys) == 0 {
			fmt.Fprintln(out, "No archived datasets.")
			return nil
		}
		for _, key := range keys {
			fmt.Fprintln(out, key)
		}
		return nil
	})
}

func runDatasetsGet(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		datasets, err := a.Datasets()
		if err != nil {
			return err
		}
		data, err := datasets.Get(ctx, args[0])
		if err != nil {
			return err
		}

		if datasetsOutput == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(datasetsOutput, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", datasetsOutput, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), datasetsOutput)
		return nil
	})
}

func runDatasetsRm(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		datasets, err := a.Datasets()
		if err != nil {
			return err
		}
		if err := datasets.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	})
}
