package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/newthinker/stratdesk/internal/app"
	"github.com/spf13/cobra"
)

var uploadArchive bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a price dataset for backtesting",
	Long: `Upload a CSV price dataset. With --archive, or archive.enabled in the
config, a copy is kept in the dataset archive first.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadArchive, "archive", false, "keep a copy in the dataset archive")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	return withLogin(func(ctx context.Context, a *app.App) error {
		res, err := a.Upload(ctx, args[0], uploadArchive)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Uploaded %s: %d rows\n", res.Dataset.Filename, res.Dataset.Rows)
		if len(res.Dataset.Columns) > 0 {
			fmt.Fprintf(out, "Columns:  %s\n", strings.Join(res.Dataset.Columns, ", "))
		}
		if res.ArchiveKey != "" {
			fmt.Fprintf(out, "Archived: %s\n", res.ArchiveKey)
		}
		return nil
	})
}
