package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/stratdesk/internal/app"
	"github.com/newthinker/stratdesk/internal/core"
	"github.com/newthinker/stratdesk/internal/form"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	strategyName        string
	strategyDescription string
	strategyCodeFile    string
	strategySearch      string
)

var strategyCmd = &cobra.Command{
	Use:     "strategy",
	Aliases: []string{"strategies"},
	Short:   "Manage strategies",
	Long:    `Commands for listing, creating, updating and deleting strategies.`,
}

var strategyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List strategies",
	Args:  cobra.NoArgs,
	RunE:  runStrategyList,
}

var strategyGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one strategy including its code",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrategyGet,
}

var strategyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a strategy",
	Args:  cobra.NoArgs,
	RunE:  runStrategyCreate,
}

var strategyUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a strategy; omitted fields keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrategyUpdate,
}

var strategyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a strategy",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrategyDelete,
}

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.AddCommand(strategyListCmd)
	strategyCmd.AddCommand(strategyGetCmd)
	strategyCmd.AddCommand(strategyCreateCmd)
	strategyCmd.AddCommand(strategyUpdateCmd)
	strategyCmd.AddCommand(strategyDeleteCmd)

	strategyListCmd.Flags().StringVarP(&strategySearch, "search", "s", "", "only show strategies whose name or description contains this text")

	for _, c := range []*cobra.Command{strategyCreateCmd, strategyUpdateCmd} {
		c.Flags().StringVarP(&strategyName, "name", "n", "", "strategy name")
		c.Flags().StringVar(&strategyDescription, "description", "", "strategy description")
		c.Flags().StringVarP(&strategyCodeFile, "code-file", "f", "", "file holding the strategy code (- for stdin)")
	}
	strategyCreateCmd.MarkFlagRequired("name")
	strategyCreateCmd.MarkFlagRequired("code-file")
}

// withLogin is withApp for commands that need a session.
func withLogin(fn func(ctx context.Context, a *app.App) error) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		if err := a.RequireLogin(); err != nil {
			return fmt.Errorf("%w (run `stratdesk login`)", err)
		}
		return fn(ctx, a)
	})
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid strategy id %q", arg)
	}
	return id, nil
}

func readCode(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading code: %w", err)
	}
	return string(data), nil
}

func runStrategyList(cmd *cobra.Command, args []string) error {
	return withLogin(func(ctx context.Context, a *app.App) error {
		store := a.Strategies()
		if err := store.Fetch(ctx); err != nil {
			return fmt.Errorf("listing strategies: %w", err)
		}

		list := store.Search(strategySearch)
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No strategies found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tCREATED\tDESCRIPTION\t")
		fmt.Fprintln(w, "--\t----\t-------\t-------\t-----------\t")
		for _, s := range list {
			fmt.Fprintf(w, "%d\t%s\tv%d\t%s\t%s\t\n",
				s.ID, s.Name, s.Version, s.CreatedAt.Format("2006-01-02 15:04"), truncate(s.Description, 50))
		}
		w.Flush()

		a.Logger().Debug("strategies listed", zap.Int("count", len(list)))
		return nil
	})
}

func runStrategyGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withLogin(func(ctx context.Context, a *app.App) error {
		s, err := a.Strategies().Get(ctx, id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, s.Label())
		fmt.Fprintf(out, "Created:     %s\n", s.CreatedAt.Format("2006-01-02 15:04"))
		if s.Description != "" {
			fmt.Fprintf(out, "Description: %s\n", s.Description)
		}
		fmt.Fprintln(out, "---")
		fmt.Fprintln(out, strings.TrimRight(s.Code, "\n"))
		return nil
	})
}

func runStrategyCreate(cmd *cobra.Command, args []string) error {
	code, err := readCode(strategyCodeFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	// Invalid input fails before login.
	in := core.StrategyInput{Name: strategyName, Description: strategyDescription, Code: code}
	if err := form.NewStrategyForm(in).Check(); err != nil {
		return err
	}

	return withLogin(func(ctx context.Context, a *app.App) error {
		s, err := a.Strategies().Create(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", s.Label())
		return nil
	})
}

func runStrategyUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return withLogin(func(ctx context.Context, a *app.App) error {
		current, err := a.Strategies().Get(ctx, id)
		if err != nil {
			return err
		}

		f := form.NewStrategyForm(core.StrategyInput{
			Name:        current.Name,
			Description: current.Description,
			Code:        current.Code,
		})
		flags := cmd.Flags()
		if flags.Changed("name") {
			f.SetValue(form.FieldName, strategyName)
		}
		if flags.Changed("description") {
			f.SetValue(form.FieldDescription, strategyDescription)
		}
		if flags.Changed("code-file") {
			code, err := readCode(strategyCodeFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			f.SetValue(form.FieldCode, code)
		}

		s, err := a.Strategies().Update(ctx, id, form.StrategyInputOf(f))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", s.Label())
		return nil
	})
}

func runStrategyDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withLogin(func(ctx context.Context, a *app.App) error {
		if err := a.Strategies().Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted strategy %d\n", id)
		return nil
	})
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
