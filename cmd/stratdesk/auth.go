package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/newthinker/stratdesk/internal/app"
	"github.com/newthinker/stratdesk/internal/core"
	"github.com/newthinker/stratdesk/internal/state/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginUsername      string
	loginPasswordStdin bool
	whoamiWatch        bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the access token",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username (prompted when empty)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	whoamiCmd.Flags().BoolVarP(&whoamiWatch, "watch", "w", false, "keep running and report logins and logouts")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		username := loginUsername
		if username == "" {
			fmt.Fprint(out, "Username: ")
			line, err := readLine(in)
			if err != nil {
				return err
			}
			username = line
		}

		password, err := readPassword(in, out)
		if err != nil {
			return err
		}

		if err := a.Session().Login(ctx, username, password); err != nil {
			return err
		}
		fmt.Fprintf(out, "Logged in as %s\n", username)
		return nil
	})
}

// readPassword reads without echo from a terminal, otherwise one line of input.
func readPassword(in *bufio.Reader, out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !loginPasswordStdin && term.IsTerminal(fd) {
		fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	return readLine(in)
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		if err := a.Session().Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		out := cmd.OutOrStdout()
		printIdentity(out, a.Session())
		if !whoamiWatch {
			return nil
		}
		return watchIdentity(ctx, out, a)
	})
}

// watchIdentity reprints the identity each time another process logs in or
// out, until ctx is done.
func watchIdentity(ctx context.Context, out io.Writer, a *app.App) error {
	return a.LocalStore().Watch(ctx, 0, func() {
		before := a.Session().Token()
		a.Session().Sync()
		if a.Session().Token() != before {
			printIdentity(out, a.Session())
		}
	})
}

func printIdentity(out io.Writer, s *auth.Session) {
	claims, err := s.Claims()
	switch {
	case errors.Is(err, core.ErrNotAuthenticated):
		fmt.Fprintln(out, "Not logged in")
	case errors.Is(err, core.ErrTokenExpired):
		fmt.Fprintf(out, "Session of %s expired at %s\n", claims.Subject, claims.ExpiresAt.Local().Format(time.RFC3339))
	case err != nil:
		fmt.Fprintln(out, "Logged in (opaque token)")
	case claims.ExpiresAt.IsZero():
		fmt.Fprintf(out, "Logged in as %s\n", claims.Subject)
	default:
		fmt.Fprintf(out, "Logged in as %s until %s\n", claims.Subject, claims.ExpiresAt.Local().Format(time.RFC3339))
	}
}
