package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hongminglow/all-in-dash/internal/app"
)

type credentialFlags struct {
	email         string
	passwordStdin bool
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	_ = cmd.MarkFlagRequired("email")
}

func newSignupCmd(rt *runtime) *cobra.Command {
	var (
		creds credentialFlags
		name  string
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, creds.passwordStdin)
			if err != nil {
				return err
			}
			return rt.run(cmd, func(a *app.App) error {
				route, err := a.Account.SignUp(cmd.Context(), name, creds.email, password)
				if err != nil {
					return err
				}
				return printWelcome(cmd.OutOrStdout(), a, route)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (letters and spaces)")
	_ = cmd.MarkFlagRequired("name")
	creds.bind(cmd)
	return cmd
}

func newLoginCmd(rt *runtime) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, creds.passwordStdin)
			if err != nil {
				return err
			}
			return rt.run(cmd, func(a *app.App) error {
				route, err := a.Account.LogIn(cmd.Context(), creds.email, password)
				if err != nil {
					return err
				}
				return printWelcome(cmd.OutOrStdout(), a, route)
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, func(a *app.App) error {
				a.Account.LogOut()
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return err
			})
		},
	}
}

func newStatusCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in and when the session expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, func(a *app.App) error {
				out := cmd.OutOrStdout()
				snap := a.Session.Snapshot()
				if snap.User == nil {
					_, err := fmt.Fprintln(out, "Not logged in.")
					return err
				}
				fmt.Fprintf(out, "Logged in as %s <%s>\n", snap.User.Name, snap.User.Email)
				if left, ok := a.Codec.TimeUntilExpiration(snap.Credential); ok {
					fmt.Fprintf(out, "Session expires in %s\n", left.Truncate(time.Second))
				}
				_, err := fmt.Fprintf(out, "Next: %s\n", a.Session.NextRoute())
				return err
			})
		},
	}
}

func printWelcome(w io.Writer, a *app.App, route string) error {
	user := a.Session.User()
	if user == nil {
		return errors.New("session ended unexpectedly")
	}
	_, err := fmt.Fprintf(w, "Logged in as %s <%s>. Next: %s\n", user.Name, user.Email, route)
	return err
}

// readPassword takes the first stdin line with --password-stdin, or prompts
// without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for the password prompt (use --password-stdin)")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
