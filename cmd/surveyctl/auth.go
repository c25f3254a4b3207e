package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faciam-dev/geosurvey/pkg/config"
)

func newLoginCmd() *cobra.Command {
	var (
		remember       bool
		nonInteractive bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials and save them into ~/.surveyctl/config.json",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			r := &a.resolved
			if !nonInteractive {
				if r.Email == "" {
					r.Email = prompt(cmd, "Email", r.Settings.Email)
				}
				if r.Password == "" {
					r.Password = promptSecret(cmd, "Password")
				}
			}
			if r.Email == "" || r.Password == "" {
				return fmt.Errorf("email and password are required (provide --email and SURVEY_PASSWORD or use interactive mode)")
			}
			u, err := a.login(ctx)
			if err != nil {
				return err
			}

			cfg := r.Settings
			cfg.ServerURL = a.client.BaseURL()
			if err := cfg.Remember(r.Email, r.Password, remember); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (plan: %s, storage: %s)\n", u.Email, u.Plan(), storageLabel(a.client.CanUsePostgres()))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&remember, "remember", false, "Remember the password")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the remembered password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.Forget()
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account and plan of the saved credentials",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			u, err := a.login(ctx)
			if err != nil {
				return err
			}
			db := "not configured"
			if u.Postgres.Host != "" {
				db = fmt.Sprintf("%s/%s", u.Postgres.Host, u.Postgres.Database)
			}
			return printOutput(cmd, kv{
				{"user_id", u.UserID.String()},
				{"email", u.Email},
				{"name", u.Name},
				{"plan", u.Plan()},
				{"storage", storageLabel(a.client.CanUsePostgres())},
				{"database", db},
			})
		}),
	}
}

func storageLabel(postgres bool) string {
	if postgres {
		return "postgres"
	}
	return "hosted"
}

func prompt(cmd *cobra.Command, label, def string) string {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [%s]: ", label, def)
	s := readLine(cmd.InOrStdin())
	if s == "" {
		return def
	}
	return s
}

func promptSecret(cmd *cobra.Command, label string) string {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	if !term.IsTerminal(int(syscall.Stdin)) || cmd.InOrStdin() != os.Stdin {
		return readLine(cmd.InOrStdin())
	}
	b, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.ErrOrStderr())
	return strings.TrimSpace(string(b))
}

// readLine reads up to the next newline without buffering past it, so
// consecutive prompts can share one input stream.
func readLine(r io.Reader) string {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			break
		}
	}
	return strings.TrimSpace(sb.String())
}

// confirm asks a yes/no question and defaults to no.
func confirm(cmd *cobra.Command, question string) bool {
	ans := prompt(cmd, question+" (y/N)", "n")
	return strings.EqualFold(ans, "y") || strings.EqualFold(ans, "yes")
}
