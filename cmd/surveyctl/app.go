package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/faciam-dev/geosurvey/internal/logger"
	"github.com/faciam-dev/geosurvey/pkg/config"
	"github.com/faciam-dev/geosurvey/pkg/driver/postgres"
	"github.com/faciam-dev/geosurvey/pkg/form"
	"github.com/faciam-dev/geosurvey/sdk"
	"github.com/faciam-dev/geosurvey/sdk/client"
)

var errNoCredentials = errors.New("no credentials: run surveyctl login or set SURVEY_EMAIL and SURVEY_PASSWORD")

// app is the per-invocation wiring shared by the commands.
type app struct {
	resolved config.Resolved
	log      *zap.SugaredLogger
	client   *client.Client
	db       *postgres.Adapter
	session  *sdk.Session
}

func newApp(cmd *cobra.Command) (*app, error) {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	zl := logger.Configure(verbose)

	r, err := config.Resolve(cmd)
	if err != nil {
		return nil, err
	}
	opts := []client.Option{client.WithLogger(zl)}
	if r.IdentityKey != "" {
		opts = append(opts, client.WithIdentity(r.IdentityURL, r.IdentityKey))
	}
	c := client.New(r.ServerURL, opts...)
	if r.PluginToken != "" {
		c.Tokens().Set(r.PluginToken)
	}
	db := postgres.New(postgres.WithLogger(zl))
	s := sdk.NewSession(c, db, zl)
	s.DropOnFailure = r.Settings.DropOnFailure

	return &app{resolved: r, log: zl, client: c, db: db, session: s}, nil
}

// close releases the database connection and flushes the logger.
func (a *app) close() {
	if err := a.db.Close(); err != nil {
		logger.L.Warn("close database", "err", err)
	}
	_ = a.log.Sync()
}

// login authenticates with the resolved credentials.
func (a *app) login(ctx context.Context) (*client.UserConfig, error) {
	if a.resolved.Email == "" || a.resolved.Password == "" {
		return nil, errNoCredentials
	}
	u, err := a.client.Login(ctx, a.resolved.Email, a.resolved.Password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	logger.L.Debug("logged in", "email", u.Email, "plan", u.Plan())
	return u, nil
}

// connectUserDB logs in and connects to the user's configured database.
// Failing to connect is not fatal: the session then works on the free table.
func (a *app) connectUserDB(ctx context.Context) error {
	u, err := a.login(ctx)
	if err != nil {
		return err
	}
	if u.Plan() == string(form.PlanFree) {
		return nil
	}
	if err := a.session.AutoConnect(ctx); err != nil {
		logger.L.Warn("database unavailable, using hosted storage", "err", err)
	}
	return nil
}

// withApp runs fn with a fresh app bound to the command's context.
func withApp(fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), cmd, a, args)
	}
}

// splitTable parses "schema.table", defaulting the schema to public.
func splitTable(name string) (schema, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "public", name
}

// mustFlag marks name as required on cmd. A missing flag is a programming
// error, so it aborts.
func mustFlag(cmd *cobra.Command, name string) {
	cobra.CheckErr(cmd.MarkFlagRequired(name))
}
