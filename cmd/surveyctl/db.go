package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/geosurvey/pkg/driver/postgres"
	"github.com/faciam-dev/geosurvey/sdk"
	"github.com/faciam-dev/geosurvey/sdk/client"
)

// DBPasswordEnv supplies the password for --host connections.
const DBPasswordEnv = "SURVEY_DB_PASSWORD"

type dbFlags struct {
	host     string
	port     int
	database string
	user     string
	sslmode  string
}

func (f *dbFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.host, "host", "", "Database host (default: the account's database)")
	pf.IntVar(&f.port, "port", postgres.DefaultPort, "Database port")
	pf.StringVar(&f.database, "database", "", "Database name")
	pf.StringVar(&f.user, "user", "", "Database user (password from "+DBPasswordEnv+")")
	pf.StringVar(&f.sslmode, "sslmode", "", "SSL mode passed to the driver")
}

// params returns the explicit connection, or the one configured for the
// logged in account when --host is not given.
func (f *dbFlags) params(ctx context.Context, a *app) (postgres.Params, error) {
	if f.host != "" {
		p := postgres.Params{
			Host:     f.host,
			Port:     f.port,
			Database: f.database,
			Username: f.user,
			Password: os.Getenv(DBPasswordEnv),
			SSLMode:  f.sslmode,
		}
		if !p.Complete() {
			return postgres.Params{}, sdk.ErrIncompletePostgresConfig
		}
		return p, nil
	}
	u, err := a.login(ctx)
	if err != nil {
		return postgres.Params{}, err
	}
	if u.Postgres.Host == "" {
		return postgres.Params{}, sdk.ErrNoPostgresConfig
	}
	p := sdk.ParamsFromConfig(u.Postgres)
	p.SSLMode = f.sslmode
	if !p.Complete() {
		return postgres.Params{}, sdk.ErrIncompletePostgresConfig
	}
	return p, nil
}

func (f *dbFlags) connect(ctx context.Context, a *app) error {
	p, err := f.params(ctx, a)
	if err != nil {
		return err
	}
	return a.db.Connect(ctx, p)
}

func newDBCmd() *cobra.Command {
	f := &dbFlags{}
	cmd := &cobra.Command{Use: "db", Short: "PostgreSQL/PostGIS operations"}
	f.register(cmd)
	cmd.AddCommand(newDBTestCmd(f))
	cmd.AddCommand(newDBTablesCmd(f))
	cmd.AddCommand(newDBDescribeCmd(f))
	cmd.AddCommand(newDBStatsCmd(f))
	cmd.AddCommand(newDBExecCmd(f))
	cmd.AddCommand(newDBApplyCmd(f))
	return cmd
}

func newDBTestCmd(f *dbFlags) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the connection and report the PostGIS version",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			p, err := f.params(ctx, a)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Testing %s\n", p.Redacted())
			info, err := a.db.TestConnection(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.Summary())
			if !info.PostGISAvailable {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: survey tables need the PostGIS extension")
			}
			if !remote {
				return nil
			}
			if !a.client.Authenticated() {
				if _, err := a.login(ctx); err != nil {
					return err
				}
			}
			ok, err := a.client.ValidateDatabase(ctx, client.PostgresConfig{
				Host:     p.Host,
				Port:     client.FlexString(strconv.Itoa(p.Port)),
				Database: p.Database,
				Username: p.Username,
				Password: p.Password,
			})
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("the backend could not reach this database")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Backend: reachable")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Also check that the backend can reach the database")
	return cmd
}

func newDBTablesCmd(f *dbFlags) *cobra.Command {
	var all, spatial, count bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List survey tables (or all geometry tables)",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if err := f.connect(ctx, a); err != nil {
				return err
			}
			if count {
				n, err := a.db.CountSurveyTables(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}
			var (
				tables []postgres.Table
				err    error
			)
			switch {
			case all:
				tables, err = a.db.ListAllGeometryTables(ctx)
			case spatial:
				tables, err = a.db.ListSpatialTables(ctx)
			default:
				tables, err = a.db.ListSurveyTables(ctx)
			}
			if err != nil {
				return err
			}
			return printOutput(cmd, tables)
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "Every table registered in geometry_columns")
	cmd.Flags().BoolVar(&spatial, "spatial", false, "Geometry tables outside the system schemas")
	cmd.Flags().BoolVar(&count, "count", false, "Only print the number of survey tables")
	cmd.MarkFlagsMutuallyExclusive("all", "spatial", "count")
	return cmd
}

func newDBDescribeCmd(f *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <[schema.]table>",
		Short: "Show the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if err := f.connect(ctx, a); err != nil {
				return err
			}
			schema, table := splitTable(args[0])
			ok, err := a.db.TableExists(ctx, schema, table)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("table %s.%s not found", schema, table)
			}
			cols, err := a.db.DescribeColumns(ctx, schema, table)
			if err != nil {
				return err
			}
			return printOutput(cmd, cols)
		}),
	}
}

func newDBStatsCmd(f *dbFlags) *cobra.Command {
	var geom string
	cmd := &cobra.Command{
		Use:   "stats <[schema.]table>",
		Short: "Count records and geometries of a table",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if err := f.connect(ctx, a); err != nil {
				return err
			}
			schema, table := splitTable(args[0])
			st, err := a.db.LayerStats(ctx, schema, table, geom)
			if err != nil {
				return err
			}
			last := ""
			if st.LastUpdate != nil {
				last = st.LastUpdate.Format("2006-01-02 15:04:05")
			}
			return printOutput(cmd, kv{
				{"total_records", strconv.FormatInt(st.Total, 10)},
				{"with_geometry", strconv.FormatInt(st.WithGeometry, 10)},
				{"last_update", last},
			})
		}),
	}
	cmd.Flags().StringVar(&geom, "geom", "geom", "Geometry column")
	return cmd
}

func newDBExecCmd(f *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <query>",
		Short: "Run a query in a transaction and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if err := f.connect(ctx, a); err != nil {
				return err
			}
			res, err := a.db.ExecSQL(ctx, args[0])
			if err != nil {
				if code := postgres.SQLState(err); code != "" {
					return fmt.Errorf("%w (SQLSTATE %s)", err, code)
				}
				return err
			}
			if len(res.Columns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			}
			return printOutput(cmd, res)
		}),
	}
}

func newDBApplyCmd(f *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <script.sql>",
		Short: "Run a DDL script, such as the output of sql generate",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			script, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := f.connect(ctx, a); err != nil {
				return err
			}
			if err := a.db.CreateTableFromSQL(ctx, string(script)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", args[0])
			return nil
		}),
	}
}
