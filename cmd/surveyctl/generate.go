package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/geosurvey/internal/logger"
	"github.com/faciam-dev/geosurvey/pkg/ddl"
	"github.com/faciam-dev/geosurvey/pkg/form"
	"github.com/faciam-dev/geosurvey/pkg/ident"
)

func newSQLCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sql", Short: "Render survey table scripts"}
	cmd.AddCommand(newSQLGenerateCmd())
	cmd.AddCommand(newSQLDiffCmd())
	return cmd
}

// render builds the script for the definition at file. Title falls back to
// the definition title.
func render(file, table, title string) (string, error) {
	def, err := form.LoadDefinition(file)
	if err != nil {
		return "", err
	}
	return renderDefinition(def, table, title)
}

func renderDefinition(def *form.Definition, table, title string) (string, error) {
	if title == "" {
		title = def.Title
	}
	return ddl.GenerateSpatial(table, form.APIFields(def.Fields), title)
}

func newSQLGenerateCmd() *cobra.Command {
	var (
		file  string
		table string
		title string
		out   string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the PostGIS script for a form definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			if table == "" {
				table = form.NewTableName(nil)
			}
			emit := func(script string) error {
				if out != "" {
					return os.WriteFile(out, []byte(script), 0o644)
				}
				_, err := fmt.Fprint(cmd.OutOrStdout(), script)
				return err
			}
			script, err := render(file, table, title)
			if err != nil {
				return err
			}
			if err := emit(script); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes (Ctrl-C to stop)\n", file)
			return form.WatchDefinition(ctx, file, 200*time.Millisecond, logger.L, func(def *form.Definition, err error) {
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					return
				}
				script, err := renderDefinition(def, table, title)
				if err == nil {
					err = emit(script)
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
					return
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Regenerated %s\n", table)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Form definition (YAML)")
	cmd.Flags().StringVar(&table, "table", "", "Table name (default: random survey_arcgeek_NNNNN)")
	cmd.Flags().StringVar(&title, "title", "", "Title for the header comment")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the script to a file")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Regenerate whenever the definition changes")
	mustFlag(cmd, "file")
	return cmd
}

func newSQLDiffCmd() *cobra.Command {
	var (
		file  string
		table string
		title string
	)
	cmd := &cobra.Command{
		Use:   "diff <script.sql>",
		Short: "Compare a saved script with what the definition renders today",
		Long: "Compare a saved script with what the definition renders today.\n" +
			"The table name defaults to the one declared in the script. Exits non-zero when they differ.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			saved := string(b)
			if table == "" {
				table = scriptTable(saved)
			}
			if table == "" {
				return errors.New("cannot find the table name in the script; pass --table")
			}
			script, err := render(file, table, title)
			if err != nil {
				return err
			}
			d := ddl.Diff(saved, script, args[0], file)
			if d == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No differences.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), d)
			return errScriptsDiffer
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Form definition (YAML)")
	cmd.Flags().StringVar(&table, "table", "", "Table name (default: taken from the script)")
	cmd.Flags().StringVar(&title, "title", "", "Title for the header comment")
	mustFlag(cmd, "file")
	return cmd
}

var (
	errScriptsDiffer = errors.New("script differs from the definition")
	createTableRe    = regexp.MustCompile(`(?i)CREATE TABLE\s+(?:IF NOT EXISTS\s+)?"?([A-Za-z0-9_]+)"?`)
)

func scriptTable(script string) string {
	if m := createTableRe.FindStringSubmatch(script); m != nil {
		return m[1]
	}
	return ""
}

func newFieldsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "fields", Short: "Field helpers"}
	cmd.AddCommand(&cobra.Command{
		Use:   "normalize <label>...",
		Short: "Turn labels into column identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := ident.Names(args)
			rows := make(kv, len(args))
			for i := range args {
				rows[i] = [2]string{args[i], names[i]}
			}
			return printOutput(cmd, rows)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List the supported field types and their column types",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make(kv, len(form.Types))
			for i, t := range form.Types {
				rows[i] = [2]string{string(t), ddl.SQLType(t)}
			}
			return printOutput(cmd, rows)
		},
	})
	return cmd
}
