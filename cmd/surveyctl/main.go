package main

import (
	"log"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "surveyctl",
		Short:         "Design survey forms and manage their PostGIS tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("server", "", "Survey backend base URL")
	root.PersistentFlags().String("email", "", "Account email")
	root.PersistentFlags().String("token", "", "Plugin token (skips the identity service)")
	root.PersistentFlags().String("output", "table", "Output format (table|json)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log requests and queries")

	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newWhoamiCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newFormsCmd())
	root.AddCommand(newResponsesCmd())
	root.AddCommand(newMessageCmd())
	root.AddCommand(newPingCmd())
	root.AddCommand(newSQLCmd())
	root.AddCommand(newFieldsCmd())
	root.AddCommand(newDBCmd())
	root.AddCommand(newLayersCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
