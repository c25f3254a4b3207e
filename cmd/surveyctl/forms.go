package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/geosurvey/pkg/form"
	"github.com/faciam-dev/geosurvey/sdk"
)

func newFormsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "forms", Short: "Manage survey forms"}
	cmd.AddCommand(newFormsListCmd())
	cmd.AddCommand(newFormsCreateCmd())
	cmd.AddCommand(newFormsDeleteCmd())
	return cmd
}

func newFormsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your forms",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.login(ctx); err != nil {
				return err
			}
			forms, err := a.client.Forms(ctx)
			if err != nil {
				return err
			}
			return printOutput(cmd, forms)
		}),
	}
}

func newFormsCreateCmd() *cobra.Command {
	var (
		file        string
		title       string
		description string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a form from a YAML definition",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			def, err := form.LoadDefinition(file)
			if err != nil {
				return err
			}
			if title != "" {
				def.Title = title
			}
			if description != "" {
				def.Description = description
			}

			if err := a.connectUserDB(ctx); err != nil {
				return err
			}
			u := a.client.User()
			existing, err := a.client.Forms(ctx)
			if err != nil {
				return err
			}
			if limits := form.LimitsFor(form.Plan(u.Plan())); !limits.AllowsForms(len(existing)) {
				return fmt.Errorf("plan %s allows %d forms and you have %d", u.Plan(), limits.Forms, len(existing))
			}

			res, err := a.session.CreateForm(ctx, def.Title, def.Description, def.Fields)
			var pf *sdk.PartialFailure
			if errors.As(err, &pf) && !pf.Compensated {
				fmt.Fprintf(cmd.ErrOrStderr(), "table %s was created but not registered; drop it or retry\n", pf.Table)
			}
			if err != nil {
				return err
			}
			return printOutput(cmd, kv{
				{"form_id", res.Remote.FormID.String()},
				{"form_code", res.Remote.FormCode},
				{"collection_url", res.Remote.CollectionURL},
				{"storage", string(res.Package.CreationType)},
				{"table", res.Package.TableName},
				{"fields", fmt.Sprint(len(res.Package.Fields))},
			})
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Form definition (YAML)")
	cmd.Flags().StringVar(&title, "title", "", "Form title (overrides the file)")
	cmd.Flags().StringVar(&description, "description", "", "Form description (overrides the file)")
	mustFlag(cmd, "file")
	return cmd
}

func newFormsDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <form-id>",
		Short: "Delete a form",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if !yes && !confirm(cmd, fmt.Sprintf("Delete form %s?", args[0])) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			if _, err := a.login(ctx); err != nil {
				return err
			}
			if err := a.client.DeleteForm(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Form %s deleted\n", args[0])
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newResponsesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "responses", Short: "Read collected responses"}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List responses stored on the hosted free table",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.login(ctx); err != nil {
				return err
			}
			out, err := a.client.FreeResponses(ctx, limit, offset)
			if err != nil {
				return err
			}
			return printOutput(cmd, out)
		}),
	}
	list.Flags().IntVar(&limit, "limit", 0, "Page size (default 1000)")
	list.Flags().IntVar(&offset, "offset", 0, "Records to skip")

	var apiKey string
	get := &cobra.Command{
		Use:   "get <form-code>",
		Short: "Fetch the raw responses of a form",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			raw, err := a.client.FormResponses(ctx, args[0], apiKey)
			if err != nil {
				return err
			}
			return printOutput(cmd, raw)
		}),
	}
	get.Flags().StringVar(&apiKey, "api-key", "", "API key of a private form")

	cmd.AddCommand(list, get)
	return cmd
}

func newMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message",
		Short: "Show the announcement for your plan",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if a.resolved.Email != "" && a.resolved.Password != "" {
				if _, err := a.login(ctx); err != nil {
					return err
				}
			}
			m, err := a.client.PluginMessage(ctx)
			if err != nil {
				return err
			}
			if !m.Visible() {
				fmt.Fprintln(cmd.OutOrStdout(), "No announcements.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n%s\n", m.Message.Type, m.Message.Title, m.Message.Content)
			return nil
		}),
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend is reachable",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if err := a.client.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is reachable\n", a.client.BaseURL())
			return nil
		}),
	}
}
