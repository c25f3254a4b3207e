package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/geosurvey/internal/export"
	"github.com/faciam-dev/geosurvey/internal/layers"
)

func newLayersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "layers", Short: "Survey layers from your database and the hosted table"}
	cmd.AddCommand(newLayersListCmd())
	cmd.AddCommand(newLayersExportCmd())
	cmd.AddCommand(newLayersStatsCmd())
	cmd.AddCommand(newLayersInfoCmd())
	return cmd
}

// available logs in, connects to the account's database when possible and
// lists the layers of both sources.
func available(ctx context.Context, cmd *cobra.Command, a *app) ([]layers.Descriptor, error) {
	if err := a.connectUserDB(ctx); err != nil {
		return nil, err
	}
	ds, err := a.session.Layers().Available(ctx)
	if err != nil {
		if len(ds) == 0 {
			return nil, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return ds, nil
}

// findLayer resolves name against the table, schema.table or display name
// of the available layers.
func findLayer(ctx context.Context, cmd *cobra.Command, a *app, name string) (layers.Descriptor, error) {
	ds, err := available(ctx, cmd, a)
	if err != nil {
		return layers.Descriptor{}, err
	}
	for _, d := range ds {
		if d.FullName() == name || d.Table == name || d.DisplayName == name {
			return d, nil
		}
	}
	return layers.Descriptor{}, fmt.Errorf("layer %q not found", name)
}

func newLayersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the layers that can be loaded",
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			ds, err := available(ctx, cmd, a)
			if err != nil {
				return err
			}
			return printOutput(cmd, ds)
		}),
	}
}

func newLayersExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <layer>",
		Short: "Export a layer as GeoJSON",
		Long: "Export a layer as GeoJSON to stdout, a file, a directory or an S3 prefix.\n" +
			"Directory and S3 targets receive a timestamped file named after the table.",
		Example: "  surveyctl layers export survey_arcgeek_00001 -o s3://maps/surveys/",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			dest, err := export.Parse(ctx, out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			d, err := findLayer(ctx, cmd, a, args[0])
			if err != nil {
				return err
			}
			fc, err := a.session.Layers().Export(ctx, a.db, d)
			if err != nil {
				return err
			}
			b, err := fc.MarshalJSON()
			if err != nil {
				return err
			}
			loc, err := dest.Write(ctx, export.FileName(d.Table, time.Now()), b)
			if err != nil {
				return err
			}
			if loc != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d features to %s\n", len(fc.Features), loc)
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, directory or s3://bucket/prefix (default: stdout)")
	return cmd
}

func newLayersStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <layer>",
		Short: "Count the features of a layer",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			d, err := findLayer(ctx, cmd, a, args[0])
			if err != nil {
				return err
			}
			st, err := a.session.Layers().Stats(ctx, a.db, d)
			if err != nil {
				return err
			}
			return printOutput(cmd, kv{
				{"layer", d.DisplayName},
				{"total_records", strconv.Itoa(st.Total)},
				{"with_geometry", strconv.Itoa(st.WithGeometry)},
				{"last_update", st.LastUpdate},
			})
		}),
	}
}

func newLayersInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <layer>",
		Short: "Describe where a layer is read from and how it is styled",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			d, err := findLayer(ctx, cmd, a, args[0])
			if err != nil {
				return err
			}
			rows := kv{
				{"layer", d.DisplayName},
				{"form", d.FormTitle},
				{"source", a.session.SourceInfo(d)},
				{"geometry", d.GeomColumn + " (" + d.GeomType + ")"},
			}
			if st, ok := layers.StyleFor(d.GeomType); ok {
				rows = append(rows, [2]string{"style", fmt.Sprintf("%s #%02x%02x%02x alpha %d", st.Kind, st.Color.R, st.Color.G, st.Color.B, st.Color.A)})
			}
			return printOutput(cmd, rows)
		}),
	}
}
