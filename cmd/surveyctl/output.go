package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/faciam-dev/geosurvey/internal/layers"
	"github.com/faciam-dev/geosurvey/pkg/driver/postgres"
	"github.com/faciam-dev/geosurvey/sdk/client"
)

// printOutput prints data in either JSON or table format based on the --output flag.
func printOutput(cmd *cobra.Command, v any) error {
	format, err := cmd.Root().PersistentFlags().GetString("output")
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if format == "json" {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
		return nil
	}

	switch x := v.(type) {
	case []client.Form:
		tw := table(w, "ID", "Title", "Code", "Storage", "Table", "Responses", "Created")
		for _, f := range x {
			tw.Append([]string{f.ID.String(), f.Title, f.FormCode, f.StorageType, f.TableName, number(f.ResponseCount), f.CreatedAt})
		}
		tw.Render()
	case []client.FreeResponse:
		tw := table(w, "ID", "Form", "Latitude", "Longitude", "Accuracy", "Created")
		for _, r := range x {
			tw.Append([]string{r.UniqueDisplayID, r.FormTitle, number(r.Latitude), number(r.Longitude), number(r.Accuracy), r.CreatedAt})
		}
		tw.Render()
	case []postgres.Table:
		tw := table(w, "Table", "Geometry", "Type", "Survey")
		for _, t := range x {
			tw.Append([]string{t.FullName(), t.GeomColumn, t.GeomType, strconv.FormatBool(t.IsSurvey)})
		}
		tw.Render()
	case []postgres.Column:
		tw := table(w, "Column", "Type", "Nullable")
		for _, c := range x {
			tw.Append([]string{c.Name, c.Type, strconv.FormatBool(c.Nullable)})
		}
		tw.Render()
	case []layers.Descriptor:
		tw := table(w, "Layer", "Source", "Table", "Geometry", "Features")
		for _, d := range x {
			count := ""
			if d.Source == layers.SourceHosting {
				count = strconv.Itoa(d.Count)
			}
			tw.Append([]string{d.DisplayName, string(d.Source), d.FullName(), d.GeomType, count})
		}
		tw.Render()
	case kv:
		tw := table(w, "Key", "Value")
		for _, row := range x {
			tw.Append(row[:])
		}
		tw.Render()
	case *postgres.Result:
		tw := table(w, x.Columns...)
		for _, row := range x.Rows {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = layers.Stringify(c)
			}
			tw.Append(cells)
		}
		tw.Render()
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
	}
	return nil
}

// kv is an ordered list of key/value rows. It encodes as a JSON object.
type kv [][2]string

func (p kv) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(p))
	for _, row := range p {
		m[row[0]] = row[1]
	}
	return json.Marshal(m)
}

func table(w io.Writer, header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	return tw
}

func number(n client.Number) string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}
