package layers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/faciam-dev/geosurvey/pkg/driver/postgres"
	"github.com/faciam-dev/geosurvey/sdk/client"
)

// fixedAttributes lead every hosting feature's attribute list.
var fixedAttributes = []string{"id", "form_title", "form_code", "accuracy", "created_at"}

// attribute is a data key projected to a feature property.
type attribute struct {
	name string
	keys []string
}

// CleanAttribute lowercases a data key and replaces spaces with underscores.
func CleanAttribute(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

// dataAttributes is the sorted union of the data keys of all responses.
// Keys that clean to the same name share one attribute.
func dataAttributes(responses []client.FreeResponse) []attribute {
	seen := make(map[string]struct{})
	for _, r := range responses {
		for k := range r.Data {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attrs []attribute
	index := make(map[string]int)
	for _, k := range keys {
		name := CleanAttribute(k)
		if i, ok := index[name]; ok {
			attrs[i].keys = append(attrs[i].keys, k)
			continue
		}
		index[name] = len(attrs)
		attrs = append(attrs, attribute{name: name, keys: []string{k}})
	}
	return attrs
}

// AttributeSchema returns the property names of the features built from
// responses, in order.
func AttributeSchema(responses []client.FreeResponse) []string {
	attrs := dataAttributes(responses)
	out := make([]string, 0, len(fixedAttributes)+len(attrs))
	out = append(out, fixedAttributes...)
	for _, a := range attrs {
		if !contains(fixedAttributes, a.name) {
			out = append(out, a.name)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Features turns free responses into point features. Responses without
// latitude or longitude are skipped. Every feature carries every attribute
// of the schema; data values are rendered as strings.
func Features(responses []client.FreeResponse) *geojson.FeatureCollection {
	attrs := dataAttributes(responses)
	fc := geojson.NewFeatureCollection()
	for _, r := range responses {
		if !r.Latitude.Valid || !r.Longitude.Valid {
			continue
		}
		f := geojson.NewFeature(orb.Point{r.Longitude.Value, r.Latitude.Value})
		if r.UniqueDisplayID != "" {
			f.ID = r.UniqueDisplayID
		}
		f.Properties["id"] = r.UniqueDisplayID
		f.Properties["form_title"] = r.FormTitle
		f.Properties["form_code"] = r.FormCode
		f.Properties["accuracy"] = r.Accuracy.Value
		f.Properties["created_at"] = r.CreatedAt
		for _, a := range attrs {
			if contains(fixedAttributes, a.name) {
				continue
			}
			f.Properties[a.name] = lookup(r.Data, a.keys)
		}
		fc.Append(f)
	}
	return fc
}

func lookup(data map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			return Stringify(v)
		}
	}
	return ""
}

// Stringify renders a decoded JSON value as an attribute string.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// Stats summarizes a layer's records.
type Stats struct {
	Total        int    `json:"total_records"`
	WithGeometry int    `json:"with_geometry"`
	LastUpdate   string `json:"last_update,omitempty"`
}

// HostingStats counts responses, those with coordinates, and the latest
// created_at.
func HostingStats(responses []client.FreeResponse) Stats {
	st := Stats{Total: len(responses)}
	for _, r := range responses {
		if r.Latitude.Valid && r.Longitude.Valid {
			st.WithGeometry++
		}
		if r.CreatedAt > st.LastUpdate {
			st.LastUpdate = r.CreatedAt
		}
	}
	return st
}

// ErrUnsupportedSource is returned for descriptors of an unknown source.
var ErrUnsupportedSource = errors.New("unsupported layer source")

// SQLRunner runs read queries against the connected database.
type SQLRunner interface {
	ExecSQL(ctx context.Context, query string, args ...any) (*postgres.Result, error)
	LayerStats(ctx context.Context, schema, table, geomColumn string) (postgres.Stats, error)
}

// Stats returns the statistics of the layer described by d.
func (a *Assembler) Stats(ctx context.Context, db SQLRunner, d Descriptor) (Stats, error) {
	switch d.Source {
	case SourcePostgres:
		if db == nil {
			return Stats{}, postgres.ErrNotConnected
		}
		st, err := db.LayerStats(ctx, d.Schema, d.Table, d.GeomColumn)
		if err != nil {
			return Stats{}, err
		}
		out := Stats{Total: int(st.Total), WithGeometry: int(st.WithGeometry)}
		if st.LastUpdate != nil {
			out.LastUpdate = st.LastUpdate.Format("2006-01-02 15:04:05")
		}
		return out, nil
	case SourceHosting:
		if !a.remoteReady() {
			return Stats{}, client.ErrNotAuthenticated
		}
		responses, err := a.Remote.FreeResponses(ctx, client.DefaultResponseLimit, 0)
		if err != nil {
			return Stats{}, err
		}
		return HostingStats(responses), nil
	}
	return Stats{}, ErrUnsupportedSource
}

// Export returns the features of the layer described by d. PostgreSQL layers
// are encoded by PostGIS; hosting layers are built from the free responses.
func (a *Assembler) Export(ctx context.Context, db SQLRunner, d Descriptor) (*geojson.FeatureCollection, error) {
	switch d.Source {
	case SourcePostgres:
		if db == nil {
			return nil, postgres.ErrNotConnected
		}
		return exportTable(ctx, db, d)
	case SourceHosting:
		if !a.remoteReady() {
			return nil, client.ErrNotAuthenticated
		}
		responses, err := a.Remote.FreeResponses(ctx, client.DefaultResponseLimit, 0)
		if err != nil {
			return nil, err
		}
		return Features(responses), nil
	}
	return nil, ErrUnsupportedSource
}

// ExportQuery builds the PostGIS query that encodes a whole table as a
// GeoJSON FeatureCollection.
func ExportQuery(d Descriptor) string {
	geom := d.GeomColumn
	if geom == "" {
		geom = "geom"
	}
	return fmt.Sprintf(`SELECT json_build_object('type', 'FeatureCollection', 'features', COALESCE(json_agg(ST_AsGeoJSON(t.*, %s)::json), '[]'::json))::text FROM %s.%s t`,
		pq.QuoteLiteral(geom), pq.QuoteIdentifier(d.Schema), pq.QuoteIdentifier(d.Table))
}

func exportTable(ctx context.Context, db SQLRunner, d Descriptor) (*geojson.FeatureCollection, error) {
	res, err := db.ExecSQL(ctx, ExportQuery(d))
	if err != nil {
		return nil, err
	}
	if len(res.Rows) != 1 || len(res.Rows[0]) != 1 {
		return nil, fmt.Errorf("export %s: unexpected result shape", d.FullName())
	}
	raw, ok := res.Rows[0][0].(string)
	if !ok {
		return nil, fmt.Errorf("export %s: unexpected column type %T", d.FullName(), res.Rows[0][0])
	}
	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", d.FullName(), err)
	}
	return fc, nil
}
