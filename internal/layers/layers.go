package layers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/faciam-dev/geosurvey/pkg/driver/postgres"
	"github.com/faciam-dev/geosurvey/pkg/form"
	"github.com/faciam-dev/geosurvey/sdk/client"
)

// Source tells where a layer's features live.
type Source string

const (
	SourcePostgres Source = "postgres"
	SourceHosting  Source = "hosting"
)

const (
	HostingSchema     = "hosting"
	HostingGeomColumn = "coordinates"
	defaultFreeTitle  = "Free Plan Forms"
)

// Descriptor is the uniform description of a layer from either source.
type Descriptor struct {
	Schema      string `json:"schema"`
	Table       string `json:"table"`
	GeomColumn  string `json:"geom_column"`
	GeomType    string `json:"geom_type"`
	FormTitle   string `json:"form_title"`
	DisplayName string `json:"display_name"`
	Source      Source `json:"source"`
	Count       int    `json:"count,omitempty"`
	IsSurvey    bool   `json:"is_survey"`
}

// FullName returns schema.table.
func (d Descriptor) FullName() string { return d.Schema + "." + d.Table }

// TableLister lists survey tables of the connected database.
type TableLister interface {
	Connected() bool
	ListSurveyTables(ctx context.Context) ([]postgres.Table, error)
}

// RemoteSource serves forms and free-tier responses for the logged in user.
type RemoteSource interface {
	Authenticated() bool
	Forms(ctx context.Context) ([]client.Form, error)
	FreeResponses(ctx context.Context, limit, offset int) ([]client.FreeResponse, error)
}

// Assembler builds layer descriptors from the database and the backend.
// Either source may be nil.
type Assembler struct {
	Tables TableLister
	Remote RemoteSource
	Titles *TitleCache
	Logger *zap.SugaredLogger
}

// NewAssembler wires an Assembler with a title cache over remote.
func NewAssembler(tables TableLister, remote RemoteSource, logger *zap.SugaredLogger) *Assembler {
	a := &Assembler{Tables: tables, Remote: remote, Logger: logger}
	if remote != nil {
		a.Titles = NewTitleCache(remote.Forms, DefaultTitleTTL)
	}
	return a
}

func (a *Assembler) log() *zap.SugaredLogger {
	if a.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return a.Logger
}

func (a *Assembler) postgresReady() bool {
	return a.Tables != nil && a.Tables.Connected()
}

func (a *Assembler) remoteReady() bool {
	return a.Remote != nil && a.Remote.Authenticated()
}

// Available returns the PostgreSQL survey layers followed by the hosting
// layer. A failing source does not hide the other one: the descriptors that
// could be built are returned together with the combined error.
func (a *Assembler) Available(ctx context.Context) ([]Descriptor, error) {
	var (
		pg, hosted []Descriptor
		pgErr      error
		hostErr    error
		g          errgroup.Group
	)
	if a.postgresReady() {
		g.Go(func() error {
			pg, pgErr = a.postgresLayers(ctx)
			return nil
		})
	}
	if a.remoteReady() {
		g.Go(func() error {
			hosted, hostErr = a.hostingLayers(ctx)
			return nil
		})
	}
	_ = g.Wait()

	if pgErr != nil {
		a.log().Warnw("postgres layers unavailable", "error", pgErr)
	}
	if hostErr != nil {
		a.log().Warnw("hosting layers unavailable", "error", hostErr)
	}
	return append(pg, hosted...), multierr.Combine(pgErr, hostErr)
}

func (a *Assembler) postgresLayers(ctx context.Context) ([]Descriptor, error) {
	tables, err := a.Tables.ListSurveyTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list survey tables: %w", err)
	}
	out := make([]Descriptor, 0, len(tables))
	for _, t := range tables {
		out = append(out, Descriptor{
			Schema:      t.Schema,
			Table:       t.Table,
			GeomColumn:  t.GeomColumn,
			GeomType:    t.GeomType,
			FormTitle:   a.titleFor(ctx, t.Table),
			DisplayName: fmt.Sprintf("PostgreSQL: %s.%s (%s)", t.Schema, t.Table, t.GeomType),
			Source:      SourcePostgres,
			IsSurvey:    true,
		})
	}
	return out, nil
}

func (a *Assembler) titleFor(ctx context.Context, table string) string {
	if a.Titles != nil && a.remoteReady() {
		title, ok, err := a.Titles.Title(ctx, table)
		if err != nil {
			a.log().Debugw("form titles unavailable", "error", err)
		}
		if ok {
			return title
		}
	}
	return TitleFromTable(table)
}

func (a *Assembler) hostingLayers(ctx context.Context) ([]Descriptor, error) {
	responses, err := a.Remote.FreeResponses(ctx, client.DefaultResponseLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("free responses: %w", err)
	}
	if len(responses) == 0 {
		return nil, nil
	}
	title := defaultFreeTitle
	if a.Titles != nil {
		if t, ok, err := a.Titles.FreeTitle(ctx); err == nil && ok {
			title = t
		}
	}
	return []Descriptor{HostingDescriptor(title, len(responses))}, nil
}

// HostingDescriptor describes the free-tier responses as one point layer.
func HostingDescriptor(title string, count int) Descriptor {
	return Descriptor{
		Schema:      HostingSchema,
		Table:       form.FreeTable,
		GeomColumn:  HostingGeomColumn,
		GeomType:    "POINT",
		FormTitle:   title,
		DisplayName: fmt.Sprintf("ArcGeek Hosting: Free Plan Responses (%d records)", count),
		Source:      SourceHosting,
		Count:       count,
		IsSurvey:    true,
	}
}

// CanAddLayers reports whether at least one source is usable.
func (a *Assembler) CanAddLayers() bool {
	return a.postgresReady() || a.remoteReady()
}

// SourceInfo describes where a layer is read from. pg is nil when no
// database is connected.
func SourceInfo(d Descriptor, pg *postgres.Params, baseURL string) string {
	switch d.Source {
	case SourcePostgres:
		if pg == nil {
			return "PostgreSQL: Not connected"
		}
		return fmt.Sprintf("PostgreSQL: %s/%s", pg.Host, pg.Database)
	case SourceHosting:
		return "ArcGeek Hosting: " + strings.TrimRight(baseURL, "/")
	default:
		return "Unknown source"
	}
}
