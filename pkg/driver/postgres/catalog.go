package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/faciam-dev/goquent/orm/query"
	"github.com/lib/pq"

	"github.com/faciam-dev/geosurvey/pkg/form"
)

// Table is a table with a geometry column.
type Table struct {
	Schema     string `json:"schema"`
	Table      string `json:"table"`
	GeomColumn string `json:"geom_column"`
	GeomType   string `json:"geom_type"`
	IsSurvey   bool   `json:"is_survey,omitempty"`
}

// FullName returns schema.table.
func (t Table) FullName() string { return t.Schema + "." + t.Table }

const spatialTablesQuery = `SELECT f_table_schema, f_table_name, f_geometry_column, type
FROM geometry_columns
WHERE f_table_schema NOT IN ('information_schema', 'topology', 'tiger')
ORDER BY f_table_schema, f_table_name`

const allGeometryTablesQuery = `SELECT t.table_schema, t.table_name,
COALESCE(gc.f_geometry_column, 'geom'), COALESCE(gc.type, 'UNKNOWN')
FROM information_schema.tables t
LEFT JOIN geometry_columns gc ON t.table_schema = gc.f_table_schema AND t.table_name = gc.f_table_name
WHERE t.table_type = 'BASE TABLE'
AND t.table_schema NOT IN ('information_schema', 'pg_catalog', 'topology', 'tiger')
AND (gc.f_table_name IS NOT NULL OR EXISTS (
  SELECT 1 FROM information_schema.columns c
  WHERE c.table_schema = t.table_schema AND c.table_name = t.table_name
  AND c.data_type = 'USER-DEFINED' AND c.udt_name = 'geometry'))
ORDER BY t.table_schema, t.table_name`

const surveyTablesQuery = `SELECT t.table_schema, t.table_name,
COALESCE(gc.f_geometry_column, 'geom'), COALESCE(gc.type, 'POINT')
FROM information_schema.tables t
LEFT JOIN geometry_columns gc ON t.table_schema = gc.f_table_schema AND t.table_name = gc.f_table_name
WHERE t.table_type = 'BASE TABLE' AND t.table_name LIKE $1
ORDER BY t.table_schema, t.table_name`

// surveyTablePattern matches the survey prefix literally. Backslash is the
// default LIKE escape in PostgreSQL.
var surveyTablePattern = likeEscaper.Replace(form.SurveyTablePrefix) + "%"

var likeEscaper = strings.NewReplacer(`\`, `\\`, "_", `\_`, "%", `\%`)

// ListSpatialTables returns the tables registered in geometry_columns.
func (a *Adapter) ListSpatialTables(ctx context.Context) ([]Table, error) {
	return a.listTables(ctx, false, spatialTablesQuery)
}

// ListAllGeometryTables also returns tables whose geometry column is not
// registered in geometry_columns.
func (a *Adapter) ListAllGeometryTables(ctx context.Context) ([]Table, error) {
	return a.listTables(ctx, false, allGeometryTablesQuery)
}

// ListSurveyTables returns the tables created for survey forms.
func (a *Adapter) ListSurveyTables(ctx context.Context) ([]Table, error) {
	return a.listTables(ctx, true, surveyTablesQuery, surveyTablePattern)
}

func (a *Adapter) listTables(ctx context.Context, survey bool, q string, args ...any) ([]Table, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t := Table{IsSurvey: survey}
		if err := rows.Scan(&t.Schema, &t.Table, &t.GeomColumn, &t.GeomType); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return tables, nil
}

func schemaOrPublic(s string) string {
	if s == "" {
		return "public"
	}
	return s
}

// TableExists reports whether schema.table exists. An empty schema means public.
func (a *Adapter) TableExists(ctx context.Context, schema, table string) (bool, error) {
	db, err := a.conn()
	if err != nil {
		return false, err
	}
	q := query.New(db, "information_schema.tables", ormdriver.PostgresDialect{}).
		SelectRaw("COUNT(*) as cnt").
		Where("table_schema", schemaOrPublic(schema)).
		Where("table_name", table)
	var res struct {
		Cnt int `db:"cnt"`
	}
	if err := q.WithContext(ctx).First(&res); err != nil {
		return false, err
	}
	return res.Cnt > 0, nil
}

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// DescribeColumns lists the columns of schema.table in ordinal order.
func (a *Adapter) DescribeColumns(ctx context.Context, schema, table string) ([]Column, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}
	q := query.New(db, "information_schema.columns", ormdriver.PostgresDialect{}).
		Select("column_name", "data_type", "is_nullable").
		Where("table_schema", schemaOrPublic(schema)).
		Where("table_name", table).
		OrderBy("ordinal_position", "asc").
		WithContext(ctx)
	var rows []struct {
		Name       string `db:"column_name"`
		Type       string `db:"data_type"`
		IsNullable string `db:"is_nullable"`
	}
	if err := q.Get(&rows); err != nil {
		return nil, err
	}
	cols := make([]Column, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, Column{Name: r.Name, Type: r.Type, Nullable: r.IsNullable == "YES"})
	}
	return cols, nil
}

// Stats summarizes a survey layer.
type Stats struct {
	Total        int64
	WithGeometry int64
	LastUpdate   *time.Time
}

// LayerStats counts the rows of schema.table and those with a geometry, and
// reads the latest created_at.
func (a *Adapter) LayerStats(ctx context.Context, schema, table, geomColumn string) (Stats, error) {
	db, err := a.conn()
	if err != nil {
		return Stats{}, err
	}
	if geomColumn == "" {
		geomColumn = "geom"
	}
	q := fmt.Sprintf("SELECT COUNT(*), COUNT(%s), MAX(created_at) FROM %s.%s",
		pq.QuoteIdentifier(geomColumn), pq.QuoteIdentifier(schemaOrPublic(schema)), pq.QuoteIdentifier(table))
	var (
		st   Stats
		last sql.NullTime
	)
	if err := db.QueryRowContext(ctx, q).Scan(&st.Total, &st.WithGeometry, &last); err != nil {
		return Stats{}, fmt.Errorf("layer stats %s.%s: %w", schema, table, err)
	}
	if last.Valid {
		t := last.Time
		st.LastUpdate = &t
	}
	return st, nil
}

// CountSurveyTables returns how many survey tables exist in any schema.
func (a *Adapter) CountSurveyTables(ctx context.Context) (int, error) {
	db, err := a.conn()
	if err != nil {
		return 0, err
	}
	q := query.New(db, "information_schema.tables", ormdriver.PostgresDialect{}).
		SelectRaw("COUNT(*) AS cnt").
		WhereRaw("table_name LIKE :p", map[string]any{"p": surveyTablePattern}).
		WithContext(ctx)
	var res struct {
		Cnt int `db:"cnt"`
	}
	if err := q.First(&res); err != nil {
		return 0, err
	}
	return res.Cnt, nil
}
