// Package ddl renders PostgreSQL/PostGIS scripts for survey tables.
package ddl

import (
	"fmt"
	"strings"
	"time"

	"github.com/faciam-dev/geosurvey/pkg/form"
)

// SRID of the geometry column.
const SRID = 4326

// fixedColumns are present in every survey table, in this order.
var fixedColumns = []string{
	"id SERIAL PRIMARY KEY",
	"unique_display_id VARCHAR(20) UNIQUE",
	"latitude DECIMAL(10,8)",
	"longitude DECIMAL(11,8)",
	"gps_accuracy DECIMAL(10,2)",
	fmt.Sprintf("geom GEOMETRY(POINT, %d)", SRID),
	"created_at TIMESTAMP DEFAULT NOW()",
	"ip_address INET",
}

// SQLType maps a field type to its column type. Unknown types are stored as
// VARCHAR(255).
func SQLType(t form.FieldType) string {
	switch t {
	case form.TypeText, form.TypeEmail:
		return "VARCHAR(255)"
	case form.TypeNumber:
		return "DECIMAL(10,2)"
	case form.TypeTextarea:
		return "TEXT"
	case form.TypeDate:
		return "DATE"
	case form.TypeURL:
		return "VARCHAR(500)"
	case form.TypeTel:
		return "VARCHAR(20)"
	case form.TypeSelect, form.TypeRadio, form.TypeCheckbox:
		return "VARCHAR(255)"
	default:
		return "VARCHAR(255)"
	}
}

// Generator renders survey table scripts.
type Generator struct {
	// Now stamps the header comment. Defaults to time.Now.
	Now func() time.Time
}

// GenerateSpatial renders the script with the current time in the header.
func GenerateSpatial(table string, fields []form.FieldSpec, title string) (string, error) {
	return Generator{}.GenerateSpatial(table, fields, title)
}

// GenerateSpatial renders CREATE TABLE, the geometry, coordinate and display
// id indexes, and the trigger that fills geom from longitude/latitude.
// Field names are emitted as given; callers pass normalized identifiers.
func (g Generator) GenerateSpatial(table string, fields []form.FieldSpec, title string) (string, error) {
	if err := form.ValidateColumns(fields); err != nil {
		return "", err
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	columns := make([]string, 0, len(fixedColumns)+len(fields))
	columns = append(columns, fixedColumns...)
	for _, f := range fields {
		columns = append(columns, fmt.Sprintf("%s %s", f.ColumnName(), SQLType(f.Type)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- ArcGeek Survey Table: %s\n", commentText(title))
	fmt.Fprintf(&b, "-- Generated: %s\n\n", now().Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "CREATE TABLE %s (\n  %s\n);\n\n", table, strings.Join(columns, ",\n  "))

	fmt.Fprintf(&b, "CREATE INDEX idx_%[1]s_geom ON %[1]s USING GIST (geom);\n", table)
	fmt.Fprintf(&b, "CREATE INDEX idx_%[1]s_coords ON %[1]s (latitude, longitude);\n", table)
	fmt.Fprintf(&b, "CREATE UNIQUE INDEX idx_%[1]s_display_id ON %[1]s (unique_display_id);\n\n", table)

	fmt.Fprintf(&b, `CREATE OR REPLACE FUNCTION update_%[1]s_geom()
RETURNS TRIGGER AS $$
BEGIN
    IF NEW.latitude IS NOT NULL AND NEW.longitude IS NOT NULL THEN
        NEW.geom := ST_SetSRID(ST_MakePoint(NEW.longitude, NEW.latitude), %[2]d);
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

`, table, SRID)

	fmt.Fprintf(&b, `CREATE TRIGGER trigger_%[1]s_geom
    BEFORE INSERT OR UPDATE ON %[1]s
    FOR EACH ROW
    EXECUTE FUNCTION update_%[1]s_geom();`, table)

	return b.String(), nil
}

// commentLine folds line breaks so text stays inside a single -- comment.
var commentLine = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func commentText(s string) string { return commentLine.Replace(s) }

// DropTable renders the script that removes a survey table created by
// GenerateSpatial. CASCADE takes the trigger with it.
func DropTable(table string) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %[1]s CASCADE;
DROP FUNCTION IF EXISTS update_%[1]s_geom();`, table)
}
