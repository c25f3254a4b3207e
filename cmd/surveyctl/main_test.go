package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/faciam-dev/geosurvey/pkg/config"
	"github.com/faciam-dev/geosurvey/pkg/crypto"
)

const freeUser = `{"user_id":7,"email":"ana@example.com","name":"Ana","plan_type":"free","postgres":{}}`

// fakeBackend serves the survey endpoints used by the commands and records
// the bodies it receives.
type fakeBackend struct {
	mu     sync.Mutex
	bodies map[string][]byte
	tokens []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	if b.bodies == nil {
		b.bodies = map[string][]byte{}
	}
	b.bodies[r.URL.Path] = body
	if r.URL.Path != "/rest/v1/sys_auth_configs" {
		b.tokens = append(b.tokens, r.Header.Get("X-Plugin-Token"))
	}
	b.mu.Unlock()

	switch r.URL.Path {
	case "/rest/v1/sys_auth_configs":
		_, _ = io.WriteString(w, `[{"country_code":"tok"}]`)
	case "/public/api/user-config.php":
		if !strings.Contains(string(body), "password=secret") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"bad password"}`)
			return
		}
		_, _ = io.WriteString(w, freeUser)
	case "/public/api/user-forms.php":
		_, _ = io.WriteString(w, `[]`)
	case "/public/api/responses-free.php":
		_, _ = io.WriteString(w, `[{"unique_display_id":"R1","form_title":"Trees","form_code":"abc","latitude":"4.6","longitude":-74.1,"created_at":"2024-05-01 10:00:00","data":{"species":"oak"}}]`)
	case "/public/api/create-form.php":
		_, _ = io.WriteString(w, `{"success":true,"form_id":9,"form_code":"xyz","collection_url":"https://c/xyz","storage_type":"free","table_name":"responses_free"}`)
	case "/public/plugin-message.php":
		_, _ = io.WriteString(w, `{"enabled":true,"message":{"type":"info","title":"Hi","content":"New release"}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setup(t *testing.T) (*fakeBackend, string) {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())
	t.Setenv(crypto.KeyEnv, "")
	t.Setenv("SURVEY_PLUGIN_TOKEN", "tok")
	t.Setenv("SURVEY_EMAIL", "ana@example.com")
	t.Setenv("SURVEY_PASSWORD", "secret")
	b := &fakeBackend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	t.Setenv("SURVEY_IDENTITY_URL", srv.URL)
	t.Setenv("SURVEY_IDENTITY_KEY", "k")
	return b, srv.URL
}

func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--server", server}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestLoginRemembers(t *testing.T) {
	_, srv := setup(t)
	out, err := run(t, srv, "login", "--remember", "--non-interactive")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Logged in as ana@example.com (plan: free, storage: hosted)") {
		t.Fatalf("unexpected output: %q", out)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Email != "ana@example.com" || !cfg.RememberMe || cfg.ServerURL != srv {
		t.Fatalf("settings not saved: %+v", cfg)
	}
	if pw, _ := cfg.SavedPassword(); pw != "secret" {
		t.Fatalf("saved password = %q", pw)
	}

	if _, err := run(t, srv, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	cfg, _ = config.Load()
	if cfg.RememberMe || cfg.Password != "" {
		t.Fatalf("logout kept the password: %+v", cfg)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	_, srv := setup(t)
	t.Setenv("SURVEY_PASSWORD", "wrong")
	_, err := run(t, srv, "login", "--non-interactive")
	if err == nil || !strings.Contains(err.Error(), "bad password") {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestCommandsNeedCredentials(t *testing.T) {
	_, srv := setup(t)
	t.Setenv("SURVEY_PASSWORD", "")
	if _, err := run(t, srv, "forms", "list"); err == nil || !strings.Contains(err.Error(), "no credentials") {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}

func TestFormsListJSON(t *testing.T) {
	b, srv := setup(t)
	out, err := run(t, srv, "--output", "json", "forms", "list")
	if err != nil {
		t.Fatalf("forms list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("output = %q", out)
	}
	for _, tok := range b.tokens {
		if tok != "tok" {
			t.Fatalf("request sent token %q", tok)
		}
	}
}

func TestFormsCreateFreePlan(t *testing.T) {
	b, srv := setup(t)
	def := filepath.Join(t.TempDir(), "trees.yaml")
	src := "title: Trees\nfields:\n  - label: Especie\n    type: text\n  - name: height\n    type: number\n"
	if err := os.WriteFile(def, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, srv, "--output", "json", "forms", "create", "--file", def, "--description", "Street trees")
	if err != nil {
		t.Fatalf("forms create: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got["form_code"] != "xyz" || got["storage"] != "free" || got["table"] != "responses_free" || got["fields"] != "2" {
		t.Fatalf("unexpected result: %v", got)
	}

	var sent struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		TableName    string `json:"table_name"`
		CreationType string `json:"creation_type"`
		UserID       string `json:"user_id"`
		Fields       []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(b.bodies["/public/api/create-form.php"], &sent); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if sent.Title != "Trees" || sent.Description != "Street trees" || sent.CreationType != "free" || sent.UserID != "7" {
		t.Fatalf("unexpected request: %+v", sent)
	}
	if len(sent.Fields) != 2 || sent.Fields[0].Name != "especie" || sent.Fields[1].Name != "height" {
		t.Fatalf("unexpected fields: %+v", sent.Fields)
	}
}

func TestResponsesListTable(t *testing.T) {
	_, srv := setup(t)
	out, err := run(t, srv, "responses", "list", "--limit", "5")
	if err != nil {
		t.Fatalf("responses list: %v", err)
	}
	for _, want := range []string{"R1", "TREES", "4.6", "-74.1"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLayersListHosting(t *testing.T) {
	_, srv := setup(t)
	out, err := run(t, srv, "--output", "json", "layers", "list")
	if err != nil {
		t.Fatalf("layers list: %v", err)
	}
	var ds []struct {
		Table  string `json:"table"`
		Source string `json:"source"`
		Count  int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &ds); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(ds) != 1 || ds[0].Table != "responses_free" || ds[0].Source != "hosting" || ds[0].Count != 1 {
		t.Fatalf("unexpected layers: %+v", ds)
	}
}

func TestLayersExportHosting(t *testing.T) {
	_, srv := setup(t)
	path := filepath.Join(t.TempDir(), "free.geojson")
	if _, err := run(t, srv, "layers", "export", "responses_free", "--out", path); err != nil {
		t.Fatalf("layers export: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		t.Fatalf("decode geojson: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("unexpected collection: %s", b)
	}
	f := fc.Features[0]
	if len(f.Geometry.Coordinates) != 2 || f.Geometry.Coordinates[0] != -74.1 || f.Geometry.Coordinates[1] != 4.6 {
		t.Fatalf("coordinates = %v", f.Geometry.Coordinates)
	}
	if f.Properties["species"] != "oak" {
		t.Fatalf("properties = %v", f.Properties)
	}
}

func TestMessage(t *testing.T) {
	_, srv := setup(t)
	out, err := run(t, srv, "message")
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if out != "[info] Hi\nNew release\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestSQLDiff(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())
	dir := t.TempDir()
	def := filepath.Join(dir, "f.yaml")
	script := filepath.Join(dir, "f.sql")
	if err := os.WriteFile(def, []byte("- label: Nombre\n  type: text\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "", "sql", "generate", "-f", def, "--table", "survey_arcgeek_00002", "-o", script); err != nil {
		t.Fatalf("sql generate: %v", err)
	}

	out, err := run(t, "", "sql", "diff", script, "-f", def)
	if err != nil || !strings.Contains(out, "No differences.") {
		t.Fatalf("diff on unchanged definition = %q, %v", out, err)
	}

	if err := os.WriteFile(def, []byte("- label: Nombre\n  type: text\n- label: Altura\n  type: number\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "", "sql", "diff", script, "-f", def)
	if !errors.Is(err, errScriptsDiffer) {
		t.Fatalf("err = %v, want errScriptsDiffer", err)
	}
	if !strings.Contains(out, "+  altura DECIMAL(10,2)") {
		t.Fatalf("diff missing added column:\n%s", out)
	}
}

func TestScriptTable(t *testing.T) {
	if got := scriptTable("-- x\nCREATE TABLE IF NOT EXISTS survey_arcgeek_00042 (\n"); got != "survey_arcgeek_00042" {
		t.Fatalf("scriptTable = %q", got)
	}
	if got := scriptTable("SELECT 1"); got != "" {
		t.Fatalf("scriptTable = %q", got)
	}
}

func TestSQLGenerate(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())
	def := filepath.Join(t.TempDir(), "f.yaml")
	if err := os.WriteFile(def, []byte("- label: Nombre Común\n  type: text\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "sql", "generate", "--file", def, "--table", "survey_arcgeek_00001", "--title", "Plants")
	if err != nil {
		t.Fatalf("sql generate: %v", err)
	}
	for _, want := range []string{
		"-- ArcGeek Survey Table: Plants",
		"CREATE TABLE survey_arcgeek_00001 (",
		"nombre_comun VARCHAR(255)",
		"CREATE TRIGGER trigger_survey_arcgeek_00001_geom",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("script missing %q:\n%s", want, out)
		}
	}
}

func TestFieldsNormalize(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())
	out, err := run(t, "", "--output", "json", "fields", "normalize", "Año", "Año", "select")
	if err != nil {
		t.Fatalf("fields normalize: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["select"] != "field_select" {
		t.Fatalf("reserved word = %q", got["select"])
	}
}

func TestConfigSetGet(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())
	if _, err := run(t, "", "config", "set", "drop_on_failure", "true"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	out, err := run(t, "", "config", "get", "drop_on_failure")
	if err != nil || strings.TrimSpace(out) != "true" {
		t.Fatalf("config get = %q, %v", out, err)
	}
	if _, err := run(t, "", "config", "set", "remember_me", "true"); err == nil {
		t.Fatal("expected read-only setting to be rejected")
	}
	if _, err := run(t, "", "config", "set", "drop_on_failure", "maybe"); err == nil {
		t.Fatal("expected bool parse error")
	}
}

func TestFormsDeleteAborts(t *testing.T) {
	b, srv := setup(t)
	out, err := run(t, srv, "forms", "delete", "9")
	if err != nil {
		t.Fatalf("forms delete: %v", err)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Fatalf("output = %q", out)
	}
	if _, sent := b.bodies["/public/api/delete-form.php"]; sent {
		t.Fatal("delete request sent without confirmation")
	}
}

func TestSplitTable(t *testing.T) {
	if s, tb := splitTable("gis.trees"); s != "gis" || tb != "trees" {
		t.Fatalf("splitTable = %q %q", s, tb)
	}
	if s, tb := splitTable("trees"); s != "public" || tb != "trees" {
		t.Fatalf("splitTable default = %q %q", s, tb)
	}
}
