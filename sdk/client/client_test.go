package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/geosurvey/pkg/form"
)

func newTestClient(t *testing.T, h http.HandlerFunc, f Fetcher) (*Client, *TokenSource) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	ts := NewTokenSource(f)
	c := New(srv.URL+"/", WithTokenSource(ts), WithRetryDelay(0))
	return c, ts
}

func loggedIn(c *Client) {
	c.SetUser(&UserConfig{UserID: "7", Email: "a@b.c", PlanType: "basic"})
}

func TestIdentityFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/sys_auth_configs" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("is_active") != "eq.true" || q.Get("order") != "created_at.desc" || q.Get("limit") != "1" {
			t.Errorf("query = %v", q)
		}
		if r.Header.Get("apikey") != "k" || r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("headers = %v", r.Header)
		}
		_, _ = io.WriteString(w, `[{"country_code":"tok-1"}]`)
	}))
	defer srv.Close()

	f := &IdentityFetcher{BaseURL: srv.URL, Key: "k"}
	tok, err := f.FetchToken(context.Background())
	if err != nil || tok != "tok-1" {
		t.Fatalf("FetchToken = %q, %v", tok, err)
	}

	if _, err := (&IdentityFetcher{BaseURL: srv.URL}).FetchToken(context.Background()); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("missing key err = %v", err)
	}
}

func TestSeededTokenSkipsFetch(t *testing.T) {
	var calls atomic.Int32
	fetcher := &countingFetcher{toks: []string{"fetched"}}
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.Header.Get("X-Plugin-Token"); got != "seed" {
			t.Errorf("token header = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id")
		}
		if r.URL.Query().Get("user_id") != "7" {
			t.Errorf("user_id = %q", r.URL.Query().Get("user_id"))
		}
		_, _ = io.WriteString(w, `[{"id":3,"title":"Trees","form_code":"abc","response_count":"12"}]`)
	}, fetcher)
	ts.Set("seed")
	loggedIn(c)

	forms, err := c.Forms(context.Background())
	if err != nil {
		t.Fatalf("Forms: %v", err)
	}
	if calls.Load() != 1 || fetcher.n.Load() != 0 {
		t.Fatalf("calls=%d fetches=%d", calls.Load(), fetcher.n.Load())
	}
	want := []Form{{ID: "3", Title: "Trees", FormCode: "abc", ResponseCount: Number{Value: 12, Valid: true}}}
	if diff := cmp.Diff(want, forms); diff != "" {
		t.Fatalf("forms mismatch (-want +got):\n%s", diff)
	}
}

func TestUnauthorizedRefreshesOnce(t *testing.T) {
	var calls atomic.Int32
	fetcher := &countingFetcher{toks: []string{"fresh"}}
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Plugin-Token") != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}, fetcher)
	ts.Set("stale")
	loggedIn(c)

	if _, err := c.Forms(context.Background()); err != nil {
		t.Fatalf("Forms: %v", err)
	}
	if calls.Load() != 2 || fetcher.n.Load() != 1 {
		t.Fatalf("calls=%d fetches=%d, want 2 and 1", calls.Load(), fetcher.n.Load())
	}
}

func TestUnauthorizedTwiceFails(t *testing.T) {
	var calls atomic.Int32
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"bad token"}`)
	}, &countingFetcher{toks: []string{"fresh"}})
	ts.Set("stale")
	loggedIn(c)

	_, err := c.FreeResponses(context.Background(), 0, 0)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err = %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized || se.Message != "bad token" {
		t.Fatalf("status error = %#v", se)
	}
	if calls.Load() != maxAttempts {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestRefreshFailureIsAuthError(t *testing.T) {
	n := 0
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, FetcherFunc(func(context.Context) (string, error) {
		n++
		return "", ErrNoToken
	}))
	ts.Set("stale")
	loggedIn(c)

	if err := c.DeleteForm(context.Background(), "1"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err = %v", err)
	}
	if n != 1 {
		t.Fatalf("fetches = %d", n)
	}
}

type flakyTransport struct {
	fails atomic.Int32
	calls atomic.Int32
	next  http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.calls.Add(1)
	if f.fails.Load() > 0 {
		f.fails.Add(-1)
		return nil, errors.New("connection reset")
	}
	return f.next.RoundTrip(r)
}

func TestTransportRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"enabled":true,"message":{"title":"Hi","content":"News"}}`)
	}))
	defer srv.Close()

	ft := &flakyTransport{next: http.DefaultTransport}
	ft.fails.Store(1)
	ts := NewTokenSource(nil)
	ts.Set("tok")
	c := New(srv.URL, WithHTTPClient(&http.Client{Transport: ft}), WithTokenSource(ts), WithRetryDelay(0))

	msg, err := c.PluginMessage(context.Background())
	if err != nil || !msg.Visible() {
		t.Fatalf("PluginMessage = %+v, %v", msg, err)
	}
	if ft.calls.Load() != 2 {
		t.Fatalf("calls = %d", ft.calls.Load())
	}

	ft.calls.Store(0)
	ft.fails.Store(2)
	_, err = c.PluginMessage(context.Background())
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v", err)
	}
	if ft.calls.Load() != 2 {
		t.Fatalf("calls = %d", ft.calls.Load())
	}
}

func TestLogin(t *testing.T) {
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"Wrong password"}`)
			return
		}
		_, _ = io.WriteString(w, `{"user_id":"9","email":"a@b.c","plan_type":"premium",
			"postgres":{"host":"db","port":5432,"database":"gis","username":"u","password":"p"}}`)
	}, &countingFetcher{toks: []string{"tok"}})
	ts.Set("tok")

	_, err := c.Login(context.Background(), "a@b.c", "nope")
	if !errors.Is(err, ErrInvalidCredentials) || err.Error() != "invalid credentials: Wrong password" {
		t.Fatalf("err = %v", err)
	}
	if c.Authenticated() {
		t.Fatalf("authenticated after failed login")
	}

	u, err := c.Login(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.UserID != "9" || u.Postgres.Port != "5432" {
		t.Fatalf("user = %+v", u)
	}
	if !c.Authenticated() || !c.CanUsePostgres() {
		t.Fatalf("authenticated=%v canUsePostgres=%v", c.Authenticated(), c.CanUsePostgres())
	}

	c.Logout()
	if c.Authenticated() || c.CanUsePostgres() {
		t.Fatalf("still authenticated after logout")
	}
}

func TestCanUsePostgres(t *testing.T) {
	full := PostgresConfig{Host: "h", Database: "d", Username: "u", Password: "p"}
	cases := []struct {
		name string
		user *UserConfig
		want bool
	}{
		{"anonymous", nil, false},
		{"free", &UserConfig{PlanType: "free", Postgres: full}, false},
		{"empty plan", &UserConfig{Postgres: full}, false},
		{"basic", &UserConfig{PlanType: "basic", Postgres: full}, true},
		{"missing password", &UserConfig{PlanType: "premium", Postgres: PostgresConfig{Host: "h", Database: "d", Username: "u"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New("")
			c.SetUser(tc.user)
			if got := c.CanUsePostgres(); got != tc.want {
				t.Fatalf("CanUsePostgres = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNotAuthenticated(t *testing.T) {
	c := New("http://127.0.0.1:0")
	if _, err := c.Forms(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Forms err = %v", err)
	}
	if _, err := c.CreateForm(context.Background(), form.FormPackage{}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("CreateForm err = %v", err)
	}
	d := Degraded{C: c}
	if got := d.Forms(context.Background()); got == nil || len(got) != 0 {
		t.Fatalf("degraded forms = %#v", got)
	}
	if d.DeleteForm(context.Background(), "1") {
		t.Fatalf("degraded delete succeeded")
	}
}

func TestCreateForm(t *testing.T) {
	var body map[string]any
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, `{"success":true,"form_id":"11","form_code":"xyz","table_name":"responses_free","storage_type":"free"}`)
	}, nil)
	ts.Set("tok")
	loggedIn(c)

	pkg := form.FormPackage{
		Title:        "Trees",
		Fields:       []form.FieldSpec{{Name: "species", Label: "Species", Type: form.TypeText}},
		TableName:    form.FreeTable,
		CreationType: form.CreationFree,
	}
	res, err := c.CreateForm(context.Background(), pkg)
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	if !res.Success || res.FormID != "11" || res.FormCode != "xyz" {
		t.Fatalf("result = %+v", res)
	}
	if body["user_id"] != "7" || body["title"] != "Trees" || body["creation_type"] != "free" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["sql"]; ok {
		t.Fatalf("free package carried sql")
	}
}

func TestStatusErrorMessage(t *testing.T) {
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":"Form limit reached"}`)
	}, nil)
	ts.Set("tok")
	loggedIn(c)

	_, err := c.CreateForm(context.Background(), form.FormPackage{Title: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden || se.Message != "Form limit reached" {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("not ErrUnexpectedStatus: %v", err)
	}
}

func TestPing(t *testing.T) {
	code := http.StatusNotFound
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}, nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping 404: %v", err)
	}
	code = http.StatusInternalServerError
	if err := c.Ping(context.Background()); !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("Ping 500: %v", err)
	}
}

func TestFlexibleDecoding(t *testing.T) {
	var r FreeResponse
	raw := `{"unique_display_id":"A-1","latitude":"4.5","longitude":-74.1,"accuracy":null,"data":{"x":1}}`
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := FreeResponse{
		UniqueDisplayID: "A-1",
		Latitude:        Number{Value: 4.5, Valid: true},
		Longitude:       Number{Value: -74.1, Valid: true},
		Data:            map[string]any{"x": float64(1)},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	var bad Number
	if err := json.Unmarshal([]byte(`"n/a"`), &bad); err != nil || bad.Valid {
		t.Fatalf("bad number = %+v %v", bad, err)
	}
}
