package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/faciam-dev/geosurvey/pkg/form"
)

// Login authenticates with email and password and stores the returned
// configuration on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*UserConfig, error) {
	resp, err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: epUserConfig,
		auth:     true,
		timeout:  15 * time.Second,
		form:     map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		msg := "Invalid credentials"
		var body apiError
		if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)
	}
	var cfg UserConfig
	if err := decode(epUserConfig, resp, &cfg); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.user = &cfg
	c.mu.Unlock()
	return &cfg, nil
}

// Logout forgets the authenticated user. The plugin token stays cached.
func (c *Client) Logout() {
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
}

// Authenticated reports whether Login succeeded since the last Logout.
func (c *Client) Authenticated() bool {
	return c.User() != nil
}

// User returns a copy of the logged in user's configuration, or nil.
func (c *Client) User() *UserConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// SetUser restores a previously saved session without contacting the backend.
func (c *Client) SetUser(u *UserConfig) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

// CanUsePostgres reports whether the user is on a paid plan with complete
// PostgreSQL credentials.
func (c *Client) CanUsePostgres() bool {
	u := c.User()
	if u == nil || u.Plan() == string(form.PlanFree) {
		return false
	}
	return u.Postgres.Complete()
}

func (c *Client) userID() (string, error) {
	u := c.User()
	if u == nil {
		return "", ErrNotAuthenticated
	}
	return u.UserID.String(), nil
}

// UserConfig reloads the user's configuration from the backend.
func (c *Client) UserConfig(ctx context.Context) (*UserConfig, error) {
	u := c.User()
	if u == nil {
		return nil, ErrNotAuthenticated
	}
	resp, err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: epUserConfig,
		auth:     true,
		timeout:  10 * time.Second,
		form:     map[string]string{"email": u.Email, "password": ""},
	})
	if err != nil {
		return nil, err
	}
	var cfg UserConfig
	if err := decode(epUserConfig, resp, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Forms lists the user's forms.
func (c *Client) Forms(ctx context.Context) ([]Form, error) {
	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: epUserForms,
		auth:     true,
		timeout:  15 * time.Second,
		query:    map[string]string{"user_id": uid},
	})
	if err != nil {
		return nil, err
	}
	var out []Form
	if err := decode(epUserForms, resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DefaultResponseLimit is the page size used when FreeResponses gets a
// non-positive limit.
const DefaultResponseLimit = 1000

// FreeResponses returns one page of responses stored in the shared table.
func (c *Client) FreeResponses(ctx context.Context, limit, offset int) ([]FreeResponse, error) {
	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultResponseLimit
	}
	if offset < 0 {
		offset = 0
	}
	resp, err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: epFreeResponses,
		auth:     true,
		timeout:  30 * time.Second,
		query: map[string]string{
			"user_id": uid,
			"limit":   strconv.Itoa(limit),
			"offset":  strconv.Itoa(offset),
		},
	})
	if err != nil {
		return nil, err
	}
	var out []FreeResponse
	if err := decode(epFreeResponses, resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ErrNotDeleted is returned when the backend answers 200 without success.
var ErrNotDeleted = errors.New("form was not deleted")

// DeleteForm removes the form with the given id.
func (c *Client) DeleteForm(ctx context.Context, formID string) error {
	uid, err := c.userID()
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: epDeleteForm,
		auth:     true,
		timeout:  15 * time.Second,
		body:     map[string]string{"user_id": uid, "form_id": formID},
	})
	if err != nil {
		return err
	}
	var out successResult
	if err := decode(epDeleteForm, resp, &out); err != nil {
		return err
	}
	if !out.Success {
		if out.Message != "" {
			return fmt.Errorf("%w: %s", ErrNotDeleted, out.Message)
		}
		return ErrNotDeleted
	}
	return nil
}

type createFormBody struct {
	form.FormPackage
	UserID string `json:"user_id"`
}

// CreateForm registers pkg on the backend on behalf of the logged in user.
func (c *Client) CreateForm(ctx context.Context, pkg form.FormPackage) (*CreateFormResult, error) {
	uid, err := c.userID()
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: epCreateForm,
		timeout:  30 * time.Second,
		body:     createFormBody{FormPackage: pkg, UserID: uid},
	})
	if err != nil {
		return nil, err
	}
	var out CreateFormResult
	if err := decode(epCreateForm, resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PluginMessage fetches the banner for the user's plan. Anonymous callers
// get the free plan banner.
func (c *Client) PluginMessage(ctx context.Context) (PluginMessage, error) {
	resp, err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: epPluginMessage,
		auth:     true,
		timeout:  10 * time.Second,
		query:    map[string]string{"plan": c.User().Plan()},
	})
	if err != nil {
		return PluginMessage{}, err
	}
	var out PluginMessage
	if err := decode(epPluginMessage, resp, &out); err != nil {
		return PluginMessage{}, err
	}
	return out, nil
}

// FormResponses returns the raw responses of a form by code. apiKey may be
// empty for public forms.
func (c *Client) FormResponses(ctx context.Context, formCode, apiKey string) (json.RawMessage, error) {
	q := map[string]string{"form_code": formCode}
	if apiKey != "" {
		q["api_key"] = apiKey
	}
	resp, err := c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: epFormResponses,
		timeout:  30 * time.Second,
		query:    q,
	})
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := decode(epFormResponses, resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateDatabase asks the backend to test cfg. It returns the server's
// verdict.
func (c *Client) ValidateDatabase(ctx context.Context, cfg PostgresConfig) (bool, error) {
	if _, err := c.userID(); err != nil {
		return false, err
	}
	resp, err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: epTestConnection,
		timeout:  15 * time.Second,
		body:     cfg,
	})
	if err != nil {
		return false, err
	}
	var out successResult
	if err := decode(epTestConnection, resp, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// Ping checks that the backend root answers. 200, 302 and 404 count as up.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, endpoint: "", timeout: 5 * time.Second})
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusFound, http.StatusNotFound:
		return nil
	}
	return statusError("/", resp)
}
