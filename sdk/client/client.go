package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/faciam-dev/geosurvey/pkg/metrics"
)

// DefaultBaseURL is the public survey backend.
const DefaultBaseURL = "https://acolita.com/survey"

// DefaultRetryDelay is the pause before retrying a failed transport.
const DefaultRetryDelay = 500 * time.Millisecond

const maxAttempts = 2

const (
	epUserConfig     = "public/api/user-config.php"
	epUserForms      = "public/api/user-forms.php"
	epFreeResponses  = "public/api/responses-free.php"
	epDeleteForm     = "public/api/delete-form.php"
	epCreateForm     = "public/api/create-form.php"
	epPluginMessage  = "public/plugin-message.php"
	epFormResponses  = "public/api.php"
	epTestConnection = "dashboard/test-connection.php"
)

// Client talks to the survey backend. It is safe for concurrent use.
type Client struct {
	base       string
	http       *resty.Client
	tokens     *TokenSource
	log        *zap.SugaredLogger
	retryDelay time.Duration

	mu   sync.RWMutex
	user *UserConfig
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = resty.NewWithClient(hc) }
}

// WithLogger sets the logger used for retries and degraded calls.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTokenSource replaces the plugin token cache.
func WithTokenSource(ts *TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithIdentity configures the identity service used to fetch plugin tokens.
func WithIdentity(baseURL, key string) Option {
	return func(c *Client) {
		c.tokens = NewTokenSource(&IdentityFetcher{BaseURL: baseURL, Key: key})
	}
}

// WithRetryDelay sets the pause before a transport retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// New returns a Client for base. An empty base selects DefaultBaseURL.
func New(base string, opts ...Option) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		base:       trimSlash(base),
		http:       resty.New(),
		log:        zap.NewNop().Sugar(),
		retryDelay: DefaultRetryDelay,
	}
	for _, o := range opts {
		o(c)
	}
	if c.tokens == nil {
		c.tokens = NewTokenSource(&IdentityFetcher{})
	}
	return c
}

// BaseURL returns the backend root without trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Tokens exposes the plugin token cache.
func (c *Client) Tokens() *TokenSource { return c.tokens }

type request struct {
	method   string
	endpoint string
	auth     bool
	timeout  time.Duration
	query    map[string]string
	form     map[string]string
	body     any
}

// do sends r with at most two attempts. A 401 on an authenticated endpoint
// triggers one token refresh; a transport failure triggers one delayed retry.
func (c *Client) do(ctx context.Context, r request) (*resty.Response, error) {
	var tok string
	if r.auth {
		var err error
		tok, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", r.endpoint, ErrAuthenticationFailed, err)
		}
	} else {
		tok = c.tokens.Peek()
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.send(ctx, r, tok)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= maxAttempts {
				return nil, &TransportError{Endpoint: r.endpoint, Err: err}
			}
			metrics.RemoteRetries.WithLabelValues("transport").Inc()
			c.log.Warnw("request failed, retrying", "endpoint", r.endpoint, "error", err)
			if err := sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode() == http.StatusUnauthorized && r.auth && attempt < maxAttempts {
			metrics.RemoteRetries.WithLabelValues("auth").Inc()
			c.log.Debugw("token rejected, refreshing", "endpoint", r.endpoint)
			c.tokens.Invalidate(tok)
			tok, err = c.tokens.Token(ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w: unable to refresh token: %v", r.endpoint, ErrAuthenticationFailed, err)
			}
			continue
		}
		return resp, nil
	}
}

func (c *Client) send(ctx context.Context, r request, tok string) (*resty.Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	req := c.http.R().SetContext(ctx).SetHeader("X-Request-ID", uuid.NewString())
	if tok != "" {
		req.SetHeader("X-Plugin-Token", tok)
	}
	if r.query != nil {
		req.SetQueryParams(r.query)
	}
	if r.form != nil {
		req.SetFormData(r.form)
	}
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	start := time.Now()
	resp, err := req.Execute(r.method, c.base+"/"+r.endpoint)
	metrics.RemoteLatency.WithLabelValues(r.endpoint).Observe(time.Since(start).Seconds())
	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode())
	}
	metrics.RemoteRequests.WithLabelValues(r.endpoint, status).Inc()
	return resp, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// decode unmarshals a 200 response into out, or converts any other status
// into a StatusError.
func decode(endpoint string, resp *resty.Response, out any) error {
	if resp.StatusCode() != http.StatusOK {
		return statusError(endpoint, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}

func statusError(endpoint string, resp *resty.Response) error {
	var body apiError
	_ = json.Unmarshal(resp.Body(), &body)
	return &StatusError{Endpoint: endpoint, Code: resp.StatusCode(), Message: body.Error}
}

func trimSlash(s string) string { return strings.TrimRight(s, "/") }
