package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/faciam-dev/geosurvey/pkg/metrics"
)

// TokenTTL is how long a fetched plugin token is reused.
const TokenTTL = 1800 * time.Second

// DefaultIdentityURL is the identity service queried for the plugin token.
const DefaultIdentityURL = "https://neixcsnkwtgdxkucfcnb.supabase.co"

// ErrNoToken is returned by a Fetcher that got an empty answer.
var ErrNoToken = errors.New("identity service returned no token")

// Fetcher retrieves a fresh plugin token.
type Fetcher interface {
	FetchToken(ctx context.Context) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (string, error)

func (f FetcherFunc) FetchToken(ctx context.Context) (string, error) { return f(ctx) }

type tokenState struct {
	value   string
	fetched time.Time
}

// TokenSource caches the plugin token. Reads are lock free; refreshes are
// serialised so concurrent callers trigger at most one fetch.
type TokenSource struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	state atomic.Pointer[tokenState]
	mu    sync.Mutex
}

// NewTokenSource returns a cache backed by f.
func NewTokenSource(f Fetcher) *TokenSource {
	return &TokenSource{fetcher: f, ttl: TokenTTL, now: time.Now}
}

func (s *TokenSource) valid(st *tokenState) bool {
	return st != nil && st.value != "" && s.now().Sub(st.fetched) < s.ttl
}

// Token returns the cached token, fetching a new one when it is missing or
// older than the TTL.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if st := s.state.Load(); s.valid(st) {
		return st.value, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.state.Load(); s.valid(st) {
		return st.value, nil
	}
	if s.fetcher == nil {
		return "", ErrNoToken
	}
	tok, err := s.fetcher.FetchToken(ctx)
	if err == nil && tok == "" {
		err = ErrNoToken
	}
	if err != nil {
		metrics.TokenFetches.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.TokenFetches.WithLabelValues("ok").Inc()
	s.state.Store(&tokenState{value: tok, fetched: s.now()})
	return tok, nil
}

// Peek returns the cached token without fetching. The token may be stale.
func (s *TokenSource) Peek() string {
	if st := s.state.Load(); st != nil {
		return st.value
	}
	return ""
}

// Set seeds the cache with tok as if it had just been fetched.
func (s *TokenSource) Set(tok string) {
	s.state.Store(&tokenState{value: tok, fetched: s.now()})
}

// Invalidate drops the cached token if it is still old. A token stored by
// a concurrent refresh is kept.
func (s *TokenSource) Invalidate(old string) {
	st := s.state.Load()
	if st == nil || st.value != old {
		return
	}
	s.state.CompareAndSwap(st, nil)
}

// IdentityFetcher reads the active plugin token from the identity service.
type IdentityFetcher struct {
	BaseURL string
	Key     string
	HTTP    *resty.Client
}

type authConfigRow struct {
	CountryCode string `json:"country_code"`
}

func (f *IdentityFetcher) FetchToken(ctx context.Context) (string, error) {
	if f.Key == "" {
		return "", fmt.Errorf("identity service: %w: no api key configured", ErrAuthenticationFailed)
	}
	hc := f.HTTP
	if hc == nil {
		hc = resty.New().SetTimeout(10 * time.Second)
	}
	base := f.BaseURL
	if base == "" {
		base = DefaultIdentityURL
	}
	var rows []authConfigRow
	resp, err := hc.R().SetContext(ctx).
		SetHeader("apikey", f.Key).
		SetHeader("Authorization", "Bearer "+f.Key).
		SetQueryParams(map[string]string{
			"is_active": "eq.true",
			"order":     "created_at.desc",
			"limit":     "1",
		}).
		Get(trimSlash(base) + "/rest/v1/sys_auth_configs")
	if err != nil {
		return "", &TransportError{Endpoint: "sys_auth_configs", Err: err}
	}
	if resp.StatusCode() != 200 {
		return "", &StatusError{Endpoint: "sys_auth_configs", Code: resp.StatusCode()}
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return "", fmt.Errorf("identity service: decode response: %w", err)
	}
	if len(rows) == 0 || rows[0].CountryCode == "" {
		return "", ErrNoToken
	}
	return rows[0].CountryCode, nil
}
