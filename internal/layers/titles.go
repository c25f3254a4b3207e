package layers

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/faciam-dev/geosurvey/pkg/form"
	"github.com/faciam-dev/geosurvey/pkg/metrics"
	"github.com/faciam-dev/geosurvey/sdk/client"
)

// DefaultTitleTTL is how long the form list backing TitleCache is reused.
const DefaultTitleTTL = 5 * time.Minute

// titleRetryAfter is how long a failed load is reported without calling the
// loader again. It never exceeds the cache TTL.
const titleRetryAfter = 30 * time.Second

// FormLoader returns the user's forms.
type FormLoader func(ctx context.Context) ([]client.Form, error)

// TitleCache maps survey tables to form titles. The form list is fetched at
// most once per TTL.
type TitleCache struct {
	load FormLoader
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	fetched  time.Time
	byTable  map[string]string
	free     []string
	failedAt time.Time
	failErr  error
}

// NewTitleCache returns a cache backed by load. A zero ttl selects
// DefaultTitleTTL.
func NewTitleCache(load FormLoader, ttl time.Duration) *TitleCache {
	if ttl <= 0 {
		ttl = DefaultTitleTTL
	}
	return &TitleCache{load: load, ttl: ttl, now: time.Now}
}

func (c *TitleCache) refresh(ctx context.Context) error {
	if c.byTable != nil && c.now().Sub(c.fetched) <= c.ttl {
		metrics.TitleCacheHits.Inc()
		return nil
	}
	if c.failErr != nil && c.now().Sub(c.failedAt) <= min(titleRetryAfter, c.ttl) {
		return c.failErr
	}
	metrics.TitleCacheMisses.Inc()
	forms, err := c.load(ctx)
	if err != nil {
		c.failErr, c.failedAt = err, c.now()
		return err
	}
	c.failErr = nil
	byTable := make(map[string]string, len(forms))
	var free []string
	for _, f := range forms {
		title := f.Title
		if title == "" {
			title = "Unknown Form"
		}
		switch f.TableName {
		case "":
		case form.FreeTable:
			free = append(free, title)
		default:
			byTable[f.TableName] = title
		}
	}
	c.byTable, c.free, c.fetched = byTable, free, c.now()
	return nil
}

// Title returns the form title registered for table.
func (c *TitleCache) Title(ctx context.Context, table string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refresh(ctx); err != nil {
		return "", false, err
	}
	t, ok := c.byTable[table]
	return t, ok, nil
}

// FreeTitle returns the title of the first form stored in the shared table.
func (c *TitleCache) FreeTitle(ctx context.Context) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refresh(ctx); err != nil {
		return "", false, err
	}
	if len(c.free) == 0 {
		return "", false, nil
	}
	return c.free[0], true, nil
}

// Invalidate forces the next lookup to reload the form list.
func (c *TitleCache) Invalidate() {
	c.mu.Lock()
	c.byTable, c.free, c.failErr = nil, nil, nil
	c.mu.Unlock()
}

// TitleFromTable derives a readable title when no form is registered for a
// table: survey_arcgeek_00042 becomes "Survey 00042", other names are title cased.
func TitleFromTable(table string) string {
	if n, ok := strings.CutPrefix(table, form.SurveyTablePrefix); ok {
		return "Survey " + n
	}
	// A Caser holds state, so each call gets its own.
	return cases.Title(language.Und).String(strings.ReplaceAll(table, "_", " "))
}
