package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by operations that need an open connection.
var ErrNotConnected = errors.New("no database connection")

// OpenFunc opens a database handle. It matches sql.Open.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Adapter owns a single PostgreSQL connection that is replaced on Connect.
type Adapter struct {
	open OpenFunc
	log  *zap.SugaredLogger

	mu     sync.RWMutex
	db     *sql.DB
	params Params
}

type Option func(*Adapter)

// WithOpener replaces sql.Open. Tests inject sqlmock through it.
func WithOpener(fn OpenFunc) Option {
	return func(a *Adapter) { a.open = fn }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// New returns an unconnected Adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{open: sql.Open, log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) dial(ctx context.Context, p Params) (*sql.DB, error) {
	db, err := a.open("postgres", p.ConnString())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect opens a connection for p and closes the previous one.
func (a *Adapter) Connect(ctx context.Context, p Params) error {
	db, err := a.dial(ctx, p)
	if err != nil {
		return fmt.Errorf("connect %s/%s: %w", p.Host, p.Database, err)
	}
	a.mu.Lock()
	old := a.db
	a.db, a.params = db, p
	a.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	a.log.Infow("connected to postgres", "host", p.Host, "database", p.Database, "user", p.Username)
	return nil
}

// Close drops the current connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	db := a.db
	a.db, a.params = nil, Params{}
	a.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

// Connected reports whether Connect succeeded and Close was not called since.
func (a *Adapter) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db != nil
}

// Params returns the parameters of the current connection.
func (a *Adapter) Params() (Params, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.params, a.db != nil
}

func (a *Adapter) conn() (*sql.DB, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, ErrNotConnected
	}
	return a.db, nil
}

// ServerInfo describes a reachable server.
type ServerInfo struct {
	Version          string
	PostGIS          string
	PostGISAvailable bool
}

// Summary renders the two line status shown after a connection test.
func (s ServerInfo) Summary() string {
	v := s.Version
	if len(v) > 50 {
		v = v[:50]
	}
	return fmt.Sprintf("PostgreSQL: %s...\nPostGIS: %s", v, s.PostGIS)
}

// TestConnection opens a throwaway connection to p and reports the server
// and PostGIS versions. The adapter's own connection is untouched.
func (a *Adapter) TestConnection(ctx context.Context, p Params) (ServerInfo, error) {
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = 10
	}
	db, err := a.dial(ctx, p)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("connection failed: %w", err)
	}
	defer db.Close()

	var info ServerInfo
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&info.Version); err != nil {
		return ServerInfo{}, fmt.Errorf("connection failed: %w", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT PostGIS_version()").Scan(&info.PostGIS); err != nil {
		a.log.Debugw("postgis not available", "error", err)
		info.PostGIS = "Not installed"
	} else {
		info.PostGISAvailable = true
	}
	return info, nil
}
