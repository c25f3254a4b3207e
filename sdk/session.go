package sdk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/faciam-dev/geosurvey/internal/layers"
	"github.com/faciam-dev/geosurvey/pkg/ddl"
	"github.com/faciam-dev/geosurvey/pkg/driver/postgres"
	"github.com/faciam-dev/geosurvey/pkg/form"
	"github.com/faciam-dev/geosurvey/sdk/client"
)

// Session ties the backend client and the database adapter together for the
// operations that need both.
type Session struct {
	Client    *client.Client
	DB        *postgres.Adapter
	Assembler form.Assembler
	Logger    *zap.SugaredLogger
	// DropOnFailure drops a freshly created table when the backend then
	// refuses to register the form.
	DropOnFailure bool

	layers *layers.Assembler
}

// NewSession returns a Session using the spatial DDL generator.
func NewSession(c *client.Client, db *postgres.Adapter, logger *zap.SugaredLogger) *Session {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Session{
		Client:    c,
		DB:        db,
		Assembler: form.Assembler{DDL: ddl.GenerateSpatial},
		Logger:    logger,
	}
}

func (s *Session) log() *zap.SugaredLogger {
	if s.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return s.Logger
}

// CanUsePostgres reports whether new forms get their own table: the plan
// allows it and the adapter is connected.
func (s *Session) CanUsePostgres() bool {
	return s.Client.CanUsePostgres() && s.DB != nil && s.DB.Connected()
}

// CreateResult is the outcome of CreateForm.
type CreateResult struct {
	Package      *form.FormPackage
	Remote       *client.CreateFormResult
	TableCreated bool
}

// CreateForm validates the form, creates its table when the user stores
// responses in PostgreSQL, and then registers it on the backend. The table
// is always created before the registration is sent.
func (s *Session) CreateForm(ctx context.Context, title, description string, fields []form.FieldSpec) (*CreateResult, error) {
	u := s.Client.User()
	if u == nil {
		return nil, client.ErrNotAuthenticated
	}
	plan := form.Plan(u.Plan())
	if err := form.ValidateForm(title, fields, form.LimitsFor(plan).Fields); err != nil {
		return nil, err
	}
	pkg, err := s.Assembler.Assemble(title, description, fields, plan, s.CanUsePostgres())
	if err != nil {
		return nil, err
	}
	res := &CreateResult{Package: pkg}

	if pkg.CreationType == form.CreationPostgres {
		if err := s.DB.CreateTableFromSQL(ctx, *pkg.SQL); err != nil {
			return nil, fmt.Errorf("create table %s: %w", pkg.TableName, err)
		}
		res.TableCreated = true
		s.log().Infow("survey table created", "table", pkg.TableName)
	}

	remote, err := s.Client.CreateForm(ctx, *pkg)
	if err == nil && !remote.Success {
		err = ErrRegistrationRejected
	}
	if err != nil {
		if !res.TableCreated {
			return nil, err
		}
		return nil, s.compensate(ctx, pkg.TableName, err)
	}
	res.Remote = remote
	if s.layers != nil && s.layers.Titles != nil {
		s.layers.Titles.Invalidate()
	}
	s.log().Infow("form registered", "form_code", remote.FormCode, "table", pkg.TableName, "storage", pkg.CreationType)
	return res, nil
}

func (s *Session) compensate(ctx context.Context, table string, cause error) error {
	pf := &PartialFailure{Table: table, Err: cause}
	if !s.DropOnFailure {
		s.log().Warnw("form registration failed after table creation", "table", table, "error", cause)
		return pf
	}
	if err := s.DB.CreateTableFromSQL(ctx, ddl.DropTable(table)); err != nil {
		pf.CompensationErr = err
		s.log().Errorw("dropping orphaned table failed", "table", table, "error", err)
		return pf
	}
	pf.Compensated = true
	s.log().Warnw("form registration failed, table dropped", "table", table, "error", cause)
	return pf
}

// ParamsFromConfig converts the backend's database block into adapter
// parameters.
func ParamsFromConfig(c client.PostgresConfig) postgres.Params {
	return postgres.Params{
		Host:     c.Host,
		Port:     postgres.ParsePort(c.Port.String()),
		Database: c.Database,
		Username: c.Username,
		Password: c.Password,
	}
}

// AutoConnect connects the adapter with the database configured for the
// logged in user.
func (s *Session) AutoConnect(ctx context.Context) error {
	u := s.Client.User()
	if u == nil {
		return client.ErrNotAuthenticated
	}
	if u.Postgres.Host == "" {
		return ErrNoPostgresConfig
	}
	p := ParamsFromConfig(u.Postgres)
	if !p.Complete() {
		return ErrIncompletePostgresConfig
	}
	return s.DB.Connect(ctx, p)
}

// Layers returns the layer assembler over this session's sources. The
// assembler and its title cache live as long as the session.
func (s *Session) Layers() *layers.Assembler {
	if s.layers == nil {
		var tables layers.TableLister
		if s.DB != nil {
			tables = s.DB
		}
		s.layers = layers.NewAssembler(tables, s.Client, s.log())
	}
	return s.layers
}

// SourceInfo describes where the layer d is read from.
func (s *Session) SourceInfo(d layers.Descriptor) string {
	var pg *postgres.Params
	if s.DB != nil {
		if p, ok := s.DB.Params(); ok {
			pg = &p
		}
	}
	return layers.SourceInfo(d, pg, s.Client.BaseURL())
}
