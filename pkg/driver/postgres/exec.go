package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/faciam-dev/geosurvey/pkg/metrics"
)

// DatabaseError carries a driver failure. Its message is the driver's,
// unchanged.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string { return e.Err.Error() }

func (e *DatabaseError) Unwrap() error { return e.Err }

// SQLState returns the PostgreSQL error code carried by err, if any.
func SQLState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// Result holds the rows returned by ExecSQL. Statements without a result
// set produce an empty Result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// ExecSQL runs query inside a transaction and commits it. On failure the
// transaction is rolled back and a *DatabaseError is returned.
func (a *Adapter) ExecSQL(ctx context.Context, query string, args ...any) (*Result, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DatabaseError{Op: "begin", Err: err}
	}
	res, err := collect(ctx, tx, query, args)
	if err != nil {
		_ = tx.Rollback()
		metrics.DDLExecutions.WithLabelValues("error").Inc()
		return nil, &DatabaseError{Op: "exec", Err: err}
	}
	if err := tx.Commit(); err != nil {
		metrics.DDLExecutions.WithLabelValues("error").Inc()
		return nil, &DatabaseError{Op: "commit", Err: err}
	}
	metrics.DDLExecutions.WithLabelValues("ok").Inc()
	return res, nil
}

func collect(ctx context.Context, tx *sql.Tx, query string, args []any) (*Result, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// CreateTableFromSQL executes a multi statement script in one transaction.
func (a *Adapter) CreateTableFromSQL(ctx context.Context, script string) error {
	db, err := a.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &DatabaseError{Op: "begin", Err: err}
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		metrics.DDLExecutions.WithLabelValues("error").Inc()
		a.log.Warnw("script failed", "sqlstate", SQLState(err), "error", err)
		return &DatabaseError{Op: "exec", Err: err}
	}
	if err := tx.Commit(); err != nil {
		metrics.DDLExecutions.WithLabelValues("error").Inc()
		return &DatabaseError{Op: "commit", Err: err}
	}
	metrics.DDLExecutions.WithLabelValues("ok").Inc()
	return nil
}
