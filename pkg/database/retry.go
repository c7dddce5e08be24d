package database

import (
	"context"
	"database/sql/driver"
	"math/rand"
	"strings"
	"time"
)

// busyMarkers are the substrings the cgo and pure Go sqlite drivers use for
// SQLITE_BUSY (5) and SQLITE_LOCKED (6).
var busyMarkers = []string{
	"database is locked",
	"database table is locked",
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"(5)",
	"(6)",
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range busyMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// busyPolicy retries an operation while sqlite reports contention. Delays
// start at base, double per attempt with up to 25% jitter and stop at ceiling.
type busyPolicy struct {
	maxRetries int
	base       time.Duration
	ceiling    time.Duration
	wait       func(ctx context.Context, d time.Duration) error
}

func newBusyPolicy(maxRetries int) busyPolicy {
	return busyPolicy{
		maxRetries: maxRetries,
		base:       50 * time.Millisecond,
		ceiling:    2 * time.Second,
		wait:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p busyPolicy) delay(attempt int) time.Duration {
	d := p.base << attempt
	if d <= 0 || d > p.ceiling {
		d = p.ceiling
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	return min(d, p.ceiling)
}

func withRetry[T any](ctx context.Context, p busyPolicy, fn func() (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil || !isBusyError(err) || attempt >= p.maxRetries {
			return v, err
		}
		if waitErr := p.wait(ctx, p.delay(attempt)); waitErr != nil {
			return v, waitErr
		}
	}
}

// driverConnector adapts a driver that only implements Open to
// driver.Connector so it can go through sql.OpenDB.
type driverConnector struct {
	drv driver.Driver
	dsn string
}

func newDriverConnector(drv driver.Driver, dsn string) *driverConnector {
	return &driverConnector{drv, dsn}
}

func (dc *driverConnector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dc.drv.Open(dc.dsn)
}

func (dc *driverConnector) Driver() driver.Driver {
	return dc.drv
}

// retryConnector wraps every connection it opens so statements and
// transaction starts are retried under policy.
type retryConnector struct {
	connector driver.Connector
	policy    busyPolicy
}

func newRetryConnector(connector driver.Connector, maxRetries int) *retryConnector {
	return &retryConnector{connector, newBusyPolicy(maxRetries)}
}

func (rc *retryConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := rc.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &retryConn{conn, rc.policy}, nil
}

func (rc *retryConnector) Driver() driver.Driver {
	return rc.connector.Driver()
}

type retryConn struct {
	conn   driver.Conn
	policy busyPolicy
}

func (c *retryConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *retryConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if pc, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = pc.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	return &retryStmt{stmt, c.policy}, nil
}

func (c *retryConn) Close() error {
	return c.conn.Close()
}

func (c *retryConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *retryConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return withRetry(ctx, c.policy, func() (driver.Tx, error) {
		if bt, ok := c.conn.(driver.ConnBeginTx); ok {
			return bt.BeginTx(ctx, opts)
		}
		return c.conn.Begin() //nolint:staticcheck // fallback for drivers without BeginTx
	})
}

func (c *retryConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ec, ok := c.conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	return withRetry(ctx, c.policy, func() (driver.Result, error) {
		return ec.ExecContext(ctx, query, args)
	})
}

func (c *retryConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qc, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	return withRetry(ctx, c.policy, func() (driver.Rows, error) {
		return qc.QueryContext(ctx, query, args)
	})
}

func (c *retryConn) Ping(ctx context.Context) error {
	if p, ok := c.conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *retryConn) ResetSession(ctx context.Context) error {
	if r, ok := c.conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *retryConn) IsValid() bool {
	if v, ok := c.conn.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

type retryStmt struct {
	stmt   driver.Stmt
	policy busyPolicy
}

func (s *retryStmt) Close() error  { return s.stmt.Close() }
func (s *retryStmt) NumInput() int { return s.stmt.NumInput() }

func (s *retryStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

func (s *retryStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

func (s *retryStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return withRetry(ctx, s.policy, func() (driver.Result, error) {
		if ec, ok := s.stmt.(driver.StmtExecContext); ok {
			return ec.ExecContext(ctx, args)
		}
		return s.stmt.Exec(values(args)) //nolint:staticcheck // fallback for drivers without ExecContext
	})
}

func (s *retryStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return withRetry(ctx, s.policy, func() (driver.Rows, error) {
		if qc, ok := s.stmt.(driver.StmtQueryContext); ok {
			return qc.QueryContext(ctx, args)
		}
		return s.stmt.Query(values(args)) //nolint:staticcheck // fallback for drivers without QueryContext
	})
}

func named(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

func values(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}
