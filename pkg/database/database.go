package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const slowQueryThreshold = 250 * time.Millisecond

// queryLogHook logs slow queries at warn level. With debug enabled every
// query is logged.
type queryLogHook struct {
	log   logger.Logger
	debug bool
}

func (*queryLogHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	data := logger.Data{"duration": elapsed.String()}
	failed := event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows)

	switch {
	case elapsed >= slowQueryThreshold:
		if failed {
			data["error"] = event.Err.Error()
		}
		h.log.Warn("slow query: "+event.Query, data)
	case !h.debug:
	case failed:
		h.log.Err(event.Err).Debug(event.Query, data)
	default:
		h.log.Debug(event.Query, data)
	}
}

type pragma struct {
	stmt string
	args []interface{}
	desc string
}

// New opens the SQLite database and configures it for a single writer. The
// one-connection pool serialises every write, which is what keeps the copy
// counts consistent under the guarded updates in the circulation services.
func New(cfg *config.Config) (*bun.DB, error) {
	connector, err := openConnector(cfg.DatabaseFilePath)
	if err != nil {
		return nil, err
	}

	sqldb := sql.OpenDB(newRetryConnector(connector, cfg.DatabaseMaxRetries))
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	level := "info"
	if cfg.DatabaseDebug {
		level = "debug"
	}
	db.AddQueryHook(&queryLogHook{logger.NewWithLevel(level), cfg.DatabaseDebug})

	if err := waitForDatabase(db, cfg.DatabaseConnectRetryCount, cfg.DatabaseConnectRetryDelay); err != nil {
		return nil, err
	}

	pragmas := []pragma{
		{"PRAGMA journal_mode=WAL", nil, "enable WAL mode"},
		{"PRAGMA busy_timeout=?", []interface{}{cfg.DatabaseBusyTimeout.Milliseconds()}, "set busy_timeout"},
		{"PRAGMA foreign_keys=ON", nil, "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt, p.args...); err != nil {
			return nil, errors.Wrap(err, "failed to "+p.desc)
		}
	}

	return db, nil
}

// openConnector prefers the driver's own connector. modernc's driver, which
// sqliteshim picks on most platforms, only implements Open, so it is wrapped.
func openConnector(path string) (driver.Connector, error) {
	drv := sqliteshim.Driver()
	dc, ok := drv.(driver.DriverContext)
	if !ok {
		return newDriverConnector(drv, path), nil
	}
	connector, err := dc.OpenConnector(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return connector, nil
}

func waitForDatabase(db *bun.DB, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < max(attempts, 1); i++ {
		if _, err = db.Exec("SELECT 1"); err == nil {
			return nil
		}
		time.Sleep(delay)
	}
	return errors.Wrap(err, "database never became reachable")
}
