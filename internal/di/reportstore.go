package di

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-sweep/internal/report"
	"github.com/goliatone/go-sweep/internal/runtimeconfig"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// configureReportStore builds the audit store selected by the report
// section. When the driver needs a database and none was injected, the
// container opens one from the DSN and owns its lifecycle, including the
// report table schema. Injected databases keep schema management on the
// caller's side.
func (c *Container) configureReportStore() error {
	if c.store != nil {
		return nil
	}
	if !c.Config.Features.Reports || !c.Config.Report.Enabled {
		return nil
	}

	c.configureCacheDefaults()

	driver := normalize(c.Config.Report.Driver)
	switch driver {
	case "", runtimeconfig.ReportDriverMemory:
		c.store = report.NewMemoryStore()
		return nil
	case runtimeconfig.ReportDriverSQLite, runtimeconfig.ReportDriverPostgres:
		if c.bunDB == nil {
			db, err := openReportDB(driver, c.Config.Report.DSN)
			if err != nil {
				return err
			}
			if err := createReportSchema(context.Background(), db); err != nil {
				db.Close()
				return err
			}
			c.bunDB = db
			c.ownsDB = true
		}
		if c.cacheService != nil && c.keySerializer != nil {
			c.store = report.NewBunStoreWithCache(c.bunDB, c.cacheService, c.keySerializer)
		} else {
			c.store = report.NewBunStore(c.bunDB)
		}
		return nil
	default:
		return fmt.Errorf("di: unsupported report driver %q", c.Config.Report.Driver)
	}
}

func openReportDB(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case runtimeconfig.ReportDriverSQLite:
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("di: open sqlite report store: %w", err)
		}
		// Shared-cache SQLite requires a single writer connection.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case runtimeconfig.ReportDriverPostgres:
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("di: open postgres report store: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}
	return nil, fmt.Errorf("di: unsupported report driver %q", driver)
}

func createReportSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*report.Record)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("di: create report table: %w", err)
	}
	return nil
}
