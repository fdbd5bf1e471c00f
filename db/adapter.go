package db

import (
	"fmt"

	"github.com/kasuganosora/questfolio/config"
	dblibsql "github.com/kasuganosora/questfolio/db/libsql"
	dbmysql "github.com/kasuganosora/questfolio/db/mysql"
	dbpostgres "github.com/kasuganosora/questfolio/db/postgres"
	dbsqlite "github.com/kasuganosora/questfolio/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite   = "sqlite"
	ModeLibSQL   = "libsql"
	ModePostgres = "postgres"
	ModeMySQL    = "mysql"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeLibSQL:
		if cfg.LibSQLURL == "" {
			return nil, fmt.Errorf("db: libsql mode requires database.libsql_url")
		}
		return dblibsql.Open(cfg.LibSQLURL)
	case ModePostgres:
		return dbpostgres.Open(cfg.DSN, cfg.MaxOpen, cfg.MaxIdle, cfg.MaxLife)
	case ModeMySQL:
		return dbmysql.Open(cfg.DSN, cfg.MaxOpen, cfg.MaxIdle, cfg.MaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
