package sqlite

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a GORM *DB backed by a local SQLite file (mattn/go-sqlite3).
// Foreign keys are enabled on every pooled connection through the DSN.
func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(WithForeignKeys(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// WithForeignKeys appends the _foreign_keys flag to a SQLite DSN.
func WithForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}
