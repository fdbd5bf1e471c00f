package libsql

import (
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a GORM *DB talking to a hosted libSQL (Turso) database.
// url has the form libsql://<db>.turso.io?authToken=<token>.
func Open(url string) (*gorm.DB, error) {
	return gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "libsql",
		DSN:        url,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
