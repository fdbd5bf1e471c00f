package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/config"
	dbsqlite "github.com/kasuganosora/questfolio/db/sqlite"
	"github.com/kasuganosora/questfolio/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testDBCounter int64

// SetupTestDB creates a private in-memory SQLite DB and runs AutoMigrate.
// Each call gets its own database name, so tests may run in parallel.
// The pool is capped at one connection: the in-memory database lives as long
// as that connection and concurrent readers queue instead of failing with
// SQLITE_LOCKED.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	db, err := dbsqlite.Open(fmt.Sprintf("file:questfolio_test_%d?mode=memory&cache=shared", n))
	require.NoError(t, err, "SetupTestDB: Open")

	sqlDB, err := db.DB()
	require.NoError(t, err, "SetupTestDB: DB")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := config.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	t.Cleanup(func() { _ = c.Close() })
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// Logger returns a development logger for tests.
func Logger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }
