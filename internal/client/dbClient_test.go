package client

import (
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/config"
	"storefront-api/internal/model"
)

func TestNewDBClient_SQLiteMigrates(t *testing.T) {
	db, err := NewDBClient(config.Database{
		Driver:       "sqlite",
		URL:          "file:client_test?mode=memory&cache=shared",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })

	require.True(t, db.Migrator().HasTable(&model.Product{}))
	require.True(t, db.Migrator().HasTable(&model.Order{}))
	require.True(t, db.Migrator().HasTable(&model.OrderItem{}))
	require.True(t, db.Migrator().HasIndex(&model.Order{}, "IdempotencyKey"))
}

func TestNewDBClient_UnknownDriver(t *testing.T) {
	_, err := NewDBClient(config.Database{Driver: "oracle"}, zerolog.Nop())
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestSQLiteDSNTakesWriteLockAtBegin(t *testing.T) {
	cases := map[string]string{
		"storefront.db":                        "storefront.db?_txlock=immediate",
		"file:x?mode=memory&cache=shared":      "file:x?mode=memory&cache=shared&_txlock=immediate",
		"storefront.db?_txlock=exclusive":      "storefront.db?_txlock=exclusive",
		"/var/lib/shop.db?_busy_timeout=10000": "/var/lib/shop.db?_busy_timeout=10000&_txlock=immediate",
	}
	for in, want := range cases {
		require.Equal(t, want, sqliteDSN(in), in)
	}
}

func TestMySQLDSNSetsLockWaitPerConnection(t *testing.T) {
	dsn, err := mysqlDSN("shop:secret@tcp(db:3306)/shop", 1500*time.Millisecond)
	require.NoError(t, err)

	c, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.True(t, c.ParseTime)
	require.Equal(t, "2", c.Params["innodb_lock_wait_timeout"])
	require.Equal(t, "shop", c.DBName)

	dsn, err = mysqlDSN("shop:secret@tcp(db:3306)/shop?innodb_lock_wait_timeout=30", time.Second)
	require.NoError(t, err)
	c, err = gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "30", c.Params["innodb_lock_wait_timeout"])

	dsn, err = mysqlDSN("shop:secret@tcp(db:3306)/shop", 0)
	require.NoError(t, err)
	c, err = gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.NotContains(t, c.Params, "innodb_lock_wait_timeout")

	_, err = mysqlDSN("not a dsn", time.Second)
	require.Error(t, err)
}

func TestNewDBClient_FileDatabaseWithPool(t *testing.T) {
	db, err := NewDBClient(config.Database{
		Driver:       "sqlite",
		URL:          t.TempDir() + "/pool.db",
		MaxIdleConns: 10,
		MaxOpenConns: 50,
		AutoMigrate:  true,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Equal(t, 50, sqlDB.Stats().MaxOpenConnections)
	require.True(t, db.Migrator().HasTable(&model.Order{}))
}
