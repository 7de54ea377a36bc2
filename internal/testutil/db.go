// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront-api/internal/client"
	"storefront-api/internal/config"
	"storefront-api/internal/model"
)

// NewDB opens a private in-memory sqlite database with the schema applied.
// The pool holds one connection, so transactions run one at a time.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := client.NewDBClient(config.Database{
		Driver:       "sqlite",
		URL:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}, zerolog.Nop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.CloseDB(db) })
	return db
}

// NewFileDB opens a sqlite file in a temp dir with the production pool
// defaults, so several connections contend for the write lock.
func NewFileDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.Config{}
	require.NoError(t, env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{
		"DATABASE_URL": filepath.Join(t.TempDir(), "storefront.db"),
	}}))

	db, err := client.NewDBClient(cfg.DB(), zerolog.Nop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.CloseDB(db) })
	return db
}

// Product inserts a product with the given id, price and stock.
func Product(t testing.TB, db *gorm.DB, id string, price, stock, minOrder int64) *model.Product {
	t.Helper()

	p := &model.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    price,
		Currency: "NGN",
		Stock:    stock,
		MinOrder: minOrder,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Stock reads the current stock of a product.
func Stock(t testing.TB, db *gorm.DB, id string) int64 {
	t.Helper()

	var p model.Product
	require.NoError(t, db.Where("id = ?", id).Take(&p).Error)
	return p.Stock
}

// OrderCount counts persisted orders.
func OrderCount(t testing.TB, db *gorm.DB) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&model.Order{}).Count(&n).Error)
	return n
}
