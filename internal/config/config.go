package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	DatabaseURL string `env:"DATABASE_URL" envDefault:"storefront.db"`

	Database    Database    `envPrefix:"DB_"`
	Redis       Redis       `envPrefix:"REDIS_"`
	Idempotency Idempotency `envPrefix:"IDEMPOTENCY_"`
	Checkout    Checkout    `envPrefix:"CHECKOUT_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // json | console
}

type HTTPServer struct {
	Host            string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RateLimit       int           `env:"HTTP_RATE_LIMIT" envDefault:"100"` // 0 disables
	RateWindow      time.Duration `env:"HTTP_RATE_WINDOW" envDefault:"15m"`
}

type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"sqlite"` // sqlite | mysql | postgres
	URL             string        `env:"-"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	SeedProducts    bool          `env:"SEED_PRODUCTS" envDefault:"false"`
	// LockWait is how long a statement may wait on a row lock.
	LockWait        time.Duration `env:"-"`
}

type Redis struct {
	URL string `env:"URL" envDefault:"redis://localhost:6379/0"`
}

type Idempotency struct {
	Backend    string        `env:"BACKEND" envDefault:"memory"` // memory | redis
	TTL        time.Duration `env:"TTL" envDefault:"24h"`
	MaxEntries int           `env:"MAX_ENTRIES" envDefault:"10000"`
}

type Checkout struct {
	TaxRate     decimal.Decimal `env:"TAX_RATE" envDefault:"0.075"`
	Currency    string          `env:"CURRENCY" envDefault:"NGN"`
	Timeout     time.Duration   `env:"TIMEOUT" envDefault:"10s"`
	LockTimeout time.Duration   `env:"LOCK_TIMEOUT" envDefault:"5s"`
	AllowGuest  bool            `env:"ALLOW_GUEST" envDefault:"false"`
}

// DB returns the database section with the top-level DATABASE_URL and the
// checkout lock timeout folded in.
func (c *Config) DB() Database {
	db := c.Database
	db.URL = c.DatabaseURL
	db.LockWait = c.Checkout.LockTimeout
	return db
}
