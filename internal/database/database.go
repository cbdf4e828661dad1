// Package database opens the PostgreSQL pool and creates the schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/config"
)

const waitInterval = 2 * time.Second

// Open connects with the configured driver ("postgres" is lib/pq, "pgx" is
// pgx's database/sql adapter) and blocks until the server answers.
func Open(ctx context.Context, cfg config.DBConfig, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := WaitForReady(ctx, db, cfg.WaitAttempts, waitInterval, logger); err != nil {
		db.Close()
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"driver": cfg.Driver,
		"host":   cfg.Host,
		"name":   cfg.Name,
	}).Info("Database connection established")
	return db, nil
}

// WaitForReady pings db up to attempts times, sleeping interval between tries.
func WaitForReady(ctx context.Context, db *sql.DB, attempts int, interval time.Duration, logger *logrus.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		logger.WithError(err).WithField("attempt", i).Info("Waiting for database...")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("database not ready after %d attempts: %w", attempts, err)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS laptops (
		l_id BIGSERIAL PRIMARY KEY,
		l_brand VARCHAR(255) NOT NULL DEFAULT '',
		l_name VARCHAR(255) NOT NULL DEFAULT '',
		l_model VARCHAR(255) NOT NULL DEFAULT '',
		l_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		l_cpu VARCHAR(255) NOT NULL DEFAULT '',
		l_ram VARCHAR(255) NOT NULL DEFAULT '',
		l_storage VARCHAR(255) NOT NULL DEFAULT '',
		l_gpu VARCHAR(255) NOT NULL DEFAULT '',
		l_screen_size VARCHAR(255) NOT NULL DEFAULT '',
		l_weight VARCHAR(255) NOT NULL DEFAULT '',
		l_description TEXT NOT NULL DEFAULT '',
		l_image VARCHAR(512),
		l_quantity INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		c_id BIGSERIAL PRIMARY KEY,
		c_name VARCHAR(255) NOT NULL DEFAULT '',
		c_email VARCHAR(255) NOT NULL DEFAULT '',
		c_password VARCHAR(255) NOT NULL DEFAULT '',
		c_phone VARCHAR(50) NOT NULL DEFAULT '',
		c_role VARCHAR(50) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		car_id BIGSERIAL PRIMARY KEY,
		c_id BIGINT NOT NULL DEFAULT 0,
		l_id BIGINT NOT NULL DEFAULT 0,
		car_date DATE NOT NULL DEFAULT CURRENT_DATE,
		car_quantity INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		o_id BIGSERIAL PRIMARY KEY,
		o_date DATE NOT NULL DEFAULT CURRENT_DATE,
		o_total NUMERIC(12,2) NOT NULL DEFAULT 0,
		o_shipping_address TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_carts_c_id ON carts(c_id)`,
	`CREATE INDEX IF NOT EXISTS idx_carts_l_id ON carts(l_id)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
