// internal/database/database.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"plc-monitor/internal/config"
)

// DB wraps *sql.DB with the service's connection handling
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewConnection opens a PostgreSQL pool and verifies it answers
func NewConnection(cfg *config.DatabaseConfig, dsn string, logger *zap.Logger) (*DB, error) {
	raw, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	raw.SetMaxOpenConns(cfg.MaxOpenConns)
	raw.SetMaxIdleConns(cfg.MaxIdleConns)
	raw.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := raw.PingContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("dbname", cfg.DBName),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return &DB{DB: raw, logger: logger}, nil
}

// HealthCheck pings the database with a short deadline
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// GetStats returns pool statistics
func (db *DB) GetStats() sql.DBStats {
	return db.Stats()
}

// Close closes the pool
func (db *DB) Close() error {
	db.logger.Info("Closing database connection")
	return db.DB.Close()
}
