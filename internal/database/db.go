package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// DB wraps the PostgreSQL connection used by all repositories
type DB struct {
	conn      *sql.DB
	available atomic.Bool
}

// New opens a connection to PostgreSQL. The connection is probed once but a
// failed probe is not fatal: the server starts in degraded mode and the
// health monitor flips availability once the database becomes reachable.
func New(connStr string) (*DB, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}
	db.available.Store(conn.Ping() == nil)
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping probes the database connection
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Available reports whether the last health probe succeeded
func (db *DB) Available() bool {
	return db.available.Load()
}

// StartHealthMonitor probes the database on the given interval until ctx is
// cancelled, flipping availability for the degraded-mode middleware. Runs in
// its own goroutine.
func (db *DB) StartHealthMonitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				up := db.conn.Ping() == nil
				was := db.available.Swap(up)
				if up && !was {
					log.Info("database connection restored")
				} else if !up && was {
					log.Warn("database connection lost, entering degraded mode")
				}
			}
		}
	}()
}

// RunMigrations applies all pending migrations from the given directory
func (db *DB) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(db.conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
