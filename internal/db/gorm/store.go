// Package gorm provides GORM-based database operations for genius-loci.
package gorm

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store represents the GORM database connection.
type Store struct {
	DB       *gorm.DB
	sqlDB    *sql.DB
	driver   string
	maxConns int
}

// Config holds database configuration.
type Config struct {
	Driver   string          // "sqlite" (default) or "postgres"
	Path     string          // SQLite database file path
	DSN      string          // Postgres DSN, only consulted when Driver is "postgres"
	MaxConns int             // Maximum number of open connections (default: 4)
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// NewStore opens the database, configures the connection pool, and runs
// migrations. SQLite connections get WAL mode and foreign keys enabled.
func NewStore(cfg Config) (*Store, error) {
	db, sqlDB, err := open(cfg)
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{DB: db, sqlDB: sqlDB, driver: cfg.Driver, maxConns: maxConns}

	if err := RunMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if cfg.Driver != "postgres" {
		if err := store.enableWAL(); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	return store, nil
}

func open(cfg Config) (*gorm.DB, *sql.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		// PrepareStmt enables prepared statement caching for performance
		PrepareStmt: true,
	}

	if cfg.Driver == "postgres" {
		db, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("postgres sql.DB: %w", err)
		}
		return db, sqlDB, nil
	}

	// Foreign keys enabled in the DSN; sqlite3 driver from mattn has them off
	// by default.
	dsn := cfg.Path + "?_foreign_keys=ON"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, gormCfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, sqlDB, nil
}

// enableWAL switches SQLite to WAL journal mode for concurrent readers.
func (s *Store) enableWAL() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.sqlDB.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Recreate rebuilds the schema after the database file was removed on disk.
// Pooled connections still point at the deleted inode, so they are flushed
// first; fresh connections recreate the file, then migrations and pragmas
// run again.
func (s *Store) Recreate() error {
	s.sqlDB.SetMaxIdleConns(0)
	s.sqlDB.SetMaxIdleConns(s.maxConns)

	if err := RunMigrations(s.DB); err != nil {
		return fmt.Errorf("recreate schema: %w", err)
	}
	if s.driver != "postgres" {
		if err := s.enableWAL(); err != nil {
			return fmt.Errorf("recreate WAL: %w", err)
		}
	}
	return nil
}

// GetRawDB returns the underlying sql.DB for raw queries.
func (s *Store) GetRawDB() *sql.DB {
	return s.sqlDB
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}
