package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	Driver           string // sqlite | postgres
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB bundles the ent SQL driver with the pool backing it.
type DB struct {
	drv  *entsql.Driver
	pool *pgxpool.Pool // nil for sqlite
}

// Driver exposes the ent SQL driver for repositories.
func (db *DB) Driver() *entsql.Driver { return db.drv }

// Dialect returns the ent dialect name used to build queries.
func (db *DB) Dialect() string { return db.drv.Dialect() }

// Open connects to Postgres through a pgx pool, or to SQLite through
// modernc, and wraps the result for the ent SQL builders.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case dialect.Postgres:
		return openPostgres(ctx, cfg, logger)
	case "sqlite", dialect.SQLite, "":
		return openSQLite(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "document-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database", "driver", "postgres")
	return &DB{drv: entsql.OpenDB(dialect.Postgres, db), pool: pool}, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "sqlite", "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// and keeps in-memory databases on one handle.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database", "driver", "sqlite")
	return &DB{drv: entsql.OpenDB(dialect.SQLite, db)}, nil
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if db.drv != nil {
		if err := db.drv.Close(); err != nil {
			logger.Error("failed to close sql driver", "error", err)
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database within timeout.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if db.pool != nil {
		return db.pool.Ping(ctx)
	}
	return db.drv.DB().PingContext(ctx)
}

// OpenMemory opens a private in-memory SQLite database with the schema applied.
func OpenMemory(ctx context.Context, logger *slog.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:mem-%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := Open(ctx, Config{Driver: "sqlite", DSN: dsn}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close(logger)
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables this service writes. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if db.Dialect() == dialect.Postgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if err := db.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
