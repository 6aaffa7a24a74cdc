package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/duetnight/dnabot/dnabot/database/models"
)

const defaultConnTimeout = 5 * time.Second

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
	SSLMode  string `toml:"ssl_mode"`
}

type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	poolConfig.ConnConfig.ConnectTimeout = defaultConnTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	return &DB{pool: pool, bunDB: bunDB}, nil
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Close() {
	db.pool.Close()
	if err := db.bunDB.Close(); err != nil {
		slog.Error("Failed to close bun DB", slog.String("type", "db"), slog.Any("error", err))
	}
}

// InitializeSchema creates the plugin's tables and indexes if they are
// missing. Safe to run on every start.
func (db *DB) InitializeSchema(ctx context.Context) error {
	tables := []interface{}{
		(*models.Account)(nil),
		(*models.Binding)(nil),
		(*models.SignRecord)(nil),
		(*models.Subscription)(nil),
	}

	for _, table := range tables {
		if _, err := db.bunDB.NewCreateTable().
			Model(table).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", table, err)
		}
	}

	indexes := []struct {
		name    string
		table   string
		columns string
		unique  bool
	}{
		{"idx_dna_accounts_user_uid", "dna_accounts", "(user_id, bot_id, uid)", true},
		{"idx_dna_accounts_uid", "dna_accounts", "(uid)", false},
		{"idx_dna_bindings_user", "dna_bindings", "(user_id, bot_id)", true},
		{"idx_dna_sign_records_uid_date", "dna_sign_records", "(uid, date)", true},
		{"idx_dna_sign_records_date", "dna_sign_records", "(date)", false},
		{"idx_dna_subscriptions_key", "dna_subscriptions", "(topic, user_id, bot_id)", true},
		{"idx_dna_subscriptions_topic", "dna_subscriptions", "(topic)", false},
	}

	for _, idx := range indexes {
		unique := ""
		if idx.unique {
			unique = "UNIQUE "
		}
		stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s %s", unique, idx.name, idx.table, idx.columns)
		if _, err := db.bunDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	slog.Info("Database schema initialized",
		slog.String("type", "db"),
		slog.Int("tables", len(tables)),
	)
	return nil
}
