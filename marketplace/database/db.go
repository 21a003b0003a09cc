package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"time"

	"log/slog"

	"github.com/bidhaus/bidhaus/marketplace/database/models"
	"github.com/uptrace/bun"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	defaultConnTimeout   = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
)

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

// DB wraps both connection paths: a pgx pool for raw queries and a bun handle
// for model-level work. Both point at the same database.
type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	var conn net.Conn
	var err error

	tryDial := func() (net.Conn, error) {
		addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
		force4 := os.Getenv("DB_DIAL_FORCE_IPV4") == "1"
		force6 := os.Getenv("DB_DIAL_FORCE_IPV6") == "1"

		if force4 {
			return net.DialTimeout("tcp4", addr, defaultConnTimeout)
		}
		if force6 {
			return net.DialTimeout("tcp6", addr, defaultConnTimeout)
		}

		// Prefer IPv4, then fall back to IPv6
		if c, e := net.DialTimeout("tcp4", addr, defaultConnTimeout); e == nil {
			return c, nil
		}
		return net.DialTimeout("tcp6", addr, defaultConnTimeout)
	}

	for i := 0; i < defaultMaxRetries; i++ {
		conn, err = tryDial()
		if err == nil {
			break
		}
		time.Sleep(defaultRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("database server unreachable after %d attempts: %w", defaultMaxRetries, err)
	}
	defer conn.Close()

	poolConfig, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	return createDB(ctx, poolConfig)
}

func buildConnString(cfg DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}

func createDB(ctx context.Context, poolConfig *pgxpool.Config) (*DB, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	bunDB := newBunDB(pool)
	return &DB{pool: pool, bunDB: bunDB}, nil
}

func (db *DB) GetPool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func newBunDB(pool *pgxpool.Pool) *bun.DB {
	// Default to disabling SSL for Bun unless explicitly overridden by env
	sslMode := os.Getenv("PG_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pool.Config().ConnConfig.User,
		pool.Config().ConnConfig.Password,
		pool.Config().ConnConfig.Host,
		pool.Config().ConnConfig.Port,
		pool.Config().ConnConfig.Database,
		sslMode,
	)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// ResetAppTables truncates application tables for a fresh start (PostgreSQL
// only). Used by integration tests.
func (db *DB) ResetAppTables(ctx context.Context) error {
	if db.bunDB == nil {
		return fmt.Errorf("bun DB not initialized")
	}

	candidates := []string{
		"auction_bids",
		"auctions",
		"wallet_transactions",
		"wallets",
		"assets",
	}

	rows, err := db.pool.Query(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public'`)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			present[name] = true
		}
	}

	var toTruncate []string
	for _, t := range candidates {
		if present[t] {
			toTruncate = append(toTruncate, t)
		}
	}

	if len(toTruncate) == 0 {
		slog.Warn("No app tables found to reset")
		return nil
	}

	stmt := "TRUNCATE TABLE " + joinIdentifiers(toTruncate) + " RESTART IDENTITY CASCADE;"
	if _, err := db.ExecWithLog(ctx, stmt); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	slog.Info("App tables truncated successfully", "tables", toTruncate)
	return nil
}

func joinIdentifiers(names []string) string {
	if len(names) == 0 {
		return ""
	}
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("\"%s\"", n)
	}
	return out
}

func (db *DB) ExecWithLog(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	start := time.Now()
	result, err := db.pool.Exec(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "exec"),
			slog.String("query", sql),
			slog.Any("args", args),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return result, err
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "exec"),
		slog.String("query", sql),
		slog.Any("args", args),
		slog.Duration("took", duration),
		slog.Int64("affected_rows", result.RowsAffected()),
	)
	return result, nil
}

func (db *DB) QueryWithLog(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	start := time.Now()
	rows, err := db.pool.Query(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "query"),
			slog.String("query", sql),
			slog.Any("args", args),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return rows, err
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "query"),
		slog.String("query", sql),
		slog.Any("args", args),
		slog.Duration("took", duration),
	)
	return rows, nil
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

// InitializeSchema creates all required database tables and indexes.
func (db *DB) InitializeSchema(ctx context.Context) error {
	tables := []interface{}{
		(*models.Wallet)(nil),
		(*models.WalletTransaction)(nil),
		(*models.Asset)(nil),
		(*models.Auction)(nil),
		(*models.AuctionBid)(nil),
	}

	for _, model := range tables {
		query := db.bunDB.NewCreateTable().
			Model(model).
			IfNotExists()

		_, err := query.Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_auctions_status_end_time ON auctions(status, end_time);",
		"CREATE INDEX IF NOT EXISTS idx_auctions_live ON auctions(end_time) WHERE status = 'live';",
		// One live auction per asset, enforced at the schema level
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_auctions_asset_live ON auctions(asset_id) WHERE status = 'live';",
		"CREATE INDEX IF NOT EXISTS idx_auctions_seller_id ON auctions(seller_id);",
		"CREATE INDEX IF NOT EXISTS idx_auction_bids_auction_id ON auction_bids(auction_id);",
		"CREATE INDEX IF NOT EXISTS idx_auction_bids_bidder_id ON auction_bids(bidder_id);",
		"CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_id ON wallet_transactions(user_id);",
		"CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_auction ON wallet_transactions(user_id, auction_id) WHERE auction_id > 0;",
		"CREATE INDEX IF NOT EXISTS idx_wallet_transactions_created_at ON wallet_transactions(created_at);",
		"CREATE INDEX IF NOT EXISTS idx_wallets_blocked ON wallets(user_id) WHERE blocked_amount > 0;",
		"CREATE INDEX IF NOT EXISTS idx_assets_owner_id ON assets(owner_id);",
		"CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);",
	}

	for _, idx := range indexes {
		if _, err := db.ExecWithLog(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Ping verifies both database connections are working.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgxpool ping failed: %w", err)
	}

	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("bun ping failed: %w", err)
	}

	return nil
}
