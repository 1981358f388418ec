package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"realmforge/economy"

	_ "modernc.org/sqlite"
)

const (
	defaultLocalDBName        = "realmforge_local.db"
	defaultPlayerHistoryLimit = 500
)

type SQLiteService struct {
	db           *sql.DB
	historyLimit int
}

func NewSQLiteServiceFromEnv() (*SQLiteService, error) {
	dbPath, err := localDatabasePathFromEnv()
	if err != nil {
		return nil, err
	}
	return NewSQLiteService(dbPath)
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ensureSQLiteLedgerSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteService{
		db:           db,
		historyLimit: envIntOrDefault("LEDGER_PLAYER_HISTORY_LIMIT", defaultPlayerHistoryLimit),
	}, nil
}

// openSQLite opens a database file with the pragmas every sqlite
// backend in this server uses. SetMaxOpenConns(1) keeps the driver to
// a single writer connection.
func openSQLite(dbPath string) (*sql.DB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) Append(ctx context.Context, tx economy.Transaction) error {
	if tx.ShopID == "" || tx.PlayerID == "" {
		return fmt.Errorf("transaction missing shop or player id")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `
INSERT INTO shop_transactions (
    campaign_id, shop_id, player_id, type, item_id, quantity, price_per_unit, total_price, ts_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, tx.CampaignID, tx.ShopID, tx.PlayerID, string(tx.Type), tx.ItemID, tx.Quantity, tx.PricePerUnit, tx.TotalPrice, tx.TimestampMs); err != nil {
		return err
	}

	if s.historyLimit > 0 {
		if _, err := dbTx.ExecContext(ctx, `
DELETE FROM shop_transactions
WHERE campaign_id = ?
  AND player_id = ?
  AND id IN (
      SELECT id
      FROM shop_transactions
      WHERE campaign_id = ?
        AND player_id = ?
      ORDER BY ts_ms DESC, id DESC
      LIMIT -1 OFFSET ?
  )
`, tx.CampaignID, tx.PlayerID, tx.CampaignID, tx.PlayerID, s.historyLimit); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

func (s *SQLiteService) ListByPlayer(ctx context.Context, campaignID, playerID string, limit int) ([]economy.Transaction, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, campaign_id, shop_id, player_id, type, item_id, quantity, price_per_unit, total_price, ts_ms
FROM shop_transactions
WHERE campaign_id = ?
  AND player_id = ?
ORDER BY ts_ms DESC, id DESC
LIMIT ?
`, campaignID, playerID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *SQLiteService) ListByShop(ctx context.Context, shopID string, limit int) ([]economy.Transaction, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, campaign_id, shop_id, player_id, type, item_id, quantity, price_per_unit, total_price, ts_ms
FROM shop_transactions
WHERE shop_id = ?
ORDER BY ts_ms DESC, id DESC
LIMIT ?
`, shopID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *SQLiteService) PlayerNet(ctx context.Context, campaignID, playerID string) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var net sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(CASE WHEN type = 'sell' THEN total_price ELSE -total_price END), 0)
FROM shop_transactions
WHERE campaign_id = ?
  AND player_id = ?
`, campaignID, playerID).Scan(&net)
	if err != nil {
		return 0, err
	}
	return net.Int64, nil
}

func ensureSQLiteLedgerSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS shop_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    campaign_id TEXT NOT NULL,
    shop_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    type TEXT NOT NULL,
    item_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    price_per_unit INTEGER NOT NULL,
    total_price INTEGER NOT NULL,
    ts_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shop_transactions_player ON shop_transactions(campaign_id, player_id, ts_ms DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_shop_transactions_shop ON shop_transactions(shop_id, ts_ms DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func localDatabasePathFromEnv() (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("LEDGER_LOCAL_DATABASE_PATH")),
		strings.TrimSpace(os.Getenv("LOCAL_DATABASE_PATH")),
	}
	for _, candidate := range candidates {
		if candidate != "" {
			return filepath.Clean(candidate), nil
		}
	}

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "Realmforge", defaultLocalDBName), nil
}
