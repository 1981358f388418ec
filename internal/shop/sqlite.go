package shop

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"realmforge/economy"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewStoreFromEnv picks the shop backend for the storage mode. Shops
// have no postgres backend yet; non-memory modes share the local
// sqlite file.
func NewStoreFromEnv(mode string) (Store, string, error) {
	if strings.ToLower(strings.TrimSpace(mode)) == "memory" {
		return NewMemoryStore(), "memory", nil
	}
	dbPath := strings.TrimSpace(os.Getenv("SHOP_LOCAL_DATABASE_PATH"))
	if dbPath == "" {
		dbPath = strings.TrimSpace(os.Getenv("LOCAL_DATABASE_PATH"))
	}
	if dbPath == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return nil, "", err
		}
		dbPath = filepath.Join(userConfigDir, "Realmforge", "realmforge_local.db")
	}
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		return nil, "", err
	}
	return store, "sqlite", nil
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
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
	if err := ensureSQLiteShopSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, shop economy.Shop) (economy.Shop, error) {
	inventoryJSON, buybackJSON, pricingJSON, err := marshalShopDocuments(shop)
	if err != nil {
		return economy.Shop{}, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO shops (
    id, campaign_id, location_id, name, description, shop_type,
    shopkeeper_id, base_price_modifier, buyback_modifier,
    buyback_duration_min, dynamic_pricing_json, inventory_json,
    buyback_json, ai_managed, is_open, last_ai_update_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		shop.ID, shop.CampaignID, shop.LocationID, shop.Name, shop.Description, shop.Type,
		shop.ShopkeeperID, shop.BasePriceModifier, shop.BuybackModifier,
		shop.BuybackDurationMin, pricingJSON, inventoryJSON,
		buybackJSON, boolToInt(shop.AIManaged), boolToInt(shop.IsOpen), shop.LastAIUpdateMs,
	)
	if err != nil {
		return economy.Shop{}, err
	}
	return shop, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (economy.Shop, error) {
	row := s.db.QueryRowContext(ctx, selectShopColumns+` WHERE id = ?`, id)
	shop, err := scanShop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return economy.Shop{}, economy.ErrShopNotFound
	}
	return shop, err
}

func (s *SQLiteStore) ListByCampaign(ctx context.Context, campaignID string) ([]economy.Shop, error) {
	rows, err := s.db.QueryContext(ctx, selectShopColumns+` WHERE campaign_id = ? ORDER BY rowid ASC`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanShops(rows)
}

func (s *SQLiteStore) ListByLocation(ctx context.Context, campaignID, locationID string) ([]economy.Shop, error) {
	rows, err := s.db.QueryContext(ctx, selectShopColumns+` WHERE campaign_id = ? AND location_id = ? ORDER BY rowid ASC`, campaignID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanShops(rows)
}

func (s *SQLiteStore) CampaignIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT campaign_id FROM shops ORDER BY campaign_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, shop economy.Shop) error {
	inventoryJSON, buybackJSON, pricingJSON, err := marshalShopDocuments(shop)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE shops
SET campaign_id = ?,
    location_id = ?,
    name = ?,
    description = ?,
    shop_type = ?,
    shopkeeper_id = ?,
    base_price_modifier = ?,
    buyback_modifier = ?,
    buyback_duration_min = ?,
    dynamic_pricing_json = ?,
    inventory_json = ?,
    buyback_json = ?,
    ai_managed = ?,
    is_open = ?,
    last_ai_update_ms = ?
WHERE id = ?
`,
		shop.CampaignID, shop.LocationID, shop.Name, shop.Description, shop.Type,
		shop.ShopkeeperID, shop.BasePriceModifier, shop.BuybackModifier,
		shop.BuybackDurationMin, pricingJSON, inventoryJSON,
		buybackJSON, boolToInt(shop.AIManaged), boolToInt(shop.IsOpen), shop.LastAIUpdateMs,
		shop.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return economy.ErrShopNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shops WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return economy.ErrShopNotFound
	}
	return nil
}

const selectShopColumns = `
SELECT id, campaign_id, location_id, name, description, shop_type,
       shopkeeper_id, base_price_modifier, buyback_modifier,
       buyback_duration_min, dynamic_pricing_json, inventory_json,
       buyback_json, ai_managed, is_open, last_ai_update_ms
FROM shops`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShop(row rowScanner) (economy.Shop, error) {
	var shop economy.Shop
	var pricingJSON, inventoryJSON, buybackJSON string
	var aiManaged, isOpen int
	err := row.Scan(
		&shop.ID, &shop.CampaignID, &shop.LocationID, &shop.Name, &shop.Description, &shop.Type,
		&shop.ShopkeeperID, &shop.BasePriceModifier, &shop.BuybackModifier,
		&shop.BuybackDurationMin, &pricingJSON, &inventoryJSON,
		&buybackJSON, &aiManaged, &isOpen, &shop.LastAIUpdateMs,
	)
	if err != nil {
		return economy.Shop{}, err
	}
	shop.AIManaged = aiManaged != 0
	shop.IsOpen = isOpen != 0
	if pricingJSON != "" {
		var pricing economy.DynamicPricing
		if err := json.Unmarshal([]byte(pricingJSON), &pricing); err != nil {
			return economy.Shop{}, err
		}
		shop.DynamicPricing = &pricing
	}
	if err := json.Unmarshal([]byte(inventoryJSON), &shop.Inventory); err != nil {
		return economy.Shop{}, err
	}
	if err := json.Unmarshal([]byte(buybackJSON), &shop.BuybackInventory); err != nil {
		return economy.Shop{}, err
	}
	return shop, nil
}

func scanShops(rows *sql.Rows) ([]economy.Shop, error) {
	var out []economy.Shop
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, shop)
	}
	return out, rows.Err()
}

func marshalShopDocuments(shop economy.Shop) (inventoryJSON, buybackJSON, pricingJSON string, err error) {
	if shop.Inventory == nil {
		shop.Inventory = []economy.InventoryEntry{}
	}
	if shop.BuybackInventory == nil {
		shop.BuybackInventory = []economy.BuybackEntry{}
	}
	inventory, err := json.Marshal(shop.Inventory)
	if err != nil {
		return "", "", "", err
	}
	buyback, err := json.Marshal(shop.BuybackInventory)
	if err != nil {
		return "", "", "", err
	}
	pricing := ""
	if shop.DynamicPricing != nil {
		raw, err := json.Marshal(shop.DynamicPricing)
		if err != nil {
			return "", "", "", err
		}
		pricing = string(raw)
	}
	return string(inventory), string(buyback), pricing, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ensureSQLiteShopSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS shops (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    location_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    shop_type TEXT NOT NULL DEFAULT 'general',
    shopkeeper_id TEXT NOT NULL DEFAULT '',
    base_price_modifier REAL NOT NULL DEFAULT 1.0,
    buyback_modifier REAL NOT NULL DEFAULT 1.2,
    buyback_duration_min INTEGER NOT NULL DEFAULT 0,
    dynamic_pricing_json TEXT NOT NULL DEFAULT '',
    inventory_json TEXT NOT NULL DEFAULT '[]',
    buyback_json TEXT NOT NULL DEFAULT '[]',
    ai_managed INTEGER NOT NULL DEFAULT 0,
    is_open INTEGER NOT NULL DEFAULT 1,
    last_ai_update_ms INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_shops_campaign ON shops(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shops_location ON shops(campaign_id, location_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
