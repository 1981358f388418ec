package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"realmforge/economy"

	_ "modernc.org/sqlite"
)

type SQLiteService struct {
	db *sql.DB
}

// NewServiceFromEnv picks the campaign backend for the storage mode.
// Campaign data has no postgres backend yet; non-memory modes share
// the local sqlite file.
func NewServiceFromEnv(mode string) (Service, string, error) {
	if strings.ToLower(strings.TrimSpace(mode)) == "memory" {
		return NewMemoryService(), "memory", nil
	}
	dbPath := strings.TrimSpace(os.Getenv("CAMPAIGN_LOCAL_DATABASE_PATH"))
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
	service, err := NewSQLiteService(dbPath)
	if err != nil {
		return nil, "", err
	}
	return service, "sqlite", nil
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
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
	if err := ensureSQLiteCampaignSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteService{db: db}, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) CreateCampaign(ctx context.Context, ownerID uint64, name, description string) (Campaign, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Campaign{}, fmt.Errorf("campaign name is required")
	}
	if ownerID == 0 {
		return Campaign{}, fmt.Errorf("campaign owner is required")
	}
	c := Campaign{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAtMs: time.Now().UTC().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO campaigns (id, owner_id, name, description, created_at_ms)
VALUES (?, ?, ?, ?, ?)
`, c.ID, c.OwnerID, c.Name, c.Description, c.CreatedAtMs)
	if err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (s *SQLiteService) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	var c Campaign
	err := s.db.QueryRowContext(ctx, `
SELECT id, owner_id, name, description, created_at_ms
FROM campaigns
WHERE id = ?
`, id).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.CreatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, ErrCampaignNotFound
	}
	if err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (s *SQLiteService) IsOwner(ctx context.Context, campaignID string, userID uint64) (bool, error) {
	c, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	return c.OwnerID == userID, nil
}

func (s *SQLiteService) CreateItem(ctx context.Context, item economy.Item) (economy.Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" || item.CampaignID == "" {
		return economy.Item{}, fmt.Errorf("item needs a name and campaign")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if _, err := s.GetCampaign(ctx, item.CampaignID); err != nil {
		return economy.Item{}, err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO items (id, campaign_id, name, type, category, rarity, description)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, item.ID, item.CampaignID, item.Name, item.Type, item.Category, string(item.Rarity), item.Description)
	if err != nil {
		return economy.Item{}, err
	}
	return item, nil
}

func (s *SQLiteService) GetItem(ctx context.Context, id string) (economy.Item, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, campaign_id, name, type, category, rarity, description
FROM items
WHERE id = ?
`, id)
	return scanItem(row)
}

func (s *SQLiteService) FindItemByName(ctx context.Context, campaignID, name string) (economy.Item, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, campaign_id, name, type, category, rarity, description
FROM items
WHERE campaign_id = ?
  AND name = ?
LIMIT 1
`, campaignID, name)
	return scanItem(row)
}

func (s *SQLiteService) ListItems(ctx context.Context, campaignID string) ([]economy.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, campaign_id, name, type, category, rarity, description
FROM items
WHERE campaign_id = ?
ORDER BY name ASC
`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]economy.Item, 0, 16)
	for rows.Next() {
		var item economy.Item
		var rarity string
		if err := rows.Scan(&item.ID, &item.CampaignID, &item.Name, &item.Type, &item.Category, &rarity, &item.Description); err != nil {
			return nil, err
		}
		item.Rarity = economy.Rarity(rarity)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteService) CreateNPC(ctx context.Context, npc NPC) (NPC, error) {
	npc.Name = strings.TrimSpace(npc.Name)
	if npc.Name == "" || npc.CampaignID == "" {
		return NPC{}, fmt.Errorf("npc needs a name and campaign")
	}
	if npc.ID == "" {
		npc.ID = uuid.NewString()
	}
	if _, err := s.GetCampaign(ctx, npc.CampaignID); err != nil {
		return NPC{}, err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO npcs (id, campaign_id, name, role, location_id, is_dead, is_essential, death_cause, death_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, npc.ID, npc.CampaignID, npc.Name, npc.Role, npc.LocationID, boolToInt(npc.IsDead), boolToInt(npc.IsEssential), npc.DeathCause, npc.DeathAtMs)
	if err != nil {
		return NPC{}, err
	}
	return npc, nil
}

func (s *SQLiteService) GetNPC(ctx context.Context, id string) (NPC, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, campaign_id, name, role, location_id, is_dead, is_essential, death_cause, death_at_ms
FROM npcs
WHERE id = ?
`, id)
	return scanNPC(row)
}

func (s *SQLiteService) ListNPCs(ctx context.Context, campaignID string) ([]NPC, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, campaign_id, name, role, location_id, is_dead, is_essential, death_cause, death_at_ms
FROM npcs
WHERE campaign_id = ?
ORDER BY name ASC
`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	npcs := make([]NPC, 0, 16)
	for rows.Next() {
		var npc NPC
		var isDead, isEssential int64
		if err := rows.Scan(&npc.ID, &npc.CampaignID, &npc.Name, &npc.Role, &npc.LocationID, &isDead, &isEssential, &npc.DeathCause, &npc.DeathAtMs); err != nil {
			return nil, err
		}
		npc.IsDead = isDead == 1
		npc.IsEssential = isEssential == 1
		npcs = append(npcs, npc)
	}
	return npcs, rows.Err()
}

func (s *SQLiteService) SetNPCDead(ctx context.Context, id string, dead bool, cause string, nowMs int64) (NPC, error) {
	npc, err := s.GetNPC(ctx, id)
	if err != nil {
		return NPC{}, err
	}
	if dead {
		if npc.IsEssential {
			return NPC{}, ErrNPCEssential
		}
		npc.IsDead = true
		npc.DeathCause = cause
		npc.DeathAtMs = nowMs
	} else {
		npc.IsDead = false
		npc.DeathCause = ""
		npc.DeathAtMs = 0
	}
	_, err = s.db.ExecContext(ctx, `
UPDATE npcs
SET is_dead = ?, death_cause = ?, death_at_ms = ?
WHERE id = ?
`, boolToInt(npc.IsDead), npc.DeathCause, npc.DeathAtMs, id)
	if err != nil {
		return NPC{}, err
	}
	return npc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (economy.Item, error) {
	var item economy.Item
	var rarity string
	err := row.Scan(&item.ID, &item.CampaignID, &item.Name, &item.Type, &item.Category, &rarity, &item.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return economy.Item{}, ErrItemNotFound
	}
	if err != nil {
		return economy.Item{}, err
	}
	item.Rarity = economy.Rarity(rarity)
	return item, nil
}

func scanNPC(row rowScanner) (NPC, error) {
	var npc NPC
	var isDead, isEssential int64
	err := row.Scan(&npc.ID, &npc.CampaignID, &npc.Name, &npc.Role, &npc.LocationID, &isDead, &isEssential, &npc.DeathCause, &npc.DeathAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return NPC{}, ErrNPCNotFound
	}
	if err != nil {
		return NPC{}, err
	}
	npc.IsDead = isDead == 1
	npc.IsEssential = isEssential == 1
	return npc, nil
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func ensureSQLiteCampaignSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    owner_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_owner ON campaigns(owner_id)`,
		`
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    rarity TEXT NOT NULL DEFAULT 'common',
    description TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_items_campaign_name ON items(campaign_id, name)`,
		`
CREATE TABLE IF NOT EXISTS npcs (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT '',
    location_id TEXT NOT NULL DEFAULT '',
    is_dead INTEGER NOT NULL DEFAULT 0,
    is_essential INTEGER NOT NULL DEFAULT 0,
    death_cause TEXT NOT NULL DEFAULT '',
    death_at_ms INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_npcs_campaign ON npcs(campaign_id)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
