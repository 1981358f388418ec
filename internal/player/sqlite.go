package player

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

	_ "modernc.org/sqlite"
)

type SQLiteService struct {
	db *sql.DB
}

// NewServiceFromEnv picks the player-state backend for the storage
// mode. Player state has no postgres backend yet; non-memory modes
// share the local sqlite file.
func NewServiceFromEnv(mode string) (Service, string, error) {
	if strings.ToLower(strings.TrimSpace(mode)) == "memory" {
		return NewMemoryService(), "memory", nil
	}
	dbPath := strings.TrimSpace(os.Getenv("PLAYER_LOCAL_DATABASE_PATH"))
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
	if err := ensureSQLitePlayerSchema(ctx, db); err != nil {
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

func (s *SQLiteService) EnsureState(ctx context.Context, campaignID, playerID string) (State, error) {
	state, err := s.getState(ctx, s.db, campaignID, playerID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return State{}, err
	}

	state = DefaultState(campaignID, playerID)
	if err := s.insertState(ctx, state); err != nil {
		return State{}, err
	}
	return state, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteService) getState(ctx context.Context, q queryer, campaignID, playerID string) (State, error) {
	var state State
	var isJailed int64
	var statsRaw string
	err := q.QueryRowContext(ctx, `
SELECT campaign_id, player_id, level, hp, max_hp, energy, max_energy, xp, gold,
       class, race, name, faction, current_location_id, is_jailed, stats_json
FROM player_state
WHERE campaign_id = ?
  AND player_id = ?
`, campaignID, playerID).Scan(&state.CampaignID, &state.PlayerID, &state.Level, &state.HP,
		&state.MaxHP, &state.Energy, &state.MaxEnergy, &state.XP, &state.Gold,
		&state.Class, &state.Race, &state.Name, &state.Faction,
		&state.CurrentLocationID, &isJailed, &statsRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, err
	}
	state.IsJailed = isJailed == 1
	if statsRaw != "" {
		_ = json.Unmarshal([]byte(statsRaw), &state.Stats)
	}
	return state, nil
}

func (s *SQLiteService) insertState(ctx context.Context, state State) error {
	statsRaw := "{}"
	if len(state.Stats) > 0 {
		raw, err := json.Marshal(state.Stats)
		if err != nil {
			return err
		}
		statsRaw = string(raw)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO player_state (
    campaign_id, player_id, level, hp, max_hp, energy, max_energy, xp, gold,
    class, race, name, faction, current_location_id, is_jailed, stats_json
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, player_id) DO NOTHING
`, state.CampaignID, state.PlayerID, state.Level, state.HP, state.MaxHP,
		state.Energy, state.MaxEnergy, state.XP, state.Gold,
		state.Class, state.Race, state.Name, state.Faction,
		state.CurrentLocationID, boolToInt(state.IsJailed), statsRaw)
	return err
}

func (s *SQLiteService) saveState(ctx context.Context, state State) error {
	statsRaw := "{}"
	if len(state.Stats) > 0 {
		raw, err := json.Marshal(state.Stats)
		if err != nil {
			return err
		}
		statsRaw = string(raw)
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE player_state
SET level = ?, hp = ?, max_hp = ?, energy = ?, max_energy = ?, xp = ?, gold = ?,
    class = ?, race = ?, name = ?, faction = ?, current_location_id = ?, is_jailed = ?, stats_json = ?
WHERE campaign_id = ?
  AND player_id = ?
`, state.Level, state.HP, state.MaxHP, state.Energy, state.MaxEnergy, state.XP, state.Gold,
		state.Class, state.Race, state.Name, state.Faction,
		state.CurrentLocationID, boolToInt(state.IsJailed), statsRaw,
		state.CampaignID, state.PlayerID)
	return err
}

func (s *SQLiteService) PatchState(ctx context.Context, campaignID, playerID string, patch StatePatch) (State, error) {
	state, err := s.EnsureState(ctx, campaignID, playerID)
	if err != nil {
		return State{}, err
	}
	applyPatch(&state, patch)
	if err := s.saveState(ctx, state); err != nil {
		return State{}, err
	}
	return state, nil
}

func (s *SQLiteService) Gold(ctx context.Context, campaignID, playerID string) (int, error) {
	state, err := s.EnsureState(ctx, campaignID, playerID)
	if err != nil {
		return 0, err
	}
	return state.Gold, nil
}

func (s *SQLiteService) AdjustGold(ctx context.Context, campaignID, playerID string, delta int, clampZero bool) (int, error) {
	state, err := s.EnsureState(ctx, campaignID, playerID)
	if err != nil {
		return 0, err
	}
	next := state.Gold + delta
	if next < 0 {
		if !clampZero {
			return state.Gold, ErrInsufficientGold
		}
		next = 0
	}
	if _, err := s.db.ExecContext(ctx, `
UPDATE player_state
SET gold = ?
WHERE campaign_id = ?
  AND player_id = ?
`, next, campaignID, playerID); err != nil {
		return state.Gold, err
	}
	return next, nil
}

func (s *SQLiteService) Inventory(ctx context.Context, campaignID, playerID string) ([]Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT item_id, quantity, equipped_slot, acquired_at_ms
FROM player_inventory
WHERE campaign_id = ?
  AND player_id = ?
ORDER BY acquired_at_ms ASC
`, campaignID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holdings := make([]Holding, 0, 16)
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.ItemID, &h.Quantity, &h.EquippedSlot, &h.AcquiredAtMs); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *SQLiteService) ItemQuantity(ctx context.Context, campaignID, playerID, itemID string) (int, error) {
	var quantity int
	err := s.db.QueryRowContext(ctx, `
SELECT quantity
FROM player_inventory
WHERE campaign_id = ?
  AND player_id = ?
  AND item_id = ?
`, campaignID, playerID, itemID).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return quantity, nil
}

func (s *SQLiteService) AdjustItem(ctx context.Context, campaignID, playerID, itemID string, delta int, nowMs int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var quantity int
	err = tx.QueryRowContext(ctx, `
SELECT quantity
FROM player_inventory
WHERE campaign_id = ?
  AND player_id = ?
  AND item_id = ?
`, campaignID, playerID, itemID).Scan(&quantity)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if delta <= 0 {
			return 0, tx.Commit()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO player_inventory (campaign_id, player_id, item_id, quantity, equipped_slot, acquired_at_ms)
VALUES (?, ?, ?, ?, '', ?)
`, campaignID, playerID, itemID, delta, nowMs); err != nil {
			return 0, err
		}
		return delta, tx.Commit()
	case err != nil:
		return 0, err
	}

	next := quantity + delta
	if next <= 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM player_inventory
WHERE campaign_id = ?
  AND player_id = ?
  AND item_id = ?
`, campaignID, playerID, itemID); err != nil {
			return 0, err
		}
		return 0, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE player_inventory
SET quantity = ?
WHERE campaign_id = ?
  AND player_id = ?
  AND item_id = ?
`, next, campaignID, playerID, itemID); err != nil {
		return 0, err
	}
	return next, tx.Commit()
}

func (s *SQLiteService) SetEquipped(ctx context.Context, campaignID, playerID, itemID, slot string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE player_inventory
SET equipped_slot = ?
WHERE campaign_id = ?
  AND player_id = ?
  AND item_id = ?
`, slot, campaignID, playerID, itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteService) SetFlag(ctx context.Context, campaignID, playerID, key string, value any, nowMs int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO player_flags (campaign_id, player_id, key, value_json, set_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, player_id, key) DO UPDATE
SET value_json = excluded.value_json,
    set_at_ms = excluded.set_at_ms
`, campaignID, playerID, key, string(raw), nowMs)
	return err
}

func (s *SQLiteService) ClearFlag(ctx context.Context, campaignID, playerID, key string) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM player_flags
WHERE campaign_id = ?
  AND player_id = ?
  AND key = ?
`, campaignID, playerID, key)
	return err
}

func (s *SQLiteService) Flags(ctx context.Context, campaignID, playerID string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key, value_json
FROM player_flags
WHERE campaign_id = ?
  AND player_id = ?
`, campaignID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		flags[key] = value
	}
	return flags, rows.Err()
}

func (s *SQLiteService) GrantAbility(ctx context.Context, campaignID, playerID, name string, nowMs int64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO player_abilities (campaign_id, player_id, name, learned_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT (campaign_id, player_id, name) DO NOTHING
`, campaignID, playerID, name, nowMs)
	return err
}

func (s *SQLiteService) RemoveAbility(ctx context.Context, campaignID, playerID, name string) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM player_abilities
WHERE campaign_id = ?
  AND player_id = ?
  AND name = ?
`, campaignID, playerID, name)
	return err
}

func (s *SQLiteService) Abilities(ctx context.Context, campaignID, playerID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name
FROM player_abilities
WHERE campaign_id = ?
  AND player_id = ?
`, campaignID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	abilities := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		abilities[name] = true
	}
	return abilities, rows.Err()
}

func (s *SQLiteService) AdjustReputation(ctx context.Context, campaignID, playerID, faction string, delta float64, nowMs int64) (float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current float64
	err = tx.QueryRowContext(ctx, `
SELECT reputation
FROM player_reputation
WHERE campaign_id = ?
  AND player_id = ?
  AND faction = ?
`, campaignID, playerID, faction).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	next := current + delta
	if _, err := tx.ExecContext(ctx, `
INSERT INTO player_reputation (campaign_id, player_id, faction, reputation, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, player_id, faction) DO UPDATE
SET reputation = excluded.reputation,
    updated_at_ms = excluded.updated_at_ms
`, campaignID, playerID, faction, next, nowMs); err != nil {
		return 0, err
	}
	return next, tx.Commit()
}

func (s *SQLiteService) Reputation(ctx context.Context, campaignID, playerID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT faction, reputation
FROM player_reputation
WHERE campaign_id = ?
  AND player_id = ?
`, campaignID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reputation := make(map[string]float64)
	for rows.Next() {
		var faction string
		var rep float64
		if err := rows.Scan(&faction, &rep); err != nil {
			return nil, err
		}
		reputation[faction] = rep
	}
	return reputation, rows.Err()
}

func (s *SQLiteService) RecordVisit(ctx context.Context, campaignID, playerID, locationID string, nowMs int64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO player_visits (campaign_id, player_id, location_id, first_visit_ms, last_visit_ms, visit_count)
VALUES (?, ?, ?, ?, ?, 1)
ON CONFLICT (campaign_id, player_id, location_id) DO UPDATE
SET last_visit_ms = excluded.last_visit_ms,
    visit_count = player_visits.visit_count + 1
`, campaignID, playerID, locationID, nowMs, nowMs)
	return err
}

func (s *SQLiteService) Visits(ctx context.Context, campaignID, playerID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT location_id
FROM player_visits
WHERE campaign_id = ?
  AND player_id = ?
`, campaignID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := make(map[string]bool)
	for rows.Next() {
		var locationID string
		if err := rows.Scan(&locationID); err != nil {
			return nil, err
		}
		visits[locationID] = true
	}
	return visits, rows.Err()
}

func (s *SQLiteService) SetQuestStatus(ctx context.Context, campaignID, playerID, title, status string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO player_quests (campaign_id, player_id, title, status)
VALUES (?, ?, ?, ?)
ON CONFLICT (campaign_id, player_id, title) DO UPDATE
SET status = excluded.status
`, campaignID, playerID, title, status)
	return err
}

func (s *SQLiteService) Quests(ctx context.Context, campaignID, playerID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT title, status
FROM player_quests
WHERE campaign_id = ?
  AND player_id = ?
`, campaignID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quests := make(map[string]string)
	for rows.Next() {
		var title, status string
		if err := rows.Scan(&title, &status); err != nil {
			return nil, err
		}
		quests[title] = status
	}
	return quests, rows.Err()
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func ensureSQLitePlayerSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS player_state (
    campaign_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    level INTEGER NOT NULL DEFAULT 1,
    hp INTEGER NOT NULL DEFAULT 20,
    max_hp INTEGER NOT NULL DEFAULT 20,
    energy INTEGER NOT NULL DEFAULT 10,
    max_energy INTEGER NOT NULL DEFAULT 10,
    xp INTEGER NOT NULL DEFAULT 0,
    gold INTEGER NOT NULL DEFAULT 0,
    class TEXT NOT NULL DEFAULT '',
    race TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    faction TEXT NOT NULL DEFAULT '',
    current_location_id TEXT NOT NULL DEFAULT '',
    is_jailed INTEGER NOT NULL DEFAULT 0,
    stats_json TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (campaign_id, player_id)
)`,
		`
CREATE TABLE IF NOT EXISTS player_inventory (
    campaign_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    equipped_slot TEXT NOT NULL DEFAULT '',
    acquired_at_ms INTEGER NOT NULL,
    PRIMARY KEY (campaign_id, player_id, item_id)
)`,
		`
CREATE TABLE IF NOT EXISTS player_flags (
    campaign_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value_json TEXT NOT NULL,
    set_at_ms INTEGER NOT NULL,
    PRIMARY KEY (campaign_id, player_id, key)
)`,
		`
CREATE TABLE IF NOT EXISTS player_abilities (
    campaign_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    name TEXT NOT NULL,
    learned_at_ms INTEGER NOT NULL,
    PRIMARY KEY (campaign_id, player_id, name)
)`,
		`
CREATE TABLE IF NOT EXISTS player_reputation (
    campaign_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    faction TEXT NOT NULL,
    reputation REAL NOT NULL DEFAULT 0,
    updated_at_ms INTEGER NOT NULL,
    PRIMARY KEY (campaign_id, player_id, faction)
)`,
		`
CREATE TABLE IF NOT EXISTS player_visits (
    campaign_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    location_id TEXT NOT NULL,
    first_visit_ms INTEGER NOT NULL,
    last_visit_ms INTEGER NOT NULL,
    visit_count INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (campaign_id, player_id, location_id)
)`,
		`
CREATE TABLE IF NOT EXISTS player_quests (
    campaign_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL,
    PRIMARY KEY (campaign_id, player_id, title)
)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
