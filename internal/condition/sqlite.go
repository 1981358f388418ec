package condition

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

	"realmforge/rules"

	_ "modernc.org/sqlite"
)

type SQLiteService struct {
	db *sql.DB
}

// NewServiceFromEnv picks the condition backend for the storage mode.
// Conditions have no postgres backend yet; non-memory modes share the
// local sqlite file.
func NewServiceFromEnv(mode string) (Service, string, error) {
	if strings.ToLower(strings.TrimSpace(mode)) == "memory" {
		return NewMemoryService(), "memory", nil
	}
	dbPath := strings.TrimSpace(os.Getenv("CONDITION_LOCAL_DATABASE_PATH"))
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
	if err := ensureSQLiteConditionSchema(ctx, db); err != nil {
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

func (s *SQLiteService) Create(ctx context.Context, c Condition) (Condition, error) {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conditions (
    id, campaign_id, name, description, trigger_name, trigger_context,
    rules_json, then_actions_json, else_actions_json, priority,
    execute_once, cooldown_seconds, is_active, created_at_ms, updated_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		c.ID, c.CampaignID, c.Name, c.Description, string(c.Trigger), c.TriggerContext,
		c.Rules, c.ThenActions, c.ElseActions, c.Priority,
		boolToInt(c.ExecuteOnce), c.CooldownSeconds, boolToInt(c.IsActive), c.CreatedAtMs, c.UpdatedAtMs,
	)
	if err != nil {
		return Condition{}, err
	}
	return c, nil
}

const selectConditionColumns = `
SELECT id, campaign_id, name, description, trigger_name, trigger_context,
       rules_json, then_actions_json, else_actions_json, priority,
       execute_once, cooldown_seconds, is_active, created_at_ms, updated_at_ms
FROM conditions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCondition(row rowScanner) (Condition, error) {
	var c Condition
	var trigger string
	var executeOnce, isActive int
	err := row.Scan(
		&c.ID, &c.CampaignID, &c.Name, &c.Description, &trigger, &c.TriggerContext,
		&c.Rules, &c.ThenActions, &c.ElseActions, &c.Priority,
		&executeOnce, &c.CooldownSeconds, &isActive, &c.CreatedAtMs, &c.UpdatedAtMs,
	)
	if err != nil {
		return Condition{}, err
	}
	c.Trigger = rules.Trigger(trigger)
	c.ExecuteOnce = executeOnce != 0
	c.IsActive = isActive != 0
	return c, nil
}

func (s *SQLiteService) Get(ctx context.Context, id string) (Condition, error) {
	c, err := scanCondition(s.db.QueryRowContext(ctx, selectConditionColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Condition{}, ErrNotFound
	}
	return c, err
}

func (s *SQLiteService) ListByCampaign(ctx context.Context, campaignID string) ([]Condition, error) {
	rows, err := s.db.QueryContext(ctx, selectConditionColumns+` WHERE campaign_id = ? ORDER BY rowid ASC`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConditions(rows)
}

func (s *SQLiteService) ListByTrigger(ctx context.Context, campaignID string, trigger rules.Trigger) ([]Condition, error) {
	rows, err := s.db.QueryContext(ctx, selectConditionColumns+`
WHERE campaign_id = ?
  AND trigger_name = ?
  AND is_active = 1
ORDER BY priority DESC, rowid ASC`, campaignID, string(trigger))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConditions(rows)
}

func scanConditions(rows *sql.Rows) ([]Condition, error) {
	var out []Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteService) Update(ctx context.Context, id string, patch Patch, nowMs int64) (Condition, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Condition{}, err
	}
	patch.apply(&c)
	c.UpdatedAtMs = nowMs
	_, err = s.db.ExecContext(ctx, `
UPDATE conditions
SET name = ?,
    description = ?,
    trigger_name = ?,
    trigger_context = ?,
    rules_json = ?,
    then_actions_json = ?,
    else_actions_json = ?,
    priority = ?,
    execute_once = ?,
    cooldown_seconds = ?,
    is_active = ?,
    updated_at_ms = ?
WHERE id = ?
`,
		c.Name, c.Description, string(c.Trigger), c.TriggerContext,
		c.Rules, c.ThenActions, c.ElseActions, c.Priority,
		boolToInt(c.ExecuteOnce), c.CooldownSeconds, boolToInt(c.IsActive), c.UpdatedAtMs,
		id,
	)
	if err != nil {
		return Condition{}, err
	}
	return c, nil
}

func (s *SQLiteService) Toggle(ctx context.Context, id string, nowMs int64) (bool, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	active := !c.IsActive
	_, err = s.db.ExecContext(ctx, `
UPDATE conditions
SET is_active = ?,
    updated_at_ms = ?
WHERE id = ?
`, boolToInt(active), nowMs, id)
	if err != nil {
		return false, err
	}
	return active, nil
}

func (s *SQLiteService) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conditions WHERE id = ?`, id)
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

func (s *SQLiteService) RecordExecution(ctx context.Context, exec Execution) error {
	actionsJSON := ""
	if len(exec.ActionResults) > 0 {
		raw, err := json.Marshal(exec.ActionResults)
		if err != nil {
			return err
		}
		actionsJSON = string(raw)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO condition_executions (
    condition_id, campaign_id, player_id, result, actions_json, triggered_at_ms
)
VALUES (?, ?, ?, ?, ?, ?)
`, exec.ConditionID, exec.CampaignID, exec.PlayerID, boolToInt(exec.Result), actionsJSON, exec.TriggeredAtMs)
	return err
}

func (s *SQLiteService) HasMatched(ctx context.Context, conditionID, playerID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1
FROM condition_executions
WHERE condition_id = ?
  AND player_id = ?
  AND result = 1
LIMIT 1
`, conditionID, playerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteService) LastExecution(ctx context.Context, conditionID, playerID string) (Execution, bool, error) {
	exec, err := scanExecution(s.db.QueryRowContext(ctx, selectExecutionColumns+`
WHERE condition_id = ?
  AND player_id = ?
ORDER BY id DESC
LIMIT 1
`, conditionID, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return Execution{}, false, nil
	}
	if err != nil {
		return Execution{}, false, err
	}
	return exec, true, nil
}

const selectExecutionColumns = `
SELECT id, condition_id, campaign_id, player_id, result, actions_json, triggered_at_ms
FROM condition_executions`

func scanExecution(row rowScanner) (Execution, error) {
	var exec Execution
	var result int
	var actionsJSON string
	err := row.Scan(&exec.ID, &exec.ConditionID, &exec.CampaignID, &exec.PlayerID, &result, &actionsJSON, &exec.TriggeredAtMs)
	if err != nil {
		return Execution{}, err
	}
	exec.Result = result != 0
	if actionsJSON != "" {
		if err := json.Unmarshal([]byte(actionsJSON), &exec.ActionResults); err != nil {
			return Execution{}, err
		}
	}
	return exec, nil
}

func (s *SQLiteService) ListExecutions(ctx context.Context, campaignID, playerID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectExecutionColumns+`
WHERE campaign_id = ?
  AND player_id = ?
ORDER BY id DESC
LIMIT ?
`, campaignID, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ensureSQLiteConditionSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS conditions (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    trigger_name TEXT NOT NULL,
    trigger_context TEXT NOT NULL DEFAULT '',
    rules_json TEXT NOT NULL,
    then_actions_json TEXT NOT NULL DEFAULT '',
    else_actions_json TEXT NOT NULL DEFAULT '',
    priority INTEGER NOT NULL DEFAULT 0,
    execute_once INTEGER NOT NULL DEFAULT 0,
    cooldown_seconds INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_conditions_campaign ON conditions(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conditions_trigger ON conditions(campaign_id, trigger_name, is_active)`,
		`
CREATE TABLE IF NOT EXISTS condition_executions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    condition_id TEXT NOT NULL,
    campaign_id TEXT NOT NULL,
    player_id TEXT NOT NULL,
    result INTEGER NOT NULL,
    actions_json TEXT NOT NULL DEFAULT '',
    triggered_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_cond_exec_condition ON condition_executions(condition_id, player_id, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_cond_exec_player ON condition_executions(campaign_id, player_id, id DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
