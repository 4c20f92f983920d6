//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gyeol/internal/model"

	_ "modernc.org/sqlite"
)

// Write transactions start with BEGIN IMMEDIATE so the check-then-act inside
// Atomic holds the database write lock from its first read.
const sqliteDSNParams = "_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", sqliteDSN(s.path))
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqliteDSNParams
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (model.Agent, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Agent{}, false, err
	}
	return getAgent(ctx, db, id)
}

func (s *SQLiteStore) SaveAgent(ctx context.Context, agent model.Agent) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return saveAgent(ctx, db, agent)
}

func (s *SQLiteStore) ListAgents(ctx context.Context) ([]model.Agent, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM agents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		agent, err := DecodeAgent(payload)
		if err != nil {
			return nil, fmt.Errorf("decode agent %s: %w", id, err)
		}
		out = append(out, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortAgents(out)
	return out, nil
}

func (s *SQLiteStore) SaveCompatibility(ctx context.Context, agentA, agentB string, score int) error {
	if err := validatePair(agentA, agentB, score); err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	lo, hi := orderedPair(agentA, agentB)
	_, err = db.ExecContext(ctx, `
		INSERT INTO compatibility (agent_lo, agent_hi, score)
		VALUES (?, ?, ?)
		ON CONFLICT(agent_lo, agent_hi) DO UPDATE SET
			score = excluded.score
	`, lo, hi, score)
	return err
}

func (s *SQLiteStore) GetCompatibility(ctx context.Context, agentA, agentB string) (int, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, false, err
	}
	return getCompatibility(ctx, db, agentA, agentB)
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, agentID string, limit int) ([]model.BreedingAttempt, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, payload FROM breeding_attempts
		WHERE parent_a_id = ? OR parent_b_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, agentID, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BreedingAttempt
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		attempt, err := DecodeAttempt(payload)
		if err != nil {
			return nil, fmt.Errorf("decode breeding attempt %s: %w", id, err)
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MostRecentAttempt(ctx context.Context, agentIDs []string) (model.BreedingAttempt, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.BreedingAttempt{}, false, err
	}
	return mostRecentAttempt(ctx, db, agentIDs)
}

func (s *SQLiteStore) Append(ctx context.Context, attempt model.BreedingAttempt) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return appendAttempt(ctx, db, attempt)
}

// Atomic runs fn inside one BEGIN IMMEDIATE transaction. SQLite serialises
// writers database-wide, which covers every key set.
func (s *SQLiteStore) Atomic(ctx context.Context, _ []string, fn func(tx Tx) error) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(&sqliteTx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

type sqliteTx struct {
	q queryer
}

func (t *sqliteTx) GetAgent(ctx context.Context, id string) (model.Agent, bool, error) {
	return getAgent(ctx, t.q, id)
}

func (t *sqliteTx) SaveAgent(ctx context.Context, agent model.Agent) error {
	return saveAgent(ctx, t.q, agent)
}

func (t *sqliteTx) GetCompatibility(ctx context.Context, agentA, agentB string) (int, bool, error) {
	return getCompatibility(ctx, t.q, agentA, agentB)
}

func (t *sqliteTx) MostRecentAttempt(ctx context.Context, agentIDs []string) (model.BreedingAttempt, bool, error) {
	return mostRecentAttempt(ctx, t.q, agentIDs)
}

func (t *sqliteTx) Append(ctx context.Context, attempt model.BreedingAttempt) error {
	return appendAttempt(ctx, t.q, attempt)
}

func getAgent(ctx context.Context, q queryer, id string) (model.Agent, bool, error) {
	var payload []byte
	err := q.QueryRowContext(ctx, `SELECT payload FROM agents WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Agent{}, false, nil
		}
		return model.Agent{}, false, err
	}

	agent, err := DecodeAgent(payload)
	if err != nil {
		return model.Agent{}, false, fmt.Errorf("decode agent %s: %w", id, err)
	}
	return agent, true, nil
}

func saveAgent(ctx context.Context, q queryer, agent model.Agent) error {
	agent = stampAgent(agent)
	payload, err := EncodeAgent(agent)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO agents (id, schema_version, codec_version, generation, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			generation = excluded.generation,
			payload = excluded.payload
	`, agent.ID, agent.SchemaVersion, agent.CodecVersion, agent.Generation, payload)
	return err
}

func getCompatibility(ctx context.Context, q queryer, agentA, agentB string) (int, bool, error) {
	lo, hi := orderedPair(agentA, agentB)
	var score int
	err := q.QueryRowContext(ctx, `SELECT score FROM compatibility WHERE agent_lo = ? AND agent_hi = ?`, lo, hi).Scan(&score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return score, true, nil
}

func mostRecentAttempt(ctx context.Context, q queryer, agentIDs []string) (model.BreedingAttempt, bool, error) {
	if len(agentIDs) == 0 {
		return model.BreedingAttempt{}, false, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(agentIDs)), ",")
	args := make([]any, 0, 2*len(agentIDs))
	for _, id := range agentIDs {
		args = append(args, id)
	}
	for _, id := range agentIDs {
		args = append(args, id)
	}

	var payload []byte
	err := q.QueryRowContext(ctx, `
		SELECT payload FROM breeding_attempts
		WHERE parent_a_id IN (`+placeholders+`) OR parent_b_id IN (`+placeholders+`)
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`, args...).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BreedingAttempt{}, false, nil
		}
		return model.BreedingAttempt{}, false, err
	}

	attempt, err := DecodeAttempt(payload)
	if err != nil {
		return model.BreedingAttempt{}, false, err
	}
	return attempt, true, nil
}

func appendAttempt(ctx context.Context, q queryer, attempt model.BreedingAttempt) error {
	attempt = stampAttempt(attempt)
	payload, err := EncodeAttempt(attempt)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO breeding_attempts (id, parent_a_id, parent_b_id, success, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, attempt.ID, attempt.ParentAID, attempt.ParentBID, attempt.Success, attempt.CreatedAt.UnixNano(), payload)
	return err
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			generation INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS compatibility (
			agent_lo TEXT NOT NULL,
			agent_hi TEXT NOT NULL,
			score INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
			PRIMARY KEY (agent_lo, agent_hi)
		);
		CREATE TABLE IF NOT EXISTS breeding_attempts (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			parent_a_id TEXT NOT NULL,
			parent_b_id TEXT NOT NULL,
			success INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS breeding_attempts_parent_a ON breeding_attempts (parent_a_id, created_at);
		CREATE INDEX IF NOT EXISTS breeding_attempts_parent_b ON breeding_attempts (parent_b_id, created_at);
	`)
	return err
}
