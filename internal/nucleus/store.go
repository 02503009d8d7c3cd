package nucleus

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/arena"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/wire"
)

// Store persists configuration writes and reported component states in
// SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// ComponentLeaf is a stored configuration leaf of a component.
type ComponentLeaf struct {
	Component string
	Leaf
}

// NewStore opens the database at dbPath. Use ":memory:" for an in-memory
// database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS config (
		component TEXT NOT NULL,
		key_path TEXT NOT NULL,
		value_json TEXT NOT NULL,
		timestamp REAL NOT NULL,
		PRIMARY KEY (component, key_path)
	);

	CREATE TABLE IF NOT EXISTS component_state (
		component TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveLeaves writes leaves of component in one transaction, replacing any
// earlier value at the same path.
func (s *Store) SaveLeaves(component string, leaves []Leaf) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO config (component, key_path, value_json, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (component, key_path) DO UPDATE SET
			value_json = excluded.value_json,
			timestamp = excluded.timestamp
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, leaf := range leaves {
		path, err := json.Marshal(leaf.Path)
		if err != nil {
			return err
		}
		value, err := encodeValue(leaf.Value)
		if err != nil {
			return fmt.Errorf("encode %v: %w", leaf.Path, err)
		}
		if _, err := stmt.Exec(component, string(path), string(value), leaf.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Leaves returns every stored leaf ordered by timestamp.
func (s *Store) Leaves() ([]ComponentLeaf, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT component, key_path, value_json, timestamp
		FROM config
		ORDER BY timestamp, component, key_path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComponentLeaf
	for rows.Next() {
		var cl ComponentLeaf
		var path, value string
		if err := rows.Scan(&cl.Component, &path, &value, &cl.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(path), &cl.Path); err != nil {
			return nil, fmt.Errorf("stored key path %q: %w", path, err)
		}
		if cl.Value, err = decodeValue(value); err != nil {
			return nil, fmt.Errorf("stored value at %s: %w", path, err)
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

// SaveState records the lifecycle state a component reported.
func (s *Store) SaveState(component, state string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO component_state (component, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (component) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, component, state, at)
	return err
}

// State returns the last state component reported.
func (s *Store) State(component string) (string, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state string
	var at time.Time
	err := s.db.QueryRow(`
		SELECT state, updated_at FROM component_state WHERE component = ?
	`, component).Scan(&state, &at)
	if err == sql.ErrNoRows {
		return "", time.Time{}, nil
	}
	return state, at, err
}

// encodeValue renders a leaf as JSON. Integers and floats keep their
// distinction across a reload.
func encodeValue(v any) (string, error) {
	obj, err := wire.FromNative(v)
	if err != nil {
		return "", err
	}
	b, err := wire.EncodeJSON(obj)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeValue(s string) (any, error) {
	mem := make([]byte, arena.ObjectSize*len(s)+arena.KVSize)
	obj, err := wire.DecodeJSON([]byte(s), arena.New(mem))
	if err != nil {
		return nil, err
	}
	return wire.ToNative(obj), nil
}
