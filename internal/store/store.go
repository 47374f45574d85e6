// Package store provides a small named key-value store persisted in SQLite.
// Values are grouped into buckets and stored as JSON. Each named store is a
// single database file under a shared database directory.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is a bucketed key-value store backed by one SQLite file.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens (creating if needed) the store called name inside dir.
func Open(dir, name string) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("store name is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	path := filepath.Join(dir, name+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: the handle has a single owner and writes are serialized
	// by the callers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		bucket TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (bucket, key)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create entries table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Get decodes the value at bucket/key into v. It reports false when the key
// is absent.
func (s *Store) Get(bucket, key string, v any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	return get(s.db, bucket, key, v)
}

// Keys returns every key in bucket in ascending order.
func (s *Store) Keys(bucket string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`SELECT key FROM entries WHERE bucket = ? ORDER BY key`, bucket)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Update runs fn inside a single transaction. Writes made through tx become
// visible together when fn returns nil; otherwise none of them are kept.
func (s *Store) Update(fn func(tx *Tx) error) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	sqlTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = sqlTx.Rollback()
		}
	}()
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Tx is the view of the store handed to Update callbacks.
type Tx struct {
	tx *sql.Tx
}

// Get reads bucket/key within the transaction.
func (t *Tx) Get(bucket, key string, v any) (bool, error) {
	return get(t.tx, bucket, key, v)
}

// Put writes v at bucket/key.
func (t *Tx) Put(bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	if _, err := t.tx.Exec(`INSERT INTO entries(bucket,key,value) VALUES(?,?,?)
		ON CONFLICT(bucket,key) DO UPDATE SET value=excluded.value`, bucket, key, data); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes bucket/key. Deleting a missing key is not an error.
func (t *Tx) Delete(bucket, key string) error {
	if _, err := t.tx.Exec(`DELETE FROM entries WHERE bucket = ? AND key = ?`, bucket, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func get(q querier, bucket, key string, v any) (bool, error) {
	var data []byte
	err := q.QueryRow(`SELECT value FROM entries WHERE bucket = ? AND key = ?`, bucket, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select %s/%s: %w", bucket, key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return true, nil
}
