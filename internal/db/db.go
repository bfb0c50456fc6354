package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/store"
)

// DB is the local SQLite document store
type DB struct {
	*sql.DB

	log *logger.Logger
	hub *store.Hub

	mu     sync.Mutex
	closed bool
}

var _ store.Store = (*DB)(nil)

// DefaultDBPath returns the default database path under dir
func DefaultDBPath(dir string) string {
	return filepath.Join(dir, "ironboard.db")
}

// Open opens or creates the SQLite database
func Open(dbPath string, log *logger.Logger) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps PRAGMA state and data_version polling meaningful
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{
		DB:  sqlDB,
		log: log.With(logger.F("store", "sqlite")),
		hub: store.NewHub(),
	}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db.log.Debug("database opened", logger.F("path", dbPath))
	return db, nil
}

func (db *DB) checkOpen() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return store.ErrClosed
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Create inserts a document with a generated id
func (db *DB) Create(ctx context.Context, collection string, data any) (string, error) {
	if err := db.checkOpen(); err != nil {
		return "", err
	}
	collection, err := store.CleanCollection(collection)
	if err != nil {
		return "", err
	}
	doc, err := store.ToMap(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	if err := db.insert(ctx, collection, id, doc); err != nil {
		return "", err
	}
	db.hub.Publish(collection)
	return id, nil
}

// Put stores a document under a caller-chosen id, replacing any existing one
func (db *DB) Put(ctx context.Context, path string, data any) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	collection, id, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	doc, err := store.ToMap(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := db.insert(ctx, collection, id, doc); err != nil {
		return err
	}
	db.hub.Publish(collection)
	return nil
}

func (db *DB) insert(ctx context.Context, collection, id string, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	ts := now()
	_, err = db.ExecContext(ctx, `
INSERT INTO documents (collection, id, data, seq, created_at, updated_at)
VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents), ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(raw), ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update merges fields into the document at path
func (db *DB) Update(ctx context.Context, path string, fields store.Fields) error {
	return db.Batch(ctx, []store.Write{{Path: path, Fields: fields}})
}

// Batch applies every write in one transaction
func (db *DB) Batch(ctx context.Context, writes []store.Write) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	touched := map[string]bool{}
	for _, w := range writes {
		collection, id, err := store.SplitPath(w.Path)
		if err != nil {
			return err
		}
		var raw string
		err = tx.QueryRowContext(ctx,
			`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrNotFound, w.Path)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", w.Path, err)
		}
		current := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return fmt.Errorf("corrupt document %s: %w", w.Path, err)
		}
		merged, err := store.Merge(current, w.Fields)
		if err != nil {
			return fmt.Errorf("encode fields for %s: %w", w.Path, err)
		}
		out, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode document %s: %w", w.Path, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			string(out), ts, collection, id); err != nil {
			return fmt.Errorf("failed to update %s: %w", w.Path, err)
		}
		touched[collection] = true
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	db.publish(touched)
	return nil
}

// Delete removes the document and every collection beneath it
func (db *DB) Delete(ctx context.Context, path string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	collection, id, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	path = collection + "/" + id
	prefix := path + "/"

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	touched := map[string]bool{}
	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT collection FROM documents WHERE instr(collection, ?) = 1`, prefix)
	if err != nil {
		return fmt.Errorf("failed to list children of %s: %w", path, err)
	}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return err
		}
		touched[c] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		touched[collection] = true
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE instr(collection, ?) = 1`, prefix); err != nil {
		return fmt.Errorf("failed to delete children of %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	db.publish(touched)
	return nil
}

// Get returns a single document
func (db *DB) Get(ctx context.Context, path string) (store.Document, error) {
	collection, id, err := store.SplitPath(path)
	if err != nil {
		return store.Document{}, err
	}
	var raw string
	err = db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, path)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc := store.Document{ID: id, Data: map[string]any{}}
	if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
		return store.Document{}, fmt.Errorf("corrupt document %s: %w", path, err)
	}
	return doc, nil
}

// Query returns matching documents in insertion order
func (db *DB) Query(ctx context.Context, collection string, filters []store.Filter) ([]store.Document, error) {
	where, args, err := buildWhere(collection, filters)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, data FROM documents WHERE `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc := store.Document{ID: id, Data: map[string]any{}}
		if err := json.Unmarshal([]byte(raw), &doc.Data); err != nil {
			return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// buildWhere pushes filters down as JSON1 predicates
func buildWhere(collection string, filters []store.Filter) (string, []any, error) {
	clauses := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range filters {
		path, err := jsonPath(f.Field)
		if err != nil {
			return "", nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f, err)
		}
		switch f.Op {
		case store.OpEq:
			clauses = append(clauses, "json_extract(data, ?) = json_extract(?, '$')")
			args = append(args, path, string(value))
		case store.OpArrayContains:
			clauses = append(clauses, "json_type(data, ?) = 'array' AND EXISTS (SELECT 1 FROM json_each(data, ?) AS e WHERE e.value = json_extract(?, '$'))")
			args = append(args, path, path, string(value))
		default:
			return "", nil, fmt.Errorf("unknown filter op %q", f.Op)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

func jsonPath(field string) (string, error) {
	if field == "" || strings.ContainsAny(field, `"\`) {
		return "", fmt.Errorf("invalid filter field %q", field)
	}
	return `$."` + field + `"`, nil
}

// Subscribe registers a live query on collection
func (db *DB) Subscribe(collection string, filters []store.Filter, onData func([]store.Document), onError func(error)) (store.Unsubscribe, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	collection, err := store.CleanCollection(collection)
	if err != nil {
		return nil, err
	}
	filters = append([]store.Filter(nil), filters...)
	return db.hub.Subscribe(collection, func() ([]store.Document, error) {
		return db.Query(context.Background(), collection, filters)
	}, onData, onError), nil
}

// Subscribers returns the number of live queries on collection
func (db *DB) Subscribers(collection string) int {
	return db.hub.Len(collection)
}

// Watch polls for commits made by other processes and re-delivers every
// live query when one is seen. It returns when ctx is done.
func (db *DB) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	last, err := db.dataVersion(ctx)
	if err != nil {
		db.log.Warn("data version unavailable, not watching", logger.Err(err))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		v, err := db.dataVersion(ctx)
		if err != nil {
			if ctx.Err() == nil && db.checkOpen() == nil {
				db.log.Warn("failed to poll data version", logger.Err(err))
			}
			continue
		}
		if v == last {
			continue
		}
		last = v
		db.log.Debug("external change detected", logger.F("data_version", v))
		for _, c := range db.hub.Collections() {
			db.hub.Publish(c)
		}
	}
}

func (db *DB) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

func (db *DB) publish(touched map[string]bool) {
	collections := make([]string, 0, len(touched))
	for c := range touched {
		collections = append(collections, c)
	}
	sort.Strings(collections)
	for _, c := range collections {
		db.hub.Publish(c)
	}
}

// Close releases every live query and closes the database
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	db.hub.Close()
	return db.DB.Close()
}
