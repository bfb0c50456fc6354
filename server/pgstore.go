package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/store"
)

// Publisher announces a committed change to every server instance
type Publisher interface {
	Publish(ctx context.Context, collection string) error
}

// PGStore is the Postgres document store behind the server
type PGStore struct {
	db  *sqlx.DB
	hub *store.Hub
	log *logger.Logger

	mu        sync.Mutex
	publisher Publisher
	closed    bool
}

var _ store.Store = (*PGStore)(nil)

type docRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// OpenPG connects to Postgres and migrates the schema
func OpenPG(ctx context.Context, dbURL string, log *logger.Logger) (*PGStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := NewPGStore(db, log)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// NewPGStore wraps an open connection
func NewPGStore(db *sqlx.DB, log *logger.Logger) *PGStore {
	return &PGStore{
		db:  db,
		hub: store.NewHub(),
		log: log.With(logger.F("store", "postgres")),
	}
}

// SetPublisher routes change notifications through p instead of the local hub.
// Instances then refresh their live queries when the notification comes back.
func (s *PGStore) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.publisher = p
	s.mu.Unlock()
}

// Refresh re-runs every local live query on collection
func (s *PGStore) Refresh(collection string) {
	s.hub.Publish(collection)
}

func (s *PGStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// changed announces committed writes
func (s *PGStore) changed(ctx context.Context, collections ...string) {
	sort.Strings(collections)
	s.mu.Lock()
	p := s.publisher
	s.mu.Unlock()

	for _, c := range collections {
		if p != nil {
			err := p.Publish(ctx, c)
			if err == nil {
				continue
			}
			s.log.Warn("change publish failed, refreshing locally", logger.F("collection", c), logger.Err(err))
		}
		s.hub.Publish(c)
	}
}

// Create inserts a document with a generated id
func (s *PGStore) Create(ctx context.Context, collection string, data any) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	collection, err := store.CleanCollection(collection)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	id := uuid.NewString()
	const q = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`
	if _, err := s.db.ExecContext(ctx, q, collection, id, string(raw)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	s.changed(ctx, collection)
	return id, nil
}

// Update merges fields into the document at path
func (s *PGStore) Update(ctx context.Context, path string, fields store.Fields) error {
	return s.Batch(ctx, []store.Write{{Path: path, Fields: fields}})
}

// Batch applies every write in one transaction
func (s *PGStore) Batch(ctx context.Context, writes []store.Write) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	touched := map[string]bool{}
	for _, w := range writes {
		collection, id, err := store.SplitPath(w.Path)
		if err != nil {
			return err
		}

		var raw []byte
		const sel = `SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &raw, sel, collection, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", store.ErrNotFound, w.Path)
			}
			return fmt.Errorf("read %s: %w", w.Path, err)
		}
		current := map[string]any{}
		if err := json.Unmarshal(raw, &current); err != nil {
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

		const upd = `UPDATE documents SET data = $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`
		if _, err := tx.ExecContext(ctx, upd, collection, id, string(out)); err != nil {
			return fmt.Errorf("update %s: %w", w.Path, err)
		}
		touched[collection] = true
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.changed(ctx, keys(touched)...)
	return nil
}

// Delete removes the document and every collection beneath it
func (s *PGStore) Delete(ctx context.Context, path string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	collection, id, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	prefix := collection + "/" + id + "/"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	var removed []string
	const self = `DELETE FROM documents WHERE collection = $1 AND id = $2 RETURNING collection`
	if err := tx.SelectContext(ctx, &removed, self, collection, id); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	var children []string
	const sub = `DELETE FROM documents WHERE left(collection, length($1)) = $1 RETURNING collection`
	if err := tx.SelectContext(ctx, &children, sub, prefix); err != nil {
		return fmt.Errorf("delete children of %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	touched := map[string]bool{}
	for _, c := range append(removed, children...) {
		touched[c] = true
	}
	s.changed(ctx, keys(touched)...)
	return nil
}

// Query returns matching documents in insertion order
func (s *PGStore) Query(ctx context.Context, collection string, filters []store.Filter) ([]store.Document, error) {
	q, args, err := buildQuery(collection, filters)
	if err != nil {
		return nil, err
	}
	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]store.Document, 0, len(rows))
	for _, r := range rows {
		doc := store.Document{ID: r.ID, Data: map[string]any{}}
		if err := json.Unmarshal(r.Data, &doc.Data); err != nil {
			return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, r.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// buildQuery pushes filters down as JSONB predicates, with ? placeholders
func buildQuery(collection string, filters []store.Filter) (string, []any, error) {
	clauses := []string{"collection = ?"}
	args := []any{collection}
	for _, f := range filters {
		if f.Field == "" {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		switch f.Op {
		case store.OpEq:
			value, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("encode filter %s: %w", f, err)
			}
			clauses = append(clauses, "data -> ?::text = ?::jsonb")
			args = append(args, f.Field, string(value))
		case store.OpArrayContains:
			value, err := json.Marshal([]any{f.Value})
			if err != nil {
				return "", nil, fmt.Errorf("encode filter %s: %w", f, err)
			}
			clauses = append(clauses, "jsonb_typeof(data -> ?::text) = 'array' AND data -> ?::text @> ?::jsonb")
			args = append(args, f.Field, f.Field, string(value))
		default:
			return "", nil, fmt.Errorf("unknown filter op %q", f.Op)
		}
	}
	return "SELECT id, data FROM documents WHERE " + strings.Join(clauses, " AND ") + " ORDER BY seq", args, nil
}

// Subscribe registers a live query on collection
func (s *PGStore) Subscribe(collection string, filters []store.Filter, onData func([]store.Document), onError func(error)) (store.Unsubscribe, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	collection, err := store.CleanCollection(collection)
	if err != nil {
		return nil, err
	}
	filters = append([]store.Filter(nil), filters...)
	return s.hub.Subscribe(collection, func() ([]store.Document, error) {
		return s.Query(context.Background(), collection, filters)
	}, onData, onError), nil
}

// Close releases every live query and the connection pool
func (s *PGStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.Close()
	return s.db.Close()
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
