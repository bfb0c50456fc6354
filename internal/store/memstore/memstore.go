// Package memstore is an in-process document store.
// It backs tests and ephemeral sessions and is also the local cache the
// server falls back to when no database is configured.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/existflow/ironboard/internal/store"
)

type collection struct {
	seq  map[string]uint64
	docs map[string]map[string]any
}

// Store keeps documents in memory
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	nextSeq     uint64
	hub         *store.Hub
	closed      bool

	// failSubscribe makes every new subscription error, for tests
	failSubscribe error
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		hub:         store.NewHub(),
	}
}

// FailSubscriptions makes later loads report err through onError.
// Passing nil restores normal behavior.
func (s *Store) FailSubscriptions(err error) {
	s.mu.Lock()
	s.failSubscribe = err
	s.mu.Unlock()
}

// Create adds a document with a generated id
func (s *Store) Create(ctx context.Context, coll string, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	coll, err := store.CleanCollection(coll)
	if err != nil {
		return "", err
	}
	doc, err := store.ToMap(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", store.ErrClosed
	}
	s.put(coll, id, doc)
	s.mu.Unlock()

	s.hub.Publish(coll)
	return id, nil
}

// Put stores a document under a caller-chosen id, replacing any existing one
func (s *Store) Put(ctx context.Context, path string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	coll, id, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	doc, err := store.ToMap(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	s.put(coll, id, doc)
	s.mu.Unlock()

	s.hub.Publish(coll)
	return nil
}

// Update merges fields into an existing document
func (s *Store) Update(ctx context.Context, path string, fields store.Fields) error {
	return s.Batch(ctx, []store.Write{{Path: path, Fields: fields}})
}

// Batch applies every write or none
func (s *Store) Batch(ctx context.Context, writes []store.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	type staged struct {
		coll, id string
		data     map[string]any
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	pending := make([]staged, 0, len(writes))
	overlay := map[string]map[string]any{}
	for _, w := range writes {
		coll, id, err := store.SplitPath(w.Path)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		current, ok := overlay[coll+"/"+id]
		if !ok {
			c := s.collections[coll]
			if c == nil || c.docs[id] == nil {
				s.mu.Unlock()
				return fmt.Errorf("%w: %s", store.ErrNotFound, w.Path)
			}
			current = c.docs[id]
		}
		merged, err := store.Merge(current, w.Fields)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("encode fields for %s: %w", w.Path, err)
		}
		overlay[coll+"/"+id] = merged
		pending = append(pending, staged{coll: coll, id: id, data: merged})
	}
	touched := map[string]bool{}
	for _, p := range pending {
		s.collections[p.coll].docs[p.id] = p.data
		touched[p.coll] = true
	}
	s.mu.Unlock()

	for _, c := range sortedKeys(touched) {
		s.hub.Publish(c)
	}
	return nil
}

// Delete removes the document and everything stored beneath it
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	coll, id, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	path = coll + "/" + id

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	touched := map[string]bool{}
	if c := s.collections[coll]; c != nil {
		if _, ok := c.docs[id]; ok {
			delete(c.docs, id)
			delete(c.seq, id)
			touched[coll] = true
		}
	}
	for name := range s.collections {
		if store.Children(path, name) {
			delete(s.collections, name)
			touched[name] = true
		}
	}
	s.mu.Unlock()

	for _, c := range sortedKeys(touched) {
		s.hub.Publish(c)
	}
	return nil
}

// Get returns a single document
func (s *Store) Get(ctx context.Context, path string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	coll, id, err := store.SplitPath(path)
	if err != nil {
		return store.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.collections[coll]
	if c == nil || c.docs[id] == nil {
		return store.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, path)
	}
	data, err := store.ToMap(c.docs[id])
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: id, Data: data}, nil
}

// Query returns the matching documents in insertion order
func (s *Store) Query(coll string, filters []store.Filter) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failSubscribe != nil {
		return nil, s.failSubscribe
	}
	c := s.collections[strings.Trim(coll, "/")]
	if c == nil {
		return []store.Document{}, nil
	}
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return c.seq[ids[i]] < c.seq[ids[j]] })

	out := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		if !store.Match(c.docs[id], filters) {
			continue
		}
		data, err := store.ToMap(c.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, store.Document{ID: id, Data: data})
	}
	return out, nil
}

// Subscribe registers a live query
func (s *Store) Subscribe(coll string, filters []store.Filter, onData func([]store.Document), onError func(error)) (store.Unsubscribe, error) {
	coll, err := store.CleanCollection(coll)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, store.ErrClosed
	}
	filters = append([]store.Filter(nil), filters...)
	return s.hub.Subscribe(coll, func() ([]store.Document, error) {
		return s.Query(coll, filters)
	}, onData, onError), nil
}

// Close releases every subscription; later writes fail with ErrClosed
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

// Subscribers returns the number of live queries on a collection
func (s *Store) Subscribers(coll string) int {
	return s.hub.Len(coll)
}

func (s *Store) put(coll, id string, doc map[string]any) {
	c := s.collections[coll]
	if c == nil {
		c = &collection{seq: map[string]uint64{}, docs: map[string]map[string]any{}}
		s.collections[coll] = c
	}
	if _, ok := c.seq[id]; !ok {
		s.nextSeq++
		c.seq[id] = s.nextSeq
	}
	c.docs[id] = doc
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
