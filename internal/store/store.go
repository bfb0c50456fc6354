// Package store defines the document-store contract the board core runs on.
//
// A store holds JSON documents addressed by slash-separated paths and
// pushes the full matching document set to subscribers on every change.
// Implementations live in memstore (in-process), db (SQLite), remote
// (HTTP/SSE client) and the server package (Postgres).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
	ErrClosed      = errors.New("store closed")
)

// Fields is a partial document used by updates
type Fields map[string]any

// Document is one stored record
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Decode unmarshals the document data into v
func (d Document) Decode(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Write is one update inside a batch
type Write struct {
	Path   string `json:"path"`
	Fields Fields `json:"fields"`
}

// Unsubscribe releases a live query. It is safe to call more than once and
// no callback runs after it returns.
type Unsubscribe func()

// Store is the abstract persistence boundary.
type Store interface {
	// Create adds a document to collection and returns its generated id
	Create(ctx context.Context, collection string, data any) (string, error)
	// Update merges fields into the document at path
	Update(ctx context.Context, path string, fields Fields) error
	// Delete removes the document at path
	Delete(ctx context.Context, path string) error
	// Batch commits all writes atomically
	Batch(ctx context.Context, writes []Write) error
	// Subscribe delivers the full matching set now and after every change
	Subscribe(collection string, filters []Filter, onData func([]Document), onError func(error)) (Unsubscribe, error)
}

// Once wraps fn so repeated calls run it a single time
func Once(fn func()) Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(fn)
	}
}

// ToMap normalizes any JSON-encodable value into a generic document map
func ToMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge returns a copy of data with fields applied on top
func Merge(data map[string]any, fields Fields) (map[string]any, error) {
	patch, err := ToMap(map[string]any(fields))
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(data)+len(patch))
	for k, v := range data {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out, nil
}
