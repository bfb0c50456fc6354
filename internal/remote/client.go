// Package remote implements the document store over the ironboard server's
// HTTP API, with live queries carried by Server-Sent Events.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/store"
)

const (
	// HeaderUserID carries the caller identity set by the upstream proxy
	HeaderUserID = "X-User-ID"
	// HeaderUserEmail carries the caller email
	HeaderUserEmail = "X-User-Email"
)

// DefaultRetryDelay is how long a broken stream waits before reconnecting
const DefaultRetryDelay = time.Second

// Client is a store.Store backed by the server
type Client struct {
	baseURL    string
	user       model.User
	httpClient *http.Client
	// streamClient has no overall timeout; streams live until cancelled
	streamClient *http.Client
	retryDelay   time.Duration
	log          *logger.Logger

	mu      sync.Mutex
	closed  bool
	streams map[*stream]struct{}
}

var _ store.Store = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the clients used for requests and streams
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamClient = hc
	}
}

// WithRetryDelay sets the stream reconnect delay
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// New creates a client for the server at serverURL acting as user
func New(serverURL string, user model.User, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(serverURL, "/"),
		user:         user,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
		retryDelay:   DefaultRetryDelay,
		log:          log.With(logger.F("store", "remote")),
		streams:      make(map[*stream]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the server's error body
type apiError struct {
	Error string `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderUserID, c.user.ID)
	if email := c.user.NormalizedEmail(); email != "" {
		req.Header.Set(HeaderUserEmail, email)
	}
	return req, nil
}

// do sends a request and decodes a JSON response into out when non-nil
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.isClosed() {
		return store.ErrClosed
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError maps an error response back onto the store's sentinels
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(body))
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", store.ErrNotFound, msg)
	case http.StatusBadRequest:
		if strings.Contains(msg, store.ErrInvalidPath.Error()) {
			return fmt.Errorf("%w: %s", store.ErrInvalidPath, msg)
		}
	case http.StatusServiceUnavailable:
		if strings.Contains(msg, store.ErrClosed.Error()) {
			return fmt.Errorf("%w: %s", store.ErrClosed, msg)
		}
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
}

// Create adds a document and returns the server-generated id
func (c *Client) Create(ctx context.Context, collection string, data any) (string, error) {
	collection, err := store.CleanCollection(collection)
	if err != nil {
		return "", err
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+collection, data, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("server returned no document id")
	}
	return result.ID, nil
}

// Update merges fields into the document at path
func (c *Client) Update(ctx context.Context, path string, fields store.Fields) error {
	coll, id, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, "/api/v1/documents/"+coll+"/"+id, fields, nil)
}

// Delete removes the document at path
func (c *Client) Delete(ctx context.Context, path string) error {
	coll, id, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/api/v1/documents/"+coll+"/"+id, nil, nil)
}

// BatchRequest is the body of a batch commit
type BatchRequest struct {
	Writes []store.Write `json:"writes"`
}

// Batch commits every write atomically on the server
func (c *Client) Batch(ctx context.Context, writes []store.Write) error {
	if len(writes) == 0 {
		return nil
	}
	for _, w := range writes {
		if _, _, err := store.SplitPath(w.Path); err != nil {
			return err
		}
	}
	return c.do(ctx, http.MethodPost, "/api/v1/batch", BatchRequest{Writes: writes}, nil)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops every live stream; later calls fail with store.ErrClosed
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := make([]*stream, 0, len(c.streams))
	for s := range c.streams {
		streams = append(streams, s)
	}
	c.streams = map[*stream]struct{}{}
	c.mu.Unlock()

	for _, s := range streams {
		s.stop()
	}
	return nil
}
