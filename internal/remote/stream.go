package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/store"
)

// maxEventSize bounds one SSE event; a snapshot carries the whole collection
const maxEventSize = 16 << 20

// stream is one live query held open against the server
type stream struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	onData  func([]store.Document)
	onError func(error)
}

// Subscribe opens a stream for collection. Snapshots arrive asynchronously;
// a broken stream reports through onError and reconnects.
func (c *Client) Subscribe(collection string, filters []store.Filter, onData func([]store.Document), onError func(error)) (store.Unsubscribe, error) {
	collection, err := store.CleanCollection(collection)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	for _, f := range filters {
		switch f.Op {
		case store.OpEq, store.OpArrayContains:
			query.Add(string(f.Op), f.Field+":"+fmt.Sprint(f.Value))
		default:
			return nil, fmt.Errorf("unknown filter op %q", f.Op)
		}
	}
	path := "/api/v1/stream/" + collection
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &stream{cancel: cancel, done: make(chan struct{}), onData: onData, onError: onError}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return nil, store.ErrClosed
	}
	c.streams[s] = struct{}{}
	c.mu.Unlock()

	log := c.log.With(logger.F("collection", collection))
	go c.run(ctx, s, path, log)

	return store.Once(func() {
		c.mu.Lock()
		delete(c.streams, s)
		c.mu.Unlock()
		s.stop()
	}), nil
}

// stop waits for an in-flight callback, then ends the stream
func (s *stream) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
}

func (s *stream) deliver(docs []store.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.onData == nil {
		return
	}
	s.onData(docs)
}

func (s *stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.onError == nil {
		return
	}
	s.onError(err)
}

// run keeps the stream connected until ctx is cancelled
func (c *Client) run(ctx context.Context, s *stream, path string, log *logger.Logger) {
	defer close(s.done)
	for {
		err := c.listen(ctx, s, path)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("stream closed by server")
		}
		log.Warn("stream interrupted, reconnecting", logger.Err(err))
		s.fail(err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}
}

// listen reads events from one connection until it ends
func (c *Client) listen(ctx context.Context, s *stream, path string) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), maxEventSize)

	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				s.dispatch(event, strings.Join(data, "\n"))
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

func (s *stream) dispatch(event, data string) {
	switch event {
	case "", "snapshot":
		var docs []store.Document
		if err := json.Unmarshal([]byte(data), &docs); err != nil {
			s.fail(fmt.Errorf("decode snapshot: %w", err))
			return
		}
		if docs == nil {
			docs = []store.Document{}
		}
		s.deliver(docs)
	case "error":
		var e apiError
		if err := json.Unmarshal([]byte(data), &e); err != nil || e.Error == "" {
			e.Error = data
		}
		s.fail(errors.New(e.Error))
	}
}
