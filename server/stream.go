package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/store"
)

// event is one SSE frame
type event struct {
	name string
	data []byte
}

// parseFilters reads eq=field:value and contains=field:value query params
func parseFilters(q url.Values) ([]store.Filter, error) {
	var filters []store.Filter
	for _, op := range []store.Op{store.OpEq, store.OpArrayContains} {
		for _, raw := range q[string(op)] {
			f, err := store.ParseFilter(op, raw)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
	}
	return filters, nil
}

// offer replaces whatever is waiting in ch with ev; only the latest
// snapshot matters to a client that fell behind.
func offer(ch chan event, ev event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// handleStream holds a live query open and pushes every snapshot
func (s *Server) handleStream(c echo.Context) error {
	collection := wildcard(c)
	filters, err := parseFilters(c.QueryParams())
	if err != nil {
		return badRequest(c, err.Error())
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "stream unsupported"})
	}

	log := s.log.With(logger.F("user_id", userID(c)), logger.F("collection", collection))
	events := make(chan event, 1)
	unsub, err := s.store.Subscribe(collection, filters,
		func(docs []store.Document) {
			data, err := json.Marshal(docs)
			if err != nil {
				log.Error("encode snapshot failed", logger.Err(err))
				return
			}
			offer(events, event{name: "snapshot", data: data})
		},
		func(err error) {
			data, _ := json.Marshal(map[string]string{"error": err.Error()})
			offer(events, event{name: "error", data: data})
		})
	if err != nil {
		return s.fail(c, "stream", err)
	}
	defer unsub()

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set(echo.HeaderConnection, "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug("stream opened", logger.F("filters", len(filters)))
	defer log.Debug("stream closed")

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			if _, err := fmt.Fprint(c.Response(), ": ping\n\n"); err != nil {
				return nil
			}
		case ev := <-events:
			if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", ev.name, ev.data); err != nil {
				return nil
			}
		}
		flusher.Flush()
	}
}
