package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/existflow/ironboard/internal/store"
)

var errUnavailable = errors.New("backend unavailable")

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		rc.Close()
		m.Close()
	})
	return rc
}

func TestNotifierRefreshesSubscribers(t *testing.T) {
	rc := setupRedis(t)
	n := NewNotifier(rc, "test", nil)

	hub := store.NewHub()
	defer hub.Close()
	var mu sync.Mutex
	loads := 0
	snapshots := make(chan int, 4)
	unsub := hub.Subscribe("boards", func() ([]store.Document, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		return make([]store.Document, loads), nil
	}, func(docs []store.Document) { snapshots <- len(docs) }, nil)
	defer unsub()
	<-snapshots

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx, hub.Publish)
		close(done)
	}()
	// wait for subscription to start
	time.Sleep(50 * time.Millisecond)

	if err := n.Publish(context.Background(), "boards"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-snapshots:
		if got != 2 {
			t.Fatalf("expected a fresh snapshot, got %d docs", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber was not refreshed")
	}

	// Notices for other collections leave it alone
	if err := n.Publish(context.Background(), "boards/b/tasks"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-snapshots:
		t.Fatal("unrelated collection refreshed the subscriber")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit")
	}
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, string) error {
	p.calls++
	return errUnavailable
}

func TestChangedFallsBackToLocalHub(t *testing.T) {
	t.Parallel()

	s := &PGStore{hub: store.NewHub()}
	pub := &failingPublisher{}
	s.SetPublisher(pub)

	refreshed := 0
	unsub := s.hub.Subscribe("boards", func() ([]store.Document, error) { return nil, nil },
		func([]store.Document) { refreshed++ }, nil)
	defer unsub()

	s.changed(context.Background(), "boards")
	if pub.calls != 1 || refreshed != 2 {
		t.Fatalf("expected publish attempt and local refresh, got calls=%d refreshed=%d", pub.calls, refreshed)
	}
}
