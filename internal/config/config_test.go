package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/existflow/ironboard/internal/logger"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("IRONBOARD_SERVER_URL", "")
	t.Setenv("IRONBOARD_LOG_LEVEL", "")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StorePath != filepath.Join(dir, "ironboard.db") || cfg.LogLevel != "INFO" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.AwaitTimeout != 5*time.Second {
		t.Fatalf("unexpected await timeout %v", cfg.AwaitTimeout)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("IRONBOARD_SERVER_URL", "")
	t.Setenv("IRONBOARD_LOG_LEVEL", "")

	cfg := DefaultConfig(dir)
	cfg.User.ID = "u1"
	cfg.User.Email = "u1@example.com"
	cfg.AwaitTimeout = 2 * time.Second
	cfg.LogLevel = "DEBUG"
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "user_id: u1") {
		t.Fatalf("expected yaml user_id key, got:\n%s", raw)
	}

	loaded, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.User.ID != "u1" || loaded.AwaitTimeout != 2*time.Second || loaded.LogLevel != "DEBUG" {
		t.Fatalf("unexpected config %+v", loaded)
	}
	if loaded.Logger().Level != logger.DEBUG {
		t.Fatalf("logger config not derived")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server_url: http://file\nlog_level: WARN\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IRONBOARD_SERVER_URL", "http://env")
	t.Setenv("IRONBOARD_LOG_LEVEL", "")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "http://env" || cfg.LogLevel != "WARN" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("user: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDirHonorsEnv(t *testing.T) {
	t.Setenv("IRONBOARD_HOME", "/tmp/ironboard-test-home")
	dir, err := Dir()
	if err != nil || dir != "/tmp/ironboard-test-home" {
		t.Fatalf("unexpected dir %q %v", dir, err)
	}
}

func TestStateLastBoard(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	st := NewState(t.TempDir(), logger.NewWriter(&buf, logger.DEBUG))
	if st.LastBoard() != "" {
		t.Fatalf("expected no last board")
	}
	st.SetLastBoard("b42")
	if got := st.LastBoard(); got != "b42" {
		t.Fatalf("expected b42, got %q", got)
	}
	st.ClearLastBoard()
	if st.LastBoard() != "" {
		t.Fatalf("expected cleared last board")
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected warnings: %s", buf.String())
	}
}

func TestStateDegradesGracefully(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var buf bytes.Buffer
	st := NewState(dir, logger.NewWriter(&buf, logger.DEBUG))

	if err := os.WriteFile(filepath.Join(dir, "last_board"), []byte("boards/../x"), 0644); err != nil {
		t.Fatal(err)
	}
	if st.LastBoard() != "" {
		t.Fatalf("corrupt entry must read as no last board")
	}

	// A directory where the file should be makes every access fail
	if err := os.Remove(filepath.Join(dir, "last_board")); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "last_board"), 0755); err != nil {
		t.Fatal(err)
	}
	st.SetLastBoard("b1")
	if st.LastBoard() != "" {
		t.Fatalf("unreadable state must read as no last board")
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Fatalf("expected failures to be logged, got %q", buf.String())
	}
}
