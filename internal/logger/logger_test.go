package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"DEBUG":   DEBUG,
		"debug":   DEBUG,
		" warn ":  WARN,
		"WARNING": WARN,
		"ERROR":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFilteringAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriter(&buf, WARN).With(F("board", "b1"))
	log.Info("hidden")
	log.Warn("snapshot failed", Err(errors.New("boom")), F("tasks", 0))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry written at WARN level: %q", out)
	}
	if !strings.Contains(out, "WARN logger_test.go:") {
		t.Fatalf("expected caller of the log call, got %q", out)
	}
	if !strings.Contains(out, "snapshot failed | board=b1 error=boom tasks=0") {
		t.Fatalf("unexpected entry %q", out)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	t.Parallel()

	var log *Logger
	log.Info("nothing")
	log.With(F("a", 1)).Error("nothing")
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}
	if Nop() != nil {
		t.Fatalf("Nop should be the nil logger")
	}
}

func TestFileRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "ironboard.log")
	log, err := New(Config{Level: DEBUG, FilePath: path, MaxSize: 64, MaxBackups: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	for i := 0; i < 5; i++ {
		log.Debug("a reasonably long line that fills the file quickly")
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected a rotated backup: %v", err)
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Fatalf("kept more backups than configured")
	}
}
