package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/existflow/ironboard/internal/logger"
)

// State is best-effort local state kept next to the config.
// Read and write failures are logged and never returned.
type State struct {
	dir string
	log *logger.Logger
}

// NewState keeps state files under dir
func NewState(dir string, log *logger.Logger) *State {
	return &State{dir: dir, log: log}
}

func (s *State) lastBoardPath() string {
	return filepath.Join(s.dir, "last_board")
}

// LastBoard returns the last selected board id, or "" when none is usable
func (s *State) LastBoard() string {
	if s.dir == "" {
		return ""
	}
	data, err := os.ReadFile(s.lastBoardPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read last board", logger.Err(err))
		}
		return ""
	}
	id := strings.TrimSpace(string(data))
	if strings.ContainsAny(id, "/\x00\n") {
		s.log.Warn("ignoring corrupt last board entry")
		return ""
	}
	return id
}

// SetLastBoard remembers id as the last selected board
func (s *State) SetLastBoard(id string) {
	if s.dir == "" {
		return
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.log.Warn("failed to create state directory", logger.Err(err))
		return
	}
	if err := os.WriteFile(s.lastBoardPath(), []byte(id), 0644); err != nil {
		s.log.Warn("failed to save last board", logger.F("board_id", id), logger.Err(err))
	}
}

// ClearLastBoard forgets the last selected board
func (s *State) ClearLastBoard() {
	if s.dir == "" {
		return
	}
	if err := os.Remove(s.lastBoardPath()); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to clear last board", logger.Err(err))
	}
}
