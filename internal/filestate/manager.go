package filestate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// FileProcessState maps a monitored file's base name to its last consumed byte offset.
type FileProcessState map[string]int64

type Manager interface {
	LoadState() (FileProcessState, error)
	SaveState(state FileProcessState) error
	GetStateFilePath() string
}

type fileStateManager struct {
	filePath string
	mu       sync.Mutex
}

func NewManager(filePath string) Manager {
	return &fileStateManager{
		filePath: filePath,
	}
}

// LoadState treats a missing or empty state file as a first run. Negative
// offsets are dropped so the file is picked up again from the start.
func (m *fileStateManager) LoadState() (FileProcessState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("file", m.filePath).Msg("State file not found, starting fresh.")
		return FileProcessState{}, nil
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	case len(data) == 0:
		log.Warn().Str("file", m.filePath).Msg("State file is empty, starting fresh.")
		return FileProcessState{}, nil
	}

	state := FileProcessState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	for name, off := range state {
		if off < 0 {
			log.Warn().Str("file", name).Int64("offset", off).Msg("Ignoring negative offset in state file")
			delete(state, name)
		}
	}
	log.Debug().Str("file", m.filePath).Int("files_tracked", len(state)).Msg("Loaded file state")
	return state, nil
}

// SaveState replaces the state file atomically: the new content is synced to a
// sibling temp file which is then renamed over the old one.
func (m *fileStateManager) SaveState(state FileProcessState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.filePath), filepath.Base(m.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp state file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync temp state file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, m.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	log.Trace().Str("file", m.filePath).Int("files_tracked", len(state)).Msg("Saved file state")
	return nil
}

func (m *fileStateManager) GetStateFilePath() string {
	return m.filePath
}
