package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/model"
)

const fileSuffix = ".json"

// Archive keeps one JSON array of events per monitored source file.
type Archive struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Archive {
	return &Archive{dir: dir}
}

func (a *Archive) Dir() string {
	return a.dir
}

// PathFor returns the archive file for a source, keyed by its base name.
func (a *Archive) PathFor(sourceFile string) string {
	return filepath.Join(a.dir, filepath.Base(sourceFile)+fileSuffix)
}

func (a *Archive) Exists(sourceFile string) bool {
	_, err := os.Stat(a.PathFor(sourceFile))
	return err == nil
}

// Load returns the archived events for a source. A missing file yields an empty
// slice; malformed content is logged and also treated as empty.
func (a *Archive) Load(sourceFile string) ([]model.LogEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load(a.PathFor(sourceFile))
}

func (a *Archive) load(path string) ([]model.LogEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.LogEvent{}, nil
		}
		return nil, fmt.Errorf("failed to read archive %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []model.LogEvent{}, nil
	}
	var events []model.LogEvent
	if err := json.Unmarshal(data, &events); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Archive content is malformed, starting a new array")
		return []model.LogEvent{}, nil
	}
	return events, nil
}

// Append adds events to the end of a source's archive, rewriting it atomically.
func (a *Archive) Append(sourceFile string, events []model.LogEvent) error {
	if len(events) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.PathFor(sourceFile)
	existing, err := a.load(path)
	if err != nil {
		return err
	}
	existing = append(existing, events...)

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write archive %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace archive %s: %w", path, err)
	}
	log.Debug().Str("file", path).Int("appended", len(events)).Int("total", len(existing)).Msg("Archive updated")
	return nil
}

// Files lists every archive file in the directory.
func (a *Archive) Files() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive dir %s: %w", a.dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(a.dir, e.Name()))
	}
	return files, nil
}

// LoadFile reads an archive file by path without the malformed-content fallback.
func LoadFile(path string) ([]model.LogEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []model.LogEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}
