package filestate

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

var ErrOffsetRegression = errors.New("offset would move backwards")

// Tracker is the single owner of the offset map. Every mutation is written
// through to the Manager before it returns, so a crash loses at most the read
// that was in flight.
type Tracker struct {
	mgr   Manager
	state FileProcessState
}

func NewTracker(mgr Manager) (*Tracker, error) {
	state, err := mgr.LoadState()
	if err != nil {
		return nil, fmt.Errorf("failed to load file state from %s: %w", mgr.GetStateFilePath(), err)
	}
	return &Tracker{mgr: mgr, state: state}, nil
}

// Offset returns the recorded offset and whether the file has been seen before.
func (t *Tracker) Offset(name string) (int64, bool) {
	off, ok := t.state[name]
	return off, ok
}

// Advance records a new offset. Offsets never decrease; use Reset for a
// truncated or rotated file.
func (t *Tracker) Advance(name string, offset int64) error {
	if prev, ok := t.state[name]; ok && offset < prev {
		return fmt.Errorf("%s: %d < %d: %w", name, offset, prev, ErrOffsetRegression)
	}
	return t.set(name, offset)
}

func (t *Tracker) Reset(name string) error {
	log.Warn().Str("file", name).Int64("last_offset", t.state[name]).Msg("Resetting offset to zero")
	return t.set(name, 0)
}

func (t *Tracker) Len() int {
	return len(t.state)
}

func (t *Tracker) set(name string, offset int64) error {
	prev, existed := t.state[name]
	t.state[name] = offset
	if err := t.mgr.SaveState(t.state); err != nil {
		if existed {
			t.state[name] = prev
		} else {
			delete(t.state, name)
		}
		return fmt.Errorf("failed to persist offset for %s: %w", name, err)
	}
	return nil
}
