package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soc-log-pipeline/internal/classifier"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/redactor"
	"soc-log-pipeline/internal/repository"
	"soc-log-pipeline/internal/security"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// flushRecorder captures every batch handed to it.
type flushRecorder struct {
	mu      sync.Mutex
	batches [][]model.BatchItem
}

func (r *flushRecorder) Flush(_ context.Context, items []model.BatchItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, items)
}

func (r *flushRecorder) Batches() [][]model.BatchItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]model.BatchItem(nil), r.batches...)
}

func testCipher(t *testing.T) *security.Cipher {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := security.NewCipher(key)
	require.NoError(t, err)
	return c
}

func newTestBuilder(t *testing.T, store repository.DocumentStore) *EventBuilder {
	t.Helper()
	b := NewEventBuilder(redactor.New(), classifier.New(classifier.DefaultTables()), store, testCipher(t))
	n := 0
	b.newID = func() string {
		n++
		return sequentialID(n)
	}
	return b
}

func sequentialID(n int) string {
	const hex = "0123456789abcdef"
	id := []byte("00000000000000000000")
	for i := len(id) - 1; i >= 0 && n > 0; i-- {
		id[i] = hex[n%16]
		n /= 16
	}
	return string(id)
}

// failingStore rejects every write.
type failingStore struct {
	repository.DocumentStore
	err error
}

func (f failingStore) Add(context.Context, string, map[string]interface{}) (string, error) {
	return "", f.err
}
