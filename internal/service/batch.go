package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/metrics"
	"soc-log-pipeline/internal/model"
)

// FlushFunc receives a copy of the buffered items.
type FlushFunc func(ctx context.Context, items []model.BatchItem)

// BatchScheduler accumulates suspicious events and hands them off when the
// buffer reaches limit or when maxWait has passed since the first item
// entered an empty buffer. It is owned by the watcher loop and is not safe
// for concurrent use.
type BatchScheduler struct {
	limit   int
	maxWait time.Duration
	flush   FlushFunc
	now     func() time.Time

	buffer     []model.BatchItem
	firstAdded time.Time
	lastFlush  time.Time
	flushes    int
}

func NewBatchScheduler(limit int, maxWait time.Duration, flush FlushFunc) *BatchScheduler {
	if limit < 1 {
		limit = 1
	}
	return &BatchScheduler{
		limit:   limit,
		maxWait: maxWait,
		flush:   flush,
		now:     time.Now,
	}
}

// Enqueue adds an item and flushes immediately once the size threshold is hit,
// so a dispatched batch never exceeds limit.
func (b *BatchScheduler) Enqueue(ctx context.Context, item model.BatchItem) {
	if len(b.buffer) == 0 {
		b.firstAdded = b.now()
	}
	b.buffer = append(b.buffer, item)
	if len(b.buffer) >= b.limit {
		log.Info().Int("batch_size", len(b.buffer)).Str("trigger", "size").Msg("Batch limit reached")
		b.flushNow(ctx, "size")
		return
	}
	metrics.BatchPending.Set(float64(len(b.buffer)))
}

// MaybeFlush runs the time trigger. Call it once per poll cycle.
func (b *BatchScheduler) MaybeFlush(ctx context.Context, now time.Time) bool {
	if len(b.buffer) == 0 || now.Sub(b.firstAdded) < b.maxWait {
		return false
	}
	log.Info().Int("batch_size", len(b.buffer)).Str("trigger", "time").Dur("waited", now.Sub(b.firstAdded)).Msg("Batch max wait reached")
	b.flushNow(ctx, "time")
	return true
}

// Close flushes whatever is left. Used on shutdown.
func (b *BatchScheduler) Close(ctx context.Context) {
	if len(b.buffer) == 0 {
		return
	}
	log.Info().Int("batch_size", len(b.buffer)).Str("trigger", "shutdown").Msg("Flushing remaining batch")
	b.flushNow(ctx, "shutdown")
}

func (b *BatchScheduler) Len() int {
	return len(b.buffer)
}

func (b *BatchScheduler) Flushes() int {
	return b.flushes
}

func (b *BatchScheduler) LastFlush() time.Time {
	return b.lastFlush
}

// flushNow clears the buffer and resets the timer whatever the flush outcome.
func (b *BatchScheduler) flushNow(ctx context.Context, trigger string) {
	items := make([]model.BatchItem, len(b.buffer))
	copy(items, b.buffer)
	b.buffer = b.buffer[:0]
	b.firstAdded = time.Time{}
	b.lastFlush = b.now()
	b.flushes++
	metrics.BatchPending.Set(0)
	metrics.BatchesFlushed.WithLabelValues(trigger).Inc()
	b.flush(ctx, items)
}
