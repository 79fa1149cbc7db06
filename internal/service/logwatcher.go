package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/archive"
	"soc-log-pipeline/internal/filestate"
	"soc-log-pipeline/internal/metrics"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/timescaledb"
	"soc-log-pipeline/internal/util"
)

type StaleCollector interface {
	CollectStale(ctx context.Context, limit int) ([]model.BatchItem, error)
}

// LogWatcherService is the single polling loop. It is the only writer of the
// offset map and the suspicious batch, so neither needs a lock.
type LogWatcherService struct {
	cfg          config.WatcherConfig
	tracker      *filestate.Tracker
	archive      *archive.Archive
	builder      *EventBuilder
	batch        *BatchScheduler
	extractor    metrics.Extractor
	metricStore  timescaledb.MetricStore
	sweeper      StaleCollector
	sweepLimit   int
	flushTimeout time.Duration
	now          func() time.Time

	// pending holds deltas whose events were built and stored but not yet
	// archived, keyed by file name. A retry reuses them instead of rebuilding.
	pending map[string]*pendingDelta

	sweepCh chan struct{}
	done    chan struct{}
}

type pendingDelta struct {
	offset       int64
	raw          []byte
	events       []model.LogEvent
	metricEvents []model.MetricEvent
}

func (p *pendingDelta) matches(offset int64, data []byte) bool {
	return p.offset == offset && bytes.HasPrefix(data, p.raw)
}

func NewLogWatcherService(
	cfg *config.Config,
	tracker *filestate.Tracker,
	arch *archive.Archive,
	builder *EventBuilder,
	batch *BatchScheduler,
	extractor metrics.Extractor,
	metricStore timescaledb.MetricStore,
	sweeper StaleCollector,
) *LogWatcherService {
	return &LogWatcherService{
		cfg:          cfg.Watcher,
		tracker:      tracker,
		archive:      arch,
		builder:      builder,
		batch:        batch,
		extractor:    extractor,
		metricStore:  metricStore,
		sweeper:      sweeper,
		sweepLimit:   cfg.Sweep.Limit,
		flushTimeout: 20 * time.Second,
		now:          time.Now,
		pending:      make(map[string]*pendingDelta),
		sweepCh:      make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// ValidateDirs checks that both the watch and archive directories exist.
func ValidateDirs(cfg config.WatcherConfig) error {
	for _, dir := range []string{cfg.WatchDir, cfg.ArchiveDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("required directory %s is missing: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("required directory %s is not a directory", dir)
		}
	}
	return nil
}

// RequestSweep asks the loop to requeue failed enrichments on its next cycle.
// Safe to call from any goroutine.
func (s *LogWatcherService) RequestSweep() {
	select {
	case s.sweepCh <- struct{}{}:
	default:
	}
}

// Done is closed once Run has returned and the final flush has finished.
func (s *LogWatcherService) Done() <-chan struct{} {
	return s.done
}

// Run polls until ctx is cancelled, then flushes the remaining batch.
func (s *LogWatcherService) Run(ctx context.Context) {
	defer close(s.done)
	log.Info().Str("watch_dir", s.cfg.WatchDir).Dur("poll_interval", s.cfg.PollInterval).Msg("Log watcher started")
	s.RequestSweep()

	for ctx.Err() == nil {
		sawData, err := s.ScanOnce(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Scan pass failed")
		}
		s.batch.MaybeFlush(ctx, s.now())

		select {
		case <-s.sweepCh:
			s.sweep(ctx)
		default:
		}

		if sawData {
			continue
		}
		select {
		case <-ctx.Done():
		case <-s.sweepCh:
			s.sweep(ctx)
		case <-time.After(s.cfg.PollInterval):
		}
	}

	log.Info().Int("pending", s.batch.Len()).Msg("Log watcher stopping, flushing remaining batch")
	flushCtx, cancel := context.WithTimeout(context.Background(), s.flushTimeout)
	defer cancel()
	s.batch.Close(flushCtx)
	log.Info().Int("files_tracked", s.tracker.Len()).Msg("Log watcher stopped")
}

// ScanOnce runs one pass over the watch directory and reports whether any
// file had new complete lines.
func (s *LogWatcherService) ScanOnce(ctx context.Context) (bool, error) {
	createdAt := s.now().Format(util.CreatedAtLayout)
	files, err := s.findLogFiles()
	if err != nil {
		return false, fmt.Errorf("failed to find log files: %w", err)
	}

	sawData := false
	for _, path := range files {
		if ctx.Err() != nil {
			return sawData, ctx.Err()
		}
		consumed, err := s.processFile(ctx, path, createdAt)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping file for this pass")
			continue
		}
		if consumed > 0 {
			sawData = true
		}
	}
	return sawData, nil
}

func (s *LogWatcherService) findLogFiles() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.WatchDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !s.accepted(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(s.cfg.WatchDir, e.Name()))
	}
	return files, nil
}

func (s *LogWatcherService) accepted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range s.cfg.AcceptedExtensions {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}

// processFile consumes the complete lines appended since the last pass. The
// offset only advances after the whole delta has been archived.
func (s *LogWatcherService) processFile(ctx context.Context, path, createdAt string) (int64, error) {
	name := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	size := info.Size()

	offset, seen := s.tracker.Offset(name)
	if !seen {
		start := int64(0)
		if s.archive.Exists(name) {
			start = size
			log.Info().Str("file", name).Int64("offset", size).Msg("Archive exists without a tracked offset, skipping historical content")
		}
		if err := s.tracker.Advance(name, start); err != nil {
			return 0, err
		}
		offset = start
	}
	if size < offset {
		delete(s.pending, name)
		if err := s.tracker.Reset(name); err != nil {
			return 0, err
		}
		offset = 0
	}
	if size == offset {
		return 0, nil
	}

	data, err := readDelta(path, offset, size)
	if err != nil {
		return 0, err
	}
	lastNL := bytes.LastIndexByte(data, '\n')
	if lastNL < 0 {
		log.Trace().Str("file", name).Msg("Only a partial line is available, waiting for more")
		return 0, nil
	}
	complete := data[:lastNL+1]

	var events []model.LogEvent
	var metricEvents []model.MetricEvent
	if p, ok := s.pending[name]; ok && p.matches(offset, complete) {
		complete = p.raw
		events, metricEvents = p.events, p.metricEvents
		log.Debug().Str("file", name).Int64("offset", offset).Int("events", len(events)).Msg("Retrying archive of already built delta")
	} else {
		delete(s.pending, name)
		events, metricEvents = s.buildEvents(ctx, name, string(complete[:lastNL]), createdAt)
	}
	if err := s.archive.Append(name, events); err != nil {
		s.pending[name] = &pendingDelta{
			offset:       offset,
			raw:          append([]byte(nil), complete...),
			events:       events,
			metricEvents: metricEvents,
		}
		return 0, err
	}
	delete(s.pending, name)
	newOffset := offset + int64(len(complete))
	if err := s.tracker.Advance(name, newOffset); err != nil {
		return 0, err
	}

	suspicious := 0
	for _, ev := range events {
		if !ev.IsSuspicious {
			continue
		}
		suspicious++
		s.batch.Enqueue(ctx, model.BatchItem{
			EventID:       ev.EventID,
			SanitizedText: ev.SanitizedText,
			StoreDocID:    ev.StoreDocID,
			SourceFile:    ev.SourceFile,
		})
	}
	s.storeMetrics(ctx, metricEvents)

	log.Debug().
		Str("file", name).
		Int64("from", offset).
		Int64("to", newOffset).
		Int("archived", len(events)).
		Int("suspicious", suspicious).
		Msg("Processed file delta")
	return int64(len(complete)), nil
}

func readDelta(path string, offset, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to offset %d: %w", offset, err)
	}
	data, err := io.ReadAll(io.LimitReader(f, size-offset))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (s *LogWatcherService) buildEvents(ctx context.Context, name, text, createdAt string) ([]model.LogEvent, []model.MetricEvent) {
	at := s.now().UTC()
	var events []model.LogEvent
	var metricEvents []model.MetricEvent
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		ev, verdict, ok := s.builder.Build(line, name, createdAt)
		if !ok {
			if verdict.Classification == model.ClassificationNoise {
				metrics.LinesTotal.WithLabelValues(string(model.ClassificationNoise)).Inc()
				metricEvents = append(metricEvents, s.extractor.NoiseDropped(name, verdict.Category, at))
			}
			continue
		}
		metrics.LinesTotal.WithLabelValues(string(ev.Classification)).Inc()
		if ev.IsSuspicious {
			if err := s.builder.Persist(ctx, ev); err != nil {
				metrics.PersistErrors.Inc()
				log.Error().Err(err).Str("event_id", ev.EventID).Str("file", name).Msg("Failed to persist suspicious event, archiving anyway")
			}
		}
		events = append(events, *ev)
		metricEvents = append(metricEvents, s.extractor.FromEvent(ev, verdict.Category, at))
	}
	return events, metricEvents
}

func (s *LogWatcherService) storeMetrics(ctx context.Context, events []model.MetricEvent) {
	if s.metricStore == nil || len(events) == 0 {
		return
	}
	if err := s.metricStore.StoreMetricEvents(ctx, events); err != nil {
		log.Error().Err(err).Int("count", len(events)).Msg("Failed to store pipeline metrics")
	}
}

func (s *LogWatcherService) sweep(ctx context.Context) {
	if s.sweeper == nil {
		return
	}
	items, err := s.sweeper.CollectStale(ctx, s.sweepLimit)
	if err != nil {
		log.Error().Err(err).Msg("Stale enrichment sweep failed")
		return
	}
	for _, it := range items {
		s.batch.Enqueue(ctx, it)
	}
}
