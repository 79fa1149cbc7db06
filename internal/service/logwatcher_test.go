package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/archive"
	"soc-log-pipeline/internal/filestate"
	"soc-log-pipeline/internal/metrics"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/repository"
)

type recordingMetricStore struct {
	mu     sync.Mutex
	events []model.MetricEvent
}

func (m *recordingMetricStore) StoreMetricEvents(_ context.Context, events []model.MetricEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *recordingMetricStore) Close() {}

type stubCollector struct {
	items []model.BatchItem
	calls int
}

func (c *stubCollector) CollectStale(context.Context, int) ([]model.BatchItem, error) {
	c.calls++
	items := c.items
	c.items = nil
	return items, nil
}

type watcherFixture struct {
	t          *testing.T
	cfg        *config.Config
	statePath  string
	store      repository.DocumentStore
	archive    *archive.Archive
	tracker    *filestate.Tracker
	batch      *BatchScheduler
	flushed    *flushRecorder
	metrics    *recordingMetricStore
	sweeper    *stubCollector
	watcher    *LogWatcherService
	builderIDs int
}

func newWatcherFixture(t *testing.T) *watcherFixture {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Watcher = config.WatcherConfig{
		WatchDir:           filepath.Join(root, "raw-logs"),
		ArchiveDir:         filepath.Join(root, "cleaned-logs"),
		AcceptedExtensions: []string{".log", ".txt"},
		PollInterval:       10 * time.Millisecond,
	}
	cfg.Sweep.Limit = 100
	require.NoError(t, os.MkdirAll(cfg.Watcher.WatchDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Watcher.ArchiveDir, 0o755))

	f := &watcherFixture{
		t:         t,
		cfg:       cfg,
		statePath: filepath.Join(root, "file_tracking.json"),
		store:     repository.NewMemoryStore(),
		archive:   archive.New(cfg.Watcher.ArchiveDir),
		flushed:   &flushRecorder{},
		metrics:   &recordingMetricStore{},
		sweeper:   &stubCollector{},
	}
	f.restart()
	return f
}

// restart rebuilds the tracker from disk and a fresh watcher around it, the
// way a process restart would.
func (f *watcherFixture) restart() {
	f.t.Helper()
	tracker, err := filestate.NewTracker(filestate.NewManager(f.statePath))
	require.NoError(f.t, err)
	f.tracker = tracker
	f.batch = NewBatchScheduler(100, time.Hour, f.flushed.Flush)
	builder := newTestBuilder(f.t, f.store)
	builder.newID = func() string {
		f.builderIDs++
		return sequentialID(f.builderIDs)
	}
	f.watcher = NewLogWatcherService(f.cfg, f.tracker, f.archive, builder, f.batch, metrics.NewExtractor(), f.metrics, f.sweeper)
}

func (f *watcherFixture) write(name string, lines ...string) string {
	f.t.Helper()
	path := filepath.Join(f.cfg.Watcher.WatchDir, name)
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(f.t, err)
	defer fh.Close()
	for _, l := range lines {
		_, err := fh.WriteString(l)
		require.NoError(f.t, err)
	}
	return path
}

func (f *watcherFixture) scan() bool {
	f.t.Helper()
	saw, err := f.watcher.ScanOnce(context.Background())
	require.NoError(f.t, err)
	return saw
}

func (f *watcherFixture) archived(name string) []model.LogEvent {
	f.t.Helper()
	events, err := f.archive.Load(name)
	require.NoError(f.t, err)
	return events
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func texts(events []model.LogEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.SanitizedText
	}
	return out
}

func TestScanProcessesAppendedLines(t *testing.T) {
	f := newWatcherFixture(t)
	path := f.write("auth.log",
		"Failed password for root from 203.0.113.7 port 22\n",
		"kernel: eth0 link up\n",
		"systemd[1]: Started Daily apt upgrade.\n",
		"Invalid user admin from 198.51.100.2\n",
		"nginx: worker process started\n",
	)

	assert.True(t, f.scan())
	first := f.archived("auth.log")
	assert.Equal(t, []string{
		"Failed password for root from [EXTERNAL_IP_0] port 22",
		"kernel: eth0 link up",
		"Invalid user admin from [EXTERNAL_IP_0]",
		"nginx: worker process started",
	}, texts(first))
	assert.Equal(t, 2, f.batch.Len())

	f.write("auth.log",
		"CRON[1234]: (root) CMD (run-parts /etc/cron.hourly)\n",
		"GET /index.php?id=1 UNION SELECT name FROM users\n",
		"dhclient: bound to 10.0.0.5\n",
		"Accepted publickey for deploy from 10.0.0.9\n",
		"sudo: pam_unix(sudo:auth): authentication failure; logname=bob\n",
	)
	assert.True(t, f.scan())
	assert.False(t, f.scan())

	all := f.archived("auth.log")
	require.Len(t, all, 7)
	assert.Equal(t, first, all[:4])
	assert.Equal(t, "dhclient: bound to [INTERNAL_IP_0]", all[5].SanitizedText)
	assert.Equal(t, 4, f.batch.Len())

	off, ok := f.tracker.Offset("auth.log")
	require.True(t, ok)
	assert.Equal(t, fileSize(t, path), off)
	assert.Len(t, f.metrics.events, 10)

	for _, ev := range all {
		assert.Equal(t, "auth.log", ev.SourceFile)
		assert.Equal(t, ev.IsSuspicious, ev.StoreDocID != "")
	}
	report, err := f.archive.Verify()
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 7, report.Records)
}

func TestScanResumesAfterRestart(t *testing.T) {
	f := newWatcherFixture(t)
	f.write("app.txt", "Failed password for root from 203.0.113.7 port 22\n", "kernel: eth0 link up\n")
	f.scan()

	f.restart()
	assert.False(t, f.scan())
	assert.Len(t, f.archived("app.txt"), 2)

	f.write("app.txt", "login failed for user bob\n")
	assert.True(t, f.scan())
	events := f.archived("app.txt")
	require.Len(t, events, 3)
	assert.Equal(t, "login failed for user bob", events[2].SanitizedText)
	assert.Equal(t, 1, f.batch.Len())
}

func TestScanResetsOnTruncation(t *testing.T) {
	f := newWatcherFixture(t)
	path := f.write("auth.log",
		"Failed password for root from 203.0.113.7 port 22\n",
		"Failed password for admin from 203.0.113.8 port 22\n",
	)
	f.scan()

	require.NoError(t, os.WriteFile(path, []byte("login failed for bob\n"), 0o644))
	assert.True(t, f.scan())

	events := f.archived("auth.log")
	require.Len(t, events, 3)
	assert.Equal(t, "login failed for bob", events[2].SanitizedText)
	off, _ := f.tracker.Offset("auth.log")
	assert.Equal(t, fileSize(t, path), off)
}

func TestScanDropsSchedulerNoise(t *testing.T) {
	f := newWatcherFixture(t)
	path := f.write("cron.log", "CRON[1234]: (root) CMD (run-parts /etc/cron.hourly)\n")

	assert.True(t, f.scan())
	assert.Empty(t, f.archived("cron.log"))
	assert.Equal(t, 0, f.batch.Len())
	off, _ := f.tracker.Offset("cron.log")
	assert.Equal(t, fileSize(t, path), off)
	require.Len(t, f.metrics.events, 1)
	assert.Equal(t, metrics.MetricNoiseDropped, f.metrics.events[0].MetricName)
}

func TestScanSkipsHistoryWhenArchiveExists(t *testing.T) {
	f := newWatcherFixture(t)
	require.NoError(t, f.archive.Append("auth.log", []model.LogEvent{{EventID: "00000000000000000abc", SanitizedText: "old"}}))
	path := f.write("auth.log", "Failed password for root from 203.0.113.7 port 22\n")

	assert.False(t, f.scan())
	off, ok := f.tracker.Offset("auth.log")
	require.True(t, ok)
	assert.Equal(t, fileSize(t, path), off)
	assert.Len(t, f.archived("auth.log"), 1)

	f.write("auth.log", "login failed for bob\n")
	assert.True(t, f.scan())
	assert.Equal(t, []string{"old", "login failed for bob"}, texts(f.archived("auth.log")))
}

func TestScanWaitsForCompleteLine(t *testing.T) {
	f := newWatcherFixture(t)
	f.write("auth.log", "Failed password for root")

	assert.False(t, f.scan())
	off, _ := f.tracker.Offset("auth.log")
	assert.Equal(t, int64(0), off)
	assert.False(t, f.archive.Exists("auth.log"))

	f.write("auth.log", " from 203.0.113.7 port 22\nkernel: partial")
	assert.True(t, f.scan())
	events := f.archived("auth.log")
	require.Len(t, events, 1)
	assert.Equal(t, "Failed password for root from [EXTERNAL_IP_0] port 22", events[0].SanitizedText)

	off, _ = f.tracker.Offset("auth.log")
	assert.Equal(t, int64(len("Failed password for root from 203.0.113.7 port 22\n")), off)
}

func TestScanIgnoresUnsupportedExtensions(t *testing.T) {
	f := newWatcherFixture(t)
	f.write("export.csv", "Failed password for root from 203.0.113.7 port 22\n")
	require.NoError(t, os.Mkdir(filepath.Join(f.cfg.Watcher.WatchDir, "nested.log"), 0o755))
	f.write("UPPER.LOG", "login failed for bob\n")

	assert.True(t, f.scan())
	assert.Equal(t, 1, f.tracker.Len())
	_, ok := f.tracker.Offset("UPPER.LOG")
	assert.True(t, ok)
}

func TestScanArchivesWhenPersistFails(t *testing.T) {
	f := newWatcherFixture(t)
	f.store = failingStore{err: errors.New("store unavailable")}
	f.restart()
	f.write("auth.log", "Failed password for root from 203.0.113.7 port 22\n")

	assert.True(t, f.scan())
	events := f.archived("auth.log")
	require.Len(t, events, 1)
	assert.Empty(t, events[0].StoreDocID)
	assert.Equal(t, 1, f.batch.Len())
}

func TestScanRetriesArchiveWithoutDuplicatingIncidents(t *testing.T) {
	f := newWatcherFixture(t)
	path := f.write("auth.log")
	f.scan()

	blocker := f.archive.PathFor("auth.log")
	require.NoError(t, os.Mkdir(blocker, 0o755))
	f.write("auth.log", "Failed password for root from 203.0.113.7 port 22\n")

	for i := 0; i < 3; i++ {
		assert.False(t, f.scan())
	}
	off, _ := f.tracker.Offset("auth.log")
	assert.Equal(t, int64(0), off)
	assert.Equal(t, 0, f.batch.Len())

	require.NoError(t, os.Remove(blocker))
	f.write("auth.log", "login failed for bob\n")
	assert.True(t, f.scan())

	events := f.archived("auth.log")
	require.Len(t, events, 1)
	assert.Equal(t, sequentialID(1), events[0].EventID)
	assert.NotEmpty(t, events[0].StoreDocID)
	assert.Equal(t, 1, f.batch.Len())

	docs, err := f.store.Query(context.Background(), model.IncidentCollection, model.FieldTimestamp, 100)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, events[0].StoreDocID, docs[0].ID)

	assert.True(t, f.scan())
	events = f.archived("auth.log")
	require.Len(t, events, 2)
	assert.Equal(t, "login failed for bob", events[1].SanitizedText)
	off, _ = f.tracker.Offset("auth.log")
	assert.Equal(t, fileSize(t, path), off)
}

func TestValidateDirs(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.NoError(t, ValidateDirs(config.WatcherConfig{WatchDir: root, ArchiveDir: root}))

	err := ValidateDirs(config.WatcherConfig{WatchDir: filepath.Join(root, "missing"), ArchiveDir: root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	err = ValidateDirs(config.WatcherConfig{WatchDir: root, ArchiveDir: file})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not a directory"))
}

func TestSweepEnqueuesRequeuedItems(t *testing.T) {
	f := newWatcherFixture(t)
	f.sweeper.items = []model.BatchItem{item(1), item(2)}

	f.watcher.RequestSweep()
	f.watcher.RequestSweep()
	assert.Len(t, f.watcher.sweepCh, 1)

	f.watcher.sweep(context.Background())
	assert.Equal(t, 1, f.sweeper.calls)
	assert.Equal(t, 2, f.batch.Len())
}

func TestRunFlushesOnShutdown(t *testing.T) {
	f := newWatcherFixture(t)
	f.sweeper.items = []model.BatchItem{item(1)}
	f.write("auth.log", "Failed password for root from 203.0.113.7 port 22\n")

	ctx, cancel := context.WithCancel(context.Background())
	go f.watcher.Run(ctx)

	require.Eventually(t, func() bool { return f.archive.Exists("auth.log") }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-f.watcher.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	batches := f.flushed.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, 0, f.batch.Len())
}
