package timescaledb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/model"
)

// MetricStore records pipeline counters as time-series rows.
type MetricStore interface {
	StoreMetricEvents(ctx context.Context, events []model.MetricEvent) error
	Close()
}

type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type timescaleMetricStore struct {
	pool      *pgxpool.Pool
	conn      copier
	tableName string
}

const (
	metricEventsTableName = "pipeline_metric_events"
	colTime               = "time"
	colMetricName         = "metric_name"
	colSourceFile         = "source_file"
	colTags               = "tags" // JSONB

	metricRetention = "30 days"
)

var metricColumns = []string{colTime, colMetricName, colSourceFile, colTags}

// schemaStep is one idempotent DDL statement. Optional steps only warn on
// failure, since managed Postgres often refuses extension or policy calls.
type schemaStep struct {
	name     string
	sql      string
	optional bool
}

func schemaSteps(table string) []schemaStep {
	return []schemaStep{
		{name: "extension", sql: "CREATE EXTENSION IF NOT EXISTS timescaledb;", optional: true},
		{name: "table", sql: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s TIMESTAMPTZ NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s JSONB
		);`, table, colTime, colMetricName, colSourceFile, colTags)},
		{name: "hypertable", sql: fmt.Sprintf(
			"SELECT create_hypertable('%s', '%s', if_not_exists => TRUE, chunk_time_interval => INTERVAL '1 day');",
			table, colTime)},
		{name: "name_time_index", sql: fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_name_time ON %s (%s, %s DESC);",
			table, table, colMetricName, colTime), optional: true},
		{name: "tags_index", sql: fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_tags ON %s USING GIN (%s);",
			table, table, colTags), optional: true},
		{name: "retention", sql: fmt.Sprintf(
			"SELECT add_retention_policy('%s', INTERVAL '%s', if_not_exists => TRUE);",
			table, metricRetention), optional: true},
	}
}

// ProvideTimescaleDBPool returns a nil store and pool when no DSN is configured.
func ProvideTimescaleDBPool(cfg *config.Config) (MetricStore, *pgxpool.Pool, error) {
	if cfg.TimescaleDB.DSN == "" {
		log.Info().Msg("TIMESCALEDB_DSN not set, pipeline metrics disabled.")
		return nil, nil, nil
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.TimescaleDB.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid TimescaleDB DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create TimescaleDB pool: %w", err)
	}

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("TimescaleDB ping failed")
			return err
		}
		return nil
	}
	connectBackoff := backoff.NewExponentialBackOff()
	connectBackoff.InitialInterval = time.Second
	connectBackoff.MaxInterval = 10 * time.Second
	connectBackoff.MaxElapsedTime = 45 * time.Second
	if err := backoff.Retry(ping, connectBackoff); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to connect to TimescaleDB: %w", err)
	}
	log.Info().Msg("TimescaleDB connection pool created and verified.")

	store := &timescaleMetricStore{
		pool:      pool,
		conn:      pool,
		tableName: metricEventsTableName,
	}
	setupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.migrate(setupCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}

func (s *timescaleMetricStore) migrate(ctx context.Context) error {
	for _, step := range schemaSteps(s.tableName) {
		_, err := s.pool.Exec(ctx, step.sql)
		switch {
		case err == nil:
		case step.optional:
			log.Warn().Err(err).Str("step", step.name).Msg("Optional metrics schema step failed, continuing")
		case strings.Contains(err.Error(), "already a hypertable"):
		default:
			return fmt.Errorf("metrics schema step %s failed: %w", step.name, err)
		}
	}
	log.Info().Str("table", s.tableName).Msg("Metrics hypertable ready.")
	return nil
}

func metricRows(events []model.MetricEvent) [][]interface{} {
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		var tags []byte
		if len(e.Tags) > 0 {
			encoded, err := json.Marshal(e.Tags)
			if err != nil {
				log.Warn().Err(err).Str("metric", e.MetricName).Msg("Dropping unencodable metric tags")
			} else {
				tags = encoded
			}
		}
		rows = append(rows, []interface{}{e.Time, e.MetricName, e.SourceFile, tags})
	}
	return rows
}

func (s *timescaleMetricStore) StoreMetricEvents(ctx context.Context, events []model.MetricEvent) error {
	if len(events) == 0 {
		return nil
	}
	n, err := s.conn.CopyFrom(ctx, pgx.Identifier{s.tableName}, metricColumns, pgx.CopyFromRows(metricRows(events)))
	if err != nil {
		return fmt.Errorf("timescaledb copy of %d metric events failed: %w", len(events), err)
	}
	if int(n) != len(events) {
		log.Warn().Int64("inserted", n).Int("expected", len(events)).Msg("TimescaleDB copy count mismatch")
	}
	return nil
}

func (s *timescaleMetricStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
