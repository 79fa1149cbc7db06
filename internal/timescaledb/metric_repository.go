package timescaledb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/dto"
	"soc-log-pipeline/internal/repository"
)

type timescaleMetricRepository struct {
	pool       *pgxpool.Pool
	eventTable string
}

func NewTimescaleMetricRepository(pool *pgxpool.Pool) (repository.MetricRepository, error) {
	if pool == nil {
		return nil, errors.New("TimescaleDB connection pool is required for MetricRepository")
	}
	return &timescaleMetricRepository{
		pool:       pool,
		eventTable: metricEventsTableName,
	}, nil
}

func (r *timescaleMetricRepository) GetClassificationSummary(ctx context.Context, req dto.StatsRequest) (*dto.StatsResponse, error) {
	resp := &dto.StatsResponse{
		ByClassification: map[string]int64{},
		ByCategory:       map[string]int64{},
	}

	countSQL := fmt.Sprintf("SELECT metric_name, COUNT(*) FROM %s WHERE time >= $1 AND time < $2 GROUP BY metric_name", r.eventTable)
	rows, err := r.pool.Query(ctx, countSQL, req.StartTime, req.EndTime)
	if err != nil {
		log.Error().Err(err).Str("query", countSQL).Msg("Failed to count metric events")
		return nil, fmt.Errorf("failed to get summary metrics: %w", err)
	}
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan metric count: %w", err)
		}
		switch name {
		case "log_event":
			resp.TotalLogEvents = count
		case "noise_dropped":
			resp.NoiseDropped = count
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.groupByTag(ctx, req, "classification", resp.ByClassification); err != nil {
		return nil, err
	}
	if err := r.groupByTag(ctx, req, "category", resp.ByCategory); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *timescaleMetricRepository) groupByTag(ctx context.Context, req dto.StatsRequest, tag string, into map[string]int64) error {
	groupSQL := fmt.Sprintf(
		"SELECT tags->>$3 AS k, COUNT(*) FROM %s WHERE metric_name = 'log_event' AND time >= $1 AND time < $2 AND tags ? $3 GROUP BY k",
		r.eventTable,
	)
	rows, err := r.pool.Query(ctx, groupSQL, req.StartTime, req.EndTime, tag)
	if err != nil {
		log.Error().Err(err).Str("tag", tag).Msg("Failed to group metric events")
		return fmt.Errorf("failed to group by %s: %w", tag, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s group: %w", tag, err)
		}
		into[key] = count
	}
	return rows.Err()
}
