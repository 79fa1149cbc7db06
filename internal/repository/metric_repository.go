package repository

import (
	"context"

	"soc-log-pipeline/internal/dto"
)

type MetricRepository interface {
	GetClassificationSummary(ctx context.Context, req dto.StatsRequest) (*dto.StatsResponse, error)
}
