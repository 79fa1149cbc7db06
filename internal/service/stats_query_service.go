package service

import (
	"context"
	"errors"

	"soc-log-pipeline/internal/dto"
	"soc-log-pipeline/internal/repository"
)

var ErrStatsDisabled = errors.New("pipeline metrics are not configured")

type StatsQueryService interface {
	GetSummary(ctx context.Context, req dto.StatsRequest) (*dto.StatsResponse, error)
}

type statsQueryService struct {
	repo repository.MetricRepository
}

func NewStatsQueryService(repo repository.MetricRepository) StatsQueryService {
	return &statsQueryService{repo: repo}
}

func (s *statsQueryService) GetSummary(ctx context.Context, req dto.StatsRequest) (*dto.StatsResponse, error) {
	if s.repo == nil {
		return nil, ErrStatsDisabled
	}
	if req.EndTime.Before(req.StartTime) {
		return nil, errors.New("invalid time range: until is before since")
	}
	return s.repo.GetClassificationSummary(ctx, req)
}
