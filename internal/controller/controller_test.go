package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-log-pipeline/internal/dto"
	"soc-log-pipeline/internal/service"
)

const testAPIKey = "s3cret"

type stubIncidentService struct {
	got  dto.IncidentListRequest
	resp *dto.IncidentListResponse
	err  error
}

func (s *stubIncidentService) ListIncidents(_ context.Context, req dto.IncidentListRequest) (*dto.IncidentListResponse, error) {
	s.got = req
	return s.resp, s.err
}

type stubStatsService struct {
	got  dto.StatsRequest
	resp *dto.StatsResponse
	err  error
}

func (s *stubStatsService) GetSummary(_ context.Context, req dto.StatsRequest) (*dto.StatsResponse, error) {
	s.got = req
	return s.resp, s.err
}

func newRouter(incidents service.IncidentQueryService, stats service.StatsQueryService, now time.Time) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterHealthRoutes(router)
	RegisterIncidentRoutes(router, NewIncidentController(incidents), testAPIKey)
	sc := NewStatsController(stats)
	sc.now = func() time.Time { return now }
	RegisterStatsRoutes(router, sc, testAPIKey)
	return router
}

func do(router *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	router := newRouter(&stubIncidentService{}, &stubStatsService{}, time.Now())
	w := do(router, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	router := newRouter(&stubIncidentService{resp: &dto.IncidentListResponse{}}, &stubStatsService{}, time.Now())

	assert.Equal(t, http.StatusUnauthorized, do(router, "/api/incidents", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, "/api/incidents", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, "/api/stats", "").Code)
	assert.Equal(t, http.StatusOK, do(router, "/api/incidents", testAPIKey).Code)
}

func TestEmptyAPIKeyLocksRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterIncidentRoutes(router, NewIncidentController(&stubIncidentService{resp: &dto.IncidentListResponse{}}), "")

	assert.Equal(t, http.StatusUnauthorized, do(router, "/api/incidents", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, "/api/incidents", "anything").Code)
}

func TestGetIncidents(t *testing.T) {
	svc := &stubIncidentService{resp: &dto.IncidentListResponse{
		Incidents: []dto.IncidentView{{DocID: "doc-1", IntegrityValid: true}},
		Skipped:   2,
	}}
	router := newRouter(svc, &stubStatsService{}, time.Now())

	w := do(router, "/api/incidents", testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.DefaultIncidentLimit, svc.got.Limit)

	var body dto.IncidentListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Skipped)
	require.Len(t, body.Incidents, 1)
	assert.Equal(t, "doc-1", body.Incidents[0].DocID)

	do(router, "/api/incidents?limit=10", testAPIKey)
	assert.Equal(t, 10, svc.got.Limit)
}

func TestGetIncidentsRejectsBadLimit(t *testing.T) {
	router := newRouter(&stubIncidentService{}, &stubStatsService{}, time.Now())
	for _, q := range []string{"abc", "0", "-5"} {
		w := do(router, "/api/incidents?limit="+q, testAPIKey)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetIncidentsServiceError(t *testing.T) {
	router := newRouter(&stubIncidentService{err: errors.New("store down")}, &stubStatsService{}, time.Now())
	assert.Equal(t, http.StatusInternalServerError, do(router, "/api/incidents", testAPIKey).Code)
}

func TestGetStatsDefaultsToLastDay(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	stats := &stubStatsService{resp: &dto.StatsResponse{TotalLogEvents: 42}}
	router := newRouter(&stubIncidentService{}, stats, now)

	w := do(router, "/api/stats", testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, now, stats.got.EndTime)
	assert.Equal(t, now.Add(-24*time.Hour), stats.got.StartTime)

	var body dto.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body.TotalLogEvents)
}

func TestGetStatsParsesRange(t *testing.T) {
	stats := &stubStatsService{resp: &dto.StatsResponse{}}
	router := newRouter(&stubIncidentService{}, stats, time.Now())

	w := do(router, "/api/stats?since=2024-05-01T00:00:00Z&until=1714608000000", testAPIKey)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), stats.got.StartTime)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), stats.got.EndTime)
}

func TestGetStatsErrors(t *testing.T) {
	router := newRouter(&stubIncidentService{}, &stubStatsService{err: service.ErrStatsDisabled}, time.Now())

	assert.Equal(t, http.StatusBadRequest, do(router, "/api/stats?since=yesterday", testAPIKey).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "/api/stats?since=2024-05-02T00:00:00Z&until=2024-05-01T00:00:00Z", testAPIKey).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(router, "/api/stats", testAPIKey).Code)

	failing := newRouter(&stubIncidentService{}, &stubStatsService{err: errors.New("db down")}, time.Now())
	assert.Equal(t, http.StatusInternalServerError, do(failing, "/api/stats", testAPIKey).Code)
}
