package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-log-pipeline/internal/dto"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/repository"
)

func TestListIncidents(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	items := seedIncidents(t, store,
		"Failed password for root from 203.0.113.7 port 22",
		"login failed for user bob",
		"nmap scan detected from 10.0.0.4",
	)
	cipher := testCipher(t)

	enrich := NewEnrichmentService(&stubDispatcher{results: []model.EnrichmentResult{
		{EventID: items[0].EventID, Summary: "Brute force", RiskScore: 7},
	}}, store, cipher, nil, nil, nil)
	enrich.ProcessBatch(ctx, items[:1])

	require.NoError(t, store.Update(ctx, model.IncidentCollection, items[1].StoreDocID, map[string]interface{}{
		model.FieldIntegrityHash: "0000",
	}))
	_, err := store.Add(ctx, model.IncidentCollection, map[string]interface{}{
		model.FieldData:           "not-a-sealed-record",
		model.FieldAnalysisStatus: string(model.AnalysisPending),
	})
	require.NoError(t, err)

	svc := NewIncidentQueryService(store, cipher)
	resp, err := svc.ListIncidents(ctx, dto.IncidentListRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Incidents, 3)

	byID := make(map[string]dto.IncidentView)
	for _, v := range resp.Incidents {
		assert.Equal(t, v.DocID, v.Event.StoreDocID)
		assert.NotNil(t, v.Timestamp)
		byID[v.Event.EventID] = v
	}

	enriched := byID[items[0].EventID]
	assert.True(t, enriched.IntegrityValid)
	assert.Equal(t, model.AnalysisCompleted, enriched.AnalysisStatus)
	require.NotNil(t, enriched.RiskScore)
	assert.Equal(t, 7, *enriched.RiskScore)
	require.NotNil(t, enriched.Insights)
	assert.Equal(t, "Brute force", enriched.Insights.Summary)

	tampered := byID[items[1].EventID]
	assert.False(t, tampered.IntegrityValid)
	assert.Nil(t, tampered.Insights)

	pending := byID[items[2].EventID]
	assert.True(t, pending.IntegrityValid)
	assert.Equal(t, model.AnalysisPending, pending.AnalysisStatus)
	assert.Nil(t, pending.RiskScore)
	assert.Equal(t, "nmap scan detected from [INTERNAL_IP_0]", pending.Event.SanitizedText)
}

func TestListIncidentsLimit(t *testing.T) {
	store := repository.NewMemoryStore()
	seedIncidents(t, store,
		"login failed for user a",
		"login failed for user b",
		"login failed for user c",
	)
	svc := NewIncidentQueryService(store, testCipher(t))

	resp, err := svc.ListIncidents(context.Background(), dto.IncidentListRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Incidents, 2)

	resp, err = svc.ListIncidents(context.Background(), dto.IncidentListRequest{Limit: MaxIncidentLimit * 2})
	require.NoError(t, err)
	assert.Len(t, resp.Incidents, 3)
}
