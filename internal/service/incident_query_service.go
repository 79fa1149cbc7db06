package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/dto"
	"soc-log-pipeline/internal/integrity"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/repository"
	"soc-log-pipeline/internal/security"
)

const (
	DefaultIncidentLimit = 50
	MaxIncidentLimit     = 500
)

type IncidentQueryService interface {
	ListIncidents(ctx context.Context, req dto.IncidentListRequest) (*dto.IncidentListResponse, error)
}

type incidentQueryService struct {
	store  repository.DocumentStore
	cipher *security.Cipher
}

func NewIncidentQueryService(store repository.DocumentStore, cipher *security.Cipher) IncidentQueryService {
	return &incidentQueryService{store: store, cipher: cipher}
}

// ListIncidents returns the newest incidents decrypted. Records that fail to
// decrypt are skipped and counted.
func (s *incidentQueryService) ListIncidents(ctx context.Context, req dto.IncidentListRequest) (*dto.IncidentListResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultIncidentLimit
	}
	if limit > MaxIncidentLimit {
		limit = MaxIncidentLimit
	}
	docs, err := s.store.Query(ctx, model.IncidentCollection, model.FieldTimestamp, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}

	resp := &dto.IncidentListResponse{Incidents: make([]dto.IncidentView, 0, len(docs))}
	for _, doc := range docs {
		view, err := s.decode(doc)
		if err != nil {
			log.Warn().Err(err).Str("doc_id", doc.ID).Msg("Skipping incident that cannot be decrypted")
			resp.Skipped++
			continue
		}
		resp.Incidents = append(resp.Incidents, view)
	}
	return resp, nil
}

func (s *incidentQueryService) decode(doc repository.Document) (dto.IncidentView, error) {
	data, _ := doc.Fields[model.FieldData].(string)
	var ev model.LogEvent
	if err := s.cipher.DecryptJSON(data, &ev); err != nil {
		return dto.IncidentView{}, err
	}
	ev.StoreDocID = doc.ID

	storedHash, _ := doc.Fields[model.FieldIntegrityHash].(string)
	status, _ := doc.Fields[model.FieldAnalysisStatus].(string)
	view := dto.IncidentView{
		DocID:          doc.ID,
		Event:          ev,
		AnalysisStatus: model.AnalysisStatus(status),
		IntegrityValid: storedHash == ev.IntegrityHash && integrity.Verify(storedHash, ev.EventID, ev.SanitizedText, ev.CreatedAt),
	}
	if score, ok := doc.Fields[model.FieldRiskScore].(int); ok {
		view.RiskScore = &score
	}
	if ts, ok := doc.Fields[model.FieldTimestamp].(time.Time); ok {
		view.Timestamp = &ts
	}
	if sealed, ok := doc.Fields[model.FieldAIInsights].(string); ok && sealed != "" {
		var insights model.EnrichmentResult
		if err := s.cipher.DecryptJSON(sealed, &insights); err != nil {
			log.Warn().Err(err).Str("doc_id", doc.ID).Msg("Enrichment insights cannot be decrypted")
		} else {
			view.Insights = &insights
		}
	}
	return view, nil
}
