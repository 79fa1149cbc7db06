package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/kafka"
	"soc-log-pipeline/internal/metrics"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/repository"
	"soc-log-pipeline/internal/security"
)

type AlertNotifier interface {
	Notify(ctx context.Context, recipients []model.Recipient, alerts []model.Alert) int
}

type RecipientDirectory interface {
	Recipients(ctx context.Context) []model.Recipient
}

// EnrichmentService applies analysis results to stored incidents and fans the
// alerts out. The alert producer is optional.
type EnrichmentService struct {
	dispatcher EnrichmentDispatcher
	store      repository.DocumentStore
	cipher     *security.Cipher
	notifier   AlertNotifier
	directory  RecipientDirectory
	alerts     kafka.AlertProducer
	now        func() time.Time
}

func NewEnrichmentService(
	dispatcher EnrichmentDispatcher,
	store repository.DocumentStore,
	cipher *security.Cipher,
	notifier AlertNotifier,
	directory RecipientDirectory,
	alerts kafka.AlertProducer,
) *EnrichmentService {
	return &EnrichmentService{
		dispatcher: dispatcher,
		store:      store,
		cipher:     cipher,
		notifier:   notifier,
		directory:  directory,
		alerts:     alerts,
		now:        time.Now,
	}
}

// ProcessBatch is the batch scheduler's flush target. Failures are logged and
// recorded on the incidents; the caller clears its buffer either way.
func (s *EnrichmentService) ProcessBatch(ctx context.Context, items []model.BatchItem) {
	if len(items) == 0 {
		return
	}
	start := time.Now()
	results, err := s.dispatcher.Analyze(ctx, items)
	metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	// status writes must land even if shutdown cancelled the dispatch
	writeCtx := context.WithoutCancel(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			log.Warn().Err(err).Int("batch_size", len(items)).
				Msg("Enrichment rate limited after retries. Raise BATCH_LIMIT to send fewer, larger batches, or wait for the quota window to reset. Incidents are marked failed and will be picked up by the next sweep.")
			s.markAll(writeCtx, items, model.AnalysisFailed)
		case errors.Is(err, ErrRequestRejected):
			log.Error().Err(err).Int("batch_size", len(items)).Msg("Enrichment request rejected, batch skipped")
			s.markAll(writeCtx, items, model.AnalysisSkipped)
		default:
			log.Error().Err(err).Int("batch_size", len(items)).Msg("Enrichment failed")
			s.markAll(writeCtx, items, model.AnalysisFailed)
		}
		return
	}

	byID := make(map[string]model.BatchItem, len(items))
	for _, it := range items {
		byID[it.EventID] = it
	}
	analyzedAt := s.now().UTC()
	alerts := make([]model.Alert, 0, len(results))
	for _, r := range results {
		item := byID[r.EventID]
		delete(byID, r.EventID)
		if item.StoreDocID != "" {
			if err := s.applyResult(writeCtx, item.StoreDocID, r); err != nil {
				log.Error().Err(err).Str("event_id", r.EventID).Str("doc_id", item.StoreDocID).Msg("Failed to store enrichment result")
			}
		} else {
			log.Warn().Str("event_id", r.EventID).Msg("Enriched event has no store record")
		}
		alerts = append(alerts, model.Alert{
			EventID:    r.EventID,
			RiskScore:  r.RiskScore,
			Summary:    r.Summary,
			SourceFile: item.SourceFile,
			AnalyzedAt: analyzedAt,
		})
	}
	missing := make([]model.BatchItem, 0, len(byID))
	for _, it := range byID {
		missing = append(missing, it)
	}
	if len(missing) > 0 {
		log.Warn().Int("missing", len(missing)).Msg("Enrichment returned no result for some events")
		s.markAll(writeCtx, missing, model.AnalysisFailed)
	}

	log.Info().Int("batch_size", len(items)).Int("enriched", len(results)).Dur("duration", time.Since(start)).Msg("Batch enriched")
	if len(alerts) == 0 {
		return
	}
	if s.notifier != nil && s.directory != nil {
		s.notifier.Notify(writeCtx, s.directory.Recipients(writeCtx), alerts)
	}
	if s.alerts != nil {
		if err := s.alerts.Produce(writeCtx, alerts); err != nil {
			log.Error().Err(err).Int("alerts", len(alerts)).Msg("Failed to publish alerts")
		}
	}
}

func (s *EnrichmentService) applyResult(ctx context.Context, docID string, r model.EnrichmentResult) error {
	sealed, err := s.cipher.EncryptJSON(r)
	if err != nil {
		return err
	}
	err = s.store.Update(ctx, model.IncidentCollection, docID, map[string]interface{}{
		model.FieldAIInsights:     sealed,
		model.FieldRiskScore:      r.RiskScore,
		model.FieldAnalysisStatus: string(model.AnalysisCompleted),
	})
	if err == nil {
		metrics.EnrichmentOutcomes.WithLabelValues(string(model.AnalysisCompleted)).Inc()
	}
	return err
}

func (s *EnrichmentService) markAll(ctx context.Context, items []model.BatchItem, status model.AnalysisStatus) {
	metrics.EnrichmentOutcomes.WithLabelValues(string(status)).Add(float64(len(items)))
	for _, it := range items {
		if it.StoreDocID == "" {
			continue
		}
		err := s.store.Update(ctx, model.IncidentCollection, it.StoreDocID, map[string]interface{}{
			model.FieldAnalysisStatus: string(status),
		})
		if err != nil {
			log.Error().Err(err).Str("event_id", it.EventID).Str("status", string(status)).Msg("Failed to update analysis status")
		}
	}
}

// CollectStale finds up to limit incidents whose enrichment failed, newest
// first, marks them requeued and returns them ready to enqueue again.
func (s *EnrichmentService) CollectStale(ctx context.Context, limit int) ([]model.BatchItem, error) {
	docs, err := s.store.QueryWhere(ctx, model.IncidentCollection,
		model.FieldAnalysisStatus, string(model.AnalysisFailed), model.FieldTimestamp, limit)
	if err != nil {
		return nil, err
	}
	var items []model.BatchItem
	for _, doc := range docs {
		status, _ := doc.Fields[model.FieldAnalysisStatus].(string)
		if model.AnalysisStatus(status) != model.AnalysisFailed {
			continue
		}
		data, _ := doc.Fields[model.FieldData].(string)
		var ev model.LogEvent
		if err := s.cipher.DecryptJSON(data, &ev); err != nil {
			log.Warn().Err(err).Str("doc_id", doc.ID).Msg("Skipping incident that cannot be decrypted")
			continue
		}
		if err := s.store.Update(ctx, model.IncidentCollection, doc.ID, map[string]interface{}{
			model.FieldAnalysisStatus: string(model.AnalysisRequeued),
		}); err != nil {
			log.Error().Err(err).Str("doc_id", doc.ID).Msg("Failed to mark incident requeued")
			continue
		}
		items = append(items, model.BatchItem{
			EventID:       ev.EventID,
			SanitizedText: ev.SanitizedText,
			StoreDocID:    doc.ID,
			SourceFile:    ev.SourceFile,
		})
	}
	if len(items) > 0 {
		metrics.StaleRequeued.Add(float64(len(items)))
		log.Info().Int("requeued", len(items)).Int("scanned", len(docs)).Msg("Requeued incidents with failed enrichment")
	}
	return items, nil
}
