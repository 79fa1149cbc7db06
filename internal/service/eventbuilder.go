package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/classifier"
	"soc-log-pipeline/internal/integrity"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/repository"
	"soc-log-pipeline/internal/redactor"
	"soc-log-pipeline/internal/security"
)

const eventIDLength = 20

// EventBuilder turns one raw line into a LogEvent and, for suspicious events,
// writes the encrypted record to the document store.
type EventBuilder struct {
	redactor   redactor.Redactor
	classifier classifier.Classifier
	store      repository.DocumentStore
	cipher     *security.Cipher
	newID      func() string
}

func NewEventBuilder(r redactor.Redactor, c classifier.Classifier, store repository.DocumentStore, cipher *security.Cipher) *EventBuilder {
	return &EventBuilder{
		redactor:   r,
		classifier: c,
		store:      store,
		cipher:     cipher,
		newID:      newEventID,
	}
}

func newEventID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:eventIDLength]
}

// Build redacts and classifies raw. ok is false for blank lines and noise;
// the verdict is still returned so callers can count what was dropped.
func (b *EventBuilder) Build(raw, sourceFile, createdAt string) (ev *model.LogEvent, verdict classifier.Verdict, ok bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, classifier.Verdict{}, false
	}
	res := b.redactor.Redact(raw)
	if res.Sanitized == "" {
		return nil, classifier.Verdict{}, false
	}
	verdict = b.classifier.Classify(raw, res.Sanitized)
	if verdict.Classification == model.ClassificationNoise {
		return nil, verdict, false
	}

	id := b.newID()
	ev = &model.LogEvent{
		EventID:        id,
		CreatedAt:      createdAt,
		SanitizedText:  res.Sanitized,
		Artifacts:      res.Artifacts,
		SourceFile:     filepath.Base(sourceFile),
		Classification: verdict.Classification,
		IsSuspicious:   verdict.Classification == model.ClassificationSuspicious,
		IntegrityHash:  integrity.Stamp(id, res.Sanitized, createdAt),
	}
	return ev, verdict, true
}

// Persist stores a suspicious event encrypted, with its hash and status in the
// clear, and records the assigned document id on ev.
func (b *EventBuilder) Persist(ctx context.Context, ev *model.LogEvent) error {
	if !ev.IsSuspicious {
		return nil
	}
	sealed, err := b.cipher.EncryptJSON(ev)
	if err != nil {
		return fmt.Errorf("failed to encrypt event %s: %w", ev.EventID, err)
	}
	id, err := b.store.Add(ctx, model.IncidentCollection, map[string]interface{}{
		model.FieldData:           sealed,
		model.FieldIntegrityHash:  ev.IntegrityHash,
		model.FieldAnalysisStatus: string(model.AnalysisPending),
	})
	if err != nil {
		return fmt.Errorf("failed to store event %s: %w", ev.EventID, err)
	}
	ev.StoreDocID = id
	log.Debug().Str("event_id", ev.EventID).Str("doc_id", id).Msg("Suspicious event persisted")
	return nil
}
