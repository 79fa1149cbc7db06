package metrics

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/model"
)

const (
	MetricLogEvent     = "log_event"
	MetricNoiseDropped = "noise_dropped"
)

// Extractor turns pipeline outcomes into counter rows for the metrics store.
type Extractor interface {
	FromEvent(ev *model.LogEvent, category string, at time.Time) model.MetricEvent
	NoiseDropped(sourceFile, category string, at time.Time) model.MetricEvent
}

type pipelineExtractor struct{}

func NewExtractor() Extractor {
	return pipelineExtractor{}
}

func (pipelineExtractor) FromEvent(ev *model.LogEvent, category string, at time.Time) model.MetricEvent {
	tags := map[string]string{
		"classification": string(ev.Classification),
	}
	if category != "" {
		tags["category"] = category
	}
	if n := len(ev.Artifacts.ExternalIPs); n > 0 {
		tags["has_external_ip"] = "true"
	}
	log.Trace().Str("event_id", ev.EventID).Str("classification", tags["classification"]).Msg("Extracted metric event")
	return model.MetricEvent{
		Time:       at,
		MetricName: MetricLogEvent,
		SourceFile: filepath.Base(ev.SourceFile),
		Tags:       tags,
	}
}

func (pipelineExtractor) NoiseDropped(sourceFile, category string, at time.Time) model.MetricEvent {
	tags := map[string]string{}
	if category != "" {
		tags["category"] = category
	}
	return model.MetricEvent{
		Time:       at,
		MetricName: MetricNoiseDropped,
		SourceFile: filepath.Base(sourceFile),
		Tags:       tags,
	}
}
