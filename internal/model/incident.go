package model

import "time"

const IncidentCollection = "incidents"

// Store field names for the incidents collection.
const (
	FieldData           = "data"
	FieldIntegrityHash  = "integrity_hash"
	FieldAnalysisStatus = "analysis_status"
	FieldAIInsights     = "ai_insights"
	FieldRiskScore      = "risk_score"
	FieldTimestamp      = "timestamp"
)

type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
	AnalysisSkipped   AnalysisStatus = "skipped"
	AnalysisRequeued  AnalysisStatus = "requeued"
)

// BatchItem is what leaves the pipeline for enrichment. Only the id and the
// sanitized text are ever serialized to the analysis service.
type BatchItem struct {
	EventID       string `json:"event_id"`
	SanitizedText string `json:"sanitized_text"`
	StoreDocID    string `json:"-"`
	SourceFile    string `json:"-"`
}

type EnrichmentResult struct {
	EventID            string   `json:"event_id"`
	Summary            string   `json:"summary"`
	RiskScore          int      `json:"risk_score"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Alert is one row of an outbound notification.
type Alert struct {
	EventID    string    `json:"event_id"`
	RiskScore  int       `json:"risk_score"`
	Summary    string    `json:"summary"`
	SourceFile string    `json:"source_file,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

type Recipient struct {
	Address      string
	MinRiskScore int
}
