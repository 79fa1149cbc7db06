package dto

import (
	"time"

	"soc-log-pipeline/internal/model"
)

type IncidentListRequest struct {
	Limit int
}

// IncidentView is a decrypted incident as served to the dashboard.
type IncidentView struct {
	DocID          string                  `json:"doc_id"`
	Event          model.LogEvent          `json:"event"`
	AnalysisStatus model.AnalysisStatus    `json:"analysis_status"`
	RiskScore      *int                    `json:"risk_score,omitempty"`
	Insights       *model.EnrichmentResult `json:"ai_insights,omitempty"`
	Timestamp      *time.Time              `json:"timestamp,omitempty"`
	IntegrityValid bool                    `json:"integrity_valid"`
}

type IncidentListResponse struct {
	Incidents []IncidentView `json:"incidents"`
	Skipped   int            `json:"skipped"`
}
