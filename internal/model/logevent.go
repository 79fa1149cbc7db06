package model

type Classification string

const (
	ClassificationNoise      Classification = "noise"
	ClassificationSuspicious Classification = "pending"
	ClassificationLowRisk    Classification = "ignored_low_risk"
)

type Artifacts struct {
	InternalIPs     []string `json:"internal_ips"`
	ExternalIPs     []string `json:"external_ips"`
	MACAddresses    []string `json:"mac_addresses"`
	UniqueIPCount   int      `json:"unique_ip_count"`
	RedactedEmails  int      `json:"redacted_emails"`
	RedactedSecrets int      `json:"redacted_secrets"`
}

// LogEvent is one sanitized, classified log line. CreatedAt is kept as the exact
// string that was hashed so the integrity hash can be recomputed byte for byte.
type LogEvent struct {
	EventID        string         `json:"event_id"`
	CreatedAt      string         `json:"created_at"`
	SanitizedText  string         `json:"sanitized_text"`
	Artifacts      Artifacts      `json:"artifacts"`
	SourceFile     string         `json:"source_file"`
	Classification Classification `json:"classification"`
	IsSuspicious   bool           `json:"is_suspicious"`
	IntegrityHash  string         `json:"integrity_hash"`
	StoreDocID     string         `json:"store_doc_id,omitempty"`
}
