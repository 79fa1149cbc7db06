package archive

import (
	"soc-log-pipeline/internal/integrity"
)

type Tampered struct {
	File     string `json:"file"`
	Index    int    `json:"index"`
	EventID  string `json:"event_id"`
	Expected string `json:"expected"`
	Stored   string `json:"stored"`
}

type Report struct {
	Files    int        `json:"files"`
	Records  int        `json:"records"`
	Tampered []Tampered `json:"tampered"`
	Errors   []string   `json:"errors,omitempty"`
}

func (r Report) OK() bool {
	return len(r.Tampered) == 0 && len(r.Errors) == 0
}

// Verify recomputes the integrity hash of every archived record.
func (a *Archive) Verify() (Report, error) {
	files, err := a.Files()
	if err != nil {
		return Report{}, err
	}
	report := Report{Tampered: []Tampered{}}
	for _, path := range files {
		events, err := LoadFile(path)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		report.Files++
		for i, ev := range events {
			report.Records++
			expected := integrity.Stamp(ev.EventID, ev.SanitizedText, ev.CreatedAt)
			if !integrity.Verify(ev.IntegrityHash, ev.EventID, ev.SanitizedText, ev.CreatedAt) {
				report.Tampered = append(report.Tampered, Tampered{
					File:     path,
					Index:    i,
					EventID:  ev.EventID,
					Expected: expected,
					Stored:   ev.IntegrityHash,
				})
			}
		}
	}
	return report, nil
}
