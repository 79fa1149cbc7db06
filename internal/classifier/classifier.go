package classifier

import (
	"strings"

	"soc-log-pipeline/internal/model"
)

type Verdict struct {
	Classification model.Classification
	Category       string
}

type Classifier interface {
	Classify(raw, sanitized string) Verdict
	Version() string
}

type keywordClassifier struct {
	version    string
	noise      []flatPattern
	suspicious []flatPattern
}

func New(tables Tables) Classifier {
	return &keywordClassifier{
		version:    tables.Version,
		noise:      flatten(tables.Noise),
		suspicious: flatten(tables.Suspicious),
	}
}

func (c *keywordClassifier) Version() string {
	return c.version
}

// Classify checks noise before suspicion, so a line matching both is noise.
func (c *keywordClassifier) Classify(raw, sanitized string) Verdict {
	rawLower := strings.ToLower(raw)
	sanitizedLower := strings.ToLower(sanitized)

	if isSchedulerLine(rawLower) {
		return Verdict{Classification: model.ClassificationNoise, Category: "scheduler"}
	}
	if p, ok := match(c.noise, rawLower, sanitizedLower); ok {
		return Verdict{Classification: model.ClassificationNoise, Category: p.category}
	}
	if p, ok := match(c.suspicious, rawLower, sanitizedLower); ok {
		return Verdict{Classification: model.ClassificationSuspicious, Category: p.category}
	}
	return Verdict{Classification: model.ClassificationLowRisk}
}

// isSchedulerLine matches the job execution records cron, crond and anacron
// write for every run. Other lines from those daemons go through the tables.
func isSchedulerLine(lower string) bool {
	return strings.Contains(lower, "cron") && strings.Contains(lower, "cmd (")
}

func match(patterns []flatPattern, texts ...string) (flatPattern, bool) {
	for _, p := range patterns {
		for _, text := range texts {
			if strings.Contains(text, p.pattern) {
				return p, true
			}
		}
	}
	return flatPattern{}, false
}
