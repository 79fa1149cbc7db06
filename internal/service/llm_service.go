package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/model"
)

var (
	// ErrRateLimited means the analysis service refused the call for quota reasons.
	ErrRateLimited = errors.New("enrichment rate limited")
	// ErrRequestRejected covers every other client error. Retrying will not help.
	ErrRequestRejected = errors.New("enrichment request rejected")
)

// EnrichmentDispatcher sends one batch for analysis and returns results keyed by event id.
type EnrichmentDispatcher interface {
	Analyze(ctx context.Context, items []model.BatchItem) ([]model.EnrichmentResult, error)
}

// RetryPolicy builds a fresh backoff for each dispatch.
type RetryPolicy func() backoff.BackOff

func NewRetryPolicy(initial, maxElapsed time.Duration, maxRetries int) RetryPolicy {
	return func() backoff.BackOff {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = initial
		eb.MaxInterval = 30 * time.Second
		eb.MaxElapsedTime = maxElapsed
		if maxRetries < 0 {
			maxRetries = 0
		}
		return backoff.WithMaxRetries(eb, uint64(maxRetries))
	}
}

type GeminiPart struct {
	Text string `json:"text"`
}
type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}
type GeminiGenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}
type GeminiRequestBody struct {
	Contents         []GeminiContent        `json:"contents"`
	GenerationConfig GeminiGenerationConfig `json:"generationConfig"`
}

type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
}

type geminiDispatcher struct {
	apiKey     string
	endpoint   string
	modelID    string
	audience   string
	httpClient *http.Client
	retry      RetryPolicy
}

func NewGeminiDispatcher(cfg *config.Config) EnrichmentDispatcher {
	if cfg.Enrichment.APIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set, enrichment calls will be rejected")
	}
	return &geminiDispatcher{
		apiKey:   cfg.Enrichment.APIKey,
		endpoint: strings.TrimRight(cfg.Enrichment.Endpoint, "/"),
		modelID:  cfg.Enrichment.Model,
		audience: cfg.Enrichment.Audience,
		httpClient: &http.Client{
			Timeout: cfg.Enrichment.Timeout,
		},
		retry: NewRetryPolicy(cfg.Enrichment.InitialBackoff, cfg.Enrichment.MaxElapsed, cfg.Enrichment.MaxRetries),
	}
}

func (s *geminiDispatcher) Analyze(ctx context.Context, items []model.BatchItem) ([]model.EnrichmentResult, error) {
	if len(items) == 0 {
		return nil, nil
	}
	log.Info().Int("batch_size", len(items)).Str("model", s.modelID).Msg("Dispatching batch for enrichment")

	prompt, err := buildEnrichmentPrompt(items, s.audience)
	if err != nil {
		return nil, err
	}
	requestBody := GeminiRequestBody{
		Contents: []GeminiContent{{Role: "user", Parts: []GeminiPart{{Text: prompt}}}},
		GenerationConfig: GeminiGenerationConfig{
			ResponseMimeType: "application/json",
			Temperature:      0.2,
		},
	}
	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var respBodyBytes []byte
	attempt := 0
	operation := func() error {
		attempt++
		var callErr error
		respBodyBytes, callErr = s.callGeminiAPI(ctx, bodyBytes)
		if callErr == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(callErr, ErrRequestRejected) {
			return backoff.Permanent(callErr)
		}
		log.Warn().Err(callErr).Int("attempt", attempt).Msg("Enrichment call failed, will retry")
		return callErr
	}
	if err := backoff.Retry(operation, backoff.WithContext(s.retry(), ctx)); err != nil {
		return nil, err
	}

	results, err := parseEnrichmentResponse(respBodyBytes)
	if err != nil {
		return nil, err
	}
	return filterResults(items, results), nil
}

func (s *geminiDispatcher) callGeminiAPI(ctx context.Context, bodyBytes []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.endpoint, s.modelID, s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBodyBytes, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status code %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		log.Error().Int("status_code", resp.StatusCode).Bytes("response_body", respBodyBytes).Msg("Gemini API rejected the request")
		return nil, fmt.Errorf("%w: status code %d", ErrRequestRejected, resp.StatusCode)
	default:
		return nil, fmt.Errorf("gemini API error: status code %d", resp.StatusCode)
	}
}

func parseEnrichmentResponse(body []byte) ([]model.EnrichmentResult, error) {
	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to parse Gemini response: %w", err)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("received empty or invalid response structure from Gemini")
	}

	generatedText := geminiResp.Candidates[0].Content.Parts[0].Text
	cleaned := cleanLLMJsonArray(generatedText)
	if cleaned == "" {
		log.Error().Str("raw_text", generatedText).Msg("Failed to extract a JSON array from Gemini response text")
		return nil, errors.New("LLM did not return a JSON array in its response")
	}

	var results []model.EnrichmentResult
	if err := json.Unmarshal([]byte(cleaned), &results); err != nil {
		return nil, fmt.Errorf("failed to parse enrichment results: %w", err)
	}
	return results, nil
}

// cleanLLMJsonArray strips markdown fences or chatter around the JSON array.
func cleanLLMJsonArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	candidate := raw[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}

// filterResults drops results for ids that were not in the batch and clamps
// risk scores into 1..10.
func filterResults(items []model.BatchItem, results []model.EnrichmentResult) []model.EnrichmentResult {
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.EventID] = true
	}
	out := make([]model.EnrichmentResult, 0, len(results))
	for _, r := range results {
		if !known[r.EventID] {
			log.Warn().Str("event_id", r.EventID).Msg("Enrichment returned a result for an unknown event id")
			continue
		}
		switch {
		case r.RiskScore < 1:
			r.RiskScore = 1
		case r.RiskScore > 10:
			r.RiskScore = 10
		}
		out = append(out, r)
	}
	return out
}

func buildEnrichmentPrompt(items []model.BatchItem, audience string) (string, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch: %w", err)
	}
	if audience == "" {
		audience = "analyst"
	}
	return fmt.Sprintf(`You are a security operations assistant. Analyze each sanitized log line below. Placeholders such as [INTERNAL_IP_0] or [REDACTED] stand in for removed values.

Write for this audience: %s.

Respond *ONLY* with a JSON array, one object per input line, in this format:
[
  {
    "event_id": string,            // copy from the input
    "summary": string,             // one or two sentences
    "risk_score": integer,         // 1 (benign) to 10 (critical)
    "recommended_actions": [string]
  }
]

Log lines:
%s`, audience, payload), nil
}
