// Package extraction turns raw observation text into structured incident
// fields using an LLM extraction call with a strict, closed-set schema.
package extraction

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

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// ErrMalformedExtraction is returned once every attempt has failed. It wraps
// the last attempt's error, which is either a schema-validation failure or
// an error from the chat completions call itself.
var ErrMalformedExtraction = errors.New("extraction: malformed model response")

// ErrEmptyInput is returned when the observation text is blank.
var ErrEmptyInput = errors.New("extraction: empty input text")

// Extracted is the structured record produced by one extraction call.
type Extracted struct {
	IncidentType           string
	Category               domain.ExtractionCategory
	Address                *string
	City                   *string
	OccurredAt             *time.Time
	UrgencyScore           int
	Title                  string
	Description            string
	SelfReportedConfidence float64
}

// Extractor calls an OpenAI-compatible chat completions endpoint with
// response_format=json_object and validates the result against the
// closed category set before returning it.
type Extractor struct {
	client    *http.Client
	apiKey    string
	endpoint  string
	templates *TemplateManager
}

// New builds an Extractor. endpoint defaults to the OpenAI chat completions
// URL when empty, letting tests and self-hosted deployments point at a
// compatible local server instead.
func New(client *http.Client, apiKey, endpoint, promptConfigPath string) *Extractor {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	}
	return &Extractor{
		client:    client,
		apiKey:    apiKey,
		endpoint:  endpoint,
		templates: NewTemplateManager(promptConfigPath),
	}
}

type rawExtraction struct {
	IncidentType           string   `json:"incident_type"`
	Category               string   `json:"category"`
	Address                *string  `json:"address"`
	City                   *string  `json:"city"`
	OccurredAt             *string  `json:"occurred_at"`
	UrgencyScore           int      `json:"urgency_score"`
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	SelfReportedConfidence float64  `json:"self_reported_confidence"`
}

// Extract runs the extraction call for one observation's text, retrying up
// to the configured MaxRetries times when the call fails or the model
// returns JSON that fails schema validation.
func (e *Extractor) Extract(ctx context.Context, text string) (*Extracted, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	cfg := e.templates.Current()

	var lastErr error
	attempts := cfg.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		raw, err := e.callJSON(ctx, cfg, text)
		if err != nil {
			lastErr = err
			continue
		}
		extracted, err := validate(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return extracted, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, lastErr)
}

func (e *Extractor) callJSON(ctx context.Context, cfg PromptConfig, text string) (*rawExtraction, error) {
	payload := map[string]any{
		"model":           cfg.Model,
		"temperature":     cfg.Temperature,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": cfg.SystemPrompt},
			{"role": "user", "content": text},
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("extraction: model endpoint status %d: %s", resp.StatusCode, string(body))
	}

	var wrapper struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.Choices) == 0 {
		return nil, errors.New("extraction: empty model response")
	}
	content := strings.TrimSpace(wrapper.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("extraction: model returned empty content")
	}
	var raw rawExtraction
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// validate enforces the closed category set and required fields, refusing
// to invent a category the model returned outside the known set rather
// than silently coercing it to "other".
func validate(raw *rawExtraction) (*Extracted, error) {
	cat := domain.ExtractionCategory(strings.ToLower(strings.TrimSpace(raw.Category)))
	if _, ok := domain.ValidExtractionCategories[cat]; !ok {
		return nil, fmt.Errorf("extraction: category %q outside closed set", raw.Category)
	}
	if strings.TrimSpace(raw.Title) == "" {
		return nil, errors.New("extraction: missing title")
	}
	if raw.SelfReportedConfidence < 0 || raw.SelfReportedConfidence > 1 {
		return nil, fmt.Errorf("extraction: self_reported_confidence %f out of range", raw.SelfReportedConfidence)
	}
	urgency := raw.UrgencyScore
	if urgency < 1 {
		urgency = 1
	}
	if urgency > 10 {
		urgency = 10
	}

	var occurredAt *time.Time
	if raw.OccurredAt != nil && strings.TrimSpace(*raw.OccurredAt) != "" {
		t, err := time.Parse(time.RFC3339, *raw.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("extraction: occurred_at %q not RFC3339: %w", *raw.OccurredAt, err)
		}
		occurredAt = &t
	}

	return &Extracted{
		IncidentType:           strings.TrimSpace(raw.IncidentType),
		Category:               cat,
		Address:                nilIfBlank(raw.Address),
		City:                   nilIfBlank(raw.City),
		OccurredAt:             occurredAt,
		UrgencyScore:           urgency,
		Title:                  strings.TrimSpace(raw.Title),
		Description:            strings.TrimSpace(raw.Description),
		SelfReportedConfidence: raw.SelfReportedConfidence,
	}, nil
}

func nilIfBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}
