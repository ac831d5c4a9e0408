package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// dispatchKeywords gates which voiced segments are worth the cost of an
// LLM extraction call. A scanner feed talks constantly about routine
// traffic and radio checks; only segments that mention one of these get
// transcribed into a RawObservation.
var dispatchKeywords = []string{
	"shots fired", "shooting", "structure fire", "working fire",
	"pursuit", "pursuing", "stabbing", "robbery", "burglary in progress",
	"officer down", "hit and run", "overdose", "cardiac arrest",
	"multi-vehicle", "rollover",
}

// Transcriber turns a voiced audio segment into text. The default
// implementation calls an OpenAI-compatible transcription endpoint; tests
// substitute a fake that returns canned text without a network call.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, startSample, endSample int) (string, error)
}

// HTTPTranscriber calls an OpenAI-compatible audio transcription endpoint
// (POST /audio/transcriptions, multipart file upload), the same host the
// extraction engine's chat completions calls target.
type HTTPTranscriber struct {
	client  HTTPDoer
	apiKey  string
	baseURL string
}

// NewHTTPTranscriber builds an HTTPTranscriber.
func NewHTTPTranscriber(client HTTPDoer, apiKey, baseURL string) *HTTPTranscriber {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &HTTPTranscriber{client: client, apiKey: apiKey, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Transcribe uploads the whole recording; startSample/endSample are
// carried for future trimming but the endpoint used here transcribes
// full files, so callers get the segment's text mixed with its
// surrounding audio when a file holds more than one voiced segment.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, path string, startSample, endSample int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("transcribe: open %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := writer.WriteField("model", "whisper-1"); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcribe: status %d: %s", resp.StatusCode, payload)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transcribe: decode: %w", err)
	}
	return out.Text, nil
}

// isDispatchRelevant reports whether a transcript mentions a keyword the
// pipeline is willing to pay LLM extraction cost for.
func isDispatchRelevant(transcript string) bool {
	lower := strings.ToLower(transcript)
	for _, kw := range dispatchKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
