package extraction

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// PromptConfig captures the tunable extraction prompt and model
// parameters. Operators edit this file on disk to change extraction
// behavior without a redeploy; TemplateManager reloads it when its mtime
// advances.
type PromptConfig struct {
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxRetries        int     `yaml:"max_retries"`
	SystemPrompt      string  `yaml:"system_prompt"`
	MinConfidenceKeep float64 `yaml:"min_confidence_keep"`
}

const (
	defaultModel             = "gpt-5.1-mini"
	defaultTemperature       = 0.1
	defaultMaxRetries        = 2
	defaultMinConfidenceKeep = 0.15
)

// DefaultPromptConfig returns the baked-in extraction defaults.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		Model:             defaultModel,
		Temperature:       defaultTemperature,
		MaxRetries:        defaultMaxRetries,
		MinConfidenceKeep: defaultMinConfidenceKeep,
		SystemPrompt: `You extract structured local-incident records from short news items, agency
records, or scanner transcripts. Return a JSON object with fields:
{
  "incident_type": string,
  "category": one of violent_crime, property_crime, fire, medical, traffic, drugs,
              missing_person, suspicious, other,
  "address": string or null,
  "city": string or null,
  "occurred_at": ISO8601 timestamp or null,
  "urgency_score": integer 1-10,
  "title": string,
  "description": string,
  "self_reported_confidence": float 0-1
}
Use null for any field not clearly supported by the text. Never invent an address,
timestamp, or category not stated or strongly implied by the source text.`,
	}
}

// LoadPromptConfig reads a YAML prompt config and merges non-empty
// overrides onto the defaults, mirroring how a partially-specified operator
// override file behaves.
func LoadPromptConfig(path string) (PromptConfig, error) {
	cfg := DefaultPromptConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, nil
	}
	var override PromptConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, err
	}
	return mergePromptConfig(cfg, override), nil
}

func mergePromptConfig(base, override PromptConfig) PromptConfig {
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.MinConfidenceKeep > 0 {
		base.MinConfidenceKeep = override.MinConfidenceKeep
	}
	if strings.TrimSpace(override.SystemPrompt) != "" {
		base.SystemPrompt = override.SystemPrompt
	}
	return base
}

// TemplateManager hot-reloads the prompt config without a process restart.
type TemplateManager struct {
	path     string
	mu       sync.RWMutex
	cfg      PromptConfig
	lastLoad time.Time
}

// NewTemplateManager seeds a manager from path, falling back to defaults
// when the file does not yet exist.
func NewTemplateManager(path string) *TemplateManager {
	tm := &TemplateManager{path: path, cfg: DefaultPromptConfig()}
	_ = tm.reload()
	return tm
}

// Current returns the latest config, reloading from disk first if the
// backing file has changed since the last read.
func (tm *TemplateManager) Current() PromptConfig {
	_ = tm.reload()
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.cfg
}

func (tm *TemplateManager) reload() error {
	if tm.path == "" {
		return nil
	}
	info, err := os.Stat(tm.path)
	if err != nil {
		return nil
	}
	if !info.ModTime().After(tm.lastLoad) {
		return nil
	}
	cfg, err := LoadPromptConfig(tm.path)
	if err != nil {
		return err
	}
	tm.mu.Lock()
	tm.cfg = cfg
	tm.lastLoad = info.ModTime()
	tm.mu.Unlock()
	return nil
}
