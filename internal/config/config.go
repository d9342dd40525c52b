// Package config provides configuration types and loading for toolloop.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Limits    LimitsConfig    `json:"limits"`
	Loop      LoopConfig      `json:"loop"`
	Tools     ToolsConfig     `json:"tools"`
	Providers ProvidersConfig `json:"providers"`
	Trace     TraceConfig     `json:"trace"`
	Timeline  TimelineConfig  `json:"timeline"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	Workspace string `json:"workspace" envconfig:"WORKSPACE"`
	Sessions  string `json:"sessions" envconfig:"SESSIONS"`
}

// ModelConfig groups LLM model settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"NAME"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// LimitsConfig configures the per-model token bucket.
type LimitsConfig struct {
	MaxRequests   int `json:"maxRequests" envconfig:"MAX_REQUESTS"`
	PeriodSeconds int `json:"periodSeconds" envconfig:"PERIOD_SECONDS"`
}

// Period returns the rate-limit period as a duration.
func (l LimitsConfig) Period() time.Duration {
	return time.Duration(l.PeriodSeconds) * time.Second
}

// LoopConfig groups agent-loop policy settings. The stuck window and
// signature length control repetition detection; changing them changes how
// aggressively runs are cut off.
type LoopConfig struct {
	MaxTurns        int `json:"maxTurns" envconfig:"MAX_TURNS"`
	StuckWindow     int `json:"stuckWindow" envconfig:"STUCK_WINDOW"`
	SignatureLength int `json:"signatureLength" envconfig:"SIGNATURE_LENGTH"`
}

// ToolsConfig groups tool execution settings.
type ToolsConfig struct {
	Dangerous          []string `json:"dangerous" envconfig:"DANGEROUS"`
	ExecTimeoutSeconds int      `json:"execTimeoutSeconds" envconfig:"EXEC_TIMEOUT"`
	RestrictToWorkDir  bool     `json:"restrictToWorkDir" envconfig:"RESTRICT_TO_WORKDIR"`
}

// ProvidersConfig contains credentials for LLM providers.
type ProvidersConfig struct {
	Gemini GeminiConfig `json:"gemini"`
	OpenAI OpenAIConfig `json:"openai"`
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string `json:"apiKey" envconfig:"API_KEY"`
}

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase" envconfig:"API_BASE"`
}

// TraceConfig configures the Kafka span publisher.
type TraceConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// TimelineConfig configures the local sqlite run log.
type TimelineConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Path    string `json:"path" envconfig:"PATH"`
}
