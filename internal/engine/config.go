package engine

import (
	"errors"
	"net/http"
	"time"
)

// Default LLM settings used when the environment leaves a value unset.
const (
	DefaultLLMAPIBase     = "https://api.openai.com/v1"
	DefaultLLMModel       = "gpt-4o-mini"
	DefaultLLMTemperature = 0.1
	DefaultLLMMaxTokens   = 4096
	DefaultFetchTimeout   = 20 * time.Second
)

// ErrMissingAPIKey is returned by Validate when no LLM key is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required")

// Config holds all engine configuration, injected from main.
// It is passed explicitly to every constructor; there is no package-level copy.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	MaxRPM             int // 0 = unlimited
	FetchTimeout       time.Duration
	WebshareAPIKey     string
	HTTPClient         *http.Client
	BrowserClient      *BrowserClient // nil = plain net/http for YouTube
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		LLMAPIBase:     DefaultLLMAPIBase,
		LLMModel:       DefaultLLMModel,
		LLMTemperature: DefaultLLMTemperature,
		LLMMaxTokens:   DefaultLLMMaxTokens,
		FetchTimeout:   DefaultFetchTimeout,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.LLMAPIBase == "" {
		c.LLMAPIBase = d.LLMAPIBase
	}
	if c.LLMModel == "" {
		c.LLMModel = d.LLMModel
	}
	if c.LLMTemperature == 0 {
		c.LLMTemperature = d.LLMTemperature
	}
	if c.LLMMaxTokens <= 0 {
		c.LLMMaxTokens = d.LLMMaxTokens
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: c.FetchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}
	return c
}

// Validate reports configuration that makes a crew run impossible.
func (c Config) Validate() error {
	if c.LLMAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
