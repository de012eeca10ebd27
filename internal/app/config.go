package app

import (
	"time"
)

// Config holds runtime configuration for one invocation.
type Config struct {
	// Crop query mode
	Crop  string
	Query string

	// Article validation mode
	ArticlePath      string
	UseWebValidation bool

	// Search
	SearxURL   string
	SearxKey   string
	SearxUA    string
	SearchFile string
	TavilyKey  string

	// LLM
	LLMBaseURL     string
	LLMModel       string
	LLMAPIKey      string
	EmbeddingModel string

	// Guards shared by every LLM caller
	RateLimit          int
	RateWindow         time.Duration
	BreakerThreshold   int
	BreakerTimeout     time.Duration
	BreakerHalfOpenMax int

	// Trust
	PressAllowlist []string
	Blocklist      []string

	CacheDir         string
	CacheStrictPerms bool

	Workers     int
	HTTPTimeout time.Duration

	OutputPDF string
	Verbose   bool
}

// withDefaults fills zero values with the operational defaults.
func (c Config) withDefaults() Config {
	if c.RateLimit <= 0 {
		c.RateLimit = 8
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Second
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 3
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 120 * time.Second
	}
	if c.BreakerHalfOpenMax <= 0 {
		c.BreakerHalfOpenMax = 3
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	return c
}
