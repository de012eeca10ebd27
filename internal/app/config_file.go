package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the optional single-file configuration schema. Flags override
// file values, which override built-in defaults.
type FileConfig struct {
	Crop  string `yaml:"crop"`
	Query string `yaml:"query"`

	LLM struct {
		BaseURL        string `yaml:"base"`
		Model          string `yaml:"model"`
		APIKey         string `yaml:"key"`
		EmbeddingModel string `yaml:"embeddingModel"`
	} `yaml:"llm"`

	Searx struct {
		URL string `yaml:"url"`
		Key string `yaml:"key"`
		UA  string `yaml:"ua"`
	} `yaml:"searx"`

	Search struct {
		File string `yaml:"file"`
	} `yaml:"search"`

	Tavily struct {
		Key string `yaml:"key"`
	} `yaml:"tavily"`

	Guard struct {
		RateLimit          int           `yaml:"rateLimit"`
		RateWindow         time.Duration `yaml:"rateWindow"`
		BreakerThreshold   int           `yaml:"breakerThreshold"`
		BreakerTimeout     time.Duration `yaml:"breakerTimeout"`
		BreakerHalfOpenMax int           `yaml:"breakerHalfOpenMax"`
	} `yaml:"guard"`

	Trust struct {
		Press     []string `yaml:"press"`
		Blocklist []string `yaml:"blocklist"`
	} `yaml:"trust"`

	Cache struct {
		Dir         string `yaml:"dir"`
		StrictPerms bool   `yaml:"strictPerms"`
	} `yaml:"cache"`

	Workers     int           `yaml:"workers"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	OutputPDF   string        `yaml:"outputPDF"`
	Verbose     bool          `yaml:"verbose"`
}

// LoadConfigFile parses a YAML config file. A missing path returns an empty
// config without error so callers can treat the file as optional.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

// Overlay fills empty Config fields from the file config. Set flags win.
func (fc FileConfig) Overlay(cfg Config) Config {
	setStr := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if *dst == 0 && v != 0 {
			*dst = v
		}
	}
	setDur := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 && v != 0 {
			*dst = v
		}
	}

	setStr(&cfg.Crop, fc.Crop)
	setStr(&cfg.Query, fc.Query)
	setStr(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	setStr(&cfg.LLMModel, fc.LLM.Model)
	setStr(&cfg.LLMAPIKey, fc.LLM.APIKey)
	setStr(&cfg.EmbeddingModel, fc.LLM.EmbeddingModel)
	setStr(&cfg.SearxURL, fc.Searx.URL)
	setStr(&cfg.SearxKey, fc.Searx.Key)
	setStr(&cfg.SearxUA, fc.Searx.UA)
	setStr(&cfg.SearchFile, fc.Search.File)
	setStr(&cfg.TavilyKey, fc.Tavily.Key)
	setStr(&cfg.CacheDir, fc.Cache.Dir)
	setStr(&cfg.OutputPDF, fc.OutputPDF)
	setInt(&cfg.RateLimit, fc.Guard.RateLimit)
	setDur(&cfg.RateWindow, fc.Guard.RateWindow)
	setInt(&cfg.BreakerThreshold, fc.Guard.BreakerThreshold)
	setDur(&cfg.BreakerTimeout, fc.Guard.BreakerTimeout)
	setInt(&cfg.BreakerHalfOpenMax, fc.Guard.BreakerHalfOpenMax)
	setInt(&cfg.Workers, fc.Workers)
	setDur(&cfg.HTTPTimeout, fc.HTTPTimeout)

	if len(cfg.PressAllowlist) == 0 {
		cfg.PressAllowlist = fc.Trust.Press
	}
	if len(cfg.Blocklist) == 0 {
		cfg.Blocklist = fc.Trust.Blocklist
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
	return cfg
}
