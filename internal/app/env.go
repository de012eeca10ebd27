package app

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads dotenv files into the process environment without
// overriding variables already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// ApplyEnv fills config fields from the environment where flags and the
// config file left them empty. GOOGLE_API_KEY is accepted as an alias for
// LLM_API_KEY since the extraction prompts were tuned on Gemini.
func ApplyEnv(cfg Config) Config {
	envStr := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	envStr(&cfg.LLMBaseURL, "LLM_BASE_URL")
	envStr(&cfg.LLMModel, "LLM_MODEL")
	envStr(&cfg.LLMAPIKey, "LLM_API_KEY", "GOOGLE_API_KEY")
	envStr(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	envStr(&cfg.SearxURL, "SEARX_URL")
	envStr(&cfg.SearxKey, "SEARX_KEY")
	envStr(&cfg.SearchFile, "SEARCH_FILE")
	envStr(&cfg.TavilyKey, "TAVILY_API_KEY")
	return cfg
}
