package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agriwiki/agrifuse/internal/app"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load .env before flag registration so env-backed flag defaults see it.
	app.LoadEnvFiles(".env")

	var (
		crop        string
		query       string
		articlePath string
		useWeb      bool
		configPath  string
		searchFile  string
		searxURL    string
		searxKey    string
		searxUA     string
		tavilyKey   string
		llmBaseURL  string
		llmModel    string
		llmKey      string
		embedModel  string
		cacheDir    string
		cacheStrict bool
		pressList   string
		blockList   string
		workers     int
		httpTimeout time.Duration
		outputPDF   string
		verbose     bool
	)

	flag.StringVar(&crop, "crop", "", "Crop or rice variety to research, e.g. 'Gạo ST25'")
	flag.StringVar(&query, "query", "", "Free-form search query; overrides the query built from -crop")
	flag.StringVar(&articlePath, "validate", "", "Path to a Markdown article to validate instead of researching")
	flag.BoolVar(&useWeb, "web", false, "Cross-check the validated article against fresh web sources")
	flag.StringVar(&configPath, "config", "agrifuse.yaml", "Path to optional YAML config file")
	flag.StringVar(&searchFile, "search.file", os.Getenv("SEARCH_FILE"), "Path to JSON file for offline file-based search provider")
	flag.StringVar(&searxURL, "searx.url", os.Getenv("SEARX_URL"), "SearxNG base URL")
	flag.StringVar(&searxKey, "searx.key", os.Getenv("SEARX_KEY"), "SearxNG API key (optional)")
	flag.StringVar(&searxUA, "searx.ua", "agrifuse/1.0 (+https://github.com/agriwiki/agrifuse)", "Custom User-Agent for outbound requests")
	flag.StringVar(&tavilyKey, "tavily.key", os.Getenv("TAVILY_API_KEY"), "Tavily API key for the last-resort search fallback")
	flag.StringVar(&llmBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", os.Getenv("LLM_MODEL"), "Model name")
	flag.StringVar(&llmKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for OpenAI-compatible server")
	flag.StringVar(&embedModel, "embed.model", os.Getenv("EMBEDDING_MODEL"), "Embedding model for semantic comparison (optional)")
	flag.StringVar(&cacheDir, "cache.dir", envOr("CACHE_DIR", ".agrifuse-cache"), "Cache directory path")
	flag.BoolVar(&cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	flag.StringVar(&pressList, "trust.press", "", "Comma-separated extra press domains trusted at 0.8")
	flag.StringVar(&blockList, "trust.block", "", "Comma-separated hosts to exclude from scraping")
	flag.IntVar(&workers, "workers", 0, "Concurrent scrape+extract workers (0 = default 4)")
	flag.DurationVar(&httpTimeout, "http.timeout", 0, "Per-request HTTP timeout (0 = default 30s)")
	flag.StringVar(&outputPDF, "report.pdf", "", "Also write the summary as a PDF to this path")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := app.Config{
		Crop:             crop,
		Query:            query,
		ArticlePath:      articlePath,
		UseWebValidation: useWeb,
		SearchFile:       searchFile,
		SearxURL:         searxURL,
		SearxKey:         searxKey,
		SearxUA:          searxUA,
		TavilyKey:        tavilyKey,
		LLMBaseURL:       llmBaseURL,
		LLMModel:         llmModel,
		LLMAPIKey:        llmKey,
		EmbeddingModel:   embedModel,
		CacheDir:         cacheDir,
		CacheStrictPerms: cacheStrict,
		PressAllowlist:   splitList(pressList),
		Blocklist:        splitList(blockList),
		Workers:          workers,
		HTTPTimeout:      httpTimeout,
		OutputPDF:        outputPDF,
		Verbose:          verbose,
	}

	fc, err := app.LoadConfigFile(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("bad config file")
		os.Exit(2)
	}
	cfg = fc.Overlay(cfg)
	cfg = app.ApplyEnv(cfg)

	a, err := app.New(cfg)
	if err != nil {
		// Misconfiguration is not a warning; scripts need to see it fail.
		log.Error().Err(err).Msg("init failed")
		os.Exit(1)
	}
	if err := run(a, cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(exitCode(err))
	}
}

// exitCode maps run errors to the exit-code policy: 2 when the run produced
// nothing usable, otherwise 0 (completion with warnings).
func exitCode(err error) int {
	if errors.Is(err, app.ErrNoClaims) || errors.Is(err, app.ErrValidationFailed) {
		return 2
	}
	return 0
}

func run(a *app.App, cfg app.Config) error {
	ctx := context.Background()

	if cfg.ArticlePath != "" {
		return a.RunValidate(ctx)
	}
	return a.RunCrop(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			list = append(list, v)
		}
	}
	return list
}
