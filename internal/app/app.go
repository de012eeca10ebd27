// Package app wires configuration into a runnable pipeline and exposes the
// two entrypoints the CLI calls: crop research and article validation.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/agriwiki/agrifuse/internal/cache"
	"github.com/agriwiki/agrifuse/internal/extract"
	"github.com/agriwiki/agrifuse/internal/guard"
	"github.com/agriwiki/agrifuse/internal/judge"
	"github.com/agriwiki/agrifuse/internal/llm"
	"github.com/agriwiki/agrifuse/internal/report"
	"github.com/agriwiki/agrifuse/internal/resolve"
	"github.com/agriwiki/agrifuse/internal/scrape"
	"github.com/agriwiki/agrifuse/internal/search"
	"github.com/agriwiki/agrifuse/internal/trust"
	"github.com/agriwiki/agrifuse/internal/validate"
	"github.com/agriwiki/agrifuse/internal/workflow"
)

// ErrNoClaims reports a crop run that finished without a single usable claim.
var ErrNoClaims = errors.New("app: no claims extracted from any source")

// ErrValidationFailed reports an article validation that ended with errors.
var ErrValidationFailed = errors.New("app: article validation failed")

// App holds the wired components for one process lifetime.
type App struct {
	cfg       Config
	workflow  *workflow.Pipeline
	validator *validate.Validator
}

// New wires an App from configuration. The rate limiter and circuit breaker
// are shared between the extractor and the judge so the process observes one
// provider budget, not two.
func New(cfg Config) (*App, error) {
	cfg = cfg.withDefaults()
	if cfg.LLMAPIKey == "" {
		return nil, errors.New("app: missing LLM API key")
	}
	if cfg.LLMModel == "" {
		return nil, errors.New("app: missing LLM model")
	}

	provider := &llm.OpenAIProvider{
		Inner:          openai.NewClientWithConfig(openAIConfig(cfg)),
		EmbeddingModel: cfg.EmbeddingModel,
	}

	limiter := guard.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	breaker := guard.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerTimeout, cfg.BreakerHalfOpenMax)

	var judgeCache *cache.JudgeCache
	if cfg.CacheDir != "" {
		judgeCache = &cache.JudgeCache{
			Dir:         filepath.Join(cfg.CacheDir, "judge"),
			StrictPerms: cfg.CacheStrictPerms,
		}
	}

	var scorer *trust.Scorer
	if len(cfg.PressAllowlist) > 0 {
		scorer = trust.NewScorerWithAllowlist(cfg.PressAllowlist)
	} else {
		scorer = trust.NewScorer()
	}

	jdg := &judge.Judge{
		Client:   provider,
		Embedder: provider,
		Cache:    judgeCache,
		Model:    cfg.LLMModel,
		Limiter:  limiter,
		Breaker:  breaker,
	}
	extractor := &extract.Extractor{
		Client:  provider,
		Model:   cfg.LLMModel,
		Limiter: limiter,
		Breaker: breaker,
		Opts:    extract.Options{Chunking: true},
	}
	resolver := &resolve.Resolver{Trust: scorer, Judge: jdg}

	primary, err := searchProvider(cfg)
	if err != nil {
		return nil, err
	}
	var fallback search.Provider
	if cfg.TavilyKey != "" {
		fallback = &search.Tavily{APIKey: cfg.TavilyKey}
	}

	pipeline := &workflow.Pipeline{
		Search:   primary,
		Fallback: fallback,
		Scraper: &scrape.Client{
			HTTPClient:    &http.Client{Timeout: cfg.HTTPTimeout},
			UserAgent:     cfg.SearxUA,
			Timeout:       cfg.HTTPTimeout,
			RespectRobots: true,
		},
		Extractor: extractor,
		Resolver:  resolver,
		Trust:     scorer,
		Blocklist: cfg.Blocklist,
		Workers:   cfg.Workers,
	}

	return &App{
		cfg:      cfg,
		workflow: pipeline,
		validator: &validate.Validator{
			Extractor: extractor,
			Judge:     jdg,
			Resolver:  resolver,
			Workflow:  pipeline,
		},
	}, nil
}

// openAIConfig builds the client config for the LLM endpoint. The HTTP client
// carries the request timeout; chat and embedding calls must never hang on a
// stalled provider socket.
func openAIConfig(cfg Config) openai.ClientConfig {
	oc := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		oc.BaseURL = cfg.LLMBaseURL
	}
	oc.HTTPClient = llmHTTPClient(cfg)
	return oc
}

// llmHTTPClient bounds every chat and embedding request with the configured
// timeout.
func llmHTTPClient(cfg Config) *http.Client {
	return &http.Client{Timeout: cfg.HTTPTimeout}
}

func searchProvider(cfg Config) (search.Provider, error) {
	if cfg.SearchFile != "" {
		return &search.FileProvider{Path: cfg.SearchFile}, nil
	}
	if cfg.SearxURL != "" {
		return &search.SearxNG{
			BaseURL:   cfg.SearxURL,
			APIKey:    cfg.SearxKey,
			UserAgent: cfg.SearxUA,
		}, nil
	}
	if cfg.TavilyKey != "" {
		return &search.Tavily{APIKey: cfg.TavilyKey}, nil
	}
	return nil, errors.New("app: no search provider configured (set searx.url, search.file, or tavily.key)")
}

// RunCrop runs the full crop research pipeline and prints the summary to
// stdout. An optional PDF copy goes to cfg.OutputPDF.
func (a *App) RunCrop(ctx context.Context) error {
	state, err := a.workflow.Run(ctx, a.cfg.Crop, a.cfg.Query)
	if err != nil {
		return err
	}
	log.Info().
		Int("urls", state.Debug.NumURLs).
		Int("claims", state.Debug.NumClaims).
		Int("resolved", state.Debug.NumResolved).
		Msg("pipeline finished")

	fmt.Println(state.Summary)

	if len(state.Claims) == 0 {
		return ErrNoClaims
	}
	if a.cfg.OutputPDF != "" {
		if err := report.WritePDF(state.Summary, a.cfg.OutputPDF); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("path", a.cfg.OutputPDF).Msg("wrote pdf report")
	}
	return nil
}

// RunValidate validates a markdown article and prints the JSON report to
// stdout. A failed validation returns an error so the CLI can set the exit
// code.
func (a *App) RunValidate(ctx context.Context) error {
	res := a.validator.ValidateFile(ctx, a.cfg.ArticlePath, a.cfg.UseWebValidation)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("%w: %d error(s)", ErrValidationFailed, len(res.Errors))
	}
	return nil
}
