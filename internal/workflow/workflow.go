// Package workflow wires the full crop pipeline: search for sources, scrape
// and extract claims from each URL, resolve them into gold claims, and write
// a plain-text summary. Stages run in order over one shared State; per-URL
// failures land in DebugInfo instead of aborting the run.
package workflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/agriwiki/agrifuse/internal/claim"
	"github.com/agriwiki/agrifuse/internal/extract"
	"github.com/agriwiki/agrifuse/internal/report"
	"github.com/agriwiki/agrifuse/internal/resolve"
	"github.com/agriwiki/agrifuse/internal/scrape"
	"github.com/agriwiki/agrifuse/internal/search"
	"github.com/agriwiki/agrifuse/internal/trust"
)

const (
	maxURLs           = 15
	minTrustToKeep    = 0.3
	defaultWorkers    = 4
	searchRegion      = "vn-vi"
	searchResultLimit = 15
)

// junkHostMarkers drop obviously useless hits already at search time.
var junkHostMarkers = []string{"vfo.vn", "zhihu.com", "yahoo", "seek.com", "forum"}

// DebugInfo carries non-fatal diagnostics accumulated across stages.
type DebugInfo struct {
	SearchQuery     string   `json:"searchQuery"`
	FallbackQueries []string `json:"fallbackQueries,omitempty"`
	NumURLs         int      `json:"numUrls"`
	NumClaims       int      `json:"numClaims"`
	NumResolved     int      `json:"numResolved"`
	Errors          []string `json:"errors,omitempty"`
	Cancelled       bool     `json:"cancelled,omitempty"`
}

// State is the shared record the pipeline stages fill in.
type State struct {
	Crop          string
	Query         string
	SearchResults []string
	Claims        []claim.Claim
	Resolved      []resolve.Resolved
	Summary       string
	Debug         DebugInfo
}

// Pipeline holds the stage dependencies. Fallback is the provider of last
// resort (typically Tavily) and may be nil.
type Pipeline struct {
	Search    search.Provider
	Fallback  search.Provider
	Scraper   scrape.Scraper
	Extractor *extract.Extractor
	Resolver  *resolve.Resolver
	Trust     *trust.Scorer

	// Blocklist holds hosts excluded outright; nil means the default.
	Blocklist []string
	// Workers bounds the extract fan-out; zero means 4.
	Workers int
}

// BuildQuery expands a bare crop name into a search query.
func BuildQuery(crop string) string {
	crop = strings.TrimSpace(crop)
	if crop == "" {
		return "giống lúa năng suất cao ĐBSCL"
	}
	return fmt.Sprintf("%s năng suất giống lúa", crop)
}

// Run executes the pipeline for one crop. A non-empty query overrides the
// generated one. Run only fails on cancellation; everything else degrades
// into Debug.Errors and a possibly empty summary.
func (p *Pipeline) Run(ctx context.Context, crop, query string) (*State, error) {
	state := &State{Crop: strings.TrimSpace(crop), Query: strings.TrimSpace(query)}
	if state.Query == "" {
		state.Query = BuildQuery(state.Crop)
	}
	state.Debug.SearchQuery = state.Query

	p.searchStage(ctx, state)
	if cancelled(ctx, state) {
		return state, ctx.Err()
	}

	p.extractStage(ctx, state)
	if cancelled(ctx, state) {
		return state, ctx.Err()
	}

	state.Resolved = p.Resolver.Resolve(ctx, state.Claims)
	state.Debug.NumResolved = len(state.Resolved)

	state.Summary = report.Summary(state.Crop, state.Resolved)
	return state, nil
}

func cancelled(ctx context.Context, state *State) bool {
	if ctx.Err() == nil {
		return false
	}
	state.Debug.Cancelled = true
	return true
}

// searchStage walks the fallback ladder until some provider returns URLs,
// then filters and caps them.
func (p *Pipeline) searchStage(ctx context.Context, state *State) {
	crop := state.Crop

	type rung struct {
		query    string
		region   string
		provider search.Provider
	}
	ladder := []rung{{query: state.Query, region: searchRegion, provider: p.Search}}
	if crop != "" {
		ladder = append(ladder,
			rung{query: crop + " năng suất", region: searchRegion, provider: p.Search},
			rung{query: crop, region: searchRegion, provider: p.Search},
			rung{query: crop + " rice yield Vietnam", provider: p.Search},
			rung{query: "ST25 rice variety Vietnam", provider: p.Search},
		)
		if p.Fallback != nil {
			ladder = append(ladder, rung{query: BuildQuery(crop), provider: p.Fallback})
		}
	}

	var urls []string
	for i, r := range ladder {
		if r.provider == nil || ctx.Err() != nil {
			break
		}
		if i > 0 {
			state.Debug.FallbackQueries = append(state.Debug.FallbackQueries, r.query)
		}
		results, err := r.provider.Search(ctx, r.query, search.Options{Region: r.region, Limit: searchResultLimit})
		if err != nil {
			state.Debug.Errors = append(state.Debug.Errors,
				fmt.Sprintf("search error for %q (%s): %v", r.query, r.provider.Name(), err))
			continue
		}
		for _, res := range results {
			if hostLooksJunk(res.URL) {
				continue
			}
			urls = append(urls, res.URL)
		}
		if len(urls) > 0 {
			log.Debug().Str("query", r.query).Str("provider", r.provider.Name()).
				Int("urls", len(urls)).Msg("search rung succeeded")
			break
		}
	}

	state.SearchResults = p.filterURLs(urls)
	state.Debug.NumURLs = len(state.SearchResults)
}

// filterURLs validates, deduplicates, trust-filters, and caps the URL list.
// When the trust filter would empty the list the deduplicated list survives;
// a thin result beats none.
func (p *Pipeline) filterURLs(urls []string) []string {
	blocklist := p.Blocklist
	if blocklist == nil {
		blocklist = []string{"vfo.vn"}
	}

	var dedup []string
	seen := map[string]struct{}{}
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if blockedHost(host, blocklist) {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		dedup = append(dedup, raw)
	}

	var filtered []string
	for _, u := range dedup {
		if p.Trust.Score(u) >= minTrustToKeep {
			filtered = append(filtered, u)
		}
	}
	if len(filtered) == 0 {
		filtered = dedup
	}
	if len(filtered) > maxURLs {
		filtered = filtered[:maxURLs]
	}
	return filtered
}

func blockedHost(host string, blocklist []string) bool {
	for _, b := range blocklist {
		if host == b {
			return true
		}
	}
	return false
}

func hostLooksJunk(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Host)
	for _, marker := range junkHostMarkers {
		if strings.Contains(host, marker) {
			return true
		}
	}
	return false
}

// extractStage scrapes every URL and extracts claims, fanning out over a
// bounded worker pool. Claims keep URL order so downstream resolution is
// deterministic.
func (p *Pipeline) extractStage(ctx context.Context, state *State) {
	urls := state.SearchResults
	perURL := make([][]claim.Claim, len(urls))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	g.SetLimit(workers)

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			page, err := p.Scraper.Scrape(gctx, u)
			if err != nil {
				mu.Lock()
				state.Debug.Errors = append(state.Debug.Errors, fmt.Sprintf("scrape error for %s: %v", u, err))
				mu.Unlock()
				return nil
			}
			if strings.TrimSpace(page.Text) == "" {
				return nil
			}
			claims, err := p.Extractor.FromText(gctx, page.Text)
			if err != nil {
				mu.Lock()
				state.Debug.Errors = append(state.Debug.Errors, fmt.Sprintf("extract error for %s: %v", u, err))
				mu.Unlock()
			}
			for j := range claims {
				claims[j].SourceURL = u
			}
			perURL[i] = claims
			return nil
		})
	}
	_ = g.Wait()

	// No cross-URL dedupe: the same value from two sources is two votes.
	for _, claims := range perURL {
		state.Claims = append(state.Claims, claims...)
	}
	state.Debug.NumClaims = len(state.Claims)
}
