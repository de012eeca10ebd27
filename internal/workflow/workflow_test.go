package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agriwiki/agrifuse/internal/extract"
	"github.com/agriwiki/agrifuse/internal/resolve"
	"github.com/agriwiki/agrifuse/internal/scrape"
	"github.com/agriwiki/agrifuse/internal/search"
	"github.com/agriwiki/agrifuse/internal/trust"
)

type fakeProvider struct {
	mu      sync.Mutex
	name    string
	results map[string][]search.Result
	queries []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, query string, _ search.Options) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results[query], nil
}

type fakeScraper struct {
	pages map[string]scrape.Page
	errs  map[string]error
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (scrape.Page, error) {
	if err := f.errs[url]; err != nil {
		return scrape.Page{}, err
	}
	return f.pages[url], nil
}

// routedChat answers extraction calls by matching a marker substring in the
// user prompt; safe under concurrent use.
type routedChat struct {
	mu     sync.Mutex
	routes map[string]string
}

func (r *routedChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := req.Messages[len(req.Messages)-1].Content
	reply := "[]"
	for marker, resp := range r.routes {
		if strings.Contains(user, marker) {
			reply = resp
			break
		}
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: reply}}},
	}, nil
}

func newPipeline(provider search.Provider, scraper scrape.Scraper, chat *routedChat) *Pipeline {
	scorer := trust.NewScorer()
	return &Pipeline{
		Search:    provider,
		Scraper:   scraper,
		Extractor: &extract.Extractor{Client: chat, Model: "test-model"},
		Resolver:  &resolve.Resolver{Trust: scorer},
		Trust:     scorer,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	query := BuildQuery("Lúa ST25")
	provider := &fakeProvider{name: "searxng", results: map[string][]search.Result{
		query: {
			{Title: "ST25", URL: "https://vnexpress.net/a"},
			{Title: "Blog", URL: "https://blog.example/b"},
		},
	}}
	scraper := &fakeScraper{pages: map[string]scrape.Page{
		"https://vnexpress.net/a": {Text: "bài báo vnexpress"},
		"https://blog.example/b":  {Text: "bài blog cá nhân"},
	}}
	chat := &routedChat{routes: map[string]string{
		"vnexpress": `[{"subject":"Lúa ST25","predicate":"Năng suất","object":"8.5 tấn/ha","confidence":0.8}]`,
		"blog":      `[{"subject":"Lúa ST25","predicate":"Năng suất","object":"12 tấn/ha","confidence":0.9}]`,
	}}

	state, err := newPipeline(provider, scraper, chat).Run(context.Background(), "Lúa ST25", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.SearchResults) != 2 {
		t.Fatalf("searchResults = %v", state.SearchResults)
	}
	if len(state.Claims) != 2 {
		t.Fatalf("claims = %+v", state.Claims)
	}
	for _, c := range state.Claims {
		if c.SourceURL == "" {
			t.Errorf("claim missing sourceUrl: %+v", c)
		}
	}
	if len(state.Resolved) != 1 {
		t.Fatalf("resolved = %+v", state.Resolved)
	}
	if state.Resolved[0].Gold.Object != "8.5 tấn/ha" {
		t.Errorf("press source must outvote the blog, got %+v", state.Resolved[0].Gold)
	}
	if !strings.Contains(state.Summary, "Kết quả tổng hợp cho: Lúa ST25") {
		t.Errorf("summary = %q", state.Summary)
	}
	if !strings.Contains(state.Summary, "Nguồn: https://vnexpress.net/a") {
		t.Errorf("summary must cite the winning source: %q", state.Summary)
	}
}

func TestRun_FallbackLadder(t *testing.T) {
	provider := &fakeProvider{name: "searxng", results: map[string][]search.Result{
		"Lúa ST25": {{Title: "hit", URL: "https://nongnghiep.vn/x"}},
	}}
	scraper := &fakeScraper{pages: map[string]scrape.Page{}}
	chat := &routedChat{}

	state, err := newPipeline(provider, scraper, chat).Run(context.Background(), "Lúa ST25", "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{BuildQuery("Lúa ST25"), "Lúa ST25 năng suất", "Lúa ST25"}
	if len(provider.queries) != len(want) {
		t.Fatalf("queries = %q, want %q", provider.queries, want)
	}
	for i := range want {
		if provider.queries[i] != want[i] {
			t.Errorf("query %d = %q, want %q", i, provider.queries[i], want[i])
		}
	}
	if len(state.Debug.FallbackQueries) != 2 {
		t.Errorf("fallbackQueries = %q", state.Debug.FallbackQueries)
	}
	if len(state.SearchResults) != 1 {
		t.Errorf("searchResults = %v", state.SearchResults)
	}
}

func TestRun_SecondaryProviderIsLastResort(t *testing.T) {
	primary := &fakeProvider{name: "searxng"}
	tavily := &fakeProvider{name: "tavily", results: map[string][]search.Result{
		BuildQuery("Lúa ST25"): {{Title: "hit", URL: "https://example.com/st25"}},
	}}
	p := newPipeline(primary, &fakeScraper{}, &routedChat{})
	p.Fallback = tavily

	state, err := p.Run(context.Background(), "Lúa ST25", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(primary.queries) != 5 {
		t.Errorf("primary must exhaust its ladder first, got %q", primary.queries)
	}
	if len(tavily.queries) != 1 {
		t.Errorf("tavily queries = %q", tavily.queries)
	}
	if len(state.SearchResults) != 1 {
		t.Errorf("searchResults = %v", state.SearchResults)
	}
}

func TestRun_ScrapeFailureIsNonFatal(t *testing.T) {
	query := BuildQuery("Lúa ST25")
	provider := &fakeProvider{name: "searxng", results: map[string][]search.Result{
		query: {
			{Title: "down", URL: "https://vnexpress.net/down"},
			{Title: "up", URL: "https://nongnghiep.vn/up"},
		},
	}}
	scraper := &fakeScraper{
		pages: map[string]scrape.Page{"https://nongnghiep.vn/up": {Text: "bài nongnghiep"}},
		errs:  map[string]error{"https://vnexpress.net/down": errors.New("connection refused")},
	}
	chat := &routedChat{routes: map[string]string{
		"nongnghiep": `[{"subject":"Lúa ST25","predicate":"Năng suất","object":"8.5 tấn/ha","confidence":0.8}]`,
	}}

	state, err := newPipeline(provider, scraper, chat).Run(context.Background(), "Lúa ST25", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Claims) != 1 {
		t.Fatalf("claims = %+v", state.Claims)
	}
	if len(state.Debug.Errors) != 1 || !strings.Contains(state.Debug.Errors[0], "vnexpress.net/down") {
		t.Errorf("debug errors = %q", state.Debug.Errors)
	}
}

func TestRun_NoResultsYieldsStockSummary(t *testing.T) {
	state, err := newPipeline(&fakeProvider{name: "searxng"}, &fakeScraper{}, &routedChat{}).
		Run(context.Background(), "Lúa OM999", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(state.Summary, "Chưa tìm được thông tin tin cậy cho 'Lúa OM999'") {
		t.Fatalf("summary = %q", state.Summary)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state, err := newPipeline(&fakeProvider{name: "searxng"}, &fakeScraper{}, &routedChat{}).
		Run(ctx, "Lúa ST25", "")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !state.Debug.Cancelled {
		t.Error("debug must mark the run cancelled")
	}
}

func TestFilterURLs(t *testing.T) {
	p := &Pipeline{Trust: trust.NewScorer()}
	in := []string{
		"https://vnexpress.net/a",
		"https://vnexpress.net/a", // duplicate
		"https://vfo.vn/spam",     // blocklisted
		"ftp://example.com/x",     // bad scheme
		"/relative/path",          // no host
		"https://blog.example/b",
	}
	got := p.filterURLs(in)
	want := []string{"https://vnexpress.net/a", "https://blog.example/b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFilterURLs_CapsAtFifteen(t *testing.T) {
	p := &Pipeline{Trust: trust.NewScorer()}
	var in []string
	for i := 0; i < 30; i++ {
		in = append(in, fmt.Sprintf("https://example.com/page-%d", i))
	}
	if got := p.filterURLs(in); len(got) != 15 {
		t.Fatalf("got %d urls, want 15", len(got))
	}
}

func TestHostLooksJunk(t *testing.T) {
	for _, u := range []string{
		"https://vfo.vn/topic",
		"https://www.zhihu.com/question/1",
		"https://forum.example.com/thread",
	} {
		if !hostLooksJunk(u) {
			t.Errorf("%q must be junk", u)
		}
	}
	if hostLooksJunk("https://vnexpress.net/a") {
		t.Error("press site flagged as junk")
	}
}

func TestBuildQuery(t *testing.T) {
	if got := BuildQuery(""); got != "giống lúa năng suất cao ĐBSCL" {
		t.Errorf("empty crop: %q", got)
	}
	if got := BuildQuery("Lúa ST25"); got != "Lúa ST25 năng suất giống lúa" {
		t.Errorf("got %q", got)
	}
}
