package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily implements Provider against the Tavily REST API. It is the last rung
// of the fallback ladder and only used when an API key is configured. Region
// is ignored; Tavily has no language parameter.
type Tavily struct {
	APIKey     string
	BaseURL    string // overridable for tests
	HTTPClient *http.Client
}

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if t.APIKey == "" {
		return nil, fmt.Errorf("missing tavily api key")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:     t.APIKey,
		Query:      query,
		MaxResults: limit,
	})
	if err != nil {
		return nil, err
	}
	endpoint := t.BaseURL
	if endpoint == "" {
		endpoint = tavilyEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	hc := t.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("tavily status: %d", resp.StatusCode)
	}
	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(tr.Results))
	for _, r := range tr.Results {
		if r.URL == "" {
			continue
		}
		out = append(out, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Source:  t.Name(),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}
