package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// FileProvider serves canned results from a local JSON file for offline runs
// and tests. The file holds an array of objects:
// {"title": "...", "url": "...", "snippet": "..."}.
//
// Matching is per query token over title+snippet, so the fallback ladder's
// progressively shorter queries ("Lúa ST25 năng suất giống lúa" → "Lúa ST25")
// still hit the same canned entries. Options.Region has no effect offline.
type FileProvider struct {
	Path string
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file provider path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []Result
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}

	tokens := strings.Fields(strings.ToLower(query))
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" || r.Title == "" {
			continue
		}
		if !matchesTokens(strings.ToLower(r.Title+" "+r.Snippet), tokens) {
			continue
		}
		r.Source = f.Name()
		out = append(out, r)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// matchesTokens requires every query token to appear in the haystack. An
// empty query matches everything.
func matchesTokens(haystack string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(haystack, tok) {
			return false
		}
	}
	return true
}
