// Package search abstracts web-search providers behind one interface. The
// primary provider is a SearxNG instance; Tavily serves as the fallback of
// last resort and FileProvider backs offline runs and tests.
package search

import (
	"context"
)

// Result represents a single search hit from any provider.
type Result struct {
	Title   string
	URL     string
	Snippet string
	Source  string // provider name for observability
}

// Options tune a single search call. Providers that do not understand Region
// ignore it.
type Options struct {
	// Region is a country-language pair like "vn-vi". Vietnamese queries
	// return far better hits with it set.
	Region string
	Limit  int
}

// Provider is a minimal interface for search providers.
type Provider interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
	Name() string
}

// languageFromRegion extracts the language half of a "cc-ll" region pair.
func languageFromRegion(region string) string {
	for i := 0; i < len(region); i++ {
		if region[i] == '-' {
			return region[i+1:]
		}
	}
	return ""
}
