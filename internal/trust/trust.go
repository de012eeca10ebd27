// Package trust maps source URLs to trust weights used by the resolver's
// weighted voting. The weights are part of the scoring contract: government
// domains outrank universities, which outrank the official-press allowlist,
// and everything else scores 0.5.
package trust

import (
	"net/url"
	"strings"
)

const (
	GovScore     = 1.0
	EduScore     = 0.9
	PressScore   = 0.8
	DefaultScore = 0.5
)

// DefaultPressAllowlist lists mainstream Vietnamese news hosts. Operators can
// extend or replace it through configuration without a code change.
var DefaultPressAllowlist = []string{
	"vnexpress.net",
	"tuoitre.vn",
	"thanhnien.vn",
	"nld.com.vn",
	"dantri.com.vn",
	"vietnamplus.vn",
	"vtv.vn",
	"vov.vn",
	"baochinhphu.vn",
	"nongnghiep.vn",
}

// Scorer is a pure host-based classifier. The zero value is not usable;
// construct with NewScorer.
type Scorer struct {
	press map[string]struct{}
}

// NewScorer returns a Scorer with the default press allowlist. Pass extra
// hosts to extend it (exact hostname matches, lowercased).
func NewScorer(extraPress ...string) *Scorer {
	s := &Scorer{press: make(map[string]struct{}, len(DefaultPressAllowlist)+len(extraPress))}
	for _, h := range DefaultPressAllowlist {
		s.press[strings.ToLower(h)] = struct{}{}
	}
	for _, h := range extraPress {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			s.press[h] = struct{}{}
		}
	}
	return s
}

// NewScorerWithAllowlist replaces the default press allowlist entirely.
func NewScorerWithAllowlist(press []string) *Scorer {
	s := &Scorer{press: make(map[string]struct{}, len(press))}
	for _, h := range press {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			s.press[h] = struct{}{}
		}
	}
	return s
}

// Score maps a URL to its trust weight. Empty or unparseable URLs fall back
// to the default weight; the score depends only on the host.
func (s *Scorer) Score(rawURL string) float64 {
	host := Hostname(rawURL)
	if host == "" {
		return DefaultScore
	}
	if strings.HasSuffix(host, ".gov.vn") {
		return GovScore
	}
	if strings.HasSuffix(host, ".edu.vn") {
		return EduScore
	}
	if _, ok := s.press[host]; ok {
		return PressScore
	}
	return DefaultScore
}

// Hostname extracts the lowercased host from a URL, tolerating missing
// schemes and stripping any port suffix.
func Hostname(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Host
	if host == "" {
		// "vnexpress.net/path" parses as a path when the scheme is missing.
		host = u.Path
		if i := strings.IndexByte(host, '/'); i >= 0 {
			host = host[:i]
		}
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}
