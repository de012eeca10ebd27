package scrape

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const robotsMemTTL = 30 * time.Minute

// robotsRules is the parsed policy of one robots.txt, reduced to the group
// matching our user agent plus the wildcard group.
type robotsRules struct {
	groups []robotsGroup
}

type robotsGroup struct {
	agents   []string
	allow    []string
	disallow []string
}

type robotsEntry struct {
	rules  robotsRules
	expiry time.Time
}

// robotsGate caches per-host robots.txt verdicts in memory. Fetch failures
// and missing files read as allow-all; the sites we scrape are public news
// pages and a broken robots endpoint should not silence them.
type robotsGate struct {
	mu     sync.Mutex
	byHost map[string]robotsEntry
	now    func() time.Time
}

func (g *robotsGate) allowed(ctx context.Context, c *Client, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	rules := g.rulesFor(ctx, c, u)
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.isAllowed(c.UserAgent, path)
}

func (g *robotsGate) rulesFor(ctx context.Context, c *Client, u *url.URL) robotsRules {
	if g.now == nil {
		g.now = time.Now
	}
	host := u.Scheme + "://" + u.Host

	g.mu.Lock()
	if g.byHost == nil {
		g.byHost = make(map[string]robotsEntry)
	}
	if ent, ok := g.byHost[host]; ok && g.now().Before(ent.expiry) {
		g.mu.Unlock()
		return ent.rules
	}
	g.mu.Unlock()

	rules := fetchRobots(ctx, c, host+"/robots.txt")

	g.mu.Lock()
	g.byHost[host] = robotsEntry{rules: rules, expiry: g.now().Add(robotsMemTTL)}
	g.mu.Unlock()
	return rules
}

func fetchRobots(ctx context.Context, c *Client, robotsURL string) robotsRules {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return robotsRules{}
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return robotsRules{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return robotsRules{}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return robotsRules{}
	}
	return parseRobots(string(body))
}

func parseRobots(text string) robotsRules {
	var rules robotsRules
	var cur robotsGroup
	flush := func() {
		if len(cur.agents) == 0 && len(cur.allow) == 0 && len(cur.disallow) == 0 {
			return
		}
		rules.groups = append(rules.groups, cur)
		cur = robotsGroup{}
	}
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		switch key {
		case "user-agent":
			// a directive after agents closes the group
			if len(cur.agents) > 0 && (len(cur.allow) > 0 || len(cur.disallow) > 0) {
				flush()
			}
			cur.agents = append(cur.agents, strings.ToLower(val))
		case "allow":
			cur.allow = append(cur.allow, val)
		case "disallow":
			cur.disallow = append(cur.disallow, val)
		}
	}
	flush()
	return rules
}

// isAllowed applies the standard longest-match rule within the best matching
// agent group. No matching directive means allow.
func (r robotsRules) isAllowed(userAgent, path string) bool {
	grp, ok := r.groupFor(userAgent)
	if !ok {
		return true
	}
	bestLen := -1
	bestAllow := true
	consider := func(patterns []string, isAllow bool) {
		for _, p := range patterns {
			if p == "" {
				continue
			}
			if !patternMatch(p, path) {
				continue
			}
			n := len(strings.ReplaceAll(strings.TrimSuffix(p, "$"), "*", ""))
			if n > bestLen || (n == bestLen && isAllow && !bestAllow) {
				bestLen, bestAllow = n, isAllow
			}
		}
	}
	consider(grp.disallow, false)
	consider(grp.allow, true)
	if bestLen == -1 {
		return true
	}
	return bestAllow
}

// groupFor picks the group with the longest agent token contained in the user
// agent; the wildcard group matches everything but loses to any named match.
func (r robotsRules) groupFor(userAgent string) (robotsGroup, bool) {
	ua := strings.ToLower(userAgent)
	bestIdx := -1
	bestScore := -1
	for i, g := range r.groups {
		for _, a := range g.agents {
			var score int
			switch {
			case a == "*":
				score = 0
			case a != "" && strings.Contains(ua, a):
				score = len(a)
			default:
				continue
			}
			if score > bestScore {
				bestScore, bestIdx = score, i
			}
		}
	}
	if bestIdx < 0 {
		return robotsGroup{}, false
	}
	return r.groups[bestIdx], true
}

// patternMatch matches a robots pattern against a path. '*' matches any run
// of characters and a trailing '$' anchors the end; matching is anchored at
// the start.
func patternMatch(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")
	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	rest := path[len(parts[0]):]
	if len(parts) == 1 {
		return !anchored || rest == ""
	}

	middle := parts[1:]
	if anchored {
		last := parts[len(parts)-1]
		if !strings.HasSuffix(rest, last) {
			return false
		}
		rest = rest[:len(rest)-len(last)]
		middle = parts[1 : len(parts)-1]
	}
	for _, part := range middle {
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return true
}
