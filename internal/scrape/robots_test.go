package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParseRobots_Groups(t *testing.T) {
	rules := parseRobots(`
# comment
User-agent: *
Disallow: /admin/
Allow: /admin/public

User-agent: agrifuse
Disallow: /private/
`)
	if len(rules.groups) != 2 {
		t.Fatalf("groups = %+v", rules.groups)
	}
	if !rules.isAllowed("agrifuse/1.0", "/admin/page") {
		t.Error("named group must win over wildcard, /admin/ not disallowed for agrifuse")
	}
	if rules.isAllowed("agrifuse/1.0", "/private/page") {
		t.Error("/private/ is disallowed for agrifuse")
	}
	if rules.isAllowed("somebot", "/admin/page") {
		t.Error("/admin/ is disallowed for the wildcard group")
	}
	if !rules.isAllowed("somebot", "/admin/public/doc") {
		t.Error("longer Allow must beat shorter Disallow")
	}
	if !rules.isAllowed("somebot", "/news/st25") {
		t.Error("unmatched path defaults to allow")
	}
}

func TestPatternMatch(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"/admin/", "/admin/page", true},
		{"/admin/", "/adm", false},
		{"/*.pdf$", "/docs/report.pdf", true},
		{"/*.pdf$", "/docs/report.pdf?dl=1", false},
		{"/a*b", "/axxb/tail", true},
		{"/a*b$", "/axxb", true},
		{"/a*b$", "/axxbc", false},
		{"/*/print", "/news/print", true},
	}
	for _, tc := range cases {
		if got := patternMatch(tc.pattern, tc.path); got != tc.want {
			t.Errorf("patternMatch(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestScrape_RespectsRobots(t *testing.T) {
	var robotsHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&robotsHits, 1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><article>Nội dung bài báo.</article></body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Client{HTTPClient: srv.Client(), UserAgent: "agrifuse/1.0", RespectRobots: true}

	if _, err := c.Scrape(context.Background(), srv.URL+"/private/page"); err == nil {
		t.Fatal("disallowed path must not be scraped")
	} else if !strings.Contains(err.Error(), "robots.txt") {
		t.Fatalf("err = %v", err)
	}

	page, err := c.Scrape(context.Background(), srv.URL+"/news/st25")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(page.Text, "Nội dung bài báo.") {
		t.Errorf("text = %q", page.Text)
	}
	if got := atomic.LoadInt32(&robotsHits); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1 (memory cache)", got)
	}
}

func TestScrape_RobotsFetchFailureAllows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><article>Vẫn đọc được.</article></body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Client{HTTPClient: srv.Client(), RespectRobots: true}
	page, err := c.Scrape(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(page.Text, "Vẫn đọc được.") {
		t.Errorf("text = %q", page.Text)
	}
}
