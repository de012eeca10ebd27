// Package report renders resolved claims for people: a plain-text summary for
// the CLI and an optional PDF export. No LLM involved; the output is a
// deterministic function of the resolver's results.
package report

import (
	"fmt"
	"strings"

	"github.com/agriwiki/agrifuse/internal/resolve"
)

const maxSourcesShown = 3

// FormatResolved renders one resolved claim as a single line:
// "subject - predicate: object (Bối cảnh: ...) Nguồn: url1, url2, url3".
func FormatResolved(r resolve.Resolved) string {
	c := r.Gold
	var parts []string

	base := c.Subject
	if c.Predicate != "" {
		base += " - " + c.Predicate
	}
	if c.Object != "" {
		base += ": " + c.Object
	}
	parts = append(parts, base)

	if c.Context != "" {
		parts = append(parts, fmt.Sprintf("(Bối cảnh: %s)", c.Context))
	}
	if len(r.SupportURLs) > 0 {
		urls := r.SupportURLs
		if len(urls) > maxSourcesShown {
			urls = urls[:maxSourcesShown]
		}
		parts = append(parts, "Nguồn: "+strings.Join(urls, ", "))
	}
	return strings.Join(parts, " ")
}

// Summary builds the user-facing text for one crop query. With nothing
// resolved it returns a stock "no reliable info" line instead of an empty
// string.
func Summary(crop string, resolved []resolve.Resolved) string {
	crop = strings.TrimSpace(crop)
	if len(resolved) == 0 {
		return fmt.Sprintf(
			"Chưa tìm được thông tin tin cậy cho '%s' từ các nguồn web hiện tại. Vui lòng thử lại với từ khóa cụ thể hơn.",
			crop)
	}

	var lines []string
	if crop != "" {
		lines = append(lines, "Kết quả tổng hợp cho: "+crop)
	} else {
		lines = append(lines, "Kết quả tổng hợp thông tin nông nghiệp:")
	}
	for i, r := range resolved {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, FormatResolved(r)))
	}
	return strings.Join(lines, "\n")
}
