package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agriwiki/agrifuse/internal/claim"
	"github.com/agriwiki/agrifuse/internal/resolve"
)

func resolved(t *testing.T, subject, predicate, object, ctx string, urls ...string) resolve.Resolved {
	t.Helper()
	c, err := claim.New(subject, predicate, object, ctx, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	return resolve.Resolved{Gold: c, SupportURLs: urls, TotalScore: 1.0}
}

func TestFormatResolved(t *testing.T) {
	r := resolved(t, "Lúa ST25", "Năng suất", "8.5 tấn/ha", "Vụ Đông Xuân",
		"https://vnexpress.net/a", "https://nongnghiep.vn/b")
	got := FormatResolved(r)
	want := "Lúa ST25 - Năng suất: 8.5 tấn/ha (Bối cảnh: Vụ Đông Xuân) Nguồn: https://vnexpress.net/a, https://nongnghiep.vn/b"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestFormatResolved_CapsSourcesAtThree(t *testing.T) {
	r := resolved(t, "Lúa ST25", "Năng suất", "8.5 tấn/ha", "",
		"https://a.vn", "https://b.vn", "https://c.vn", "https://d.vn")
	got := FormatResolved(r)
	if strings.Contains(got, "d.vn") {
		t.Fatalf("more than three sources shown: %q", got)
	}
}

func TestSummary(t *testing.T) {
	rs := []resolve.Resolved{
		resolved(t, "Lúa ST25", "Năng suất", "8.5 tấn/ha", ""),
		resolved(t, "Lúa ST25", "Nguồn gốc", "Sóc Trăng", ""),
	}
	got := Summary("Lúa ST25", rs)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("summary = %q", got)
	}
	if lines[0] != "Kết quả tổng hợp cho: Lúa ST25" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1. ") || !strings.HasPrefix(lines[2], "2. ") {
		t.Errorf("lines must be numbered: %q", got)
	}
}

func TestSummary_NoResults(t *testing.T) {
	got := Summary("Lúa OM999", nil)
	if !strings.Contains(got, "Chưa tìm được thông tin tin cậy cho 'Lúa OM999'") {
		t.Fatalf("got %q", got)
	}
}

func TestWritePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	summary := "Kết quả tổng hợp cho: Lúa ST25\n1. Lúa ST25 - Năng suất: 8.5 tấn/ha"
	if err := WritePDF(summary, path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || !strings.HasPrefix(string(data[:5]), "%PDF-") {
		t.Fatalf("output is not a PDF (%d bytes)", len(data))
	}
}
