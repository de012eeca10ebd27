package resolve

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// parseNumeric extracts a representative numeric value from an object string
// like "8.5 tấn/ha" or "95-100 ngày". Ranges and multi-number strings reduce
// to their arithmetic mean; decimal commas are accepted. Returns (0, false)
// when no number is present.
func parseNumeric(value string) (float64, bool) {
	if value == "" {
		return 0, false
	}
	matches := numberRe.FindAllString(value, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var sum float64
	var n int
	for _, m := range matches {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
		if err != nil {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

var yearRe = regexp.MustCompile(`\b(?:19\d{2}|20\d{2}|2100)\b`)

// yearFromContext finds the first standalone 4-digit year in [1900, 2100]
// inside a context string, e.g. "Vụ Đông Xuân 2023". Digits embedded in a
// longer number ("12023") do not count.
func yearFromContext(context string) (int, bool) {
	if context == "" {
		return 0, false
	}
	m := yearRe.FindString(context)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil || year < 1900 || year > 2100 {
		return 0, false
	}
	return year, true
}
