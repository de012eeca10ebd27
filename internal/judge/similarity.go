package judge

import (
	"math"
	"strings"
)

// CosineSimilarity computes the cosine of the angle between two embedding
// vectors. Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Ratio is a deterministic string-similarity measure in [0,1] used when
// embeddings are unavailable: the Ratcliff/Obershelp ratio over case-folded,
// trimmed runes (2*M/T where M counts matched characters across recursive
// longest common substrings and T is the total length).
func Ratio(a, b string) float64 {
	ar := []rune(strings.ToLower(strings.TrimSpace(a)))
	br := []rune(strings.ToLower(strings.TrimSpace(b)))
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}
	if string(ar) == string(br) {
		return 1
	}
	return 2 * float64(matchingRunes(ar, br)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	ai, aj, bi, bj, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}
	m := size
	m += matchingRunes(a[:ai], b[:bi])
	m += matchingRunes(a[aj:], b[bj:])
	return m
}

// longestCommonBlock finds the longest common substring, returning its bounds
// in both inputs.
func longestCommonBlock(a, b []rune) (ai, aj, bi, bj, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0, 0, 0
	}
	// prev[j] holds the length of the common suffix ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai, aj = i-size, i
					bi, bj = j-size, j
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, aj, bi, bj, size
}
