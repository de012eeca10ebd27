package extract

import (
	"strings"
	"unicode"
)

// splitSentences cuts text at sentence terminators followed by whitespace.
// The terminator stays with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		// swallow a run of terminators, e.g. "?!" or "..."
		j := i
		for j+1 < len(runes) && isTerminator(runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && !unicode.IsSpace(runes[j+1]) {
			i = j
			continue
		}
		if s := strings.TrimSpace(string(runes[start : j+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = j + 1
		i = j
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '\n':
		return true
	}
	return false
}

// chunkText greedily packs sentences into chunks of at most size characters,
// carrying the last overlap characters of each chunk into the next so a
// fact-bearing sentence cut at a boundary still appears whole somewhere.
func chunkText(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	var b strings.Builder
	flush := func() string {
		chunk := strings.TrimSpace(b.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		b.Reset()
		return chunk
	}

	for _, sentence := range splitSentences(text) {
		if b.Len() > 0 && b.Len()+1+len(sentence) > size {
			prev := flush()
			if overlap > 0 && len(prev) > overlap {
				b.WriteString(tailRunes(prev, overlap))
			}
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}
	flush()
	return chunks
}

// tailRunes returns the last n bytes of s aligned back to a rune boundary.
func tailRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
