package embedding

import (
	"regexp"
	"strings"
)

// disallowed matches every rune outside the permitted set: Unicode letters
// and digits, whitespace, and common punctuation. Control characters and
// stray symbols from PDF extraction are stripped before chunking.
var disallowed = regexp.MustCompile(`[^\p{L}\p{N}\s.,;:!?()\[\]{}"'` + "`" + `\-_/@#%&*+=<>~|\\^$]`)

var whitespace = regexp.MustCompile(`\s+`)

// Normalize canonicalizes extracted text before chunking and fingerprinting.
// It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = disallowed.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Chunk splits normalized text into word windows of chunkSize words with
// overlap words shared between consecutive windows. Input shorter than one
// window yields a single chunk.
func Chunk(s string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 10
	}

	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= chunkSize {
		return []string{strings.Join(words, " ")}
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
