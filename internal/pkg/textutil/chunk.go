// Package textutil provides text splitting helpers for document ingestion.
package textutil

import "strings"

// sentenceLookback is how far back from a chunk boundary we search for a
// sentence end before cutting mid-sentence.
const sentenceLookback = 100

// Chunk splits text into overlapping chunks of roughly size runes. Boundaries
// prefer sentence ends (".", "!", "?") within the lookback window; overlap
// runes are repeated at the start of the next chunk. Chunks are trimmed and
// empty chunks are dropped.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end < len(runes) {
			windowStart := end - sentenceLookback
			if windowStart < start {
				windowStart = start
			}
			if cut := lastSentenceEnd(runes[windowStart:end]); cut >= 0 {
				end = windowStart + cut + 1
			}
		} else {
			end = len(runes)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			// Guard against stalling when a sentence boundary lands inside
			// the overlap window.
			next = end
		}
		start = next
		if start >= len(runes) {
			break
		}
	}

	return chunks
}

// lastSentenceEnd returns the index of the last sentence terminator in runes,
// or -1 when there is none.
func lastSentenceEnd(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

// Truncate shortens s to at most max runes, appending "..." when it cut
// anything.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
