package engine

import "strings"

// SplitText splits text into chunks of at most size bytes with the given
// overlap between consecutive chunks. Boundaries prefer paragraph breaks,
// then sentence ends, then spaces, so chunks stay readable. The sequence
// covers the whole input; overlap carries trailing context forward.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	if overlap >= size {
		overlap = size / 2
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := findBreak(text, start, end)
		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// findBreak looks backwards from end for a natural boundary within the
// last quarter of the window; without one it cuts at end.
func findBreak(text string, start, end int) int {
	window := text[start:end]
	limit := len(window) - len(window)/4

	if i := strings.LastIndex(window, "\n\n"); i >= limit {
		return start + i + 2
	}
	for _, sep := range []string{". ", ".\n", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i >= limit {
			return start + i + len(sep)
		}
	}
	if i := strings.LastIndex(window, " "); i >= limit {
		return start + i + 1
	}
	return end
}
