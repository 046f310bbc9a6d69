package chunker

import (
	"strings"
	"unicode/utf8"
)

// separators are tried highest priority first when splitting oversized text.
// The empty string is the terminal fallback meaning fixed-size windows.
var separators = []string{"\n\n\n", "\n\n", "\n", ". ", ", ", " ", ""}

// SplitText breaks text into pieces of at most chunkSize bytes, preferring
// paragraph, line, sentence and word boundaries in that order. Consecutive
// pieces start with a word-aligned tail of at least overlap bytes carried
// from their predecessor, unless carrying it would push the piece over the
// size limit.
func SplitText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return splitRecursive(text, separators, chunkSize, overlap)
}

func splitRecursive(text string, seps []string, chunkSize, overlap int) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	sep, rest := pickSeparator(text, seps)
	if sep == "" {
		return windowSplit(text, chunkSize, overlap)
	}

	var out []string
	var pending []string

	flush := func() {
		if len(pending) > 0 {
			out = append(out, mergePieces(pending, sep, chunkSize, overlap)...)
			pending = pending[:0]
		}
	}

	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if len(piece) <= chunkSize {
			pending = append(pending, piece)
			continue
		}
		// Oversized pieces recurse with the finer separators.
		flush()
		out = append(out, splitRecursive(piece, rest, chunkSize, overlap)...)
	}
	flush()

	return out
}

// pickSeparator returns the highest-priority separator present in text plus
// the remaining lower-priority ones for recursion.
func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// mergePieces greedily rejoins pieces up to chunkSize, carrying an overlap
// tail from each emitted chunk into the next.
func mergePieces(pieces []string, sep string, chunkSize, overlap int) []string {
	var chunks []string
	var current strings.Builder

	for _, piece := range pieces {
		need := len(piece)
		if current.Len() > 0 {
			need += len(sep)
		}
		if current.Len() > 0 && current.Len()+need > chunkSize {
			chunk := strings.TrimSpace(current.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			current.Reset()
			if overlap > 0 && chunk != "" {
				tail := overlapTail(chunk, overlap)
				if len(tail)+len(sep)+len(piece) <= chunkSize {
					current.WriteString(tail)
				}
			}
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	if chunk := strings.TrimSpace(current.String()); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

// overlapTail returns a suffix of chunk at least n bytes long, extended left
// to the nearest word boundary.
func overlapTail(chunk string, n int) string {
	if len(chunk) <= n {
		return chunk
	}
	cut := len(chunk) - n
	if idx := strings.LastIndex(chunk[:cut], " "); idx >= 0 {
		return chunk[idx+1:]
	}
	for cut > 0 && !utf8.RuneStart(chunk[cut]) {
		cut--
	}
	return chunk[cut:]
}

// windowSplit is the last resort for text with no separators at all: fixed
// windows of chunkSize bytes, aligned to rune boundaries, each starting
// overlap bytes before the end of the previous window.
func windowSplit(text string, chunkSize, overlap int) []string {
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		for end > start+1 && !utf8.RuneStart(text[end]) {
			end--
		}
		chunks = append(chunks, text[start:end])

		next := start + step
		for next > start+1 && !utf8.RuneStart(text[next]) {
			next--
		}
		start = next
	}
	return chunks
}
