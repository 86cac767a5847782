package knowledge

import (
	"strings"
	"unicode/utf8"
)

// ChunkerConfig controls how documents are split. Size and overlap are
// configuration, not per-document-type constants.
type ChunkerConfig struct {
	Size    int // target chunk size in characters
	Overlap int // characters shared between adjacent chunks
}

// Split cuts text into overlapping chunks of roughly cfg.Size characters.
// Cuts prefer whitespace near the boundary so words are not bisected.
// Whitespace-only input yields no chunks.
func Split(text string, cfg ChunkerConfig) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	size := cfg.Size
	if size <= 0 {
		size = 1000
	}
	overlap := cfg.Overlap
	if overlap < 0 || overlap >= size/2 {
		overlap = 0
	}

	var chunks []string
	start := 0
	for {
		if len(text)-start <= size {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			return chunks
		}

		cut := start + size
		// Walk back to the nearest whitespace within the last tenth of the
		// chunk so we cut between words when we can.
		for i := cut; i > cut-size/10; i-- {
			if text[i-1] == ' ' || text[i-1] == '\n' || text[i-1] == '\t' {
				cut = i
				break
			}
		}
		// Without whitespace the cut is a raw byte offset; move it to the
		// next rune start so a multi-byte rune is never bisected.
		for cut < len(text) && !utf8.RuneStart(text[cut]) {
			cut++
		}

		chunks = append(chunks, strings.TrimSpace(text[start:cut]))
		start = cut - overlap
		for start > 0 && !utf8.RuneStart(text[start]) {
			start++
		}
	}
}
