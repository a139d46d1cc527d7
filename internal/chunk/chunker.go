// Package chunk splits document bodies into bounded passages and builds the
// context-enriched text that is sent to the embedding model.
package chunk

import (
	"strings"
	"unicode/utf8"
)

const paragraphSeparator = "\n\n"

// Smart splits content into an ordered sequence of passages. Sizes are
// measured in runes. Paragraphs (blank-line-delimited blocks) are merged
// until a passage reaches at least minSize; no passage ever exceeds maxSize
// unless a single source paragraph does, in which case the paragraph is
// hard-split at sentence boundaries, falling back to fixed-length cuts.
//
// The trailing buffer is always emitted, even below minSize. Identical input
// always yields the identical sequence: chunk boundaries feed the
// checksum-driven re-embedding decision, so any nondeterminism here would
// cause spurious re-indexing.
func Smart(content string, minSize, maxSize int) []string {
	if minSize <= 0 {
		minSize = 1
	}
	if maxSize < minSize {
		maxSize = minSize
	}

	paragraphs := splitParagraphs(content)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}

	for _, para := range paragraphs {
		paraLen := utf8.RuneCountInString(para)

		if paraLen > maxSize {
			flush()
			chunks = append(chunks, hardSplit(para, maxSize)...)
			continue
		}

		sepLen := 0
		if bufLen > 0 {
			sepLen = utf8.RuneCountInString(paragraphSeparator)
		}
		if bufLen > 0 && bufLen+sepLen+paraLen > maxSize {
			// maxSize is a hard bound; the buffer closes early even if it
			// has not reached minSize yet.
			flush()
			sepLen = 0
		}

		if bufLen > 0 {
			buf.WriteString(paragraphSeparator)
		}
		buf.WriteString(para)
		bufLen += sepLen + paraLen

		if bufLen >= minSize {
			flush()
		}
	}

	flush()
	return chunks
}

// splitParagraphs breaks content into blank-line-delimited blocks, dropping
// empty blocks and normalizing line endings.
func splitParagraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var paragraphs []string
	var current []string

	closeParagraph := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			closeParagraph()
			continue
		}
		current = append(current, strings.TrimRight(line, " \t"))
	}
	closeParagraph()

	return paragraphs
}

// hardSplit cuts an oversize paragraph into pieces of at most maxSize runes.
// Sentences are kept intact where possible; a single sentence longer than
// maxSize is cut at fixed rune offsets.
func hardSplit(para string, maxSize int) []string {
	var pieces []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if buf.Len() > 0 {
			pieces = append(pieces, strings.TrimSpace(buf.String()))
			buf.Reset()
			bufLen = 0
		}
	}

	for _, sentence := range splitSentences(para) {
		sentLen := utf8.RuneCountInString(sentence)

		if sentLen > maxSize {
			flush()
			runes := []rune(sentence)
			for start := 0; start < len(runes); start += maxSize {
				end := min(start+maxSize, len(runes))
				pieces = append(pieces, strings.TrimSpace(string(runes[start:end])))
			}
			continue
		}

		sepLen := 0
		if bufLen > 0 {
			sepLen = 1
		}
		if bufLen > 0 && bufLen+sepLen+sentLen > maxSize {
			flush()
			sepLen = 0
		}

		if bufLen > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sentence)
		bufLen += sepLen + sentLen
	}

	flush()
	return pieces
}

// splitSentences splits text after terminal punctuation followed by
// whitespace, and on line breaks.
func splitSentences(text string) []string {
	var sentences []string
	var buf strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			if s := strings.TrimSpace(buf.String()); s != "" {
				sentences = append(sentences, s)
			}
			buf.Reset()
			continue
		}
		buf.WriteRune(r)
		if isSentenceEnd(r) && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			if s := strings.TrimSpace(buf.String()); s != "" {
				sentences = append(sentences, s)
			}
			buf.Reset()
		}
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
