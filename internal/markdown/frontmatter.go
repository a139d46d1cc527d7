// Package markdown handles front-matter extraction and plain-text rendering
// of markdown documents.
package markdown

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// ParseFrontmatter splits a raw document into body content and front-matter
// metadata. Front matter is a leading YAML block fenced by "---" lines.
//
// Documents without front matter, and documents whose front matter fails to
// parse as YAML, are returned unchanged with an empty metadata map. Sync runs
// unattended over arbitrary user files, so malformed metadata must never be
// an error.
func ParseFrontmatter(source string) (string, map[string]any) {
	meta := map[string]any{}

	normalized := strings.ReplaceAll(source, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontmatterDelimiter+"\n") {
		return source, meta
	}

	rest := normalized[len(frontmatterDelimiter)+1:]
	end := findClosingDelimiter(rest)
	if end < 0 {
		return source, meta
	}

	block := rest[:end]
	body := rest[end:]
	// Skip past the closing delimiter line.
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(block), &parsed); err != nil || parsed == nil {
		return source, meta
	}

	return body, parsed
}

// findClosingDelimiter returns the byte offset of the line that closes the
// front-matter block, or -1 if the block is never closed.
func findClosingDelimiter(s string) int {
	offset := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimRight(line, " \t") == frontmatterDelimiter {
			return offset
		}
		offset += len(line) + 1
	}
	return -1
}
