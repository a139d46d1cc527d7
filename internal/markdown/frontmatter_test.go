package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrontmatter_Basic(t *testing.T) {
	input := `---
title: Meeting Notes
tags:
  - work
  - planning
published: true
---

# Agenda

Discuss the roadmap.
`

	body, meta := ParseFrontmatter(input)

	assert.Equal(t, "Meeting Notes", meta["title"])
	assert.Equal(t, true, meta["published"])
	assert.Equal(t, []any{"work", "planning"}, meta["tags"])

	assert.Contains(t, body, "# Agenda")
	assert.Contains(t, body, "Discuss the roadmap.")
	assert.NotContains(t, body, "title: Meeting Notes")
}

func TestParseFrontmatter_Absent(t *testing.T) {
	input := "# Just a note\n\nNo metadata here.\n"

	body, meta := ParseFrontmatter(input)

	assert.Equal(t, input, body)
	assert.Empty(t, meta)
}

func TestParseFrontmatter_MalformedYAML(t *testing.T) {
	input := `---
title: [unclosed
---

Body text.
`

	body, meta := ParseFrontmatter(input)

	// Malformed front matter is treated as absent, never an error.
	assert.Equal(t, input, body)
	assert.Empty(t, meta)
}

func TestParseFrontmatter_Unclosed(t *testing.T) {
	input := `---
title: Dangling block

Body that never closes the fence.
`

	body, meta := ParseFrontmatter(input)

	assert.Equal(t, input, body)
	assert.Empty(t, meta)
}

func TestParseFrontmatter_EmptyBody(t *testing.T) {
	input := "---\ntitle: Only Metadata\n---"

	body, meta := ParseFrontmatter(input)

	assert.Equal(t, "Only Metadata", meta["title"])
	assert.Empty(t, body)
}

func TestParseFrontmatter_DelimiterMidDocument(t *testing.T) {
	input := "Intro paragraph.\n\n---\n\nAfter a thematic break.\n"

	body, meta := ParseFrontmatter(input)

	// A "---" that is not the first line is a thematic break, not front matter.
	assert.Equal(t, input, body)
	assert.Empty(t, meta)
}

func TestParseFrontmatter_CRLF(t *testing.T) {
	input := "---\r\ntitle: Windows Note\r\n---\r\nBody line.\r\n"

	body, meta := ParseFrontmatter(input)

	assert.Equal(t, "Windows Note", meta["title"])
	assert.Contains(t, body, "Body line.")
}
