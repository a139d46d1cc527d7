package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paragraph(size int) string {
	// Deterministic filler made of short sentences.
	var b strings.Builder
	for b.Len() < size {
		b.WriteString("Some filler text here. ")
	}
	return strings.TrimSpace(b.String()[:size])
}

func TestSmart_MergesSmallParagraphs(t *testing.T) {
	paras := []string{paragraph(150), paragraph(300), paragraph(50)}
	content := strings.Join(paras, "\n\n")

	chunks := Smart(content, 200, 600)

	require.Len(t, chunks, 2)

	// First two paragraphs merge into one chunk within bounds.
	first := utf8.RuneCountInString(chunks[0])
	assert.GreaterOrEqual(t, first, 200)
	assert.LessOrEqual(t, first, 600)
	assert.Contains(t, chunks[0], paras[0])
	assert.Contains(t, chunks[0], paras[1])

	// Trailing short paragraph is emitted as the final chunk.
	assert.Equal(t, paras[2], chunks[1])
}

func TestSmart_Deterministic(t *testing.T) {
	content := strings.Join([]string{
		paragraph(120), paragraph(340), paragraph(90), paragraph(700), paragraph(45),
	}, "\n\n")

	first := Smart(content, 200, 600)
	second := Smart(content, 200, 600)

	assert.Equal(t, first, second)
}

func TestSmart_RespectsMaxSize(t *testing.T) {
	var paras []string
	for i := 0; i < 12; i++ {
		paras = append(paras, paragraph(80+i*37))
	}
	content := strings.Join(paras, "\n\n")

	chunks := Smart(content, 200, 400)

	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 400, "chunk %d exceeds maxSize", i)
	}
}

func TestSmart_MinSizeHolds(t *testing.T) {
	var paras []string
	for i := 0; i < 10; i++ {
		paras = append(paras, paragraph(90))
	}
	content := strings.Join(paras, "\n\n")

	chunks := Smart(content, 200, 600)

	require.NotEmpty(t, chunks)
	for i, c := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(c), 200, "chunk %d below minSize", i)
	}
}

func TestSmart_OversizeParagraphHardSplit(t *testing.T) {
	big := paragraph(1500)
	content := paragraph(100) + "\n\n" + big

	chunks := Smart(content, 200, 600)

	require.Greater(t, len(chunks), 2)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 600, "chunk %d exceeds maxSize", i)
	}

	// All of the oversize paragraph's text survives the split.
	joined := strings.Join(chunks, " ")
	assert.Contains(t, joined, "Some filler text here.")
}

func TestSmart_OversizeSentenceFixedLengthSplit(t *testing.T) {
	// One unbroken 900-rune "sentence" with no terminal punctuation.
	big := strings.Repeat("x", 900)

	chunks := Smart(big, 200, 300)

	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 300)
	}
	assert.Equal(t, big, strings.Join(chunks, ""))
}

func TestSmart_EmptyContent(t *testing.T) {
	assert.Empty(t, Smart("", 200, 600))
	assert.Empty(t, Smart("\n\n   \n\n", 200, 600))
}

func TestSmart_SingleShortParagraph(t *testing.T) {
	chunks := Smart("Just one line.", 200, 600)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Just one line.", chunks[0])
}

func TestSmart_TrailingChunkKept(t *testing.T) {
	content := paragraph(250) + "\n\n" + "tiny"

	chunks := Smart(content, 200, 600)

	require.Len(t, chunks, 2)
	assert.Equal(t, "tiny", chunks[1])
}

func TestBuildContext_HeaderAndTail(t *testing.T) {
	meta := map[string]any{
		"title": "Weekly Review",
		"tags":  []any{"work", "planning"},
		"path":  "ignored-in-favor-of-argument",
	}

	out := BuildContext("The chunk body.", meta, "Public/review.md", "end of previous chunk")

	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "path: Public/review.md", lines[0])
	assert.Equal(t, "tags: work, planning", lines[1])
	assert.Equal(t, "title: Weekly Review", lines[2])
	assert.Equal(t, "", lines[3])

	assert.Contains(t, out, "end of previous chunk\nThe chunk body.")
}

func TestBuildContext_FirstChunkNoTail(t *testing.T) {
	out := BuildContext("First chunk.", map[string]any{}, "note.md", "")

	assert.Equal(t, "path: note.md\n\nFirst chunk.", out)
}

func TestBuildContext_Deterministic(t *testing.T) {
	meta := map[string]any{"b": 1, "a": 2, "c": 3}

	first := BuildContext("body", meta, "n.md", "")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildContext("body", meta, "n.md", ""))
	}
	assert.Contains(t, first, "a: 2\nb: 1\nc: 3")
}

func TestTail(t *testing.T) {
	tests := []struct {
		chunk string
		n     int
		want  string
	}{
		{"abcdef", 3, "def"},
		{"abc", 10, "abc"},
		{"abc", 0, ""},
		{"abc", -1, ""},
		{"日本語テキスト", 2, "スト"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.chunk, tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, Tail(tt.chunk, tt.n))
		})
	}
}
