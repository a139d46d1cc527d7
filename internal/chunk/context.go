package chunk

import (
	"fmt"
	"sort"
	"strings"
)

// BuildContext composes the text that is embedded for a passage: a short
// metadata header, the trailing overlap from the previous chunk, then the
// chunk itself. The returned string is only ever sent to the embedding call;
// the persisted section keeps the raw chunk so displayed text stays clean.
func BuildContext(chunk string, meta map[string]any, path, precedingTail string) string {
	var b strings.Builder

	b.WriteString("path: ")
	b.WriteString(path)
	b.WriteByte('\n')

	for _, key := range sortedMetaKeys(meta) {
		fmt.Fprintf(&b, "%s: %s", key, formatMetaValue(meta[key]))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if precedingTail != "" {
		b.WriteString(precedingTail)
		b.WriteByte('\n')
	}
	b.WriteString(chunk)

	return b.String()
}

// Tail returns the last n runes of chunk, used as the overlap carried into
// the next chunk's embedding context. n <= 0 disables overlap.
func Tail(chunk string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= n {
		return chunk
	}
	return string(runes[len(runes)-n:])
}

// sortedMetaKeys returns metadata keys in a stable order, excluding "path"
// which is always rendered first from the explicit argument.
func sortedMetaKeys(meta map[string]any) []string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if k == "path" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatMetaValue renders a front-matter value on a single header line.
func formatMetaValue(v any) string {
	switch val := v.(type) {
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ", ")
	default:
		return strings.ReplaceAll(fmt.Sprintf("%v", v), "\n", " ")
	}
}
