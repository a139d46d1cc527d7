package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDir_ListsOnlyMarkdown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "top.md", "top")
	writeFile(t, root, "nested/note.md", "nested")
	writeFile(t, root, "nested/image.png", "binary")
	writeFile(t, root, "notes.txt", "not markdown")

	files, err := NewDir(root).List(context.Background())
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path())
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"nested/note.md", "top.md"}, paths)
}

func TestDir_SkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "visible.md", "ok")
	writeFile(t, root, ".obsidian/workspace.md", "internal state")
	writeFile(t, root, ".git/readme.md", "internal state")

	files, err := NewDir(root).List(context.Background())
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "visible.md", files[0].Path())
}

func TestDir_ContentReadsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "note.md", "# Heading\n\nBody text.")

	files, err := NewDir(root).List(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)

	content, err := files[0].Content(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nBody text.", content)
}

func TestDir_ContentFailsForDeletedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "note.md", "body")

	files, err := NewDir(root).List(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Reads are lazy, so deletion between listing and reading surfaces here.
	require.NoError(t, os.Remove(filepath.Join(root, "note.md")))
	_, err = files[0].Content(context.Background())
	assert.Error(t, err)
}

func TestDir_MissingRootFails(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "does-not-exist")).List(context.Background())
	assert.Error(t, err)
}
