package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Dir lists markdown files under a local directory tree. Paths are reported
// relative to the root with forward slashes, matching the path form stored
// in the index.
type Dir struct {
	root string
}

// NewDir creates a directory source rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// List walks the tree and returns every markdown file present right now.
// Hidden directories (dotfiles) are skipped.
func (d *Dir) List(ctx context.Context) ([]File, error) {
	var files []File

	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := entry.Name()
		if entry.IsDir() {
			if p != d.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".md") {
			return nil
		}

		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		files = append(files, &dirFile{
			abs: p,
			rel: filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.root, err)
	}

	return files, nil
}

type dirFile struct {
	abs string
	rel string
}

func (f *dirFile) Path() string { return f.rel }

func (f *dirFile) Content(_ context.Context) (string, error) {
	data, err := os.ReadFile(f.abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.rel, err)
	}
	return string(data), nil
}
