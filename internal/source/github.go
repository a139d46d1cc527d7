package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// GitHub lists markdown files from a directory of a GitHub repository, for
// corpora that live in a repo rather than on local disk. Rate limits are
// handled transparently; GITHUB_TOKEN is used when set for the higher
// authenticated quota.
type GitHub struct {
	client   *github.Client
	owner    string
	repo     string
	basePath string
}

// NewGitHub creates a GitHub-backed source for owner/repo, scoped to
// basePath within the tree.
func NewGitHub(owner, repo, basePath string) (*GitHub, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	client := github.NewClient(rateLimiter)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}

	return &GitHub{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
	}, nil
}

// List recursively enumerates markdown files under the base path.
func (g *GitHub) List(ctx context.Context) ([]File, error) {
	return g.listRecursive(ctx, g.basePath, "")
}

func (g *GitHub) listRecursive(ctx context.Context, fullPath, relativePath string) ([]File, error) {
	var files []File

	_, dirContents, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}
		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if strings.HasSuffix(*item.Name, ".md") {
				files = append(files, &githubFile{source: g, rel: itemRelPath})
			}
		case "dir":
			sub, err := g.listRecursive(ctx, path.Join(fullPath, *item.Name), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

type githubFile struct {
	source *GitHub
	rel    string
}

func (f *githubFile) Path() string { return f.rel }

func (f *githubFile) Content(ctx context.Context) (string, error) {
	g := f.source
	fullPath := path.Join(g.basePath, f.rel)

	fileContent, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, fullPath, nil)
	if err != nil {
		return "", fmt.Errorf("get content of %s: %w", fullPath, err)
	}
	if fileContent == nil || fileContent.Content == nil {
		return "", fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return "", fmt.Errorf("decode content of %s: %w", fullPath, err)
	}

	return string(content), nil
}
